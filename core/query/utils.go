package query

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// FieldTypePtr is used for schema ItemsType declarations.
func FieldTypePtr[T ~string](t T) *T {
	return &t
}
