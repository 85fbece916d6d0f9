package query

import (
	"testing"

	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/stretchr/testify/assert"
)

func TestStringPtr(t *testing.T) {
	ptr := StringPtr("test_string")
	assert.NotNil(t, ptr)
	assert.Equal(t, "test_string", *ptr)
}

func TestBoolPtr(t *testing.T) {
	ptr := BoolPtr(true)
	assert.NotNil(t, ptr)
	assert.True(t, *ptr)
}

func TestFieldTypePtr(t *testing.T) {
	ptr := FieldTypePtr(schema.FieldTypeString)
	assert.Equal(t, schema.FieldTypeString, *ptr)
}
