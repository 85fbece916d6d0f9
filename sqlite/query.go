package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
)

// SqliteQueryGeneratorFactory implements the QueryGeneratorFactory for SQLite.
type SqliteQueryGeneratorFactory struct {
	tablePrefix string
}

// NewSqliteQueryGeneratorFactory returns a factory whose generators address
// tables as tablePrefix + collection name.
func NewSqliteQueryGeneratorFactory(tablePrefix string) *SqliteQueryGeneratorFactory {
	return &SqliteQueryGeneratorFactory{tablePrefix: tablePrefix}
}

// CreateGenerator creates a new SqliteQuery (which is a QueryGenerator) for the given schema.
func (f *SqliteQueryGeneratorFactory) CreateGenerator(schema *schema.SchemaDefinition) (query.QueryGenerator, error) {
	return NewSqliteQuery(schema, f.tablePrefix)
}

// SqliteQuery is a schema-aware query generator for SQLite. Nested paths
// into object and record fields become json_extract calls.
type SqliteQuery struct {
	schema *schema.SchemaDefinition
	table  string
}

// NewSqliteQuery creates a new schema-aware query generator for SQLite.
func NewSqliteQuery(schema *schema.SchemaDefinition, tablePrefix string) (*SqliteQuery, error) {
	if schema == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if schema.Name == "" {
		return nil, fmt.Errorf("schema must define a table name")
	}
	return &SqliteQuery{schema: schema, table: quoteIdentifier(tablePrefix + schema.Name)}, nil
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getFieldSQL translates a logical field path into the correct SQL accessor string.
func (s *SqliteQuery) getFieldSQL(fieldPath string) (string, error) {
	if fieldPath == "" {
		return "", fmt.Errorf("field path cannot be empty")
	}
	parts := strings.Split(fieldPath, ".")

	rootField, ok := s.schema.Fields[parts[0]]
	if !ok {
		return "", fmt.Errorf("field '%s' not found in schema", parts[0])
	}
	if len(parts) == 1 {
		return quoteIdentifier(parts[0]), nil
	}

	if !rootField.IsKeyed() {
		return "", fmt.Errorf("field '%s' of type %s does not support nested querying", parts[0], rootField.Type)
	}
	jsonPath := "$." + strings.Join(parts[1:], ".")
	return fmt.Sprintf("json_extract(%s, '%s')", quoteIdentifier(parts[0]), strings.ReplaceAll(jsonPath, "'", "''")), nil
}

func isJSONType(t schema.FieldType) bool {
	switch t {
	case schema.FieldTypeObject, schema.FieldTypeArray, schema.FieldTypeSet, schema.FieldTypeRecord:
		return true
	}
	return false
}

// prepareValueForQuery maps a Go value onto SQLite's storage classes:
// booleans become 0/1 and composite values become JSON text.
func (s *SqliteQuery) prepareValueForQuery(fieldPath string, value any) (any, error) {
	name := strings.SplitN(fieldPath, ".", 2)[0]
	field, exists := s.schema.Fields[name]
	if !exists {
		return nil, fmt.Errorf("field '%s' not found in schema for value preparation", name)
	}
	if value == nil {
		return nil, nil
	}
	// Values compared against a nested path are scalars.
	if name != fieldPath {
		return value, nil
	}

	switch field.Type {
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case string:
			switch strings.ToLower(v) {
			case "true":
				return 1, nil
			case "false":
				return 0, nil
			}
		case int, int64:
			return v, nil
		case float64:
			if v == 1 || v == 0 {
				return int(v), nil
			}
		}
		return nil, fmt.Errorf("expected boolean for field '%s', got %T", fieldPath, value)

	case schema.FieldTypeObject, schema.FieldTypeArray, schema.FieldTypeSet, schema.FieldTypeRecord:
		if str, ok := value.(string); ok && json.Valid([]byte(str)) {
			return str, nil
		}
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize field '%s' to JSON: %w", fieldPath, err)
		}
		return string(jsonBytes), nil

	case schema.FieldTypeEnum:
		if strVal, ok := value.(string); ok {
			return strVal, nil
		}
		return fmt.Sprintf("%v", value), nil

	default:
		return value, nil
	}
}

// GenerateSelectSQL creates a SELECT statement and its parameters.
func (s *SqliteQuery) GenerateSelectSQL(dsl *query.QueryDSL) (string, []any, error) {
	if dsl == nil {
		return "", nil, fmt.Errorf("QueryDSL cannot be nil")
	}

	var selectFields, orderByClauses []string
	var queryParams []any
	limit, offset := -1, 0

	if dsl.Projection != nil && len(dsl.Projection.Include) > 0 {
		for _, field := range dsl.Projection.Include {
			accessor, err := s.getFieldSQL(field.Name)
			if err != nil {
				return "", nil, fmt.Errorf("projection error: %w", err)
			}
			selectFields = append(selectFields, fmt.Sprintf("%s AS %s", accessor, quoteIdentifier(field.Name)))
		}
	} else {
		selectFields = append(selectFields, "*")
	}

	var whereSQL string
	if dsl.Filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(dsl.Filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
	}

	for _, sortCfg := range dsl.Sort {
		accessor, err := s.getFieldSQL(sortCfg.Field)
		if err != nil {
			return "", nil, fmt.Errorf("sort error: %w", err)
		}
		dir := strings.ToUpper(string(sortCfg.Direction))
		if dir != "DESC" {
			dir = "ASC"
		}
		orderByClauses = append(orderByClauses, accessor+" "+dir)
	}

	if dsl.Pagination != nil {
		limit = dsl.Pagination.Limit
		if dsl.Pagination.Offset != nil {
			offset = *dsl.Pagination.Offset
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectFields, ", "), s.table))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	if len(orderByClauses) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(orderByClauses, ", "))
	}
	if limit > -1 || offset > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	if offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}
	return sb.String() + ";", queryParams, nil
}

// buildWhereClause recursively builds the WHERE clause from a filter.
func (s *SqliteQuery) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, error) {
	if filter.Condition != nil {
		return s.buildCondition(filter.Condition, params)
	}
	if filter.Group != nil {
		if filter.Group.Operator == "" {
			return "", fmt.Errorf("logical operator missing in filter group")
		}
		var clauses []string
		for i := range filter.Group.Conditions {
			clause, err := s.buildWhereClause(&filter.Group.Conditions[i], params)
			if err != nil {
				return "", err
			}
			if clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) == 0 {
			return "", nil
		}
		op := strings.ToUpper(string(filter.Group.Operator))
		return fmt.Sprintf("(%s)", strings.Join(clauses, " "+op+" ")), nil
	}
	return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

var comparisonSQL = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:  "=",
	query.ComparisonOperatorNeq: "!=",
	query.ComparisonOperatorLt:  "<",
	query.ComparisonOperatorLte: "<=",
	query.ComparisonOperatorGt:  ">",
	query.ComparisonOperatorGte: ">=",
}

// buildCondition translates a single condition into SQL.
func (s *SqliteQuery) buildCondition(cond *query.FilterCondition, params *[]any) (string, error) {
	accessor, err := s.getFieldSQL(cond.Field)
	if err != nil {
		return "", err
	}

	switch cond.Operator {
	case query.ComparisonOperatorExists:
		return accessor + " IS NOT NULL", nil
	case query.ComparisonOperatorNotExists:
		return accessor + " IS NULL", nil
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		return s.buildMembership(accessor, cond, params)
	}

	if op, ok := comparisonSQL[cond.Operator]; ok {
		value, err := s.prepareValueForQuery(cond.Field, cond.Value)
		if err != nil {
			return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
		}
		*params = append(*params, value)
		return fmt.Sprintf("%s %s ?", accessor, op), nil
	}

	str := fmt.Sprintf("%v", cond.Value)
	switch cond.Operator {
	case query.ComparisonOperatorContains:
		*params = append(*params, "%"+str+"%")
		return accessor + " LIKE ?", nil
	case query.ComparisonOperatorNotContains:
		*params = append(*params, "%"+str+"%")
		return accessor + " NOT LIKE ?", nil
	case query.ComparisonOperatorStartsWith:
		*params = append(*params, str+"%")
		return accessor + " LIKE ?", nil
	case query.ComparisonOperatorEndsWith:
		*params = append(*params, "%"+str)
		return accessor + " LIKE ?", nil
	}
	return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
}

func (s *SqliteQuery) buildMembership(accessor string, cond *query.FilterCondition, params *[]any) (string, error) {
	var vals []any
	switch v := cond.Value.(type) {
	case nil:
	case []any:
		vals = v
	case []string:
		for _, item := range v {
			vals = append(vals, item)
		}
	default:
		vals = []any{v}
	}

	if len(vals) == 0 {
		if cond.Operator == query.ComparisonOperatorIn {
			return "1=0", nil
		}
		return "1=1", nil
	}

	for _, v := range vals {
		prepared, err := s.prepareValueForQuery(cond.Field, v)
		if err != nil {
			return "", err
		}
		*params = append(*params, prepared)
	}
	op := "IN"
	if cond.Operator == query.ComparisonOperatorNin {
		op = "NOT IN"
	}
	placeholders := strings.Repeat("?, ", len(vals)-1) + "?"
	return fmt.Sprintf("%s %s (%s)", accessor, op, placeholders), nil
}

// GenerateUpdateSQL creates an UPDATE statement. Columns are set in name order.
func (s *SqliteQuery) GenerateUpdateSQL(updates map[string]any, filters *query.QueryFilter) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update")
	}

	var setClauses []string
	var queryParams []any
	for _, fieldName := range sortedKeys(updates) {
		if _, ok := s.schema.Fields[fieldName]; !ok {
			return "", nil, fmt.Errorf("update set clause error: field '%s' not found in schema", fieldName)
		}
		preparedValue, err := s.prepareValueForQuery(fieldName, updates[fieldName])
		if err != nil {
			return "", nil, fmt.Errorf("error preparing value for field '%s': %w", fieldName, err)
		}
		setClauses = append(setClauses, quoteIdentifier(fieldName)+" = ?")
		queryParams = append(queryParams, preparedValue)
	}

	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for update: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("UPDATE %s SET %s", s.table, strings.Join(setClauses, ", ")))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	return sb.String() + ";", queryParams, nil
}

// GenerateInsertSQL creates a batch INSERT with a RETURNING clause, which
// needs SQLite 3.35 or later. Columns are the union of the records' keys in
// name order; missing values are inserted as NULL.
func (s *SqliteQuery) GenerateInsertSQL(records []map[string]any) (string, []any, error) {
	if len(records) == 0 {
		return "", nil, fmt.Errorf("no records provided for insert")
	}

	fieldSet := make(map[string]any)
	for _, record := range records {
		for fieldName := range record {
			if _, exists := s.schema.Fields[fieldName]; !exists {
				return "", nil, fmt.Errorf("field '%s' not found in schema", fieldName)
			}
			fieldSet[fieldName] = nil
		}
	}
	fields := sortedKeys(fieldSet)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no valid fields found in records")
	}

	quotedFields := make([]string, len(fields))
	for i, field := range fields {
		quotedFields[i] = quoteIdentifier(field)
	}

	row := "(" + strings.Repeat("?, ", len(fields)-1) + "?)"
	valuesClauses := make([]string, 0, len(records))
	queryParams := make([]any, 0, len(records)*len(fields))
	for _, record := range records {
		for _, fieldName := range fields {
			preparedValue, err := s.prepareValueForQuery(fieldName, record[fieldName])
			if err != nil {
				return "", nil, fmt.Errorf("error preparing value for field '%s': %w", fieldName, err)
			}
			queryParams = append(queryParams, preparedValue)
		}
		valuesClauses = append(valuesClauses, row)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *;",
		s.table, strings.Join(quotedFields, ", "), strings.Join(valuesClauses, ", "))
	return sql, queryParams, nil
}

// GenerateDeleteSQL creates a DELETE statement. A nil filter is refused
// unless unsafeDelete is set.
func (s *SqliteQuery) GenerateDeleteSQL(filters *query.QueryFilter, unsafeDelete bool) (string, []any, error) {
	if filters == nil && !unsafeDelete {
		return "", nil, fmt.Errorf("DELETE without WHERE clause is not allowed for safety. Set unsafeDelete=true to override")
	}

	var queryParams []any
	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for delete: %w", err)
		}
	}

	sql := "DELETE FROM " + s.table
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
	}
	return sql + ";", queryParams, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
