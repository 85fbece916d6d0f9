package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/schema"
	"go.uber.org/zap"
)

// DefaultInteractorOptions creates tables and their indexes only when they
// are missing.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:   true,
		CreateIndexes: true,
	}
}

// tableName is the unquoted table name of a collection.
func (s *SQLiteInteractor) tableName(collection string) string {
	return s.options.TablePrefix + collection
}

// CreateCollection creates the table of a collection and its indexes.
func (s *SQLiteInteractor) CreateCollection(sc schema.SchemaDefinition) error {
	statements, err := s.CreateTableSQL(sc)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", sc.Name, err)
	}

	for _, stmt := range statements {
		s.logger.Debug("Executing DDL", zap.String("sql", stmt))
		if _, err := s.runner().Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
		}
	}
	return nil
}

// CreateTableSQL returns the CREATE TABLE statement of a collection followed
// by its CREATE INDEX statements when CreateIndexes is set. Columns follow
// field name order.
func (s *SQLiteInteractor) CreateTableSQL(sc schema.SchemaDefinition) ([]string, error) {
	if len(sc.Fields) == 0 {
		return nil, fmt.Errorf("schema %s defines no fields", sc.Name)
	}
	table := s.tableName(sc.Name)

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoteIdentifier(table) + " (\n")

	var columns []string
	for _, name := range sc.FieldNames() {
		columnDef, err := s.buildColumnDefinition(name, sc.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("error on field '%s': %w", name, err)
		}
		columns = append(columns, "    "+columnDef)
	}
	sb.WriteString(strings.Join(columns, ",\n"))

	for _, index := range sc.Indexes {
		if index.Type == schema.IndexTypePrimary && len(index.Fields) > 0 {
			quoted := make([]string, len(index.Fields))
			for i, pk := range index.Fields {
				quoted[i] = quoteIdentifier(pk)
			}
			sb.WriteString(",\n    PRIMARY KEY (" + strings.Join(quoted, ", ") + ")")
			break
		}
	}
	sb.WriteString("\n);")

	statements := []string{sb.String()}
	if s.options.CreateIndexes {
		for _, index := range sc.Indexes {
			stmt, err := s.CreateIndexSQL(table, index)
			if err != nil {
				return nil, fmt.Errorf("failed to generate SQL for index %s: %w", index.Name, err)
			}
			if stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}

// buildColumnDefinition constructs the DDL of a single column.
func (s *SQLiteInteractor) buildColumnDefinition(fieldName string, field *schema.FieldDefinition) (string, error) {
	if field == nil {
		return "", fmt.Errorf("field definition is nil")
	}
	parts := []string{quoteIdentifier(fieldName), s.GetColumnType(field.Type)}

	if field.Required != nil && *field.Required {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil {
		defVal, err := s.formatDefaultValue(field.Default, field.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+defVal)
	}
	if field.Unique != nil && *field.Unique {
		parts = append(parts, "UNIQUE")
	}
	if field.Type == schema.FieldTypeEnum && len(field.Values) > 0 {
		var checkValues []string
		for _, v := range field.Values {
			valStr, _ := s.formatDefaultValue(v, schema.FieldTypeString)
			checkValues = append(checkValues, valStr)
		}
		parts = append(parts, fmt.Sprintf("CHECK(%s IN (%s))", quoteIdentifier(fieldName), strings.Join(checkValues, ", ")))
	}
	return strings.Join(parts, " "), nil
}

// GetColumnType maps a schema.FieldType to its SQLite column type.
func (s *SQLiteInteractor) GetColumnType(fieldType schema.FieldType) string {
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeEnum:
		return "TEXT"
	case schema.FieldTypeNumber, schema.FieldTypeDecimal:
		return "REAL"
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return "INTEGER"
	}
	if isJSONType(fieldType) {
		return "TEXT"
	}
	return "BLOB"
}

// formatDefaultValue renders a default value as a SQL literal.
func (s *SQLiteInteractor) formatDefaultValue(value any, fieldType schema.FieldType) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeEnum:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", value), "'", "''") + "'", nil
	case schema.FieldTypeNumber, schema.FieldTypeInteger, schema.FieldTypeDecimal:
		return fmt.Sprintf("%v", value), nil
	case schema.FieldTypeBoolean:
		if b, ok := value.(bool); ok && b {
			return "1", nil
		}
		return "0", nil
	}
	if isJSONType(fieldType) {
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal default value to JSON: %w", err)
		}
		return "'" + strings.ReplaceAll(string(jsonBytes), "'", "''") + "'", nil
	}
	return "", fmt.Errorf("unsupported type for default value: %s", fieldType)
}

// CreateIndexSQL generates the DDL of one index on table (unquoted).
// Primary indexes are part of the table definition and yield "".
func (s *SQLiteInteractor) CreateIndexSQL(table string, index schema.IndexDefinition) (string, error) {
	if index.Type == schema.IndexTypePrimary {
		return "", nil
	}
	if len(index.Fields) == 0 {
		return "", fmt.Errorf("index %q has no fields", index.Name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if (index.Unique != nil && *index.Unique) || index.Type == schema.IndexTypeUnique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")

	indexName := index.Name
	if indexName == "" {
		indexName = fmt.Sprintf("idx_%s_%s", table, strings.Join(index.Fields, "_"))
	} else {
		indexName = s.options.TablePrefix + indexName
	}
	sb.WriteString(quoteIdentifier(indexName))
	sb.WriteString(" ON " + quoteIdentifier(table) + " (")

	desc := index.Order != nil && strings.EqualFold(*index.Order, "DESC")
	fieldParts := make([]string, 0, len(index.Fields))
	for _, field := range index.Fields {
		var part string
		if root, rest, nested := strings.Cut(field, "."); nested {
			part = fmt.Sprintf("json_extract(%s, '$.%s')", quoteIdentifier(root), rest)
		} else {
			part = quoteIdentifier(field)
		}
		if desc {
			part += " DESC"
		}
		fieldParts = append(fieldParts, part)
	}
	sb.WriteString(strings.Join(fieldParts, ", ") + ");")
	return sb.String(), nil
}

// DropCollection drops a table from the database.
func (s *SQLiteInteractor) DropCollection(collection string) error {
	table := quoteIdentifier(s.tableName(collection))
	if _, err := s.runner().Exec("DROP TABLE IF EXISTS " + table + ";"); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// CollectionExists checks if a table exists in the database.
func (s *SQLiteInteractor) CollectionExists(collection string) (bool, error) {
	const q = "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var name string
	err := s.runner().QueryRow(q, s.tableName(collection)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
