package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator checks that the credential schema is in place
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every structural check
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	return v.ValidateIndexes()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"credentials":       "Guest and participant tokens",
		"client_settings":   "Installation values",
		"schema_migrations": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}
	return nil
}

// ValidateTableStructure verifies column names and declared types
func (v *SchemaValidator) ValidateTableStructure() error {
	credentialColumns := map[string]string{
		"passcode":       "TEXT",
		"kind":           "TEXT",
		"mode":           "TEXT",
		"token":          "TEXT",
		"participant_id": "TEXT",
		"expires_at":     "DATETIME",
		"updated_at":     "DATETIME",
	}
	if err := v.validateColumns("credentials", credentialColumns); err != nil {
		return fmt.Errorf("credentials table structure invalid: %w", err)
	}

	settingColumns := map[string]string{
		"key":   "TEXT",
		"value": "TEXT",
	}
	if err := v.validateColumns("client_settings", settingColumns); err != nil {
		return fmt.Errorf("client_settings table structure invalid: %w", err)
	}
	return nil
}

// ValidateIndexes verifies that lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	exists, err := v.exists("index", "idx_credentials_kind")
	if err != nil {
		return fmt.Errorf("error checking index idx_credentials_kind: %w", err)
	}
	if !exists {
		return fmt.Errorf("required index idx_credentials_kind does not exist")
	}
	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var defaultValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for col, wantType := range expectedColumns {
		gotType, ok := found[col]
		if !ok {
			return fmt.Errorf("column %s not found", col)
		}
		if gotType != wantType {
			return fmt.Errorf("column %s has type %s, expected %s", col, gotType, wantType)
		}
	}
	return nil
}
