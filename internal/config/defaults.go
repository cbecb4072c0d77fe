package config

import (
	_ "embed"
)

//go:embed defaults/tables.yaml
var defaultTablesYAML []byte

//go:embed defaults/tables.schema.json
var tablesSchemaJSON []byte

// DefaultYAML returns the embedded default tables.
func DefaultYAML() []byte {
	return defaultTablesYAML
}

// Default parses the embedded tables. Every call returns a fresh value.
func Default() (*Tables, error) {
	return Parse(defaultTablesYAML, "embedded")
}
