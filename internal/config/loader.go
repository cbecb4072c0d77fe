package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTables is returned when tables fail schema or semantic checks.
var ErrInvalidTables = errors.New("invalid tables")

const tablesFile = "tables.yaml"

// Load loads the balance tables.
// Search order: customPath -> ~/.quaternion/tables.yaml -> ./configs/tables.yaml -> embedded default
//
// A file that exists but does not validate is an error rather than a
// silent fall-through, so a typo never runs a match on the wrong numbers.
func Load(customPath string) (*Tables, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read tables %s: %w", customPath, err)
		}
		return Parse(data, customPath)
	}

	for _, path := range []string{userConfigPath(tablesFile), filepath.Join("configs", tablesFile)} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return Parse(data, path)
	}

	return Default()
}

// Parse decodes and validates a tables document. source is only used in
// error messages.
func Parse(data []byte, source string) (*Tables, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tables %s: %w", source, err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTables, source, err)
	}

	var t Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode tables %s: %w", source, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &t, nil
}

// userConfigPath returns the path to a user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".quaternion", filename)
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func tablesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("tables.schema.json", bytes.NewReader(tablesSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("tables.schema.json")
	})
	return schema, schemaErr
}

// validateSchema checks a decoded YAML document against the embedded JSON
// schema. The document is round-tripped through JSON so that the validator
// sees the same value types it would for a JSON input.
func validateSchema(doc any) error {
	s, err := tablesSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
