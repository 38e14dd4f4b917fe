package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wharflab/keelson/internal/registry"
	"github.com/wharflab/keelson/internal/reporter"
	"github.com/wharflab/keelson/internal/selection"
	"github.com/wharflab/keelson/internal/slim"
)

// SchemaDialect is the JSON Schema dialect of the generated schema.
const SchemaDialect = "https://json-schema.org/draft/2020-12/schema"

var logLevels = []any{"panic", "fatal", "error", "warn", "warning", "info", "debug", "trace"}

var (
	schemaOnce    sync.Once
	rootSchema    *jsonschema.Schema
	rootResolved  *jsonschema.Resolved
	errRootSchema error
)

// Schema returns the JSON schema of the configuration file.
func Schema() (*jsonschema.Schema, error) {
	s, _, err := loadSchema()
	if err != nil {
		return nil, err
	}
	return s.CloneSchemas(), nil
}

// SchemaJSON returns the indented JSON form of Schema.
func SchemaJSON() ([]byte, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

func loadSchema() (*jsonschema.Schema, *jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		rootSchema, errRootSchema = buildSchema()
		if errRootSchema != nil {
			return
		}
		rootResolved, errRootSchema = rootSchema.CloneSchemas().Resolve(nil)
		if errRootSchema != nil {
			errRootSchema = fmt.Errorf("resolve config schema: %w", errRootSchema)
		}
	})
	return rootSchema, rootResolved, errRootSchema
}

func buildSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Config](nil)
	if err != nil {
		return nil, fmt.Errorf("infer config schema: %w", err)
	}
	s.Schema = SchemaDialect
	s.Title = "keelson configuration"
	s.Description = "Configuration for keelson (.keelson.toml / keelson.toml)"

	enhanced := []struct {
		path []string
		enum []any
	}{
		{[]string{"output", "format"}, stringsToAny(reporter.Formats())},
		{[]string{"selection", "primary"}, stringsToAny(selection.PrimaryRules())},
		{[]string{"registry", "verify"}, []any{string(registry.ModeAuto), string(registry.ModeOn), string(registry.ModeOff)}},
		{[]string{"log", "level"}, logLevels},
		{[]string{"slim", "version"}, []any{float64(slim.SchemaVersion)}},
	}
	for _, e := range enhanced {
		prop := property(s, e.path...)
		if prop == nil {
			return nil, fmt.Errorf("config schema has no property %v", e.path)
		}
		prop.Enum = e.enum
	}

	if size := property(s, "detection", "max-manifest-size"); size != nil {
		zero := 0.0
		size.Minimum = &zero
	}
	return s, nil
}

// property walks nested object properties.
func property(s *jsonschema.Schema, path ...string) *jsonschema.Schema {
	for _, name := range path {
		if s == nil || s.Properties == nil {
			return nil
		}
		s = s.Properties[name]
	}
	return s
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
