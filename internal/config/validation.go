package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// FileError wraps a configuration error with the file it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("config file %s: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

func decodeConfig(raw map[string]any) (*Config, error) {
	if err := validateAndNormalize(raw); err != nil {
		return nil, err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal normalized config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validateSemantics(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateAndNormalize(raw map[string]any) error {
	schema, resolved, err := loadSchema()
	if err != nil {
		return err
	}
	coerce(schema, raw)

	jsonValue, err := toJSONValue(raw)
	if err != nil {
		return fmt.Errorf("convert config to JSON value: %w", err)
	}
	if err := resolved.Validate(jsonValue); err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	return nil
}

func validateSemantics(cfg *Config) error {
	if _, err := time.ParseDuration(cfg.Registry.Timeout); err != nil {
		return fmt.Errorf("registry.timeout: %w", err)
	}
	if _, err := cfg.SlimTable(); err != nil {
		return fmt.Errorf("slim: %w", err)
	}
	if _, err := cfg.PlatformVersions(); err != nil {
		return err
	}
	return nil
}

// coerce converts string values (environment variables) to the type the
// schema expects, in place. Values that do not convert are left for schema
// validation to report.
func coerce(s *jsonschema.Schema, v any) any {
	if s == nil {
		return v
	}
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = coerce(childSchema(s, k), child)
		}
		return val
	case string:
		trimmed := strings.TrimSpace(val)
		switch {
		case hasType(s, "integer"):
			if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return n
			}
		case hasType(s, "boolean"):
			if b, err := strconv.ParseBool(trimmed); err == nil {
				return b
			}
		case hasType(s, "array"):
			return splitList(trimmed)
		}
	}
	return v
}

func childSchema(s *jsonschema.Schema, key string) *jsonschema.Schema {
	if prop, ok := s.Properties[key]; ok {
		return prop
	}
	return s.AdditionalProperties
}

func hasType(s *jsonschema.Schema, t string) bool {
	return s.Type == t || slices.Contains(s.Types, t)
}

// splitList splits a comma-separated list, or decodes a JSON array.
func splitList(s string) []any {
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr
		}
	}
	out := []any{}
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toJSONValue(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
