package config

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pelletier/go-toml/v2"
)

// MarshalTOML renders the effective configuration in config file form.
// Keys follow the file layout, so the output can be saved as .keelson.toml.
func (c *Config) MarshalTOML() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return toml.Marshal(integralNumbers(raw))
}

// integralNumbers turns whole JSON numbers back into integers so they are
// not written as TOML floats.
func integralNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = integralNumbers(child)
		}
	case []any:
		for i, child := range val {
			val[i] = integralNumbers(child)
		}
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
	}
	return v
}
