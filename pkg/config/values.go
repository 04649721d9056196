// Package config loads application settings from the environment and an
// optional YAML settings file. Environment variables carry secrets and
// connection strings; the file carries feature flags and tuning knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Values wraps a settings map with typed accessors. Accessors return
// the given default when a key is missing or has the wrong type, so an
// absent or partial settings file degrades to defaults rather than
// failing startup.
type Values struct {
	data map[string]any
}

// NewValues creates Values from a map. A nil map yields empty Values.
func NewValues(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

// ValuesFromFile parses a YAML settings file. A missing file is not an
// error; it returns empty Values.
func ValuesFromFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewValues(nil), nil
	}
	if err != nil {
		return Values{}, fmt.Errorf("read settings file: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Values{}, fmt.Errorf("parse settings file: %w", err)
	}
	return NewValues(m), nil
}

// String returns the string at key, or def.
func (v Values) String(key, def string) string {
	if s, ok := v.data[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key, or def.
func (v Values) Bool(key string, def bool) bool {
	if b, ok := v.data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int at key, or def. YAML integers may decode as int
// or int64 depending on size.
func (v Values) Int(key string, def int) int {
	switch n := v.data[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Float returns the float64 at key, or def.
func (v Values) Float(key string, def float64) float64 {
	switch n := v.data[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

// Duration returns the duration at key, or def. Strings are parsed with
// time.ParseDuration; bare numbers are seconds.
func (v Values) Duration(key string, def time.Duration) time.Duration {
	switch n := v.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(n); err == nil {
			return d
		}
	case int:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n * float64(time.Second))
	}
	return def
}
