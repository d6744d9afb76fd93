package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError reports a malformed or missing setting value.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("setting %q: %s", e.Key, e.Message)
}

// ParseSettings validates a loosely typed settings map against a schema and
// returns a typed, defaulted map.
//
// Required keys that are missing, nil, or empty fail. Present values are
// coerced per kind. Absent optional keys take their declared default, or are
// omitted from the result when no default exists. Input keys not covered by
// the schema are ignored; the output contains only schema keys.
func ParseSettings(schema Schema, in Settings) (Settings, error) {
	out := make(Settings, len(schema))
	for _, item := range schema {
		value, present := in[item.Key]
		if value == nil || value == "" {
			present = false
		}
		if !present {
			if item.Required {
				return nil, &ValidationError{Key: item.Key, Message: "missing required setting"}
			}
			if item.Default != nil {
				out[item.Key] = item.Default
			}
			continue
		}
		coerced, err := coerceSetting(item, value)
		if err != nil {
			return nil, err
		}
		out[item.Key] = coerced
	}
	return out, nil
}

func coerceSetting(item SettingItem, value any) (any, error) {
	switch item.Kind {
	case SettingKindString, SettingKindSecret, SettingKindURL:
		s, ok := value.(string)
		if !ok {
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be a string, got %T", value)}
		}
		s = strings.TrimSpace(s)
		if item.Required && s == "" {
			return nil, &ValidationError{Key: item.Key, Message: "cannot be empty"}
		}
		if len(item.Options) > 0 && !containsOption(item.Options, s) {
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be one of %v, got %q", item.Options, s)}
		}
		return s, nil
	case SettingKindNumber:
		num, err := coerceNumber(value)
		if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be a valid number, got '%v'", value)}
		}
		if item.Min != nil && num < *item.Min {
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be at least %v, got %v", *item.Min, num)}
		}
		if item.Max != nil && num > *item.Max {
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be at most %v, got %v", *item.Max, num)}
		}
		return num, nil
	case SettingKindBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be a boolean value, got '%v'", value)}
		default:
			return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("must be a boolean, got %T", value)}
		}
	default:
		return nil, &ValidationError{Key: item.Key, Message: fmt.Sprintf("unknown setting kind %q", item.Kind)}
	}
}

func coerceNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("not a number")
	}
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// settingString reads a string-kind value from validated settings.
func settingString(s Settings, key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// settingBool reads a boolean-kind value from validated settings.
func settingBool(s Settings, key string) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return false
}
