package params

import (
	"fmt"
	"time"

	"github.com/reglet-dev/reglet-compose/config"
	"github.com/reglet-dev/reglet-compose/domain/errors"
)

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetString extracts a string, returning (value, found).
func (p *Parameters) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int, handling the integer and float kinds decoders
// produce.
func (p *Parameters) GetInt(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// GetFloat extracts a float64, handling float64, int, and int64.
func (p *Parameters) GetFloat(key string) (float64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetBool extracts a bool, returning (value, found).
func (p *Parameters) GetBool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetDuration extracts a time.Duration from a duration value or a string
// such as "1m30s".
func (p *Parameters) GetDuration(key string) (time.Duration, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := time.ParseDuration(d)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// GetStringSlice extracts a []string from []string or []any values.
func (p *Parameters) GetStringSlice(key string) ([]string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}
	switch arr := v.(type) {
	case []string:
		return arr, true
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}

// MustGetInt extracts a required int or returns a ConfigError.
func (p *Parameters) MustGetInt(key string) (int, error) {
	i, ok := p.GetInt(key)
	if !ok {
		return 0, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required int parameter '%s' is missing or not a number", key),
		}
	}
	return i, nil
}

// MustGetString extracts a required string or returns a ConfigError.
func (p *Parameters) MustGetString(key string) (string, error) {
	s, ok := p.GetString(key)
	if !ok {
		return "", &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string parameter '%s' is missing or not a string", key),
		}
	}
	return s, nil
}

// GetIntDefault extracts an int or returns the default value.
func (p *Parameters) GetIntDefault(key string, defaultValue int) int {
	i, ok := p.GetInt(key)
	if !ok {
		return defaultValue
	}
	return i
}

// GetStringDefault extracts a string or returns the default value.
func (p *Parameters) GetStringDefault(key, defaultValue string) string {
	s, ok := p.GetString(key)
	if !ok {
		return defaultValue
	}
	return s
}

// GetFloatDefault extracts a float64 or returns the default value.
func (p *Parameters) GetFloatDefault(key string, defaultValue float64) float64 {
	f, ok := p.GetFloat(key)
	if !ok {
		return defaultValue
	}
	return f
}

// GetBoolDefault extracts a bool or returns the default value.
func (p *Parameters) GetBoolDefault(key string, defaultValue bool) bool {
	b, ok := p.GetBool(key)
	if !ok {
		return defaultValue
	}
	return b
}

// Decode fills target from the parameter values, matching keys against
// json tags, and validates its validate tags.
func (p *Parameters) Decode(target any) error {
	return config.Decode(p.Values(), target)
}
