package config

import (
	"strconv"
	"strings"
)

// Map is an in-memory configuration. Lookups are case-insensitive, like the
// file-backed configuration.
type Map map[string]any

func (m Map) lookup(key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (m Map) Bool(key string) (bool, bool) {
	v, ok := m.lookup(key)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

func (m Map) Int(key string) (int, bool) {
	v, ok := m.lookup(key)
	if !ok {
		return 0, false
	}
	switch i := v.(type) {
	case int:
		return i, true
	case int64:
		return int(i), true
	case uint16:
		return int(i), true
	case float64:
		return int(i), true
	case string:
		parsed, err := strconv.Atoi(i)
		return parsed, err == nil
	}
	return 0, false
}

func (m Map) String(key string) (string, bool) {
	v, ok := m.lookup(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
