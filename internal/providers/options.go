// Package providers holds helpers shared by the provider adapters.
package providers

import "fmt"

// Option readers for the generic request options map. Values arrive from
// decoded JSON, so numbers are float64; IntOption rejects fractional values.

func StringOption(opts map[string]any, key, fallback string) (string, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string", key)
	}
	return s, nil
}

func IntOption(opts map[string]any, key string, fallback int) (int, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %q must be an integer", key)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q must be an integer", key)
	}
}

func FloatOption(opts map[string]any, key string, fallback float64) (float64, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("option %q must be a number", key)
	}
}

func BoolOption(opts map[string]any, key string, fallback bool) (bool, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return fallback, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q must be a boolean", key)
	}
	return b, nil
}
