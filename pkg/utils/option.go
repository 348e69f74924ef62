// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Option is a loosely-typed bag of provider/model options. Values come
// from provider credentials, agent metadata or request parameters, so
// getters coerce the usual JSON scalar types.
type Option map[string]interface{}

func (o Option) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Option) GetString(key string) (string, error) {
	raw, ok := o[key]
	if !ok {
		return "", fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		return "", fmt.Errorf("option %q is not a string", key)
	}
}

// GetStringOr returns the option value or def when absent or empty.
func (o Option) GetStringOr(key, def string) string {
	if v, err := o.GetString(key); err == nil && !IsEmpty(v) {
		return v
	}
	return def
}

func (o Option) GetBool(key string) (bool, error) {
	raw, ok := o[key]
	if !ok {
		return false, fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("option %q is not a bool", key)
	}
}

// GetBoolOr returns the option value or def when absent or malformed.
func (o Option) GetBoolOr(key string, def bool) bool {
	if v, err := o.GetBool(key); err == nil {
		return v
	}
	return def
}

func (o Option) GetInt(key string) (int, error) {
	raw, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("option %q is not an int", key)
	}
}

func (o Option) GetIntOr(key string, def int) int {
	if v, err := o.GetInt(key); err == nil {
		return v
	}
	return def
}

func (o Option) GetUint64(key string) (uint64, error) {
	raw, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("option %q is negative", key)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("option %q is negative", key)
		}
		return uint64(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("option %q is negative", key)
		}
		return uint64(v), nil
	case string:
		return strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("option %q is not a uint", key)
	}
}

func (o Option) GetFloat64(key string) (float64, error) {
	raw, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
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
		return 0, fmt.Errorf("option %q is not a float", key)
	}
}

// GetStringSlice coerces list-valued options. Accepts native slices and
// the bracketed string form "[a b c]" some stores persist.
func (o Option) GetStringSlice(key string) ([]string, error) {
	raw, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("option %q not found", key)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimSuffix(trimmed, "]")
		if IsEmpty(trimmed) {
			return nil, nil
		}
		return strings.Fields(trimmed), nil
	default:
		return nil, fmt.Errorf("option %q is not a list", key)
	}
}

// Merge returns a new Option with overrides layered on top of o.
func (o Option) Merge(overrides Option) Option {
	merged := make(Option, len(o)+len(overrides))
	for k, v := range o {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
