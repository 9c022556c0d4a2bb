package fetcher

import "strconv"

// Extractor pulls one logical field out of a decoded provider payload by
// trying candidate keys in priority order. Providers rename fields without
// notice; a lookup that finds nothing is a skip, not a parse failure.
type Extractor struct {
	Field string
	Keys  []string
}

// String returns the first candidate key holding a non-empty string.
func (e Extractor) String(payload map[string]any) (string, bool) {
	for _, k := range e.Keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Float returns the first candidate key holding a numeric value. JSON
// numbers, integers and numeric strings all count.
func (e Extractor) Float(payload map[string]any) (float64, bool) {
	for _, k := range e.Keys {
		v, ok := payload[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Int is Float truncated to an integer count.
func (e Extractor) Int(payload map[string]any) (int, bool) {
	f, ok := e.Float(payload)
	return int(f), ok
}
