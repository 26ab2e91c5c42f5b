package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// docKey is the bleve document id for a numeric id.
func docKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func parseDocKey(key string) (uint64, error) {
	return strconv.ParseUint(key, 10, 64)
}

// toBleveDocument validates doc against the schema and returns the value
// bleve indexes. Unknown fields are dropped; the accepted fields are also
// kept verbatim as JSON for hydration.
func (b *bleveIndex) toBleveDocument(id uint64, doc Document) (map[string]any, error) {
	out := make(map[string]any, len(doc)+2)
	kept := make(Document, len(doc))
	for name, v := range doc {
		f, ok := b.fields[name]
		if !ok || v == nil {
			continue
		}
		cv, err := convertValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = cv
		kept[name] = v
	}

	src, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("encode source: %w", err)
	}
	out[sourceField] = string(src)
	out[seqField] = float64(id)
	return out, nil
}

func convertValue(f SchemaField, v any) (any, error) {
	switch f.Type {
	case FieldText, FieldString:
		return convertStrings(v)
	case FieldBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case FieldPoint:
		lat, lon, err := toPoint(v)
		if err != nil {
			return nil, err
		}
		return map[string]any{"lat": lat, "lon": lon}, nil
	default:
		n, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case FieldI64, FieldTimestamp:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
		case FieldU64:
			if n != math.Trunc(n) || n < 0 {
				return nil, fmt.Errorf("expected unsigned integer, got %v", n)
			}
		}
		return n, nil
	}
}

// convertStrings accepts a string or a list of strings.
func convertStrings(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list, got %T element", item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// toPoint reads a [lat, lon] pair.
func toPoint(v any) (lat, lon float64, err error) {
	var pair []any
	switch p := v.(type) {
	case []any:
		pair = p
	case []float64:
		pair = []any{}
		for _, x := range p {
			pair = append(pair, x)
		}
	case [2]float64:
		pair = []any{p[0], p[1]}
	default:
		return 0, 0, fmt.Errorf("expected [lat, lon], got %T", v)
	}
	if len(pair) != 2 {
		return 0, 0, fmt.Errorf("expected [lat, lon], got %d values", len(pair))
	}
	if lat, err = toFloat(pair[0]); err != nil {
		return 0, 0, err
	}
	if lon, err = toFloat(pair[1]); err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("point [%v, %v] out of range", lat, lon)
	}
	return lat, lon, nil
}
