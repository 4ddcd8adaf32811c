package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidJSONRows = errors.New("expected a JSON object or an array of objects")

// DecodeJSON decodes a single object or an array of objects into rows.
// many reports whether the input was an array. Integral numbers become
// int64, other numbers float64.
func DecodeJSON(data []byte) (rows []Values, many bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	switch data[0] {
	case '{':
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, false, fmt.Errorf("failed to decode row: %w", err)
		}
		return []Values{normalizeRow(obj)}, false, nil
	case '[':
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, true, fmt.Errorf("failed to decode rows: %w", err)
		}
		rows = make([]Values, len(list))
		for i, obj := range list {
			rows[i] = normalizeRow(obj)
		}
		return rows, true, nil
	default:
		return nil, false, ErrInvalidJSONRows
	}
}

func normalizeRow(obj map[string]any) Values {
	v := make(Values, len(obj))
	for k, val := range obj {
		v[k] = normalizeJSON(val)
	}
	return v
}

func normalizeJSON(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
