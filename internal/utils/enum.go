package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeEnum decodes a JSON enum value. The backend sends either the member
// name (any case) or its zero-based ordinal, depending on serializer
// settings. JSON null decodes to the zero value.
func DecodeEnum[T ~string](data []byte, values []T) (T, error) {
	var zero T
	if string(bytes.TrimSpace(data)) == "null" {
		return zero, nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		for _, v := range values {
			if strings.EqualFold(string(v), name) {
				return v, nil
			}
		}
		return zero, fmt.Errorf("unknown value %q", name)
	}

	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err != nil {
		return zero, fmt.Errorf("enum must be a string or integer: %s", data)
	}
	if ordinal < 0 || ordinal >= len(values) {
		return zero, fmt.Errorf("enum ordinal %d out of range", ordinal)
	}
	return values[ordinal], nil
}
