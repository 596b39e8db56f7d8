package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeBody accepts either the bare value or {"data": value}. A top-level
// object with a "data" key is always treated as an envelope.
func decodeBody(raw []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty body", ErrDecode)
	}

	if raw[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err == nil {
			if data, ok := env["data"]; ok {
				raw = data
			}
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	var s string
	if json.Unmarshal(body.Error, &s) == nil {
		return s
	}
	return ""
}
