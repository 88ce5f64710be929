package jsonx

import "github.com/goccy/go-json"

// Single switch point for the JSON implementation used by codecs and stores.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	Valid         = json.Valid
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
)

type RawMessage = json.RawMessage
type Number = json.Number

// MarshalString encodes v and returns the result as a string.
func MarshalString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
