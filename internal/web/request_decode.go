package web

import (
	"encoding/json"
	"errors"
	"io"
)

// decodeStrictJSON decodes exactly one JSON value into out. Unknown
// fields and trailing values are rejected so malformed API payloads
// fail loudly instead of being silently truncated.
func decodeStrictJSON(body io.Reader, out any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("multiple json values are not allowed")
	}
	return nil
}
