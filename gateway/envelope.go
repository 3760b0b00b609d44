package gateway

import (
	"encoding/json"

	"github.com/elnormous/contenttype"

	"github.com/jrsteele09/go-admin-console/internal/errors"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// Envelope is the backend's response wrapper. Code 0 is success.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeEnvelope accepts a body only when it is JSON (or untyped) and
// carries a code field.
func decodeEnvelope(contentType string, body []byte) (*Envelope, error) {
	if contentType != "" {
		mt := contenttype.NewMediaType(contentType)
		if !mt.Matches(jsonMediaType) {
			return nil, errors.ErrUnrecognizedEnvelope
		}
	}

	var raw struct {
		Code    *int            `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.Code == nil {
		return nil, errors.ErrUnrecognizedEnvelope
	}
	return &Envelope{Code: *raw.Code, Message: raw.Message, Data: raw.Data}, nil
}
