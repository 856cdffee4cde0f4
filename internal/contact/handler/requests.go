package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"contactgraph/internal/contact/models"
)

// identifyPayload is the wire shape of POST /identify. Clients send phone
// numbers both as strings and as bare JSON numbers.
type identifyPayload struct {
	Email       fragment `json:"email"`
	PhoneNumber fragment `json:"phoneNumber"`
}

func (p identifyPayload) toModel() models.IdentifyRequest {
	req := models.IdentifyRequest{
		Email:       string(p.Email),
		PhoneNumber: string(p.PhoneNumber),
	}
	req.Normalize()
	return req
}

// fragment accepts a JSON string, an integer JSON number, or null.
type fragment string

type fragmentTypeError struct {
	got string
}

func (e *fragmentTypeError) Error() string {
	return fmt.Sprintf("email and phoneNumber must be strings or integer numbers, got %s", e.got)
}

func (f *fragment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = fragment(s)
		return nil
	case '{':
		return &fragmentTypeError{got: "object"}
	case '[':
		return &fragmentTypeError{got: "array"}
	case 't', 'f':
		return &fragmentTypeError{got: "boolean"}
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return &fragmentTypeError{got: "invalid value"}
	}
	// 1500 and 1.5e3 would otherwise be stored as different fragments.
	if strings.ContainsAny(n.String(), ".eE") {
		return &fragmentTypeError{got: "non-integer number"}
	}
	*f = fragment(n.String())
	return nil
}
