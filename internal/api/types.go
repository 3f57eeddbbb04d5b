package api

import "encoding/json"

const defaultErrorMessage = "API request failed"

// envelope is the wrapper every Mataresit response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   json.RawMessage `json:"error"`
}

// message picks the human-readable failure text, falling back to a generic one.
func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	// "error" is either a string or an object with its own message.
	if len(e.Error) > 0 {
		var s string
		if json.Unmarshal(e.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(e.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return defaultErrorMessage
}
