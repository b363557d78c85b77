package types

// SuccessEnvelope wraps every successful API payload under a data key so
// clients can unmarshal without sniffing the shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of a failed request. Code is a stable machine
// string (for example BID_TOO_LOW); Message is safe to show to a user.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps APIError under an error key, mirroring SuccessEnvelope.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
