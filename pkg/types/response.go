package types

// SuccessEnvelope wraps every successful API payload. Count is set on table
// selects so clients can tell an empty page from a missing field.
type SuccessEnvelope struct {
	Data  any  `json:"data"`
	Count *int `json:"count,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RawSuccessEnvelope is the client-side view of SuccessEnvelope with the
// payload left undecoded.
type RawSuccessEnvelope[T any] struct {
	Data  T    `json:"data"`
	Count *int `json:"count,omitempty"`
}
