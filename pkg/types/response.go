package types

// SuccessEnvelope wraps every successful response body under a "data" key so
// clients can decode success and error payloads with the same shape check.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Message is safe to show members;
// Details is populated only for codes whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
