// Package llm provides the provider-neutral conversation model shared by the
// reasoning engine, the model transports and the transcript store.
package llm

// ErrorResponse represents an error returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}
