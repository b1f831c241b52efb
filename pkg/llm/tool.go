package llm

// ToolSpec declares a capability offered to the model.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is the JSON schema of the single arguments object.
	Parameters map[string]any
}

// ToolInvocation is a capability call issued by the model.
type ToolInvocation struct {
	// ID is the opaque call id used to correlate the tool result.
	ID string `json:"id" yaml:"id"`

	Name string `json:"name" yaml:"name"`

	// Arguments is the raw JSON arguments text as produced by the model.
	Arguments string `json:"arguments" yaml:"arguments"`
}
