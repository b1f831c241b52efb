package llm

import "fmt"

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single entry in a Conversation. It is a closed set of variants:
// SystemTurn, UserTurn, AssistantTurn and ToolResultTurn. Consumers are expected
// to switch over all four and reject anything else with ErrUnknownTurn.
type Turn interface {
	Role() Role
	Text() string

	isTurn()
}

// SystemTurn carries the fixed instruction text for the model.
type SystemTurn struct {
	Content string
}

// UserTurn carries the page content presented to the model.
type UserTurn struct {
	Content string
}

// AssistantTurn is a model reply. A reply with no ToolCalls is terminal.
type AssistantTurn struct {
	Content   string
	ToolCalls []ToolInvocation
}

// ToolResultTurn answers exactly one ToolInvocation, correlated by CallID.
type ToolResultTurn struct {
	CallID  string
	Content string
}

func (SystemTurn) Role() Role     { return RoleSystem }
func (UserTurn) Role() Role       { return RoleUser }
func (AssistantTurn) Role() Role  { return RoleAssistant }
func (ToolResultTurn) Role() Role { return RoleTool }

func (t SystemTurn) Text() string     { return t.Content }
func (t UserTurn) Text() string       { return t.Content }
func (t AssistantTurn) Text() string  { return t.Content }
func (t ToolResultTurn) Text() string { return t.Content }

func (SystemTurn) isTurn()     {}
func (UserTurn) isTurn()       {}
func (AssistantTurn) isTurn()  {}
func (ToolResultTurn) isTurn() {}

// Terminal reports whether the assistant turn ends the conversation.
func (t AssistantTurn) Terminal() bool {
	return len(t.ToolCalls) == 0
}

// ErrUnknownTurn is returned when a consumer meets a Turn variant it does not handle.
type ErrUnknownTurn struct {
	Turn Turn
}

func (e ErrUnknownTurn) Error() string {
	return fmt.Sprintf("unknown turn kind %T", e.Turn)
}
