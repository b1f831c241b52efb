package reasoner

const (
	DefaultTurnBudget  = 5
	DefaultTextLimit   = 5000
	DefaultMarkupLimit = 5000
)

// Config bounds one reasoning invocation.
type Config struct {
	// TurnBudget is the maximum number of model calls.
	TurnBudget int

	// TextLimit and MarkupLimit cap the page text and markup sent to the model, in bytes.
	TextLimit   int
	MarkupLimit int
}

func (c *Config) applyDefaults() {
	if c.TurnBudget <= 0 {
		c.TurnBudget = DefaultTurnBudget
	}
	if c.TextLimit <= 0 {
		c.TextLimit = DefaultTextLimit
	}
	if c.MarkupLimit <= 0 {
		c.MarkupLimit = DefaultMarkupLimit
	}
}
