package server

// Config is the dispatch server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Secret every run request must carry. Empty accepts any secret.
	Secret string

	// MaxRetainedRuns bounds how many finished runs are kept for polling.
	// Zero uses DefaultMaxRetainedRuns.
	MaxRetainedRuns int
}

// DefaultMaxRetainedRuns is the default number of finished runs kept.
const DefaultMaxRetainedRuns = 256
