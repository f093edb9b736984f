package cli

import (
	"time"
)

// DefaultDir is where stored pipelines live unless --dir says otherwise.
const DefaultDir = ".cvflow/pipelines"

// Options carries the flags shared by every command.
type Options struct {
	Dir         string
	RedisURL    string
	Debug       bool
	JSONLogs    bool
	Concurrency int
	Interval    time.Duration
	// StoreKey is a base64 AES-256 key; stored pipelines are encrypted
	// when it is set.
	StoreKey string
	// Redact lists patterns of property names masked before storing.
	Redact []string
}

// RunOptions configures the 'run' command.
type RunOptions struct {
	Options
	// Target is a pipeline file path or the name of a stored pipeline.
	Target string
	// Cycles stops the run after n cycles; zero runs until interrupted.
	Cycles int
	Watch  bool
	Quiet  bool
}

// ServeOptions configures the 'serve' and 'mcp' commands.
type ServeOptions struct {
	Options
	// Pipeline names the stored pipeline the server edits. Empty starts from
	// an empty graph.
	Pipeline  string
	Port      int
	Transport string
	Autorun   bool
}
