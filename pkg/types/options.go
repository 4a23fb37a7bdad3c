package types

import "time"

// Options holds the options of a build run.
type Options struct {
	// Patch source filter; empty means every enabled source.
	Source  string
	DryRun  bool
	Timeout time.Duration
}
