// Package cmd is a transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Adapters (Discord text commands, slash
// commands) decide how commands are registered and dispatched.
package cmd

import "context"

// Invocation carries the arguments and an adapter-specific payload.
type Invocation struct {
	Args []string
	Data any
}

// Command is identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
