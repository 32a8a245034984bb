package contract

import "context"

// Runtime runs one conversation and yields the messages it produces, in
// order. The channel is closed when the run ends; a failed run ends with a
// single EventError.
type Runtime interface {
	Run(ctx context.Context, msgs []Message) (<-chan Event, error)
}
