// Package worker hosts the gateway's background loops.
package worker

import "context"

// Worker is a long-running background task that stops when ctx is cancelled.
type Worker interface {
	Run(ctx context.Context) error
}
