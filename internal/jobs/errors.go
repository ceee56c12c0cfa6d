package jobs

import (
	"context"
	"errors"

	"dualsub/internal/services"
)

// ErrCancelled is returned by work that stopped because its job was
// cancelled. It matches services.ErrCancelled.
var ErrCancelled = services.ErrCancelled

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("orchestrator closed")

// terminalStatus maps a work error to the status the job should end in.
func terminalStatus(ctx context.Context, err error) Status {
	switch {
	case err == nil:
		return StatusCompleted
	case services.IsCancellation(err), ctx.Err() != nil:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
