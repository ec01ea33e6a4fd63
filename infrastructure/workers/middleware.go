package workers

import (
	"context"
	"errors"
	"sync"
)

// ConsecutiveErrorShutdown stops a worker after more than count failed
// cycles in a row. Idle cycles neither count nor reset.
func ConsecutiveErrorShutdown(count int) Middleware {
	var mu sync.Mutex
	errorCounts := make(map[string]int)

	return func(next WorkFunc) WorkFunc {
		return func(ctx context.Context, workerID string) error {
			err := next(ctx, workerID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				errorCounts[workerID] = 0
			case errors.Is(err, ErrNoWorkAvailable):
			default:
				errorCounts[workerID]++
				if errorCounts[workerID] > count {
					return ErrWorkerShutdown
				}
			}
			return err
		}
	}
}
