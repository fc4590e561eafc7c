package oracle

import (
	"context"
	"runtime"
)

// pollFunc is a single native call with its arguments captured once. The
// structure of the calling code guarantees that everything the call points
// at outlives the poll loop.
type pollFunc func() int32

// pollCall re-invokes call while the session reports still-executing. The
// native protocol exposes no pollable descriptor, so this is a cooperative
// busy-poll: each still-executing status yields the goroutine back to the
// scheduler before retrying. Any other status is terminal and returned
// unchanged; error mapping happens one layer up.
//
// Cancellation via ctx stops polling but cannot stop the in-flight native
// operation; see ServiceContext.exec for how the abandoned call is driven
// to completion.
func pollCall(ctx context.Context, call pollFunc) (int32, error) {
	for {
		status := call()
		if status != OCIStillExecuting {
			return status, nil
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return OCIStillExecuting, ctx.Err()
			default:
			}
		}
		runtime.Gosched()
	}
}

// pollToCompletion drives a call to a definitive status with no way out.
// Used for abandoned operations and for release jobs, both of which must
// reach a terminal status before their resources may be touched again.
func pollToCompletion(call pollFunc) int32 {
	for {
		status := call()
		if status != OCIStillExecuting {
			return status
		}
		runtime.Gosched()
	}
}
