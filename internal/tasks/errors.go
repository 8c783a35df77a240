package tasks

import (
	"errors"
	"fmt"
)

// ErrNoCentroids is returned when a crop size is requested for a batch
// in which no frame produced a centroid. The whole batch aborts before
// any cropping starts.
var ErrNoCentroids = errors.New("no frames produced a centroid")

// ToolError reports a failed external tool invocation. It is fatal for
// the frame being processed and is never retried.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
