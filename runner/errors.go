package runner

import (
	"fmt"
	"strings"
)

// errorLogTail is how many trailing error logs a PipelineError message
// includes. The full list stays on the struct.
const errorLogTail = 5

// PipelineError reports a failed Meltano invocation.
type PipelineError struct {
	// PipelineID is the declared pipeline identifier.
	PipelineID string

	// ExitCode is the Meltano process exit code.
	ExitCode int

	// ErrorLogs are the error lines collected from the run output.
	ErrorLogs []string
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("pipeline %s failed (exit code: %d)", e.PipelineID, e.ExitCode)
	if len(e.ErrorLogs) == 0 {
		return msg
	}

	tail := e.ErrorLogs
	if len(tail) > errorLogTail {
		tail = tail[len(tail)-errorLogTail:]
	}
	return msg + "\n\nmeltano error logs:\n" + strings.Join(tail, "\n")
}
