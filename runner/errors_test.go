package runner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError(t *testing.T) {
	err := &PipelineError{PipelineID: "github", ExitCode: 1}
	assert.Equal(t, "pipeline github failed (exit code: 1)", err.Error())
}

func TestPipelineErrorLogs(t *testing.T) {
	err := &PipelineError{
		PipelineID: "github",
		ExitCode:   2,
		ErrorLogs:  []string{"first error", "second error"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "pipeline github failed (exit code: 2)")
	assert.Contains(t, msg, "meltano error logs:\nfirst error\nsecond error")
}

func TestPipelineErrorLogsTruncated(t *testing.T) {
	var logs []string
	for i := 0; i < 8; i++ {
		logs = append(logs, fmt.Sprintf("error %d", i))
	}

	msg := (&PipelineError{PipelineID: "p", ExitCode: 1, ErrorLogs: logs}).Error()

	// only the last five lines make it into the message
	assert.NotContains(t, msg, "error 2")
	assert.Contains(t, msg, "error 3")
	assert.Contains(t, msg, "error 7")
	assert.Equal(t, 5, strings.Count(msg, "\nerror "))
}
