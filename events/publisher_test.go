package events

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	assert.Equal(t, "meltano.pipelines.run.started", p.Subject("run.started"))

	p = NewPublisher(nil, "custom.prefix", nil)
	assert.Equal(t, "custom.prefix.run.completed", p.Subject("run.completed"))
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	// must not panic
	p.RunStarted(RunStartedEvent{RunID: "x"})
	p.RunLog(RunLogEvent{RunID: "x"})
	p.RunCompleted(RunCompletedEvent{RunID: "x"})
	p.RunFailed(RunFailedEvent{RunID: "x"})
}

func TestNilConnection(t *testing.T) {
	p := NewPublisher(nil, "", nil)
	p.RunStarted(RunStartedEvent{RunID: "x"})
}

func startServer(t *testing.T) *nats.Conn {
	t.Helper()

	srv, err := natsserver.NewServer(&natsserver.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second))

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestPublishRoundTrip(t *testing.T) {
	nc := startServer(t)
	p := NewPublisher(nc, "", nil)

	sub, err := nc.SubscribeSync(p.Subject("run.failed"))
	require.NoError(t, err)

	p.RunFailed(RunFailedEvent{
		RunID:      "run-1",
		PipelineID: "github",
		ExitCode:   1,
		ErrorLogs:  []string{"boom"},
	})

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"run_id":"run-1"`)
	assert.Contains(t, string(msg.Data), `"exit_code":1`)
}
