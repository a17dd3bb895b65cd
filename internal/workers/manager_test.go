package workers

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	name     string
	startErr error
	events   *[]string
}

func (w *fakeWorker) Start() error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.events = append(*w.events, "start "+w.name)
	return nil
}

func (w *fakeWorker) Stop() { *w.events = append(*w.events, "stop "+w.name) }

func (w *fakeWorker) Name() string { return w.name }

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeWorker{name: "a", events: &events},
		&fakeWorker{name: "b", events: &events},
	)

	require.NoError(t, m.Start())
	m.Stop()

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestManagerStartFailureStopsStarted(t *testing.T) {
	var events []string
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeWorker{name: "a", events: &events},
		&fakeWorker{name: "b", events: &events, startErr: errors.New("bad schedule")},
		&fakeWorker{name: "c", events: &events},
	)

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"start a", "stop a"}, events)

	m.Stop()
	assert.Equal(t, []string{"start a", "stop a"}, events)
}
