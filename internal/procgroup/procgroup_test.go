package procgroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndWaitForNaturalExit(t *testing.T) {
	cmd := ShellCommand("exit 0", t.TempDir(), nil)
	group := New(cmd, nil)

	exitCh, err := group.Start()
	require.NoError(t, err)
	assert.NotZero(t, group.Pid())

	select {
	case err := <-exitCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestCancelEscalatesToKillWhenProcessIgnoresTerm(t *testing.T) {
	cmd := ShellCommand("trap '' TERM; sleep 30", t.TempDir(), nil)
	group := New(cmd, nil)

	exitCh, err := group.Start()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		group.Cancel(200*time.Millisecond, exitCh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not escalate to kill in time")
	}
}
