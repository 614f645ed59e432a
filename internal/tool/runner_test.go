package tool

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	require.NoError(t, Exec{}.Run(context.Background(), "sh", "-c", "echo converted"))

	err := Exec{}.Run(context.Background(), "sh", "-c", "echo 'no such layer' >&2; exit 3")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "sh", terr.Tool)
	assert.Contains(t, err.Error(), "no such layer")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestExec_MissingTool(t *testing.T) {
	err := Exec{}.Run(context.Background(), "redraw-no-such-tool")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestRecorder(t *testing.T) {
	boom := errors.New("boom")
	r := &Recorder{Hook: func(name string, _ []string) error {
		if name == "fail" {
			return boom
		}
		return nil
	}}
	require.NoError(t, r.Run(context.Background(), "npx", "geo2topo", "-q", "1e5"))
	require.ErrorIs(t, r.Run(context.Background(), "fail"), boom)

	require.Len(t, r.Calls, 2)
	assert.Equal(t, Call{Name: "npx", Args: []string{"geo2topo", "-q", "1e5"}}, r.Calls[0])
}
