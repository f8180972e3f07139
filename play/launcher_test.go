package play

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLauncher_StartAndWait(t *testing.T) {
	requireShell(t)
	var out bytes.Buffer
	l := &Launcher{Stdout: &out}

	p, err := l.Start(context.Background(), &Invocation{Path: "sh", Args: []string{"-c", "echo started"}})
	require.NoError(t, err)
	assert.NotZero(t, p.Pid())
	require.NoError(t, p.Wait())
	assert.Equal(t, "started\n", out.String())
}

func TestLauncher_ExitStatus(t *testing.T) {
	requireShell(t)
	l := &Launcher{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	p, err := l.Start(context.Background(), &Invocation{Path: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)

	err = p.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestLauncher_MissingBinary(t *testing.T) {
	l := &Launcher{}
	_, err := l.Start(context.Background(), &Invocation{Path: "mlbstreamer-no-such-binary"})
	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "mlbstreamer-no-such-binary", le.Path)
}

func TestFindPlayer_NoneOnPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := FindPlayer()
	assert.ErrorIs(t, err, ErrNoPlayer)
}
