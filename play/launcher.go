package play

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"mlbstreamer/internal/logger"
)

// Players searched for when none is configured, in order.
var DefaultPlayers = []string{"mpv", "vlc"}

var (
	// ErrNoPlayer is returned when no media player can be found.
	ErrNoPlayer = errors.New("no media player found; set player in the config file")
	// ErrStreamlinkMissing is returned when streamlink is not installed.
	ErrStreamlinkMissing = errors.New("streamlink not found")
)

// LaunchError wraps a failure to start or run the player.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// FindPlayer returns the first of DefaultPlayers on PATH.
func FindPlayer() (string, error) {
	for _, p := range DefaultPlayers {
		if path, err := exec.LookPath(p); err == nil {
			return path, nil
		}
	}
	return "", ErrNoPlayer
}

// Launcher starts prepared invocations.
type Launcher struct {
	// Stdout and Stderr receive the child's output. Nil means the
	// parent's.
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a running player.
type Process struct {
	cmd  *exec.Cmd
	path string
}

// Start spawns inv. The process keeps running after Start returns; it is
// killed if ctx is cancelled.
func (l *Launcher) Start(ctx context.Context, inv *Invocation) (*Process, error) {
	path, err := exec.LookPath(inv.Path)
	if err != nil {
		if inv.Path == defaultStreamlink {
			return nil, &LaunchError{Path: inv.Path, Err: ErrStreamlinkMissing}
		}
		return nil, &LaunchError{Path: inv.Path, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Stdout = l.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}
	logger.GetLogger().WithField("pid", cmd.Process.Pid).Debug("player started")
	return &Process{cmd: cmd, path: path}, nil
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return &LaunchError{Path: p.path, Err: err}
	}
	return nil
}
