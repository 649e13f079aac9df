// Package runner executes external commands for backends that shell out.
package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// waitDelay bounds how long Run waits for output pipes after the command was
// killed.
const waitDelay = 500 * time.Millisecond

// Result is the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner runs one command to completion in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// Exec runs commands with os/exec. When BinDir is set, bare command names are
// resolved inside it instead of on PATH. Timeout bounds every command.
type Exec struct {
	BinDir  string
	Timeout time.Duration
	Env     []string
}

// Run executes name with args in dir. A non-zero exit, a start failure or an
// expired timeout is returned as a backend error carrying stderr.
func (e *Exec) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	bin := name
	if e.BinDir != "" && !strings.ContainsRune(name, filepath.Separator) {
		bin = filepath.Join(e.BinDir, name)
	}

	// #nosec G204 -- command name comes from backend code, arguments from validated config
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	startGroup(cmd)
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	b := errors.BackendError(fmt.Sprintf("command failed: %s", line)).
		WithCause(err).
		WithContext("command", line).
		WithContext("dir", dir)
	if s := strings.TrimSpace(res.Stderr); s != "" {
		b = b.WithContext("stderr", s)
	}
	var exitErr *exec.ExitError
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		b = b.WithContext("timeout", e.Timeout.String())
	case stderrors.As(err, &exitErr):
		b = b.WithContext("exit_code", exitErr.ExitCode())
	}
	return res, b.Build()
}
