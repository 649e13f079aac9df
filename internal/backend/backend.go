// Package backend defines the publishing target a snapshot is written to and
// resolves the configured variant. The set of variants is closed: git drives
// the git executable, gogit does the same in process, directory only writes
// files.
package backend

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/sitesnap/internal/backend/directory"
	"git.home.luguber.info/inful/sitesnap/internal/backend/gitcli"
	"git.home.luguber.info/inful/sitesnap/internal/backend/gogit"
	"git.home.luguber.info/inful/sitesnap/internal/backend/runner"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Backend is the initialize, write, finalize contract over a publishing
// target. Initialize leaves an empty working state; Write may be called
// concurrently for distinct targets; Finalize publishes everything written.
// None of the steps are retried.
type Backend interface {
	Name() string
	// LockPath is the file guarding the working state against concurrent runs.
	LockPath() string
	Initialize(ctx context.Context) error
	Write(ctx context.Context, r io.Reader, target string) error
	Finalize(ctx context.Context) error
}

var (
	_ Backend = (*gitcli.Backend)(nil)
	_ Backend = (*gogit.Backend)(nil)
	_ Backend = (*directory.Backend)(nil)
)

type options struct {
	runner         runner.Runner
	commandTimeout time.Duration
}

// Option customises backend construction.
type Option func(*options)

// WithRunner replaces the command runner of the git executable variant.
func WithRunner(r runner.Runner) Option { return func(o *options) { o.runner = r } }

// WithCommandTimeout bounds every external command or repository operation.
func WithCommandTimeout(d time.Duration) Option { return func(o *options) { o.commandTimeout = d } }

// New resolves the backend named by cfg. Missing configuration, a missing or
// unknown name, and invalid variant settings are configuration errors raised
// before anything touches the filesystem.
func New(cfg *config.BackendConfig, log *eventlog.Log, opts ...Option) (Backend, error) {
	o := options{commandTimeout: config.DefaultCommandTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Name {
	case gitcli.Name:
		r := o.runner
		if r == nil {
			r = &runner.Exec{BinDir: cfg.GitBinDir, Timeout: o.commandTimeout}
		}
		b, err := gitcli.New(cfg, log, r)
		if err != nil {
			return nil, err
		}
		return b, nil
	case gogit.Name:
		b, err := gogit.New(cfg, log, o.commandTimeout)
		if err != nil {
			return nil, err
		}
		return b, nil
	case directory.Name:
		b, err := directory.New(cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown backend %q", cfg.Name)).Build()
	}
}
