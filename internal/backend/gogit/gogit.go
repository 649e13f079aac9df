// Package gogit publishes a snapshot through a git repository using go-git,
// without requiring a git executable. It follows the same initialize, write
// and finalize contract as the executable backed variant.
package gogit

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/sitesnap/internal/backend/worktree"
	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/logfields"
)

// Name is the configuration name of this backend.
const Name = config.BackendGoGit

const remoteName = "origin"

// Backend is the go-git backed publishing target.
type Backend struct {
	cfg     config.BackendConfig
	dir     string
	log     *eventlog.Log
	auth    transport.AuthMethod
	timeout time.Duration
	now     func() time.Time

	repo  *git.Repository
	fresh bool // remote had no commits; the first push creates the branch
}

// New validates cfg and prepares authentication. timeout bounds each
// network or repository operation; zero means no bound.
func New(cfg *config.BackendConfig, log *eventlog.Log, timeout time.Duration) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name != Name {
		return nil, errors.ConfigError("backend name mismatch").
			WithContext("expected", Name).
			WithContext("got", cfg.Name).
			Build()
	}
	dir, err := filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return nil, errors.ConfigError("backend working_dir is not a valid path").WithCause(err).Build()
	}
	auth, err := authMethod(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &Backend{cfg: *cfg, dir: dir, log: log, auth: auth, timeout: timeout, now: time.Now}, nil
}

func (b *Backend) Name() string { return Name }

// LockPath is a sibling of the working directory.
func (b *Backend) LockPath() string { return b.dir + ".lock" }

// Dir returns the absolute working directory.
func (b *Backend) Dir() string { return b.dir }

// Initialize clears the working directory, opens or clones the repository,
// fast-forwards the configured branch to the remote and leaves an empty
// worktree. Divergent history fails with a RemoteDivergedError.
func (b *Backend) Initialize(ctx context.Context) error {
	existing := worktree.HasMetadata(b.dir)
	if err := b.clear(); err != nil {
		return err
	}

	var err error
	if existing {
		err = b.openAndFetch(ctx)
	} else {
		err = b.clone(ctx)
	}
	if err != nil {
		return err
	}
	if b.fresh {
		return nil
	}
	if err := b.sync(); err != nil {
		return err
	}
	return b.clear()
}

func (b *Backend) openAndFetch(ctx context.Context) error {
	b.log.Command("gogit", "open", b.dir)
	repo, err := git.PlainOpen(b.dir)
	if err != nil {
		return classifyGitError(err, "open", b.cfg.RemoteRepo)
	}
	b.repo = repo

	b.log.Command("gogit", "fetch", remoteName)
	ctx, cancel := b.stepContext(ctx)
	defer cancel()
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Tags:       git.NoTags,
		Auth:       b.auth,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyGitError(err, "fetch", b.cfg.RemoteRepo)
	}
	return nil
}

func (b *Backend) clone(ctx context.Context) error {
	b.log.Command("gogit", "clone", "--no-checkout", b.cfg.RemoteRepo, b.dir)
	cctx, cancel := b.stepContext(ctx)
	defer cancel()
	repo, err := git.PlainCloneContext(cctx, b.dir, false, &git.CloneOptions{
		URL:        b.cfg.RemoteRepo,
		RemoteName: remoteName,
		NoCheckout: true,
		Tags:       git.NoTags,
		Auth:       b.auth,
	})
	if stderrors.Is(err, transport.ErrEmptyRemoteRepository) {
		return b.initEmpty()
	}
	if err != nil {
		return classifyGitError(err, "clone", b.cfg.RemoteRepo)
	}
	b.repo = repo
	return nil
}

// initEmpty prepares a fresh repository for a remote that has no commits yet.
func (b *Backend) initEmpty() error {
	b.log.Append(eventlog.KindInfo, "remote %s is empty; starting a new history on %s", b.cfg.RemoteRepo, b.cfg.Branch)
	if _, err := worktree.Clear(b.dir); err != nil {
		return err
	}
	repo, err := git.PlainInitWithOptions(b.dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(b.cfg.Branch)},
	})
	if err != nil {
		return classifyGitError(err, "init", b.cfg.RemoteRepo)
	}
	if _, err := repo.CreateRemote(&ggitcfg.RemoteConfig{Name: remoteName, URLs: []string{b.cfg.RemoteRepo}}); err != nil {
		return classifyGitError(err, "init", b.cfg.RemoteRepo)
	}
	b.repo = repo
	b.fresh = true
	return nil
}

// sync checks out the configured branch and fast-forwards it to the remote.
func (b *Backend) sync() error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return classifyGitError(err, "worktree", b.cfg.RemoteRepo)
	}

	b.log.Command("gogit", "checkout", b.cfg.Branch)
	localRef, remoteRef, err := checkoutAndGetRefs(b.repo, wt, b.cfg.Branch)
	if err != nil {
		return classifyGitError(err, "checkout", b.cfg.RemoteRepo)
	}

	b.log.Command("gogit", "merge", "--ff-only", remoteName+"/"+b.cfg.Branch)
	ff, err := b.canFastForward(localRef.Hash(), remoteRef.Hash())
	if err != nil {
		return err
	}
	if !ff {
		diverged := &RemoteDivergedError{
			Op:     "initialize",
			URL:    b.cfg.RemoteRepo,
			Branch: b.cfg.Branch,
			Err:    stderrors.New("local branch diverged from remote; refusing to merge"),
		}
		b.log.Append(eventlog.KindError, "%v", diverged)
		return errors.BackendError("remote history diverged; fast-forward not possible").
			WithCause(diverged).
			WithContext("step", "pull").
			WithContext(logfields.KeyBranch, b.cfg.Branch).
			Build()
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return classifyGitError(err, "fast-forward", b.cfg.RemoteRepo)
	}
	if localRef.Hash() == remoteRef.Hash() {
		slog.Debug("Snapshot branch already up-to-date", logfields.Branch(b.cfg.Branch), slog.String("commit", remoteRef.Hash().String()[:8]))
	} else {
		slog.Info("Fast-forwarded snapshot branch", logfields.Branch(b.cfg.Branch),
			slog.String("from", localRef.Hash().String()[:8]), slog.String("to", remoteRef.Hash().String()[:8]))
	}
	return nil
}

// Write stores one target file in the working directory.
func (b *Backend) Write(ctx context.Context, r io.Reader, target string) error {
	_, err := worktree.WriteFile(ctx, b.dir, r, target)
	return err
}

// Finalize stages every change, deletions included, commits with the
// configured author and pushes branch to the remote branch. A clean worktree
// publishes nothing.
func (b *Backend) Finalize(ctx context.Context) error {
	if b.repo == nil {
		return errors.InternalError("finalize called before initialize").Build()
	}
	wt, err := b.repo.Worktree()
	if err != nil {
		return classifyGitError(err, "worktree", b.cfg.RemoteRepo)
	}

	b.log.Command("gogit", "add", "-A")
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return classifyGitError(err, "add", b.cfg.RemoteRepo)
	}
	b.log.Command("gogit", "status")
	status, err := wt.Status()
	if err != nil {
		return classifyGitError(err, "status", b.cfg.RemoteRepo)
	}
	if status.IsClean() {
		b.log.Append(eventlog.KindInfo, "working tree unchanged; nothing to publish")
		return nil
	}

	msg := b.cfg.CommitMessage
	if msg == "" {
		msg = config.DefaultCommitMessage
	}
	sig := b.signature()
	b.log.Command("gogit", "commit", "-m", msg)
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return classifyGitError(err, "commit", b.cfg.RemoteRepo)
	}

	spec := ggitcfg.RefSpec("refs/heads/" + b.cfg.Branch + ":refs/heads/" + b.cfg.TargetBranch())
	b.log.Command("gogit", "push", remoteName, b.cfg.Branch+":"+b.cfg.TargetBranch())
	pctx, cancel := b.stepContext(ctx)
	defer cancel()
	err = b.repo.PushContext(pctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       b.auth,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyGitError(err, "push", b.cfg.RemoteRepo)
	}
	slog.Info("Published snapshot", logfields.Backend(Name), logfields.Branch(b.cfg.TargetBranch()), slog.String("commit", hash.String()[:8]))
	return nil
}

func (b *Backend) signature() *object.Signature {
	name, email := b.cfg.AuthorName, b.cfg.AuthorEmail
	if name == "" {
		name = config.DefaultAuthorName
	}
	if email == "" {
		email = config.DefaultAuthorEmail
	}
	return &object.Signature{Name: name, Email: email, When: b.now()}
}

func (b *Backend) clear() error {
	removed, err := worktree.Clear(b.dir)
	if err != nil {
		return err
	}
	b.log.Append(eventlog.KindInfo, "cleared %d entries from %s", removed, b.dir)
	return nil
}

func (b *Backend) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return context.WithCancel(ctx)
}
