package gogit

import (
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/sitesnap/internal/testutil/testutils"
)

func newBackend(t *testing.T, remoteURL, dir string, mutate ...func(*config.BackendConfig)) *Backend {
	t.Helper()
	cfg := &config.BackendConfig{
		Name:          Name,
		WorkingDir:    dir,
		RemoteRepo:    remoteURL,
		Branch:        "main",
		CommitMessage: "snapshot",
		AuthorName:    "Snap Shot",
		AuthorEmail:   "snap@example.com",
	}
	for _, m := range mutate {
		m(cfg)
	}
	b, err := New(cfg, eventlog.New("test"), time.Minute)
	require.NoError(t, err)
	return b
}

func publish(t *testing.T, b *Backend, files map[string]string) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, b.Initialize(ctx))
	helpers.NewFileAssertions(t, b.Dir()).AssertOnlyEntries(".", ".git")
	for target, content := range files {
		require.NoError(t, b.Write(ctx, strings.NewReader(content), target))
	}
	require.NoError(t, b.Finalize(ctx))
}

func TestPublishReplacesRemoteTree(t *testing.T) {
	remote := helpers.NewRemote(t, "main", map[string]string{"old/index.html": "old", "index.html": "v0"})
	dir := filepath.Join(t.TempDir(), "site")

	b := newBackend(t, remote.BarePath, dir)
	publish(t, b, map[string]string{"index.html": "v1", "a/index.html": "post"})

	assert.Equal(t, map[string]string{"index.html": "v1", "a/index.html": "post"}, remote.Files(t, "main"))
	commit := remote.HeadCommit(t, "main")
	assert.Equal(t, "Snap Shot", commit.Author.Name)
	assert.Equal(t, "snap@example.com", commit.Author.Email)
	assert.Equal(t, "snapshot", commit.Message)

	var clone bool
	for _, e := range b.log.Filter(eventlog.KindCommand) {
		clone = clone || strings.HasPrefix(e.Message, "gogit clone --no-checkout")
	}
	assert.True(t, clone, "first run clones")
}

func TestSecondRunFetchesAndFastForwards(t *testing.T) {
	remote := helpers.NewRemote(t, "main", map[string]string{"index.html": "v0"})
	dir := filepath.Join(t.TempDir(), "site")
	publish(t, newBackend(t, remote.BarePath, dir), map[string]string{"index.html": "v1"})

	// Someone else publishes in between; the next run must fast-forward.
	other := newBackend(t, remote.BarePath, filepath.Join(t.TempDir(), "other"))
	publish(t, other, map[string]string{"index.html": "v2"})
	tip := remote.Head(t)

	b := newBackend(t, remote.BarePath, dir)
	publish(t, b, map[string]string{"index.html": "v3"})
	assert.Equal(t, "v3", remote.Files(t, "main")["index.html"])
	assert.Equal(t, tip, remote.HeadCommit(t, "main").ParentHashes[0])

	var fetched bool
	for _, e := range b.log.Filter(eventlog.KindCommand) {
		assert.NotContains(t, e.Message, "clone")
		fetched = fetched || e.Message == "gogit fetch origin"
	}
	assert.True(t, fetched)
}

func TestUnchangedSnapshotPublishesNothing(t *testing.T) {
	remote := helpers.NewRemote(t, "main", map[string]string{"index.html": "v0"})
	dir := filepath.Join(t.TempDir(), "site")
	publish(t, newBackend(t, remote.BarePath, dir), map[string]string{"index.html": "same"})
	head := remote.Head(t)

	b := newBackend(t, remote.BarePath, dir)
	publish(t, b, map[string]string{"index.html": "same"})
	assert.Equal(t, head, remote.Head(t))

	var skipped bool
	for _, e := range b.log.Filter(eventlog.KindInfo) {
		skipped = skipped || strings.Contains(e.Message, "nothing to publish")
	}
	assert.True(t, skipped)
}

func TestDivergedRemoteFailsInitialize(t *testing.T) {
	remote := helpers.NewRemote(t, "main", map[string]string{"a.txt": "A"})
	dir := filepath.Join(t.TempDir(), "site")

	local, err := git.PlainClone(dir, false, &git.CloneOptions{URL: remote.BarePath, ReferenceName: plumbing.NewBranchReferenceName("main")})
	require.NoError(t, err)
	helpers.AddFileAndCommit(t, local, dir, "b.txt", "B", "local only")
	remote.Commit(t, map[string]string{"c.txt": "C"}, "remote only")
	before := remote.Head(t)

	b := newBackend(t, remote.BarePath, dir)
	err = b.Initialize(t.Context())
	require.Error(t, err)
	assert.Equal(t, errors.CategoryBackend, errors.GetCategory(err))

	var diverged *RemoteDivergedError
	require.True(t, stderrors.As(err, &diverged))
	assert.Equal(t, "main", diverged.Branch)
	assert.Equal(t, before, remote.Head(t), "remote untouched")
}

func TestRemoteBranchMapping(t *testing.T) {
	remote := helpers.NewRemote(t, "main", map[string]string{"index.html": "v0"})
	b := newBackend(t, remote.BarePath, filepath.Join(t.TempDir(), "site"), func(c *config.BackendConfig) {
		c.RemoteBranch = "published"
	})
	publish(t, b, map[string]string{"index.html": "v1"})

	assert.Equal(t, map[string]string{"index.html": "v1"}, remote.Files(t, "published"))
	assert.Equal(t, map[string]string{"index.html": "v0"}, remote.Files(t, "main"))
}

func TestEmptyRemoteStartsNewHistory(t *testing.T) {
	bare := filepath.Join(t.TempDir(), "empty.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	b := newBackend(t, bare, filepath.Join(t.TempDir(), "site"))
	publish(t, b, map[string]string{"index.html": "first"})

	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	file, err := commit.File("index.html")
	require.NoError(t, err)
	content, err := file.Contents()
	require.NoError(t, err)
	assert.Equal(t, "first", content)
}

func TestFinalizeBeforeInitialize(t *testing.T) {
	b := newBackend(t, "https://example.com/site.git", t.TempDir())
	err := b.Finalize(t.Context())
	assert.Equal(t, errors.CategoryInternal, errors.GetCategory(err))
}

func TestWriteRejectsMetadata(t *testing.T) {
	b := newBackend(t, "https://example.com/site.git", t.TempDir())
	err := b.Write(t.Context(), strings.NewReader("x"), ".git/HEAD")
	assert.Equal(t, errors.CategoryFileSystem, errors.GetCategory(err))
}

func TestAuthMethod(t *testing.T) {
	keyless := filepath.Join(t.TempDir(), "missing_key")
	tests := []struct {
		name    string
		cfg     *config.AuthConfig
		wantNil bool
		wantErr bool
	}{
		{name: "nil", cfg: nil, wantNil: true},
		{name: "none", cfg: &config.AuthConfig{Type: AuthNone}, wantNil: true},
		{name: "token", cfg: &config.AuthConfig{Type: AuthToken, Token: "t0k"}},
		{name: "token missing", cfg: &config.AuthConfig{Type: AuthToken}, wantErr: true},
		{name: "basic", cfg: &config.AuthConfig{Type: AuthBasic, Username: "u", Password: "p"}},
		{name: "basic missing password", cfg: &config.AuthConfig{Type: AuthBasic, Username: "u"}, wantErr: true},
		{name: "ssh missing key", cfg: &config.AuthConfig{Type: AuthSSH, KeyPath: keyless}, wantErr: true},
		{name: "unknown", cfg: &config.AuthConfig{Type: "kerberos"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := authMethod(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CategoryAuth, errors.GetCategory(err))
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, auth)
				return
			}
			basic, ok := auth.(*http.BasicAuth)
			require.True(t, ok, "expected basic auth, got %T", auth)
			if tt.cfg.Type == AuthToken {
				assert.Equal(t, "token", basic.Username)
				assert.Equal(t, "t0k", basic.Password)
			}
		})
	}
}

func TestIsAncestor(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	a := helpers.AddFileAndCommit(t, repo, dir, "a.txt", "A", "A")
	b := helpers.AddFileAndCommit(t, repo, dir, "b.txt", "B", "B")
	c := helpers.AddFileAndCommit(t, repo, dir, "c.txt", "C", "C")

	ok, err := isAncestor(repo, b, b)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = isAncestor(repo, a, c)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = isAncestor(repo, c, a)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = isAncestor(repo, a, plumbing.NewHash(strings.Repeat("2", 40)))
	assert.Error(t, err)
}

func TestCanFastForwardReportsHistoryErrors(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	head := helpers.AddFileAndCommit(t, repo, dir, "a.txt", "A", "A")

	b := newBackend(t, "https://example.com/site.git", dir)
	b.repo = repo

	ff, err := b.canFastForward(head, head)
	require.NoError(t, err)
	assert.True(t, ff)

	ff, err = b.canFastForward(head, plumbing.NewHash(strings.Repeat("3", 40)))
	require.Error(t, err)
	assert.False(t, ff)
	assert.Equal(t, errors.CategoryBackend, errors.GetCategory(err))
	var diverged *RemoteDivergedError
	assert.False(t, stderrors.As(err, &diverged), "a failed walk is not a divergence")
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	step, _ := ce.Context().GetString("step")
	assert.Equal(t, "pull", step)
}
