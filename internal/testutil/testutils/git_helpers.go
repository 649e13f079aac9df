package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Remote is a bare repository plus a seed clone used to push commits into it,
// standing in for the publishing remote in backend tests.
type Remote struct {
	BarePath string
	SeedPath string
	Seed     *git.Repository
	Branch   string
}

// NewRemote creates a bare repository whose branch holds one commit with files.
func NewRemote(t *testing.T, branch string, files map[string]string) *Remote {
	t.Helper()
	tmp := t.TempDir()
	ref := plumbing.NewBranchReferenceName(branch)

	barePath := filepath.Join(tmp, "remote.git")
	if _, err := git.PlainInitWithOptions(barePath, &git.PlainInitOptions{
		Bare:        true,
		InitOptions: git.InitOptions{DefaultBranch: ref},
	}); err != nil {
		t.Fatalf("init bare: %v", err)
	}

	seedPath := filepath.Join(tmp, "seed")
	seed, err := git.PlainInitWithOptions(seedPath, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: ref},
	})
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	if _, err := seed.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{barePath}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}

	r := &Remote{BarePath: barePath, SeedPath: seedPath, Seed: seed, Branch: branch}
	r.Commit(t, files, "initial")
	return r
}

// Commit writes files into the seed clone, commits them and pushes.
func (r *Remote) Commit(t *testing.T, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	var hash plumbing.Hash
	for name, content := range files {
		hash = AddFileAndCommit(t, r.Seed, r.SeedPath, name, content, msg+": "+name)
	}
	spec := ggitcfg.RefSpec("refs/heads/" + r.Branch + ":refs/heads/" + r.Branch)
	if err := r.Seed.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []ggitcfg.RefSpec{spec}}); err != nil && err != git.NoErrAlreadyUpToDate {
		t.Fatalf("push: %v", err)
	}
	return hash
}

// Head returns the hash the bare repository's branch points at.
func (r *Remote) Head(t *testing.T) plumbing.Hash {
	t.Helper()
	return r.ref(t, r.Branch).Hash()
}

// HeadCommit returns the commit at the tip of branch in the bare repository.
func (r *Remote) HeadCommit(t *testing.T, branch string) *object.Commit {
	t.Helper()
	repo := r.open(t)
	commit, err := repo.CommitObject(r.ref(t, branch).Hash())
	if err != nil {
		t.Fatalf("commit object: %v", err)
	}
	return commit
}

// Files returns path to content for every file at the tip of branch.
func (r *Remote) Files(t *testing.T, branch string) map[string]string {
	t.Helper()
	tree, err := r.HeadCommit(t, branch).Tree()
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	out := map[string]string{}
	err = tree.Files().ForEach(func(f *object.File) error {
		content, cerr := f.Contents()
		if cerr != nil {
			return cerr
		}
		out[f.Name] = content
		return nil
	})
	if err != nil {
		t.Fatalf("walk tree: %v", err)
	}
	return out
}

func (r *Remote) open(t *testing.T) *git.Repository {
	t.Helper()
	repo, err := git.PlainOpen(r.BarePath)
	if err != nil {
		t.Fatalf("open bare: %v", err)
	}
	return repo
}

func (r *Remote) ref(t *testing.T, branch string) *plumbing.Reference {
	t.Helper()
	ref, err := r.open(t).Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("reference %s: %v", branch, err)
	}
	return ref
}

// AddFileAndCommit writes filename into the worktree at repoPath and commits it.
func AddFileAndCommit(t *testing.T, repo *git.Repository, repoPath, filename, content, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	full := filepath.Join(repoPath, filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := wt.Add(filename); err != nil {
		t.Fatalf("add: %v", err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}
