package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Known backend variant names.
const (
	BackendGit       = "git"
	BackendGoGit     = "gogit"
	BackendDirectory = "directory"
)

// BackendNames lists the closed set of backend variants.
var BackendNames = []string{BackendGit, BackendGoGit, BackendDirectory}

// BackendConfig selects and configures the publishing backend. It is
// immutable for the duration of a run.
type BackendConfig struct {
	Name          string      `yaml:"name"`
	WorkingDir    string      `yaml:"working_dir"`
	RemoteRepo    string      `yaml:"remote_repo,omitempty"`
	Branch        string      `yaml:"branch,omitempty"`
	RemoteBranch  string      `yaml:"remote_branch,omitempty"`
	GitBinDir     string      `yaml:"git_bin_dir,omitempty"`
	CommitMessage string      `yaml:"commit_message,omitempty"`
	AuthorName    string      `yaml:"author_name,omitempty"`
	AuthorEmail   string      `yaml:"author_email,omitempty"`
	Auth          *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents authentication for the in-process git backend.
type AuthConfig struct {
	Type     string `yaml:"type"` // "none", "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// TargetBranch returns the remote branch name pushes go to.
func (b *BackendConfig) TargetBranch() string {
	if b.RemoteBranch != "" {
		return b.RemoteBranch
	}
	return b.Branch
}

// IsGit reports whether the backend is one of the git variants.
func (b *BackendConfig) IsGit() bool {
	return b.Name == BackendGit || b.Name == BackendGoGit
}

// Validate checks the backend configuration without touching the filesystem.
func (b *BackendConfig) Validate() error {
	if b == nil {
		return errors.ConfigError("backend configuration is missing").Build()
	}
	if b.Name == "" {
		return errors.ConfigError("backend name is required").Build()
	}
	if !slices.Contains(BackendNames, b.Name) {
		return errors.ConfigError(fmt.Sprintf("unknown backend %q", b.Name)).
			WithContext("known", BackendNames).
			Build()
	}
	if b.WorkingDir == "" {
		return errors.ConfigError("backend working_dir is required").WithContext("backend", b.Name).Build()
	}
	if err := b.checkWorkingDir(); err != nil {
		return err
	}
	if !b.IsGit() {
		return nil
	}
	if b.RemoteRepo == "" {
		return errors.ConfigError("backend remote_repo is required").WithContext("backend", b.Name).Build()
	}
	if b.Branch == "" {
		return errors.ConfigError("backend branch is required").WithContext("backend", b.Name).Build()
	}
	if b.Auth != nil {
		switch b.Auth.Type {
		case "", "none", "ssh", "token", "basic":
		default:
			return errors.ConfigError(fmt.Sprintf("unsupported auth type %q", b.Auth.Type)).Build()
		}
		if b.Name == BackendGit && b.Auth.Type != "" && b.Auth.Type != "none" {
			return errors.ConfigError("auth is only supported by the gogit backend; configure credentials for the git executable instead").Build()
		}
	}
	return nil
}

// checkWorkingDir rejects a working directory that resolves to the filesystem
// root. Initialize empties the working directory.
func (b *BackendConfig) checkWorkingDir() error {
	dir, err := filepath.Abs(b.WorkingDir)
	if err != nil {
		return errors.ConfigError("backend working_dir is not a valid path").WithCause(err).Build()
	}
	if filepath.Dir(dir) == dir {
		return errors.ConfigError("backend working_dir must not be the filesystem root").
			WithContext("working_dir", b.WorkingDir).
			Build()
	}
	return nil
}

// CheckWorkingDirAgainst rejects a working directory that resolves to the
// directory holding the configuration file.
func (b *BackendConfig) CheckWorkingDirAgainst(configPath string) error {
	dir, err := filepath.Abs(b.WorkingDir)
	if err != nil {
		return errors.ConfigError("backend working_dir is not a valid path").WithCause(err).Build()
	}
	cfgDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return errors.ConfigError("configuration path is not valid").WithCause(err).WithContext("path", configPath).Build()
	}
	if dir == cfgDir {
		return errors.ConfigError("backend working_dir must not be the configuration directory").
			WithContext("working_dir", b.WorkingDir).
			WithContext("path", configPath).
			Build()
	}
	return nil
}
