package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

const minimalYAML = `
site:
  base_url: http://localhost:2368
paths:
  core: /srv/ghost/core
  images: /srv/ghost/content/images
  theme: /srv/ghost/content/themes
content:
  database: /srv/ghost/ghost.db
backend:
  name: git
  working_dir: /srv/snapshot
  remote_repo: git@example.com:me/site.git
  branch: main
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:2368/", cfg.Site.BaseURL)
	assert.Equal(t, DefaultIndexFilename, cfg.Site.IndexFilename)
	assert.Equal(t, DefaultRSSFilename, cfg.Site.RSSFilename)
	assert.Equal(t, DefaultImagesRel, cfg.Paths.ImagesRel)
	assert.Equal(t, ContentSourceGhostSQLite, cfg.Content.Source)
	assert.Equal(t, DefaultConcurrency, cfg.Generation.Concurrency)
	assert.Equal(t, DefaultFetchTimeout, cfg.Generation.FetchTimeoutDuration())
	assert.Equal(t, DefaultCommandTimeout, cfg.Generation.CommandTimeoutDuration())
	assert.Equal(t, DefaultCommitMessage, cfg.Backend.CommitMessage)
	assert.Equal(t, "main", cfg.Backend.TargetBranch())
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "\nunexpected: true\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("SITESNAP_TEST_REMOTE", "https://example.com/site.git")
	yml := `
site: {base_url: "https://blog.example.com/"}
content: {source: file, file: content.yaml}
backend: {name: gogit, working_dir: /tmp/w, remote_repo: "${SITESNAP_TEST_REMOTE}", branch: gh-pages, remote_branch: main}
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/site.git", cfg.Backend.RemoteRepo)
	assert.Equal(t, "main", cfg.Backend.TargetBranch())
	assert.Equal(t, ContentSourceFile, cfg.Content.Source)
}

func TestBackendValidation(t *testing.T) {
	cases := []struct {
		name    string
		backend *BackendConfig
		wantErr string
	}{
		{"missing", nil, "backend configuration is missing"},
		{"no name", &BackendConfig{WorkingDir: "/w"}, "backend name is required"},
		{"unknown", &BackendConfig{Name: "s3", WorkingDir: "/w"}, `unknown backend "s3"`},
		{"no working dir", &BackendConfig{Name: BackendDirectory}, "working_dir is required"},
		{"git without remote", &BackendConfig{Name: BackendGit, WorkingDir: "/w", Branch: "main"}, "remote_repo is required"},
		{"git without branch", &BackendConfig{Name: BackendGit, WorkingDir: "/w", RemoteRepo: "r"}, "branch is required"},
		{"cli git with token", &BackendConfig{Name: BackendGit, WorkingDir: "/w", RemoteRepo: "r", Branch: "b", Auth: &AuthConfig{Type: "token"}}, "only supported by the gogit backend"},
		{"filesystem root", &BackendConfig{Name: BackendDirectory, WorkingDir: "/"}, "must not be the filesystem root"},
		{"root after cleaning", &BackendConfig{Name: BackendDirectory, WorkingDir: "/srv/../"}, "must not be the filesystem root"},
		{"directory ok", &BackendConfig{Name: BackendDirectory, WorkingDir: "/w"}, ""},
		{"gogit with token ok", &BackendConfig{Name: BackendGoGit, WorkingDir: "/w", RemoteRepo: "r", Branch: "b", Auth: &AuthConfig{Type: "token", Token: "t"}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.backend.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
		})
	}
}

func TestValidateGenerationAndDaemon(t *testing.T) {
	base, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	tooMany := *base
	tooMany.Generation.Concurrency = MaxConcurrency + 1
	require.Error(t, Validate(&tooMany))

	badTimeout := *base
	badTimeout.Generation.FetchTimeout = "soon"
	require.Error(t, Validate(&badTimeout))

	both := *base
	both.Daemon.Interval = "1h"
	both.Daemon.Cron = "0 * * * *"
	require.Error(t, Validate(&both))

	badRoute := *base
	badRoute.Assets.Extra = []AssetSource{{Source: "/srv/x", Route: "../escape"}}
	require.Error(t, Validate(&badRoute))
}

func TestValidateSiteBaseURL(t *testing.T) {
	base, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	relative := *base
	relative.Site.BaseURL = "/blog/"
	require.Error(t, Validate(&relative))

	badIndex := *base
	badIndex.Site.IndexFilename = "nested/index.html"
	require.Error(t, Validate(&badIndex))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoadRejectsWorkingDirAtConfigDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitesnap.yaml")
	write := func(workingDir string) {
		data := strings.Replace(minimalYAML, "working_dir: /srv/snapshot", "working_dir: "+workingDir, 1)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	}

	write(dir)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "must not be the configuration directory")

	write(filepath.Join(dir, "site", ".."))
	_, err = Load(path)
	require.Error(t, err, "paths are compared after cleaning")

	write(filepath.Join(dir, "site"))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "site"), cfg.Backend.WorkingDir)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitesnap.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "second init without force must fail")
	require.NoError(t, Init(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, BackendGit, cfg.Backend.Name)
}

func TestFingerprintStable(t *testing.T) {
	a, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Site.BaseURL = "http://other/"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	a.Monitoring.Logging.Level = LogLevelDebug
	c, _ := Parse([]byte(minimalYAML))
	assert.Equal(t, c.Fingerprint(), a.Fingerprint(), "logging does not affect output")
}

func TestParseNormalizesEnumerations(t *testing.T) {
	yml := minimalYAML + `
monitoring:
  logging: {level: WARNING, format: " JSON "}
`
	cfg, err := Parse([]byte(strings.Replace(yml, "content:\n", "content:\n  source: Ghost\n", 1)))
	require.NoError(t, err)
	assert.Equal(t, ContentSourceGhostSQLite, cfg.Content.Source)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)

	_, err = Parse([]byte(strings.Replace(minimalYAML, "content:\n", "content:\n  source: mysql\n", 1)))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
