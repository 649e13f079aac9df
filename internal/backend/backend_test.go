package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/eventlog"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

func TestNewResolvesVariants(t *testing.T) {
	dir := t.TempDir()
	for _, name := range config.BackendNames {
		t.Run(name, func(t *testing.T) {
			cfg := &config.BackendConfig{Name: name, WorkingDir: dir + "/site", RemoteRepo: "https://example.com/site.git", Branch: "main"}
			b, err := New(cfg, eventlog.New("t"))
			require.NoError(t, err)
			assert.Equal(t, name, b.Name())
			assert.Equal(t, dir+"/site.lock", b.LockPath())
		})
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.BackendConfig
	}{
		{name: "missing", cfg: nil},
		{name: "no name", cfg: &config.BackendConfig{WorkingDir: "x"}},
		{name: "unknown", cfg: &config.BackendConfig{Name: "s3", WorkingDir: "x"}},
		{name: "git without remote", cfg: &config.BackendConfig{Name: "git", WorkingDir: "x", Branch: "main"}},
		{name: "gogit without branch", cfg: &config.BackendConfig{Name: "gogit", WorkingDir: "x", RemoteRepo: "r"}},
		{name: "no working dir", cfg: &config.BackendConfig{Name: "directory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.cfg, nil)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
			assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
		})
	}
}
