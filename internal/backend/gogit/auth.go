package gogit

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Auth types understood by the in-process backend.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthBasic = "basic"
	AuthSSH   = "ssh"
)

// authMethod returns the transport auth for cfg, or nil for anonymous access.
func authMethod(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "", AuthNone:
		return nil, nil
	case AuthToken:
		if cfg.Token == "" {
			return nil, authError("token authentication requires a token", cfg.Type, nil)
		}
		// Forges accept any non-empty username alongside a token.
		return &http.BasicAuth{Username: "token", Password: cfg.Token}, nil
	case AuthBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, authError("basic authentication requires username and password", cfg.Type, nil)
		}
		return &http.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	case AuthSSH:
		keyPath := cfg.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, authError("failed to load SSH key", cfg.Type, err)
		}
		return keys, nil
	default:
		return nil, authError("unsupported authentication type", cfg.Type, nil)
	}
}

func authError(msg, typ string, cause error) error {
	b := errors.NewError(errors.CategoryAuth, msg).Fatal().UserAction().WithContext("type", typ)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}
