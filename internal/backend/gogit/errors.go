package gogit

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// RemoteDivergedError reports a local branch that cannot be fast-forwarded to
// its remote counterpart.
type RemoteDivergedError struct {
	Op, URL, Branch string
	Err             error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s@%s: %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// classifyGitError turns go-git failures into backend errors, re-tagging the
// ones that need a different remedy.
func classifyGitError(err error, op, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	b := errors.BackendError("git "+op+" failed").
		WithCause(err).
		WithContext("step", op).
		WithContext("url", url)

	switch {
	case strings.Contains(l, "authentication required") || strings.Contains(l, "authorization failed") || strings.Contains(l, "invalid credentials"):
		b = b.WithCategory(errors.CategoryAuth).UserAction()
	case strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist"):
		b = b.WithCategory(errors.CategoryNotFound).UserAction()
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "diverged"):
		b = b.WithContext("diverged", true)
	}
	return b.Build()
}
