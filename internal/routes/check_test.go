package routes

import (
	stderrors "errors"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		targets   []string
		collision bool
		invalid   bool
	}{
		{name: "distinct", targets: []string{"index.html", "a/index.html", "tag/a/index.html"}},
		{name: "shared directory", targets: []string{"a/b/index.html", "a/c/index.html", "a/index.html"}},
		{name: "duplicate", targets: []string{"a/index.html", "a/index.html"}, collision: true},
		{name: "file then dir", targets: []string{"assets", "assets/app.css"}, collision: true},
		{name: "dir then file", targets: []string{"assets/app.css", "assets"}, collision: true},
		{name: "nested dir then file", targets: []string{"a/b/c.txt", "a/b"}, collision: true},
		// U+00E9 versus e followed by U+0301.
		{name: "unicode forms", targets: []string{"caf\u00e9/index.html", "cafe\u0301/index.html"}, collision: true},
		{name: "absolute", targets: []string{"/etc/passwd"}, invalid: true},
		{name: "escaping", targets: []string{"../x"}, invalid: true},
		{name: "unclean", targets: []string{"a//b"}, invalid: true},
		{name: "empty", targets: []string{""}, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := make([]Mapping, len(tt.targets))
			for i, target := range tt.targets {
				ms[i] = Mapping{URL: base + target, Target: target}
			}
			err := Check(ms)
			switch {
			case tt.collision:
				if !stderrors.Is(err, ErrTargetCollision) {
					t.Fatalf("expected collision, got %v", err)
				}
			case tt.invalid:
				if err == nil || stderrors.Is(err, ErrTargetCollision) {
					t.Fatalf("expected invalid target error, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}
