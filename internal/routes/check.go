package routes

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
)

// Check verifies that every target is a clean relative path, that no two
// mappings share a target, and that no target is used as both a file and a
// directory. Targets are compared in Unicode normal form C.
func Check(mappings []Mapping) error {
	files := make(map[string]string, len(mappings))
	dirs := make(map[string]string)

	for _, m := range mappings {
		if err := validateTarget(m.Target); err != nil {
			return err
		}
		key := norm.NFC.String(m.Target)
		if prev, ok := files[key]; ok {
			return collision(m.Target, prev, m.URL)
		}
		if prev, ok := dirs[key]; ok {
			return collision(m.Target, prev, m.URL)
		}
		files[key] = m.URL

		for dir := path.Dir(key); dir != "."; dir = path.Dir(dir) {
			if prev, ok := files[dir]; ok {
				return collision(dir, prev, m.URL)
			}
			if _, ok := dirs[dir]; ok {
				break
			}
			dirs[dir] = m.URL
		}
	}
	return nil
}

func validateTarget(target string) error {
	if target == "" {
		return errors.EnumerationError("empty target path").Build()
	}
	if strings.HasPrefix(target, "/") || path.Clean(target) != target {
		return errors.EnumerationError("target path is not a clean relative path").
			WithContext("target", target).
			Build()
	}
	if target == ".." || strings.HasPrefix(target, "../") {
		return errors.EnumerationError("target path escapes the output root").
			WithContext("target", target).
			Build()
	}
	return nil
}
