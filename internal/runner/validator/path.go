package validator

import (
	"path/filepath"
	"strings"

	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
)

// validatePath implements the six-step path policy from the path-safety
// design: no literal "..", absolute-only, lexical-only canonicalization,
// byte-equality between raw and canonical form, then allowed/forbidden
// prefix checks at segment boundaries. It never touches the filesystem —
// canonicalization is purely lexical, so symlinks are never resolved or
// followed. A relative path is rejected outright rather than joined against
// a base directory: there is no safe base to join an untrusted parameter
// value against, and a bare relative path with no allowed_paths declared is
// exactly the unbounded case logging.SecurityLogger.LogUnboundedPathParameter flags at
// load time.
func validatePath(templateName, paramName, raw string, allowed, forbidden []string) (string, error) {
	if strings.Contains(raw, "..") {
		return "", runerrors.SecurityViolation(templateName, paramName, "path contains '..'")
	}

	if !filepath.IsAbs(raw) {
		return "", runerrors.SecurityViolation(templateName, paramName, "path must be absolute")
	}

	canonical := filepath.Clean(raw)
	if canonical != raw {
		return "", runerrors.SecurityViolation(templateName, paramName,
			"path is not in canonical form (contains redundant separators or '.' segments)")
	}

	if len(allowed) > 0 && !matchesAnyPrefix(canonical, allowed) {
		return "", runerrors.SecurityViolation(templateName, paramName, "path is not under any allowed_paths prefix")
	}

	if matchesAnyPrefix(canonical, forbidden) {
		return "", runerrors.SecurityViolation(templateName, paramName, "path matches a forbidden_paths prefix")
	}

	return canonical, nil
}

// matchesAnyPrefix reports whether path has any of prefixes as a string
// prefix that ends at a path-segment boundary: either the prefix itself
// ends in "/" or the path continues with "/" right after the match.
func matchesAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.HasSuffix(prefix, "/") {
			return true
		}
		rest := path[len(prefix):]
		if rest == "" || strings.HasPrefix(rest, "/") {
			return true
		}
	}
	return false
}
