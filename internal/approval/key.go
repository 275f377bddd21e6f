package approval

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/execguard/execguard/internal/permission"
)

// Key identifies an approvable operation. KeyHash is a deterministic content
// hash of the tool plus a generalized form of the request, so two
// semantically identical requests produce the same key across process
// restarts. It is the cache's primary key.
type Key struct {
	Tool    string `json:"tool"`
	Pattern string `json:"pattern"`
	KeyHash string `json:"key_hash"`
}

// KeyForPath builds a key for a path-addressed operation. The path is
// generalized to its directory so that sibling files share an approval.
func KeyForPath(tool, path string) Key {
	pattern := generalizePath(path)
	return Key{
		Tool:    tool,
		Pattern: pattern,
		KeyHash: hashParts(tool, pattern),
	}
}

// KeyForCommand builds a key for a shell command. The hash covers the exact
// command text and working directory; the pattern records the generalized
// command for display and pattern-scoped approvals.
func KeyForCommand(tool, command, cwd string) Key {
	return Key{
		Tool:    tool,
		Pattern: generalizeCommand(command),
		KeyHash: hashParts(tool, hashParts(command, cwd)),
	}
}

// KeyForPattern builds a key for an explicit, caller-chosen pattern.
func KeyForPattern(tool, pattern string) Key {
	return Key{
		Tool:    tool,
		Pattern: pattern,
		KeyHash: hashParts(tool, pattern),
	}
}

// generalizePath turns a concrete path into a directory-scoped pattern.
func generalizePath(path string) string {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, "*")
}

// generalizeCommand reduces a command line to an approval pattern, e.g.
// "git commit -m x" -> "git commit *". The line is parsed as shell, so
// quoting, environment assignments and pipelines are understood. A line
// running several distinct programs has no single safe generalization and
// gets no pattern; its approval stays exact.
func generalizeCommand(command string) string {
	commands, err := permission.ParseCommands(command)
	if err != nil || len(commands) == 0 {
		return ""
	}

	patterns := permission.CommandPatterns(commands)
	if len(patterns) != 1 {
		return ""
	}
	return patterns[0]
}

// hashParts hashes strings with a separator so that ("ab","c") and ("a","bc")
// cannot collide. Field order is fixed by the caller, keeping the hash
// deterministic.
func hashParts(parts ...string) string {
	h := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.WriteString(p)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
