// Package pathutil provides the path-shaping helpers the traversal engine
// and File record need: stripping a starting-point prefix for
// root-relative display, and locating the final path component (the
// record's name offset) without an extra allocation.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative strips the starting-point prefix from a recorded path, the
// rendering -printf's %P directive wants: for a walk rooted at "./a",
// "./a/b/c" becomes "b/c" and the root itself becomes "". The recorded
// path always extends the root it descended from byte-for-byte, so a
// plain prefix strip is exact; anything else (a path that did not come
// from this walk) falls back to filepath.Rel for absolute inputs and is
// otherwise returned unchanged.
func ToRelative(path, root string) string {
	if path == "" || root == "" {
		return path
	}
	if path == root {
		return ""
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if strings.HasPrefix(path, prefix) {
		return path[len(prefix):]
	}

	if filepath.IsAbs(path) && filepath.IsAbs(root) {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

// NameOffset returns the byte offset within path where the final path
// component begins: for
// "a/b/c" that's the index of "c"; for a bare root argument with no
// separator, the offset is 0 so path[name_offset:] is the whole argument.
// The filesystem root "/" likewise reports 0, so its name is "/" itself.
func NameOffset(path string) int {
	// Trim exactly one trailing separator so "a/b/" reports "b", not "".
	trimmed := path
	if len(trimmed) > 1 && strings.HasSuffix(trimmed, string(filepath.Separator)) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	idx := strings.LastIndexByte(trimmed, filepath.Separator)
	if idx < 0 || trimmed == string(filepath.Separator) {
		return 0
	}
	return idx + 1
}

// Join appends a child name to a parent path the way the traversal engine
// builds descendant paths: no Clean, so a root argument like "./a" stays
// "./a/b" instead of collapsing to "a/b" — find(1)'s own behavior, which
// users rely on when piping output back in as literal paths.
func Join(parent, child string) string {
	if parent == "" {
		return child
	}
	if strings.HasSuffix(parent, string(filepath.Separator)) {
		return parent + child
	}
	return parent + string(filepath.Separator) + child
}
