// Package vfs models the simulated filesystems hosted by remote systems.
//
// A filesystem is a flat Map keyed by canonical path. Directories keep an
// ordered list of child paths which is the authoritative child set. Every
// structural edit is a pure function: the input map is never mutated and a
// no-op hands the input back with changed == false.
package vfs

import (
	"fmt"
	"strings"
	"unicode"
)

// Root is the canonical path of the filesystem root.
const Root = "/"

// NormalizePath canonicalizes an arbitrary path string. Backslashes become
// slashes, repeated slashes collapse, a single leading slash is forced and
// trailing slashes and blanks are dropped. Empty or whitespace-only input maps
// to the root.
func NormalizePath(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Root
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	var builder strings.Builder
	builder.Grow(len(trimmed) + 1)
	builder.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
			builder.WriteByte(c)
			continue
		}
		prevSlash = false
		builder.WriteByte(c)
	}
	out := strings.TrimRightFunc(builder.String(), func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
	if out == "" {
		return Root
	}
	return out
}

// ParentPath returns the directory containing path. The root is its own parent.
func ParentPath(path string) string {
	normalized := NormalizePath(path)
	if normalized == Root {
		return Root
	}
	idx := strings.LastIndexByte(normalized, '/')
	if idx <= 0 {
		return Root
	}
	return normalized[:idx]
}

// BaseName returns the final segment of path, or "/" for the root.
func BaseName(path string) string {
	normalized := NormalizePath(path)
	if normalized == Root {
		return Root
	}
	return normalized[strings.LastIndexByte(normalized, '/')+1:]
}

// JoinPath builds a child path from a parent path and a name.
func JoinPath(parent, name string) string {
	parent = NormalizePath(parent)
	if parent == Root {
		return NormalizePath("/" + name)
	}
	return NormalizePath(parent + "/" + name)
}

// Resolve interprets p relative to cwd, honouring "." and ".." segments.
// Absolute inputs ignore cwd. ".." never climbs above the root.
func Resolve(cwd, p string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	base := NormalizePath(cwd)
	if strings.HasPrefix(trimmed, "/") {
		base = Root
	}
	segments := make([]string, 0, 8)
	if base != Root {
		segments = append(segments, strings.Split(strings.TrimPrefix(base, "/"), "/")...)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, segment)
		}
	}
	return NormalizePath("/" + strings.Join(segments, "/"))
}

// IsWithin reports whether path equals ancestor or lies beneath it.
func IsWithin(path, ancestor string) bool {
	path = NormalizePath(path)
	ancestor = NormalizePath(ancestor)
	if ancestor == Root || path == ancestor {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}

// ValidateSegment checks a single file or directory name supplied by a player.
func ValidateSegment(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("name %q is reserved", trimmed)
	}
	if strings.ContainsAny(trimmed, "/\\") {
		return fmt.Errorf("name cannot contain path separators")
	}
	if len(trimmed) > 255 {
		return fmt.Errorf("name must be 255 characters or fewer")
	}
	return nil
}

func ancestors(path string) []string {
	normalized := NormalizePath(path)
	if normalized == Root {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(normalized, "/"), "/")
	out := make([]string, 0, len(parts))
	current := ""
	for _, part := range parts[:len(parts)-1] {
		current += "/" + part
		out = append(out, current)
	}
	return out
}

func rebase(path, from, to string) string {
	if path == from {
		return to
	}
	return to + path[len(from):]
}
