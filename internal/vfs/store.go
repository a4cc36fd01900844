package vfs

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CreateEmpty returns a filesystem holding only the root directory.
func CreateEmpty() Map {
	root := NewDir(Root)
	return Map{Root: &root}
}

// Clone deep-copies m. A missing root is repaired rather than reported.
func Clone(m Map) Map {
	out := make(Map, len(m)+1)
	for key, node := range m {
		if node == nil {
			continue
		}
		out[key] = node.clone()
	}
	if root, ok := out[Root]; !ok || root == nil || root.Type != DirNode {
		repaired := NewDir(Root)
		if ok && root != nil {
			repaired.Children = root.Children
		}
		out[Root] = &repaired
	}
	return out
}

// ListChildPaths returns the children of parent in display order. The
// directory's recorded children are authoritative; a directory with none
// recorded falls back to a structural scan sorted by path.
func ListChildPaths(m Map, parent string) []string {
	parent = NormalizePath(parent)
	node, ok := m[parent]
	if !ok || !node.IsDir() {
		return nil
	}
	if len(node.Children) > 0 {
		out := make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			if _, present := m[child]; present {
				out = append(out, child)
			}
		}
		return out
	}
	return scanChildren(m, parent)
}

func scanChildren(m Map, parent string) []string {
	var out []string
	for key := range m {
		if key == Root || key == parent {
			continue
		}
		if ParentPath(key) == parent {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// editor clones its source lazily so untouched maps are handed back as-is.
type editor struct {
	src Map
	out Map
}

func (e *editor) view() Map {
	if e.out != nil {
		return e.out
	}
	return e.src
}

func (e *editor) edit() Map {
	if e.out == nil {
		e.out = Clone(e.src)
	}
	return e.out
}

func (e *editor) result() (Map, bool) {
	if e.out == nil {
		return e.src, false
	}
	return e.out, true
}

func (e *editor) ensureRoot() {
	if root, ok := e.view()[Root]; !ok || !root.IsDir() {
		e.edit()
	}
}

func (e *editor) link(parent, child string) {
	node := e.view()[parent]
	if node == nil || slices.Contains(node.Children, child) {
		return
	}
	node = e.edit()[parent]
	node.Children = append(node.Children, child)
}

// scaffold makes dir and every ancestor exist as linked directories. It stops
// at the first ancestor occupied by a file.
func (e *editor) scaffold(dir string) bool {
	e.ensureRoot()
	chain := append(ancestors(dir), dir)
	if dir == Root {
		return true
	}
	for _, current := range chain {
		existing, ok := e.view()[current]
		if ok && !existing.IsDir() {
			return false
		}
		if !ok {
			node := NewDir(current)
			e.edit()[current] = &node
		}
		e.link(ParentPath(current), current)
	}
	return true
}

// ScaffoldDirectories ensures each path and all of its ancestors exist as
// directories referenced by their parents. Existing nodes are never removed.
func ScaffoldDirectories(m Map, paths []string) (Map, bool) {
	e := &editor{src: m}
	for _, p := range paths {
		e.scaffold(NormalizePath(p))
	}
	return e.result()
}

// Insert adds node under its parent directory. The node starts without
// children. Inserting over an existing path, at the root, or below a missing
// or non-directory parent changes nothing.
func Insert(m Map, node Node) (Map, bool) {
	path := NormalizePath(node.Path)
	if path == Root {
		return m, false
	}
	if _, exists := m[path]; exists {
		return m, false
	}
	parent := ParentPath(path)
	if p, ok := m[parent]; !ok || !p.IsDir() {
		return m, false
	}
	if node.Type != DirNode {
		node.Type = FileNode
	}
	inserted := node
	inserted.Path = path
	inserted.Name = BaseName(path)
	inserted.Children = nil
	inserted.Tags = slices.Clone(node.Tags)
	if node.LogOptions != nil {
		opts := *node.LogOptions
		inserted.LogOptions = &opts
	}
	if inserted.Type == DirNode {
		inserted.Content = ""
	}

	e := &editor{src: m}
	out := e.edit()
	out[path] = &inserted
	e.link(parent, path)
	return e.result()
}

// Rename gives the node at path a new name inside the same directory. The
// parent's child entry keeps its position.
func Rename(m Map, path, newName string) (Map, bool) {
	if ValidateSegment(newName) != nil {
		return m, false
	}
	path = NormalizePath(path)
	if path == Root {
		return m, false
	}
	target := JoinPath(ParentPath(path), strings.TrimSpace(newName))
	return relocate(m, path, target)
}

// Move re-parents the node at path under newParent, keeping its name.
func Move(m Map, path, newParent string) (Map, bool) {
	path = NormalizePath(path)
	newParent = NormalizePath(newParent)
	if path == Root || IsWithin(newParent, path) {
		return m, false
	}
	if dest, ok := m[newParent]; !ok || !dest.IsDir() {
		return m, false
	}
	return relocate(m, path, JoinPath(newParent, BaseName(path)))
}

func relocate(m Map, from, to string) (Map, bool) {
	if from == to {
		return m, false
	}
	if node, ok := m[from]; !ok || node == nil {
		return m, false
	}
	for key := range m {
		if IsWithin(key, to) {
			return m, false
		}
	}
	oldParent := ParentPath(from)
	newParent := ParentPath(to)

	out := Clone(m)
	moved := make(map[string]struct{})
	for key := range m {
		if !IsWithin(key, from) {
			continue
		}
		node := out[key]
		delete(out, key)
		if node == nil {
			continue
		}
		newKey := rebase(key, from, to)
		moved[newKey] = struct{}{}
		node.Path = newKey
		node.Name = BaseName(newKey)
		for i, child := range node.Children {
			if IsWithin(child, from) {
				node.Children[i] = rebase(child, from, to)
			}
		}
		out[newKey] = node
	}
	for key, node := range out {
		if _, ok := moved[key]; ok {
			continue
		}
		if len(node.Children) == 0 {
			continue
		}
		kept := node.Children[:0]
		for _, child := range node.Children {
			if !IsWithin(child, from) {
				kept = append(kept, child)
				continue
			}
			if key == oldParent && child == from && oldParent == newParent {
				kept = append(kept, to)
			}
		}
		node.Children = dedupe(kept)
	}
	if oldParent != newParent {
		if parent := out[newParent]; parent != nil && !slices.Contains(parent.Children, to) {
			parent.Children = append(parent.Children, to)
		}
	}
	return out, true
}

// Delete removes the node at path with its whole subtree and purges every
// reference to the removed paths. The root cannot be deleted.
func Delete(m Map, path string) (Map, bool) {
	path = NormalizePath(path)
	if path == Root {
		return m, false
	}
	if _, ok := m[path]; !ok {
		return m, false
	}
	out := Clone(m)
	for key := range out {
		if IsWithin(key, path) {
			delete(out, key)
		}
	}
	for _, node := range out {
		if len(node.Children) == 0 {
			continue
		}
		kept := node.Children[:0]
		for _, child := range node.Children {
			if !IsWithin(child, path) {
				kept = append(kept, child)
			}
		}
		node.Children = kept
	}
	return out, true
}

// Write replaces the content of the file at path.
func Write(m Map, path, content string) (Map, bool) {
	path = NormalizePath(path)
	node, ok := m[path]
	if !ok || node == nil || node.Type != FileNode || node.Content == content {
		return m, false
	}
	e := &editor{src: m}
	e.edit()[path].Content = content
	return e.result()
}

// AppendLine appends a line to the file at path. Files with log options keep
// at most MaxEntries lines, dropping the oldest.
func AppendLine(m Map, path, line string) (Map, bool) {
	path = NormalizePath(path)
	node, ok := m[path]
	if !ok || node == nil || node.Type != FileNode {
		return m, false
	}
	content := node.Content
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += line
	if node.LogOptions != nil && node.LogOptions.MaxEntries > 0 {
		lines := strings.Split(content, "\n")
		if extra := len(lines) - node.LogOptions.MaxEntries; extra > 0 {
			lines = lines[extra:]
		}
		content = strings.Join(lines, "\n")
	}
	return Write(m, path, content)
}

// Merge overlays override onto base. Each path present in override replaces
// the base node wholesale; paths only in override are added as they are. The
// caller links additive paths to their parents with Attach.
func Merge(base, override Map) Map {
	out := Clone(base)
	for key, node := range override {
		if node == nil {
			continue
		}
		path := NormalizePath(key)
		replacement := node.clone()
		replacement.Path = path
		out[path] = replacement
	}
	if len(override) > 0 {
		if root := out[Root]; root == nil || !root.IsDir() {
			return Clone(out)
		}
	}
	return out
}

// Attach links the node at path into the tree, scaffolding any missing
// ancestor directories and adding path to its parent's children.
func Attach(m Map, path string) (Map, bool) {
	path = NormalizePath(path)
	if path == Root {
		return m, false
	}
	if _, ok := m[path]; !ok {
		return m, false
	}
	e := &editor{src: m}
	parent := ParentPath(path)
	if !e.scaffold(parent) {
		return m, false
	}
	e.link(parent, path)
	return e.result()
}

// Unlinked lists the non-root paths whose parent is missing or does not
// reference them, sorted by path.
func Unlinked(m Map) []string {
	var out []string
	for key := range m {
		if key == Root {
			continue
		}
		parent, ok := m[ParentPath(key)]
		if !ok || parent == nil || !slices.Contains(parent.Children, key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Canonicalize rewrites a decoded map into canonical form: keys and child
// references are normalized, node paths and names follow their keys, child
// lists are deduplicated and the root is present.
func Canonicalize(m Map) Map {
	out := make(Map, len(m)+1)
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		node := m[key]
		if node == nil {
			continue
		}
		path := NormalizePath(key)
		copied := node.clone()
		copied.Path = path
		copied.Name = BaseName(path)
		if copied.Type != DirNode {
			copied.Type = FileNode
			copied.Children = nil
		}
		for i, child := range copied.Children {
			copied.Children[i] = NormalizePath(child)
		}
		copied.Children = dedupe(copied.Children)
		out[path] = copied
	}
	return Clone(out)
}

// Warning is a non-fatal structural problem found by Validate.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

// Validate reports structural problems without repairing them.
func Validate(m Map) []Warning {
	var warnings []Warning
	if root, ok := m[Root]; !ok || !root.IsDir() {
		warnings = append(warnings, Warning{Path: Root, Message: "missing root directory"})
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		node := m[key]
		if node == nil {
			warnings = append(warnings, Warning{Path: key, Message: "nil node"})
			continue
		}
		if key != Root {
			if _, ok := m[ParentPath(key)]; !ok {
				warnings = append(warnings, Warning{Path: key, Message: "parent directory is missing"})
			}
		}
		if !node.IsDir() {
			if len(node.Children) > 0 {
				warnings = append(warnings, Warning{Path: key, Message: "file lists children"})
			}
			continue
		}
		for _, child := range node.Children {
			if _, ok := m[child]; !ok {
				warnings = append(warnings, Warning{Path: key, Message: fmt.Sprintf("child %s does not exist", child)})
			}
		}
		if len(node.Children) == 0 && len(scanChildren(m, key)) > 0 {
			warnings = append(warnings, Warning{Path: key, Message: "directory has no recorded children; listing falls back to a scan"})
		}
	}
	return warnings
}
