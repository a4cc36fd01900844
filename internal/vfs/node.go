package vfs

import "slices"

// NodeType distinguishes files from directories.
type NodeType string

const (
	FileNode NodeType = "file"
	DirNode  NodeType = "dir"
)

// FileTag marks a file with gameplay meaning. Unknown tags are kept verbatim.
type FileTag string

const (
	TagSensitive FileTag = "sensitive"
	TagTrap      FileTag = "trap"
	TagLog       FileTag = "log"
	TagEvidence  FileTag = "evidence"
	TagHidden    FileTag = "hidden"
)

// LogOptions turns a file into a live log that sessions append to.
type LogOptions struct {
	RecordConnections bool `json:"recordConnections,omitempty" yaml:"recordConnections,omitempty"`
	RecordCommands    bool `json:"recordCommands,omitempty" yaml:"recordCommands,omitempty"`
	MaxEntries        int  `json:"maxEntries,omitempty" yaml:"maxEntries,omitempty"`
}

// Node is a single file or directory.
type Node struct {
	Type       NodeType    `json:"type" yaml:"type"`
	Name       string      `json:"name" yaml:"name"`
	Path       string      `json:"path" yaml:"path"`
	Children   []string    `json:"children,omitempty" yaml:"children,omitempty"`
	Content    string      `json:"content,omitempty" yaml:"content,omitempty"`
	Tags       []FileTag   `json:"tags,omitempty" yaml:"tags,omitempty"`
	LogOptions *LogOptions `json:"logOptions,omitempty" yaml:"logOptions,omitempty"`
}

// Map indexes nodes by canonical path.
type Map map[string]*Node

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n != nil && n.Type == DirNode
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag FileTag) bool {
	if n == nil {
		return false
	}
	return slices.Contains(n.Tags, tag)
}

func (n *Node) clone() *Node {
	out := *n
	out.Children = slices.Clone(n.Children)
	out.Tags = slices.Clone(n.Tags)
	if n.LogOptions != nil {
		opts := *n.LogOptions
		out.LogOptions = &opts
	}
	return &out
}

// NewDir builds a directory node for path.
func NewDir(path string) Node {
	path = NormalizePath(path)
	return Node{Type: DirNode, Name: BaseName(path), Path: path}
}

// NewFile builds a file node for path.
func NewFile(path, content string, tags ...FileTag) Node {
	path = NormalizePath(path)
	return Node{
		Type:    FileNode,
		Name:    BaseName(path),
		Path:    path,
		Content: content,
		Tags:    slices.Clone(tags),
	}
}

// Lookup returns the node stored at path. The node belongs to m and must be
// treated as read-only.
func Lookup(m Map, path string) (*Node, bool) {
	node, ok := m[NormalizePath(path)]
	if !ok || node == nil {
		return nil, false
	}
	return node, true
}

func dedupe(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
