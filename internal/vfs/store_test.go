package vfs

import (
	"reflect"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func sameMap(a, b Map) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func buildTree(t *testing.T) Map {
	t.Helper()
	m, _ := ScaffoldDirectories(CreateEmpty(), []string{"/a/c", "/var/logs", "/home/ghost"})
	m, ok := Insert(m, NewFile("/var/logs/evidence.log", "access granted", TagEvidence, TagLog))
	if !ok {
		t.Fatalf("Insert evidence.log reported no change")
	}
	m, ok = Insert(m, NewFile("/a/c/notes.txt", "todo"))
	if !ok {
		t.Fatalf("Insert notes.txt reported no change")
	}
	return m
}

func referencesWithin(m Map, prefix string) []string {
	var out []string
	for key, node := range m {
		for _, child := range node.Children {
			if IsWithin(child, prefix) {
				out = append(out, key+" -> "+child)
			}
		}
	}
	return out
}

func TestCreateEmpty(t *testing.T) {
	m := CreateEmpty()
	if len(m) != 1 {
		t.Fatalf("len(CreateEmpty()) = %d, want 1", len(m))
	}
	if root := m[Root]; !root.IsDir() || root.Path != Root {
		t.Fatalf("root = %+v, want directory at /", root)
	}
}

func TestCloneRepairsRoot(t *testing.T) {
	file := NewFile("/motd", "hi")
	cloned := Clone(Map{"/motd": &file})
	if root, ok := cloned[Root]; !ok || !root.IsDir() {
		t.Fatalf("Clone did not repair missing root")
	}
	if cloned["/motd"] == &file {
		t.Fatalf("Clone shared node pointer")
	}
}

func TestCloneProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("clone is structurally equal without shared nodes", prop.ForAll(
		func(names []string) bool {
			m := CreateEmpty()
			for i, name := range names {
				dir := JoinPath("/"+name, name)
				m, _ = ScaffoldDirectories(m, []string{dir})
				if i%2 == 0 {
					m, _ = Insert(m, NewFile(JoinPath(dir, "f.txt"), name, TagSensitive))
				}
			}
			cloned := Clone(m)
			if diff := cmp.Diff(m, cloned); diff != "" {
				t.Logf("clone mismatch (-want +got):\n%s", diff)
				return false
			}
			for key, node := range m {
				if cloned[key] == node {
					return false
				}
				if len(node.Children) > 0 && &cloned[key].Children[0] == &node.Children[0] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestScaffoldDirectories(t *testing.T) {
	m, changed := ScaffoldDirectories(CreateEmpty(), []string{"/var/logs/archive"})
	if !changed {
		t.Fatalf("ScaffoldDirectories reported no change")
	}
	for _, want := range []string{"/var", "/var/logs", "/var/logs/archive"} {
		if node, ok := m[want]; !ok || !node.IsDir() {
			t.Fatalf("missing directory %s", want)
		}
	}
	if got := m["/var"].Children; !slices.Equal(got, []string{"/var/logs"}) {
		t.Fatalf("/var children = %v, want [/var/logs]", got)
	}

	again, changed := ScaffoldDirectories(m, []string{"/var/logs", "var/logs/archive/"})
	if changed || !sameMap(again, m) {
		t.Fatalf("second scaffold should be a no-op")
	}
}

func TestScaffoldStopsAtFile(t *testing.T) {
	m, _ := Insert(CreateEmpty(), NewFile("/etc", "not a dir"))
	out, _ := ScaffoldDirectories(m, []string{"/etc/ssh"})
	if _, ok := out["/etc/ssh"]; ok {
		t.Fatalf("scaffold created a directory below a file")
	}
	if out["/etc"].Type != FileNode {
		t.Fatalf("scaffold replaced an existing file")
	}
}

func TestInsertNoOps(t *testing.T) {
	m := buildTree(t)
	cases := []Node{
		NewFile("/var/logs/evidence.log", "dup"),
		NewFile("/missing/file", "x"),
		NewFile("/var/logs/evidence.log/child", "x"),
		NewDir("/"),
	}
	for _, node := range cases {
		out, changed := Insert(m, node)
		if changed || !sameMap(out, m) {
			t.Fatalf("Insert(%s) should be a no-op", node.Path)
		}
	}
}

func TestInsertDoesNotMutateInput(t *testing.T) {
	m := buildTree(t)
	before := Clone(m)
	out, changed := Insert(m, NewDir("/tmp"))
	if !changed {
		t.Fatalf("Insert reported no change")
	}
	if diff := cmp.Diff(before, m); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
	if !slices.Contains(out[Root].Children, "/tmp") {
		t.Fatalf("root children = %v, want /tmp", out[Root].Children)
	}
}

func TestRenameDirectory(t *testing.T) {
	m := buildTree(t)
	before := Clone(m)
	out, changed := Rename(m, "/a", "b")
	if !changed {
		t.Fatalf("Rename reported no change")
	}
	if diff := cmp.Diff(before, m); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
	for _, gone := range []string{"/a", "/a/c", "/a/c/notes.txt"} {
		if _, ok := out[gone]; ok {
			t.Fatalf("%s still present after rename", gone)
		}
	}
	b, ok := out["/b"]
	if !ok || b.Name != "b" {
		t.Fatalf("/b = %+v, want renamed directory", b)
	}
	if !slices.Equal(b.Children, []string{"/b/c"}) {
		t.Fatalf("/b children = %v, want [/b/c]", b.Children)
	}
	if got := out["/b/c"].Children; !slices.Equal(got, []string{"/b/c/notes.txt"}) {
		t.Fatalf("/b/c children = %v", got)
	}
	if refs := referencesWithin(out, "/a"); len(refs) > 0 {
		t.Fatalf("dangling references to /a: %v", refs)
	}
	if idx := slices.Index(out[Root].Children, "/b"); idx != slices.Index(m[Root].Children, "/a") {
		t.Fatalf("rename moved the entry within the parent: %v", out[Root].Children)
	}
}

func TestRenamePurgesDanglingReferences(t *testing.T) {
	m := buildTree(t)
	m["/home/ghost"].Children = append(m["/home/ghost"].Children, "/a/c")
	out, _ := Rename(m, "/a", "b")
	if refs := referencesWithin(out, "/a"); len(refs) > 0 {
		t.Fatalf("dangling references to /a: %v", refs)
	}
}

func TestRenameNoOps(t *testing.T) {
	m := buildTree(t)
	for _, tc := range []struct{ path, name string }{
		{"/missing", "x"},
		{"/a", "var"},
		{"/a", "a"},
		{"/a", "x/y"},
		{"/", "root"},
	} {
		out, changed := Rename(m, tc.path, tc.name)
		if changed || !sameMap(out, m) {
			t.Fatalf("Rename(%s, %s) should be a no-op", tc.path, tc.name)
		}
	}
}

func TestMove(t *testing.T) {
	m := buildTree(t)
	out, changed := Move(m, "/a/c", "/home/ghost")
	if !changed {
		t.Fatalf("Move reported no change")
	}
	if _, ok := out["/home/ghost/c/notes.txt"]; !ok {
		t.Fatalf("descendant not rewritten")
	}
	if slices.Contains(out["/a"].Children, "/a/c") {
		t.Fatalf("old parent still references moved node")
	}
	if !slices.Contains(out["/home/ghost"].Children, "/home/ghost/c") {
		t.Fatalf("new parent children = %v", out["/home/ghost"].Children)
	}

	if out, changed := Move(m, "/a", "/a/c"); changed || !sameMap(out, m) {
		t.Fatalf("moving a directory into itself should be a no-op")
	}
	if out, changed := Move(m, "/a", "/var/logs/evidence.log"); changed || !sameMap(out, m) {
		t.Fatalf("moving under a file should be a no-op")
	}
}

func TestDelete(t *testing.T) {
	m := buildTree(t)
	out, changed := Delete(m, "/a")
	if !changed {
		t.Fatalf("Delete reported no change")
	}
	for key := range out {
		if IsWithin(key, "/a") {
			t.Fatalf("%s survived subtree delete", key)
		}
	}
	if refs := referencesWithin(out, "/a"); len(refs) > 0 {
		t.Fatalf("dangling references: %v", refs)
	}
	if _, ok := m["/a/c/notes.txt"]; !ok {
		t.Fatalf("input mutated by Delete")
	}
	if out, changed := Delete(m, "/"); changed || !sameMap(out, m) {
		t.Fatalf("deleting root should be a no-op")
	}
	if out, changed := Delete(m, "/nope"); changed || !sameMap(out, m) {
		t.Fatalf("deleting a missing path should be a no-op")
	}
}

func TestWriteAndAppendLine(t *testing.T) {
	m := buildTree(t)
	if out, changed := Write(m, "/var/logs/evidence.log", "access granted"); changed || !sameMap(out, m) {
		t.Fatalf("writing identical content should be a no-op")
	}
	if out, changed := Write(m, "/var/logs", "x"); changed || !sameMap(out, m) {
		t.Fatalf("writing to a directory should be a no-op")
	}

	logFile := NewFile("/var/logs/auth.log", "")
	logFile.LogOptions = &LogOptions{RecordConnections: true, MaxEntries: 2}
	m, _ = Insert(m, logFile)
	for _, line := range []string{"one", "two", "three"} {
		m, _ = AppendLine(m, "/var/logs/auth.log", line)
	}
	if got := m["/var/logs/auth.log"].Content; got != "two\nthree" {
		t.Fatalf("log content = %q, want last two entries", got)
	}
}

func TestListChildPaths(t *testing.T) {
	m := buildTree(t)
	if got := ListChildPaths(m, "/var"); !slices.Equal(got, []string{"/var/logs"}) {
		t.Fatalf("ListChildPaths(/var) = %v", got)
	}

	partial := Map{
		"/":        {Type: DirNode, Name: "/", Path: "/"},
		"/zeta":    {Type: FileNode, Name: "zeta", Path: "/zeta"},
		"/alpha":   {Type: DirNode, Name: "alpha", Path: "/alpha"},
		"/alpha/x": {Type: FileNode, Name: "x", Path: "/alpha/x"},
	}
	if got := ListChildPaths(partial, "/"); !slices.Equal(got, []string{"/alpha", "/zeta"}) {
		t.Fatalf("fallback scan = %v, want sorted direct children", got)
	}

	partial["/"].Children = []string{"/zeta", "/ghost"}
	if got := ListChildPaths(partial, "/"); !slices.Equal(got, []string{"/zeta"}) {
		t.Fatalf("recorded children = %v, want filtered to present keys", got)
	}
	if got := ListChildPaths(partial, "/zeta"); got != nil {
		t.Fatalf("files have no children, got %v", got)
	}
}

func TestMergeEmptyOverrideClonesBase(t *testing.T) {
	base := buildTree(t)
	merged := Merge(base, Map{})
	if diff := cmp.Diff(base, merged); diff != "" {
		t.Fatalf("Merge with empty override differs (-base +merged):\n%s", diff)
	}
	for key, node := range base {
		if merged[key] == node {
			t.Fatalf("Merge shared node %s with base", key)
		}
	}
}

func TestMergeReplacesWholesale(t *testing.T) {
	base := buildTree(t)
	replacement := NewFile("/var/logs/evidence.log", "wiped")
	added := NewFile("/opt/payload.bin", "0101", TagTrap)
	merged := Merge(base, Map{
		"/var/logs/evidence.log": &replacement,
		"/opt/payload.bin":       &added,
	})
	got := merged["/var/logs/evidence.log"]
	if got.Content != "wiped" || len(got.Tags) != 0 {
		t.Fatalf("evidence.log = %+v, want wholesale replacement", got)
	}
	if _, ok := merged["/opt/payload.bin"]; !ok {
		t.Fatalf("additive override path missing")
	}
	if _, ok := merged["/opt"]; ok {
		t.Fatalf("merge should not scaffold parents itself")
	}

	linked, changed := Attach(merged, "/opt/payload.bin")
	if !changed {
		t.Fatalf("Attach reported no change")
	}
	if !slices.Contains(linked["/opt"].Children, "/opt/payload.bin") || !slices.Contains(linked[Root].Children, "/opt") {
		t.Fatalf("Attach did not link parent chain")
	}
	if len(Unlinked(linked)) != 0 {
		t.Fatalf("Unlinked = %v, want none", Unlinked(linked))
	}
}

func TestCanonicalizeAndValidate(t *testing.T) {
	raw := Map{
		"home\\":       {Type: DirNode, Children: []string{"home/ghost", "/home/ghost/"}},
		"/home/ghost":  {Type: DirNode},
		"/orphan/file": {Type: "blob"},
	}
	m := Canonicalize(raw)
	if got := m["/home"].Children; !slices.Equal(got, []string{"/home/ghost"}) {
		t.Fatalf("children = %v, want deduplicated canonical list", got)
	}
	if m["/orphan/file"].Type != FileNode || m["/orphan/file"].Name != "file" {
		t.Fatalf("unknown node type not coerced to file: %+v", m["/orphan/file"])
	}

	warnings := Validate(m)
	messages := make(map[string]bool)
	for _, w := range warnings {
		messages[w.String()] = true
	}
	for _, want := range []string{
		"/orphan/file: parent directory is missing",
		"/: directory has no recorded children; listing falls back to a scan",
	} {
		if !messages[want] {
			t.Fatalf("missing warning %q in %v", want, warnings)
		}
	}
}
