// Package catalog loads authored systems and quests from a content directory.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// DefaultContentPath is the on-disk location of bundled content.
const DefaultContentPath = "data/content"

const (
	systemsDir = "systems"
	questsDir  = "quests"
)

// Dirs lists the directories Load reads below contentPath.
func Dirs(contentPath string) []string {
	return []string{filepath.Join(contentPath, systemsDir), filepath.Join(contentPath, questsDir)}
}

// Catalog is one loaded snapshot of authored content. It is never mutated
// after Load returns.
type Catalog struct {
	Path     string
	Systems  []systems.Definition
	Quests   []quests.Quest
	Warnings []string

	machine *quests.Machine
}

// Load reads every system and quest file below contentPath. Files are read in
// name order so warnings and duplicate handling are stable.
func Load(contentPath string) (*Catalog, error) {
	c := &Catalog{Path: contentPath}
	err := eachFile(filepath.Join(contentPath, systemsDir), func(name string, data []byte) error {
		defs, err := DecodeSystems(name, data)
		if err != nil {
			return err
		}
		c.Systems = append(c.Systems, defs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = eachFile(filepath.Join(contentPath, questsDir), func(name string, data []byte) error {
		qs, err := DecodeQuests(name, data)
		if err != nil {
			return err
		}
		c.Quests = append(c.Quests, qs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := c.prepare(); err != nil {
		return nil, err
	}
	return c, nil
}

// New builds a catalog from already decoded content.
func New(defs []systems.Definition, qs []quests.Quest) (*Catalog, error) {
	c := &Catalog{Systems: defs, Quests: qs}
	if err := c.prepare(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) prepare() error {
	defs := make([]systems.Definition, len(c.Systems))
	for i, def := range c.Systems {
		def = def.Clone()
		prepareFilesystem(&def)
		if err := def.Credentials.HashPassword(); err != nil {
			return fmt.Errorf("hash password for %s: %w", def.ID, err)
		}
		defs[i] = def
	}
	for _, w := range systems.Validate(defs) {
		c.Warnings = append(c.Warnings, w.String())
	}
	for i := range defs {
		if defs[i].SecurityRules != nil {
			rules, _ := defs[i].SecurityRules.Normalize()
			defs[i].SecurityRules = &rules
		}
	}
	c.Systems = defs

	for _, w := range quests.Validate(c.Quests) {
		c.Warnings = append(c.Warnings, "quest "+w.String())
	}
	c.machine = quests.NewMachine(c.Quests)
	c.Quests = c.machine.Quests()
	return nil
}

// prepareFilesystem canonicalizes authored trees. Global snapshots always get
// a root; scoped trees are overlays and only keep a root if they author one.
func prepareFilesystem(def *systems.Definition) {
	fs := &def.Filesystem
	if !def.Scope.Scoped() {
		fs.Snapshot = vfs.Canonicalize(fs.Snapshot)
		fs.Overrides = canonicalOverlay(fs.Overrides)
		return
	}
	fs.Snapshot = canonicalOverlay(fs.Snapshot)
	fs.Overrides = canonicalOverlay(fs.Overrides)
}

func canonicalOverlay(m vfs.Map) vfs.Map {
	if len(m) == 0 {
		return nil
	}
	authoredRoot := false
	for key := range m {
		if vfs.NormalizePath(key) == vfs.Root {
			authoredRoot = true
			break
		}
	}
	out := vfs.Canonicalize(m)
	if !authoredRoot {
		delete(out, vfs.Root)
	}
	return out
}

// Machine returns the quest machine built from the catalog.
func (c *Catalog) Machine() *quests.Machine {
	return c.machine
}

// Resolve returns the concrete systems visible in ctx.
func (c *Catalog) Resolve(ctx systems.Context) ([]systems.Definition, []systems.Warning, error) {
	return systems.ResolveForContext(c.Systems, ctx)
}

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported content format")

// DecodeSystems decodes one file holding a definition or a list of them.
func DecodeSystems(name string, data []byte) ([]systems.Definition, error) {
	var defs []systems.Definition
	if err := decodeList(name, data, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// DecodeQuests decodes one file holding a quest or a list of them.
func DecodeQuests(name string, data []byte) ([]quests.Quest, error) {
	var qs []quests.Quest
	if err := decodeList(name, data, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// decodeList unmarshals data into a slice pointer. YAML is first turned into
// JSON so that the custom type checks on the decoded structs always run.
func decodeList[T any](name string, data []byte, out *[]T) error {
	raw, err := toJSON(name, data)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
	var single T
	if err := json.Unmarshal(raw, &single); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	*out = append(*out, single)
	return nil
}

func toJSON(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return data, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
}

// IsContentFile reports whether name has an authoring extension.
func IsContentFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// eachFile calls fn for every content file directly inside dir. A missing
// directory is treated as empty.
func eachFile(dir string, fn func(name string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsContentFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return err
		}
	}
	return nil
}
