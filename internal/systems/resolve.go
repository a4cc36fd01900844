package systems

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// ErrExtendsCycle reports an extendsSystemId chain that loops back on itself.
var ErrExtendsCycle = errors.New("extendsSystemId cycle")

// Warning is a non-fatal problem found while resolving or validating.
type Warning struct {
	SystemID string
	Message  string
}

func (w Warning) String() string {
	if w.SystemID == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.SystemID, w.Message)
}

// matchesContext reports whether a scoped definition applies to ctx.
func matchesContext(def Definition, ctx Context) bool {
	if !def.Scope.Scoped() || def.AppliesTo == nil {
		return false
	}
	return def.AppliesTo.Matches(ctx)
}

// ResolveForContext folds every context-matching override onto its global
// base. The result lists the folded bases in input order followed by the
// matching standalone scoped definitions. Every returned definition is a
// fresh copy with a concrete filesystem. The only error is ErrExtendsCycle.
func ResolveForContext(defs []Definition, ctx Context) ([]Definition, []Warning, error) {
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if _, exists := byID[def.ID]; !exists {
			byID[def.ID] = def
		}
	}

	var (
		warnings   []Warning
		bases      []Definition
		standalone []Definition
		groups     = make(map[string][]Definition)
	)
	for _, def := range defs {
		if !def.Scope.Scoped() {
			bases = append(bases, def)
			continue
		}
		if !matchesContext(def, ctx) {
			continue
		}
		if def.ExtendsSystemID == "" {
			standalone = append(standalone, def)
			continue
		}
		baseID, err := findBase(def, byID)
		if err != nil {
			return nil, warnings, err
		}
		if baseID == "" {
			warnings = append(warnings, Warning{
				SystemID: def.ID,
				Message:  fmt.Sprintf("extends %q which reaches no global system; treated as standalone", def.ExtendsSystemID),
			})
			standalone = append(standalone, def)
			continue
		}
		groups[baseID] = append(groups[baseID], def)
	}

	out := make([]Definition, 0, len(bases)+len(standalone))
	for _, base := range bases {
		acc, fsWarnings := concrete(base)
		warnings = append(warnings, fsWarnings...)
		group := groups[base.ID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Scope.Priority() < group[j].Scope.Priority()
		})
		for _, override := range group {
			var mergeWarnings []Warning
			acc, mergeWarnings = MergeDefinitions(acc, override)
			warnings = append(warnings, mergeWarnings...)
		}
		// A duplicated base id only receives the overrides once.
		delete(groups, base.ID)
		out = append(out, acc)
	}
	for _, def := range standalone {
		resolved, fsWarnings := concrete(def)
		warnings = append(warnings, fsWarnings...)
		out = append(out, resolved)
	}
	return out, warnings, nil
}

// findBase walks the extends chain from def to a global definition. It returns
// "" when the chain ends without reaching one.
func findBase(def Definition, byID map[string]Definition) (string, error) {
	visited := []string{def.ID}
	current := def
	for {
		next, ok := byID[current.ExtendsSystemID]
		if !ok {
			return "", nil
		}
		for _, seen := range visited {
			if seen == next.ID {
				return "", fmt.Errorf("%w: %s -> %s", ErrExtendsCycle, strings.Join(visited, " -> "), next.ID)
			}
		}
		if !next.Scope.Scoped() {
			return next.ID, nil
		}
		if next.ExtendsSystemID == "" {
			return "", nil
		}
		visited = append(visited, next.ID)
		current = next
	}
}

// concrete copies def with its own overlay applied and linked.
func concrete(def Definition) (Definition, []Warning) {
	out := def.Clone()
	out.SyncIdentity()
	snapshot := vfs.Merge(out.Filesystem.Snapshot, out.Filesystem.Overrides)
	snapshot, warnings := attachOverlay(out.ID, snapshot, out.Filesystem.Overrides)
	out.Filesystem.Snapshot = snapshot
	out.Filesystem.Overrides = nil
	return out, warnings
}

// attachOverlay links every overlay path into the merged tree.
func attachOverlay(systemID string, merged, overlay vfs.Map) (vfs.Map, []Warning) {
	if len(overlay) == 0 {
		return merged, nil
	}
	paths := make([]string, 0, len(overlay))
	for path := range overlay {
		paths = append(paths, vfs.NormalizePath(path))
	}
	sort.Strings(paths)

	var warnings []Warning
	for _, path := range paths {
		if path == vfs.Root {
			continue
		}
		parent := vfs.ParentPath(path)
		if _, ok := merged[parent]; !ok {
			warnings = append(warnings, Warning{
				SystemID: systemID,
				Message:  fmt.Sprintf("override %s has no parent directory; scaffolded %s", path, parent),
			})
		}
		merged, _ = vfs.Attach(merged, path)
	}
	return merged, warnings
}

// MergeDefinitions applies override on top of acc. Fields set on the override
// win; scope, kind and identity stay with acc.
func MergeDefinitions(acc, override Definition) (Definition, []Warning) {
	out := acc.Clone()
	ov := override.Clone()

	if ov.Name != "" {
		out.Name = ov.Name
		out.Label = ov.Name
	}
	if ov.Label != "" {
		out.Label = ov.Label
		out.Name = ov.Label
	}

	if ov.Network.PrimaryIP != "" {
		out.Network.PrimaryIP = ov.Network.PrimaryIP
	}
	if len(ov.Network.IPs) > 0 {
		out.Network.IPs = ov.Network.IPs
	}
	if len(ov.Network.Hostnames) > 0 {
		out.Network.Hostnames = ov.Network.Hostnames
	}

	if ov.Credentials.Username != "" {
		out.Credentials.Username = ov.Credentials.Username
	}
	if ov.Credentials.StartPath != "" {
		out.Credentials.StartPath = ov.Credentials.StartPath
	}
	if ov.Credentials.Password != "" || ov.Credentials.PasswordHash != "" {
		out.Credentials.Password = ov.Credentials.Password
		out.Credentials.PasswordHash = ov.Credentials.PasswordHash
	}

	if len(ov.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(ov.Metadata))
		}
		maps.Copy(out.Metadata, ov.Metadata)
	}

	overlay := ov.Filesystem.Overrides
	if len(overlay) == 0 {
		overlay = ov.Filesystem.Snapshot
	}
	merged := vfs.Merge(out.Filesystem.Snapshot, overlay)
	merged, warnings := attachOverlay(out.ID, merged, overlay)
	out.Filesystem.Snapshot = merged
	out.Filesystem.Overrides = nil
	if ov.Filesystem.RootPath != "" {
		out.Filesystem.RootPath = ov.Filesystem.RootPath
	}
	if ov.Filesystem.TemplateKey != "" {
		out.Filesystem.TemplateKey = ov.Filesystem.TemplateKey
	}
	if ov.Filesystem.ReadOnly != nil {
		out.Filesystem.ReadOnly = ov.Filesystem.ReadOnly
	}

	if ov.Tools != nil {
		out.Tools = ov.Tools
	}
	if ov.Host != nil {
		out.Host = ov.Host
	}
	if ov.AppliesTo != nil {
		out.AppliesTo = ov.AppliesTo
	}
	if ov.Doors != nil {
		out.Doors = ov.Doors
	}
	if ov.SecurityRules != nil {
		rules := ov.SecurityRules.Clone()
		out.SecurityRules = &rules
	}
	return out, warnings
}
