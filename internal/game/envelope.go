package game

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// EnvelopeVersion is the layout written by Snapshot.
const EnvelopeVersion = 1

// Envelope is the persisted form of a player's state. Sections are keyed so
// several features can share one document; keys this package does not own
// are carried through untouched.
type Envelope struct {
	Version int                        `json:"version"`
	Desktop map[string]json.RawMessage `json:"desktop"`
	Story   map[string]json.RawMessage `json:"story"`
}

// SnapshotKeys names the sections a desktop writes.
type SnapshotKeys struct {
	Systems  string
	Terminal string
	Mail     string
	Quests   string
}

// DefaultSnapshotKeys returns the keys used by the server.
func DefaultSnapshotKeys() SnapshotKeys {
	return SnapshotKeys{
		Systems:  "terminality.systems",
		Terminal: "terminality.terminal",
		Mail:     "terminality.mail",
		Quests:   "terminality.quests",
	}
}

type hostSnapshot struct {
	SystemID   string          `json:"systemId"`
	Filesystem vfs.Map         `json:"filesystem"`
	Security   *security.State `json:"security"`
}

type terminalSnapshot struct {
	QuestID    string `json:"questId,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
	SystemID   string `json:"systemId,omitempty"`
	DoorID     string `json:"doorId,omitempty"`
	Via        string `json:"via,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cwd        string `json:"cwd,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
}

// Snapshot writes the session into a copy of base under keys. A nil base
// reuses the envelope the session was hydrated from. Only systems the player
// has touched are stored.
func (d *Desktop) Snapshot(keys SnapshotKeys, base *Envelope) (*Envelope, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	env := &Envelope{
		Version: EnvelopeVersion,
		Desktop: make(map[string]json.RawMessage),
		Story:   make(map[string]json.RawMessage),
	}
	if base == nil {
		base = d.loaded
	}
	if base != nil {
		maps.Copy(env.Desktop, base.Desktop)
		maps.Copy(env.Story, base.Story)
	}

	hosts := make([]hostSnapshot, 0, len(d.hosts))
	for _, h := range d.hosts {
		if !h.touched {
			continue
		}
		hosts = append(hosts, hostSnapshot{SystemID: h.Def.ID, Filesystem: h.FS, Security: h.Security})
	}
	term := terminalSnapshot{
		QuestID:    d.context.QuestID,
		TemplateID: d.context.TemplateID,
		InstanceID: d.context.InstanceID,
		Outcome:    d.outcome,
	}
	if d.conn != nil {
		term.SystemID = d.conn.host.Def.ID
		term.DoorID = d.conn.doorID
		term.Via = d.conn.via.ip
		term.Port = d.conn.port
		term.Cwd = d.conn.cwd
	}
	sections := []struct {
		into  map[string]json.RawMessage
		key   string
		value any
	}{
		{env.Desktop, keys.Systems, hosts},
		{env.Desktop, keys.Terminal, term},
		{env.Desktop, keys.Mail, d.mail.Messages()},
		{env.Story, keys.Quests, d.quests.State()},
	}
	for _, s := range sections {
		if s.key == "" {
			continue
		}
		data, err := json.Marshal(s.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.key, err)
		}
		s.into[s.key] = data
	}
	return env, nil
}

func decodeSection(section map[string]json.RawMessage, key string, out any) (bool, error) {
	if key == "" {
		return false, nil
	}
	raw, ok := section[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Hydrate restores what it can from env. A section that fails to decode is
// skipped and reported; the rest still loads.
func (d *Desktop) Hydrate(env *Envelope, keys SnapshotKeys) []string {
	if env == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if env.Version > EnvelopeVersion {
		return []string{fmt.Sprintf("envelope version %d is newer than %d; ignored", env.Version, EnvelopeVersion)}
	}
	d.loaded = env
	var warnings []string
	skip := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	var term terminalSnapshot
	hasTerm, err := decodeSection(env.Desktop, keys.Terminal, &term)
	if err != nil {
		skip(keys.Terminal, err)
		hasTerm = false
	}
	if hasTerm {
		ctx := systems.Context{QuestID: term.QuestID, TemplateID: term.TemplateID, InstanceID: term.InstanceID}
		if ctx != d.context {
			if err := d.applyContext(ctx); err != nil {
				skip(keys.Terminal, err)
			}
		}
		if term.Outcome != "" {
			d.outcome = term.Outcome
		}
	}

	var hosts []hostSnapshot
	if _, err := decodeSection(env.Desktop, keys.Systems, &hosts); err != nil {
		skip(keys.Systems, err)
		hosts = nil
	}
	for _, snap := range hosts {
		h := d.hostByID(snap.SystemID)
		if h == nil {
			warnings = append(warnings, fmt.Sprintf("%s: unknown system %q skipped", keys.Systems, snap.SystemID))
			continue
		}
		if snap.Filesystem != nil {
			h.FS = vfs.Canonicalize(snap.Filesystem)
		}
		h.Security = snap.Security
		if h.Security == nil {
			h.Security = security.NewState(h.Def.ID)
		}
		h.Security.SystemID = h.Def.ID
		h.doors = security.EvaluateDoors(h.Def.Doors, h.Security)
		h.touched = true
	}

	if hasTerm && term.SystemID != "" {
		if h := d.hostByID(term.SystemID); h != nil && h.touched {
			cwd := startDir(h)
			if node, ok := vfs.Lookup(h.FS, term.Cwd); ok && node.IsDir() {
				cwd = vfs.NormalizePath(term.Cwd)
			}
			d.conn = &connection{host: h, via: h.routeFor(term.Via), doorID: term.DoorID, port: term.Port, cwd: cwd}
		}
	}

	var messages []MailMessage
	if ok, err := decodeSection(env.Desktop, keys.Mail, &messages); err != nil {
		skip(keys.Mail, err)
	} else if ok {
		d.mail.restore(messages)
	}

	var state quests.State
	if ok, err := decodeSection(env.Story, keys.Quests, &state); err != nil {
		skip(keys.Quests, err)
	} else if ok {
		d.quests = quests.NewTracker(d.quests.Machine(), &state, d.mail, d.signals)
	}
	for _, w := range warnings {
		d.log.Warn("desktop hydrate skipped section", logging.String("warning", w))
	}
	return warnings
}
