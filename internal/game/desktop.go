package game

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// Session outcomes offered to completion mail conditions.
const (
	OutcomeClean  = "clean"
	OutcomeKicked = "kicked"
)

const defaultLockoutCooldown = 5 * time.Minute

// Host is one remote system as a desktop session sees it. The definition is
// a private copy and the filesystem diverges from it as the player works.
type Host struct {
	Def      systems.Definition
	FS       vfs.Map
	Security *security.State

	engine  *security.Engine
	doors   []security.DoorView
	touched bool
}

func newHost(def systems.Definition) *Host {
	fs := vfs.Clone(def.Filesystem.Snapshot)
	if len(fs) == 0 {
		fs = vfs.CreateEmpty()
	}
	h := &Host{
		Def:      def,
		FS:       fs,
		Security: security.NewState(def.ID),
		engine:   security.NewEngine(def.SecurityRules, def.Doors),
	}
	h.doors = security.EvaluateDoors(def.Doors, h.Security)
	return h
}

// Address is the address the host answers on: its primary IP when it has one.
func (h *Host) Address() string {
	if addrs := h.Def.Addresses(); len(addrs) > 0 {
		return addrs[0]
	}
	return h.Def.ID
}

func (h *Host) answersTo(target string) bool {
	folded := foldName(target)
	if folded == "" {
		return false
	}
	for _, name := range append([]string{h.Def.ID, h.Def.DisplayName()}, h.Def.Addresses()...) {
		if name != "" && foldName(name) == folded {
			return true
		}
	}
	return false
}

// route is the address a player reached a host by.
type route struct {
	ip       string
	hostname string
}

// routeFor reports which of the host's addresses target names, defaulting
// to the primary IP and first hostname.
func (h *Host) routeFor(target string) route {
	r := route{ip: h.Address()}
	if len(h.Def.Network.Hostnames) > 0 {
		r.hostname = h.Def.Network.Hostnames[0]
	}
	folded := foldName(target)
	if folded == "" {
		return r
	}
	for _, ip := range append([]string{h.Def.Network.PrimaryIP}, h.Def.Network.IPs...) {
		if ip != "" && foldName(ip) == folded {
			r.ip = ip
		}
	}
	for _, name := range h.Def.Network.Hostnames {
		if foldName(name) == folded {
			r.hostname = name
		}
	}
	return r
}

func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

type connection struct {
	host   *Host
	via    route
	doorID string
	port   int
	cwd    string
}

// DesktopOptions configures NewDesktop.
type DesktopOptions struct {
	Player   string
	Context  systems.Context
	Resolve  func(systems.Context) ([]systems.Definition, []systems.Warning, error)
	Machine  *quests.Machine
	Lockouts *security.LockoutBook
	Now      func() time.Time
	Logger   *zap.Logger
}

// Desktop is one player's terminal session: the systems they can reach,
// their trace on each, the open connection, their quest progress and inbox.
// Commands run one at a time under the desktop lock.
type Desktop struct {
	mu       sync.Mutex
	id       string
	player   string
	context  systems.Context
	resolve  func(systems.Context) ([]systems.Definition, []systems.Warning, error)
	hosts    []*Host
	conn     *connection
	quests   *quests.Tracker
	mail     *Mailbox
	lockouts *security.LockoutBook
	now      func() time.Time
	log      *zap.Logger
	outcome  string
	loaded   *Envelope
}

// NewDesktop resolves the systems visible in opts.Context and starts a fresh
// session. The only error is an extends cycle in the catalog.
func NewDesktop(opts DesktopOptions) (*Desktop, error) {
	d := &Desktop{
		id:       uuid.NewString(),
		player:   strings.TrimSpace(opts.Player),
		resolve:  opts.Resolve,
		mail:     NewMailbox(),
		lockouts: opts.Lockouts,
		now:      opts.Now,
		outcome:  OutcomeClean,
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.mail.now = d.now
	if d.lockouts == nil {
		d.lockouts = security.NewLockoutBook(defaultLockoutCooldown)
	}
	d.log = opts.Logger
	if d.log == nil {
		d.log = logging.WithSession(d.player, d.id)
	}
	machine := opts.Machine
	if machine == nil {
		machine = quests.NewMachine(nil)
	}
	d.quests = quests.NewTracker(machine, nil, d.mail, d.signals)
	if err := d.applyContext(opts.Context); err != nil {
		return nil, err
	}
	return d, nil
}

// ID identifies the session in logs.
func (d *Desktop) ID() string {
	return d.id
}

// Player is the handle the session belongs to.
func (d *Desktop) Player() string {
	return d.player
}

// Mailbox is the session inbox.
func (d *Desktop) Mailbox() *Mailbox {
	return d.mail
}

// Context is the quest context systems are currently resolved for.
func (d *Desktop) Context() systems.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.context
}

// applyContext re-resolves the catalog for ctx. Hosts the player already
// worked on keep their state; untouched hosts pick up the new definition.
func (d *Desktop) applyContext(ctx systems.Context) error {
	if d.resolve == nil {
		d.context = ctx
		return nil
	}
	start := time.Now()
	defs, warnings, err := d.resolve(ctx)
	metrics.RecordResolve(time.Since(start))
	if err != nil {
		return fmt.Errorf("resolve systems: %w", err)
	}
	for _, w := range warnings {
		d.log.Warn("system resolution warning", logging.System(w.SystemID), logging.String("warning", w.Message))
	}
	next := make([]*Host, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		seen[def.ID] = true
		if old := d.hostByID(def.ID); old != nil && old.touched {
			next = append(next, old)
			continue
		}
		next = append(next, newHost(def))
	}
	for _, old := range d.hosts {
		if old.touched && !seen[old.Def.ID] {
			next = append(next, old)
		}
	}
	d.hosts = next
	d.context = ctx
	return nil
}

func (d *Desktop) hostByID(id string) *Host {
	for _, h := range d.hosts {
		if h.Def.ID == id {
			return h
		}
	}
	return nil
}

// lookup finds the host answering to target, falling back to an unambiguous
// hostname or name prefix.
func (d *Desktop) lookup(target string) *Host {
	for _, h := range d.hosts {
		if h.answersTo(target) {
			return h
		}
	}
	needle := foldName(target)
	if needle == "" {
		return nil
	}
	var found *Host
	for _, h := range d.hosts {
		for _, name := range append([]string{h.Def.DisplayName()}, h.Def.Network.Hostnames...) {
			if !prefixMatch(needle, foldName(name), true) {
				continue
			}
			if found != nil && found != h {
				return nil
			}
			found = h
			break
		}
	}
	return found
}

func (d *Desktop) signals() quests.Signals {
	s := quests.Signals{Outcome: d.outcome}
	for _, h := range d.hosts {
		if h.Security.Trace > s.Trace {
			s.Trace = h.Security.Trace
		}
	}
	return s
}

// trace charges action against h and applies whatever threshold it crosses.
func (d *Desktop) trace(res *Result, h *Host, action security.Action) security.Update {
	update := h.engine.Record(h.Security, action)
	d.applyTrace(res, h, update)
	return update
}

func (d *Desktop) applyTrace(res *Result, h *Host, update security.Update) {
	res.emit(Effect{Kind: EffectTrace, SystemID: h.Def.ID, Trace: &update})
	if update.Delta > 0 {
		res.say("trace %s", TraceMeter(update.Trace, update.MaxTrace, update.Band))
	}
	if update.Fired == security.EffectNone {
		return
	}
	band := update.FiredBand.String()
	metrics.RecordTraceEffect(band, string(update.Fired))
	res.emit(Effect{Kind: EffectThreshold, SystemID: h.Def.ID, Message: string(update.Fired)})
	name := h.Def.DisplayName()
	switch update.Fired {
	case security.EffectTightenDoors:
		res.warn("%s is getting nervous. Security tightened.", name)
		for i := range update.DoorChanges {
			change := update.DoorChanges[i]
			res.emit(Effect{Kind: EffectDoorStatus, SystemID: h.Def.ID, Door: &change})
			res.say("  %s: %s -> %s", change.DoorID, change.From, change.To)
		}
	case security.EffectKickUser:
		d.kick(res, h, fmt.Sprintf("%s terminated your connection.", name))
	case security.EffectLockout:
		until := d.lockouts.Lock(d.player, h.Def.ID, d.now())
		res.emit(Effect{Kind: EffectLockout, SystemID: h.Def.ID, Until: until})
		d.kick(res, h, fmt.Sprintf("Intrusion detected. Locked out of %s until %s.", name, until.Format(time.Kitchen)))
	case security.EffectLogOnly:
		d.log.Info("trace threshold crossed",
			logging.System(h.Def.ID),
			logging.String("band", band),
			logging.Int("trace", update.Trace),
			logging.Strings("history", h.Security.CommandHistory),
		)
		res.emit(Effect{Kind: EffectAudit, SystemID: h.Def.ID, Message: band})
		res.say("%s", Style("Your activity on "+name+" was logged.", AnsiDim))
	}
}

// kick drops the connection to h when there is one. The session outcome is
// marked either way.
func (d *Desktop) kick(res *Result, h *Host, msg string) {
	d.outcome = OutcomeKicked
	res.emit(Effect{Kind: EffectKick, SystemID: h.Def.ID, Message: msg})
	res.say("%s", Style(msg, AnsiBold, AnsiRed))
	if d.conn != nil && d.conn.host == h {
		d.appendLog(h, true, fmt.Sprintf("%s kicked", d.player))
		d.conn = nil
	}
	d.log.Info("player kicked", logging.System(h.Def.ID), logging.Int("trace", h.Security.Trace))
}

// refreshDoors reports doors that opened since the last command on h.
func (d *Desktop) refreshDoors(res *Result, h *Host) {
	after := security.EvaluateDoors(h.Def.Doors, h.Security)
	for _, view := range security.NewlyUnlocked(h.doors, after) {
		res.emit(Effect{Kind: EffectDoorUnlocked, SystemID: h.Def.ID, DoorID: view.ID})
		res.say("%s", Style(fmt.Sprintf("Port %d (%s) on %s is now reachable.", view.Port, doorLabel(view.Door), h.Def.DisplayName()), AnsiGreen))
	}
	h.doors = after
}

func doorLabel(door security.Door) string {
	if door.Name != "" {
		return door.Name
	}
	return door.ID
}

// observe feeds a terminal action on h to the quest tracker.
func (d *Desktop) observe(res *Result, kind quests.StepType, h *Host, via route, extra map[string]string) {
	params := map[string]string{
		"ip":     via.ip,
		"system": h.Def.ID,
	}
	if via.hostname != "" {
		params["hostname"] = via.hostname
	}
	maps.Copy(params, extra)
	d.applyTransitions(res, d.quests.Observe(quests.Event{Type: kind, Params: params}))
}

func (d *Desktop) applyTransitions(res *Result, transitions []quests.Transition) {
	for i := range transitions {
		t := transitions[i]
		metrics.RecordQuestTransition(string(t.Kind))
		res.emit(Effect{Kind: EffectQuest, Quest: &t})
		title := t.Title
		if title == "" {
			title = t.QuestID
		}
		switch t.Kind {
		case quests.TransitionTriggered:
			res.say("%s %s", Style("New quest:", AnsiBold, AnsiMagenta), title)
			d.focusQuest(t.QuestID)
			if step, ok := d.quests.CurrentStep(t.QuestID); ok && step.Hint != "" {
				res.say("  %s", step.Hint)
			}
		case quests.TransitionAdvanced:
			res.say("%s %s", Style("Objective complete:", AnsiMagenta), title)
			if step, ok := d.quests.CurrentStep(t.QuestID); ok && step.Hint != "" {
				res.say("  next: %s", step.Hint)
			}
		case quests.TransitionCompleted:
			res.say("%s %s (+%d credits)", Style("Quest complete:", AnsiBold, AnsiGreen), title, t.Credits)
		}
		if t.MailID != "" {
			metrics.RecordMailDelivered()
			res.emit(Effect{Kind: EffectMail, MailID: t.MailID})
			subject := ""
			if t.Mail != nil {
				subject = t.Mail.Subject
			}
			res.say("%s %s", Style("New mail:", AnsiBold, AnsiCyan), subject)
		}
	}
}

// focusQuest re-resolves systems for a quest that just started.
func (d *Desktop) focusQuest(questID string) {
	q, ok := d.quests.Machine().Quest(questID)
	if !ok {
		return
	}
	ctx := systems.Context{QuestID: q.ID, TemplateID: q.TemplateID, InstanceID: q.InstanceID}
	if ctx == d.context {
		return
	}
	if err := d.applyContext(ctx); err != nil {
		d.log.Error("re-resolve systems for quest", logging.String("quest", q.ID), logging.Err(err))
	}
}

// appendLog writes line to every log file on h that records this kind of
// activity.
func (d *Desktop) appendLog(h *Host, connection bool, line string) {
	var paths []string
	for path, node := range h.FS {
		if node == nil || node.Type != vfs.FileNode || node.LogOptions == nil {
			continue
		}
		if connection && node.LogOptions.RecordConnections || !connection && node.LogOptions.RecordCommands {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	stamp := d.now().UTC().Format(time.RFC3339)
	for _, path := range paths {
		h.FS, _ = vfs.AppendLine(h.FS, path, stamp+" "+line)
	}
}

// HostView is a read-only copy of a host's session state.
type HostView struct {
	ID       string
	Name     string
	Address  string
	FS       vfs.Map
	Security *security.State
	Rules    security.Rules
	Doors    []security.DoorView
}

// Host returns a copy of the state of the system answering to target.
func (d *Desktop) Host(target string) (HostView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.lookup(target)
	if h == nil {
		return HostView{}, false
	}
	return d.view(h), true
}

// Hosts lists every reachable system in resolution order.
func (d *Desktop) Hosts() []HostView {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]HostView, 0, len(d.hosts))
	for _, h := range d.hosts {
		out = append(out, d.view(h))
	}
	return out
}

func (d *Desktop) view(h *Host) HostView {
	return HostView{
		ID:       h.Def.ID,
		Name:     h.Def.DisplayName(),
		Address:  h.Address(),
		FS:       vfs.Clone(h.FS),
		Security: h.Security.Clone(),
		Rules:    h.engine.Rules(),
		Doors:    slices.Clone(h.doors),
	}
}

// QuestState returns a copy of the quest progress.
func (d *Desktop) QuestState() *quests.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quests.State().Clone()
}

// Outcome reports whether the player has been kicked this session.
func (d *Desktop) Outcome() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome
}

// Location reports the connected host and working directory.
func (d *Desktop) Location() (string, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return "", "", false
	}
	return d.conn.host.Def.DisplayName(), d.conn.cwd, true
}
