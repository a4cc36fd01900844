package game

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

const listWidth = 72

// Scan probes target from the local terminal. A deep scan reveals door
// status at a higher trace cost.
func (d *Desktop) Scan(target string, deep bool) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h := d.lookup(target)
	if h == nil {
		res.warn("scan: %s did not respond.", strings.TrimSpace(target))
		return res
	}
	h.touched = true
	action, line := security.ActionScan, "scan "+h.Address()
	if deep {
		action, line = security.ActionDeepScan, "scan -d "+h.Address()
	}
	h.Security.RecordCommand(line)

	res.say("Scanning %s (%s)...", HighlightHost(h.Def.DisplayName()), h.Address())
	views := security.EvaluateDoors(h.Def.Doors, h.Security)
	if len(views) == 0 {
		for _, port := range openPorts(h) {
			res.say("%6d/tcp  open", port)
		}
	}
	for _, view := range views {
		state := "filtered"
		if view.Unlocked && view.Effective != security.StatusLocked {
			state = "open"
		}
		if deep {
			res.say("%6d/tcp  %-8s  %-9s  %s", view.Port, state, view.Effective, doorLabel(view.Door))
			continue
		}
		res.say("%6d/tcp  %-8s  %s", view.Port, state, doorLabel(view.Door))
	}
	if deep && h.Def.Kind != "" {
		res.say("kind: %s", h.Def.Kind)
	}

	d.trace(&res, h, action)
	d.observe(&res, quests.StepScanHost, h, h.routeFor(target), map[string]string{"deep": strconv.FormatBool(deep)})
	d.refreshDoors(&res, h)
	return res
}

func openPorts(h *Host) []int {
	if h.Def.Host == nil {
		return nil
	}
	ports := slices.Clone(h.Def.Host.OpenPorts)
	if h.Def.Host.Port > 0 && !slices.Contains(ports, h.Def.Host.Port) {
		ports = append(ports, h.Def.Host.Port)
	}
	slices.Sort(ports)
	return ports
}

// Connect opens a shell on target through the door on port. Port 0 picks
// the host's default door or the first one that is open.
func (d *Desktop) Connect(target string, port int, password string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h := d.lookup(target)
	if h == nil {
		res.warn("connect: could not resolve %s.", strings.TrimSpace(target))
		return res
	}
	if d.conn != nil {
		if d.conn.host == h {
			res.warn("Already connected to %s.", h.Def.DisplayName())
		} else {
			res.warn("Disconnect from %s first.", d.conn.host.Def.DisplayName())
		}
		return res
	}
	h.touched = true
	if until, locked := d.lockouts.Locked(d.player, h.Def.ID, d.now()); locked {
		res.emit(Effect{Kind: EffectLockout, SystemID: h.Def.ID, Until: until})
		res.warn("Connection refused: locked out of %s until %s.", h.Def.DisplayName(), until.Format(time.Kitchen))
		return res
	}
	h.Security.RecordCommand(strings.TrimSpace(fmt.Sprintf("connect %s %s", h.Address(), portArg(port))))

	door, gated, ok := d.pickDoor(h, port)
	if !ok {
		res.warn("connect: %s refused the connection on port %d.", h.Address(), port)
		return res
	}
	if gated {
		port = door.Port
		if !security.IsUnlocked(door.UnlockCondition, h.Security) || h.Security.StatusOf(door) == security.StatusLocked {
			res.warn("Port %d (%s) is locked.", door.Port, doorLabel(door))
			d.refreshDoors(&res, h)
			return res
		}
	}
	if needsPassword(h, door, gated) && !h.Def.Credentials.CheckPassword(password) {
		d.appendLog(h, true, fmt.Sprintf("failed login for %s from %s", h.Def.Credentials.Username, d.player))
		res.warn("Access denied.")
		return res
	}
	if gated {
		h.Security.MarkDoorUsed(door.ID)
	}
	if port == 0 && h.Def.Host != nil {
		port = h.Def.Host.Port
	}
	d.conn = &connection{host: h, via: h.routeFor(target), doorID: door.ID, port: port, cwd: startDir(h)}
	d.appendLog(h, true, fmt.Sprintf("connection from %s on port %d", d.player, port))

	user := h.Def.Credentials.Username
	if user == "" {
		user = d.player
	}
	res.say("Connected to %s (%s) as %s.", HighlightHost(h.Def.DisplayName()), h.Address(), user)
	d.observe(&res, quests.StepConnectHost, h, d.conn.via, map[string]string{
		"port": strconv.Itoa(port),
		"door": door.ID,
	})
	d.refreshDoors(&res, h)
	return res
}

func portArg(port int) string {
	if port <= 0 {
		return ""
	}
	return strconv.Itoa(port)
}

// pickDoor chooses the door a connection goes through. gated is false for
// hosts without doors; ok is false when nothing listens on port.
func (d *Desktop) pickDoor(h *Host, port int) (door security.Door, gated, ok bool) {
	doors := h.Def.Doors
	if len(doors) == 0 {
		if port <= 0 || slices.Contains(openPorts(h), port) || len(openPorts(h)) == 0 {
			return security.Door{}, false, true
		}
		return security.Door{}, false, false
	}
	if port > 0 {
		door, ok := security.DoorForPort(doors, port)
		return door, ok, ok
	}
	if h.Def.Host != nil && h.Def.Host.Port > 0 {
		if door, ok := security.DoorForPort(doors, h.Def.Host.Port); ok {
			return door, true, true
		}
	}
	for _, view := range security.EvaluateDoors(doors, h.Security) {
		if view.Unlocked && view.Effective != security.StatusLocked {
			return view.Door, true, true
		}
	}
	return doors[0], true, true
}

// needsPassword applies the door's effective status: backdoors skip the
// password and weak spots skip it once cracked.
func needsPassword(h *Host, door security.Door, gated bool) bool {
	if !h.Def.Credentials.RequiresPassword() {
		return false
	}
	if !gated {
		return true
	}
	switch h.Security.StatusOf(door) {
	case security.StatusBackdoor:
		return false
	case security.StatusWeakSpot:
		return !h.Security.IsCracked(door.ID)
	}
	return true
}

func startDir(h *Host) string {
	for _, candidate := range []string{h.Def.Credentials.StartPath, h.Def.Filesystem.RootPath} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		path := vfs.NormalizePath(candidate)
		if node, ok := vfs.Lookup(h.FS, path); ok && node.IsDir() {
			return path
		}
	}
	return vfs.Root
}

// Bruteforce attacks the first weak spot on target. Cracking it lets later
// connections through that door skip the password.
func (d *Desktop) Bruteforce(target string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h := d.lookup(target)
	if h == nil {
		res.warn("bruteforce: could not resolve %s.", strings.TrimSpace(target))
		return res
	}
	h.touched = true
	if until, locked := d.lockouts.Locked(d.player, h.Def.ID, d.now()); locked {
		res.emit(Effect{Kind: EffectLockout, SystemID: h.Def.ID, Until: until})
		res.warn("bruteforce: locked out of %s until %s.", h.Def.DisplayName(), until.Format(time.Kitchen))
		return res
	}
	h.Security.RecordCommand("bruteforce " + h.Address())
	res.say("Bruteforcing %s...", HighlightHost(h.Def.DisplayName()))

	update := d.trace(&res, h, security.ActionBruteforce)
	if update.Fired == security.EffectLockout || update.Fired == security.EffectKickUser {
		d.refreshDoors(&res, h)
		return res
	}
	var (
		weak  security.Door
		found bool
	)
	for _, view := range security.EvaluateDoors(h.Def.Doors, h.Security) {
		if view.Unlocked && view.Effective == security.StatusWeakSpot {
			weak, found = view.Door, true
			break
		}
	}
	switch {
	case !found:
		res.warn("bruteforce: no weak spot found on %s.", h.Def.DisplayName())
	case !h.Security.MarkCracked(weak.ID):
		res.say("Port %d (%s) is already cracked.", weak.Port, doorLabel(weak))
	default:
		res.say("%s", Style(fmt.Sprintf("Cracked port %d (%s).", weak.Port, doorLabel(weak)), AnsiGreen))
		d.appendLog(h, true, fmt.Sprintf("repeated login failures on port %d", weak.Port))
	}
	d.refreshDoors(&res, h)
	return res
}

// connected returns the host of the open connection or records why the
// command cannot run.
func (d *Desktop) connected(res *Result, command string) (*Host, bool) {
	if d.conn == nil {
		res.warn("%s: not connected.", command)
		return nil, false
	}
	return d.conn.host, true
}

// ReadFile prints a file on the connected host.
func (d *Desktop) ReadFile(path string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h, ok := d.connected(&res, "cat")
	if !ok {
		return res
	}
	if strings.TrimSpace(path) == "" {
		res.warn("usage: cat <path>")
		return res
	}
	path = vfs.Resolve(d.conn.cwd, path)
	node, found := vfs.Lookup(h.FS, path)
	if !found {
		res.warn("cat: %s: No such file or directory", path)
		return res
	}
	if node.IsDir() {
		res.warn("cat: %s: Is a directory", path)
		return res
	}
	h.Security.RecordCommand("cat " + path)
	if node.Content != "" {
		res.Output = append(res.Output, strings.Split(node.Content, "\n")...)
	}
	h.Security.RecordFileRead(path)
	if node.HasTag(vfs.TagTrap) {
		d.trace(&res, h, security.ActionOpenTrapFile)
	}
	d.appendLog(h, false, "cat "+path)
	d.observe(&res, quests.StepReadFile, h, d.conn.via, map[string]string{"path": path})
	d.refreshDoors(&res, h)
	return res
}

// DeleteFile removes a file, or a directory tree when recursive is set.
func (d *Desktop) DeleteFile(path string, recursive bool) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h, ok := d.connected(&res, "rm")
	if !ok {
		return res
	}
	if strings.TrimSpace(path) == "" {
		res.warn("usage: rm [-r] <path>")
		return res
	}
	path = vfs.Resolve(d.conn.cwd, path)
	if path == vfs.Root {
		res.warn("rm: refusing to remove /")
		return res
	}
	node, found := vfs.Lookup(h.FS, path)
	if !found {
		res.warn("rm: %s: No such file or directory", path)
		return res
	}
	if node.IsDir() && !recursive {
		res.warn("rm: %s: is a directory", path)
		return res
	}
	if h.Def.Filesystem.IsReadOnly() {
		res.warn("rm: %s: Read-only file system", path)
		return res
	}
	h.Security.RecordCommand("rm " + path)
	sensitive := false
	for key, n := range h.FS {
		if n != nil && vfs.IsWithin(key, path) && n.HasTag(vfs.TagSensitive) {
			sensitive = true
			break
		}
	}
	h.FS, _ = vfs.Delete(h.FS, path)
	res.emit(Effect{Kind: EffectFilesystem, SystemID: h.Def.ID, Path: path, Message: "deleted"})
	res.say("removed %s", HighlightPath(path))
	if vfs.IsWithin(d.conn.cwd, path) {
		d.conn.cwd = vfs.ParentPath(path)
	}
	if sensitive {
		d.trace(&res, h, security.ActionDeleteSensitiveFile)
	}
	d.appendLog(h, false, "rm "+path)
	d.observe(&res, quests.StepDeleteFile, h, d.conn.via, map[string]string{"path": path})
	d.refreshDoors(&res, h)
	return res
}

// ListDir lists a directory on the connected host. Hidden entries are shown
// only when all is set.
func (d *Desktop) ListDir(path string, all bool) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h, ok := d.connected(&res, "ls")
	if !ok {
		return res
	}
	target := d.conn.cwd
	if strings.TrimSpace(path) != "" {
		target = vfs.Resolve(d.conn.cwd, path)
	}
	node, found := vfs.Lookup(h.FS, target)
	if !found {
		res.warn("ls: %s: No such file or directory", target)
		return res
	}
	h.Security.RecordCommand("ls " + target)
	if !node.IsDir() {
		res.say("%s", vfs.BaseName(target))
	} else {
		var names []string
		for _, child := range vfs.ListChildPaths(h.FS, target) {
			n := h.FS[child]
			if n == nil || n.HasTag(vfs.TagHidden) && !all {
				continue
			}
			name := vfs.BaseName(child)
			if n.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		res.Output = append(res.Output, Columns(names, listWidth)...)
	}
	d.appendLog(h, false, "ls "+target)
	d.refreshDoors(&res, h)
	return res
}

// ChangeDir moves the working directory on the connected host. An empty
// path returns to the login directory.
func (d *Desktop) ChangeDir(path string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h, ok := d.connected(&res, "cd")
	if !ok {
		return res
	}
	target := startDir(h)
	if strings.TrimSpace(path) != "" {
		target = vfs.Resolve(d.conn.cwd, path)
	}
	node, found := vfs.Lookup(h.FS, target)
	switch {
	case !found:
		res.warn("cd: %s: No such file or directory", target)
		return res
	case !node.IsDir():
		res.warn("cd: %s: Not a directory", target)
		return res
	}
	h.Security.RecordCommand("cd " + target)
	d.conn.cwd = target
	d.refreshDoors(&res, h)
	return res
}

// Disconnect closes the open connection.
func (d *Desktop) Disconnect() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	h, ok := d.connected(&res, "disconnect")
	if !ok {
		return res
	}
	d.appendLog(h, true, fmt.Sprintf("%s disconnected", d.player))
	via := d.conn.via
	d.conn = nil
	res.say("Connection to %s closed.", HighlightHost(h.Def.DisplayName()))
	d.observe(&res, quests.StepDisconnectHost, h, via, nil)
	return res
}

// Inbox lists mail, newest last. Unread messages are starred.
func (d *Desktop) Inbox() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	messages := d.mail.Messages()
	if len(messages) == 0 {
		res.say("Your inbox is empty.")
		return res
	}
	for i, msg := range messages {
		marker := " "
		if !msg.Read {
			marker = Style("*", AnsiBold, AnsiYellow)
		}
		res.say("%s %2d  %-18s %s", marker, i+1, msg.From, msg.Subject)
	}
	return res
}

// Open reads the message at the 1-based index. A message that links a quest
// offers it the first time it is opened.
func (d *Desktop) Open(index int) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	msg, err := d.mail.Open(index)
	if err != nil {
		res.warn("open: %v", err)
		return res
	}
	res.say("%s %s", Style("From:", AnsiBold), msg.From)
	res.say("%s %s", Style("Subject:", AnsiBold), msg.Subject)
	res.say("")
	if msg.Body != "" {
		res.Output = append(res.Output, strings.Split(WrapText(msg.Body, listWidth), "\n")...)
	}
	if msg.LinkedQuestID != "" {
		d.applyTransitions(&res, d.quests.OfferFromMail(msg.ID, msg.LinkedQuestID))
	}
	return res
}

// QuestLog summarises active and finished quests.
func (d *Desktop) QuestLog() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	active := d.quests.Active()
	if len(active) == 0 {
		res.say("No active quests.")
	}
	for _, q := range active {
		title := q.Title
		if title == "" {
			title = q.ID
		}
		res.say("%s", Style(title, AnsiBold, AnsiMagenta))
		step, ok := d.quests.CurrentStep(q.ID)
		if !ok {
			continue
		}
		idx := slices.IndexFunc(q.Steps, func(s quests.Step) bool { return s.ID == step.ID })
		hint := step.Hint
		if hint == "" {
			hint = string(step.Type)
		}
		res.say("  [%d/%d] %s", idx+1, len(q.Steps), hint)
	}
	state := d.quests.State()
	if len(state.Completed) > 0 {
		titles := make([]string, 0, len(state.Completed))
		for _, id := range state.Completed {
			if q, ok := d.quests.Machine().Quest(id); ok && q.Title != "" {
				titles = append(titles, q.Title)
				continue
			}
			titles = append(titles, id)
		}
		res.say("Completed: %s", strings.Join(titles, ", "))
	}
	res.say("Credits: %d", state.Credits)
	return res
}

// SetFlag sets a story flag and starts any quest waiting on it.
func (d *Desktop) SetFlag(flag string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	flag = strings.TrimSpace(flag)
	if flag == "" {
		res.warn("usage: flag <name>")
		return res
	}
	transitions := d.quests.SetFlag(flag)
	res.say("flag %s set", flag)
	d.applyTransitions(&res, transitions)
	return res
}

// OpenTerminal marks the terminal as opened for this session.
func (d *Desktop) OpenTerminal() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	res.say("%s", Style("Terminal ready.", AnsiBold, AnsiGreen))
	d.applyTransitions(&res, d.quests.OpenTerminal())
	if unread := d.mail.Unread(); unread > 0 {
		res.say("You have %d unread message(s). Type 'inbox' to read them.", unread)
	}
	return res
}

// TraceReport shows the trace meter of every system touched this session.
func (d *Desktop) TraceReport() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res Result
	for _, h := range d.hosts {
		if !h.touched {
			continue
		}
		rules := h.engine.Rules()
		res.say("%-20s %s", h.Def.DisplayName(), TraceMeter(h.Security.Trace, rules.MaxTrace, rules.BandFor(h.Security.Trace)))
	}
	if len(res.Output) == 0 {
		res.say("No systems have noticed you yet.")
	}
	return res
}
