package game

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Axidify/Terminality-V2-sub001/internal/catalog"
	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func drainOutput(ch chan string) []string {
	out := make([]string, 0)
	for {
		select {
		case msg := <-ch:
			cleaned := Trim(ansiPattern.ReplaceAllString(msg, ""))
			if cleaned != "" {
				out = append(out, cleaned)
			}
		default:
			return out
		}
	}
}

// plain joins a result's output without colour codes.
func plain(res Result) string {
	return ansiPattern.ReplaceAllString(strings.Join(res.Output, "\n"), "")
}

const testSystemsYAML = `
- id: relay
  name: Relay Node
  scope: global
  network:
    primaryIp: 10.23.4.8
    hostnames: [relay.atlas.net]
  credentials:
    username: ops
    password: hunter2
    startPath: /home/ops
  host:
    port: 22
  filesystem:
    snapshot:
      "/":
        type: dir
        children: ["/home", "/etc", "/var"]
      "/home":
        type: dir
        children: ["/home/ops"]
      "/home/ops":
        type: dir
        children: ["/home/ops/notes.txt", "/home/ops/.ssh"]
      "/home/ops/notes.txt":
        type: file
        content: "backup window 02:00"
      "/home/ops/.ssh":
        type: dir
        tags: [hidden]
      "/etc":
        type: dir
        children: ["/etc/shadow", "/etc/honeypot.cfg"]
      "/etc/shadow":
        type: file
        content: "root:x:0:0"
        tags: [sensitive]
      "/etc/honeypot.cfg":
        type: file
        content: "armed"
        tags: [trap]
      "/var":
        type: dir
        children: ["/var/logs"]
      "/var/logs":
        type: dir
        children: ["/var/logs/evidence.log", "/var/logs/auth.log"]
      "/var/logs/evidence.log":
        type: file
        content: "connection from 10.0.0.7"
        tags: [evidence, log]
      "/var/logs/auth.log":
        type: file
        logOptions:
          recordConnections: true
  doors:
    - id: ssh
      name: SSH
      port: 22
      status: guarded
    - id: ftp
      name: FTP
      port: 21
      status: weak_spot
    - id: maint
      name: Maintenance
      port: 2222
      status: backdoor
      unlockCondition:
        type: after_file_read
        filePath: /var/logs/evidence.log
  securityRules:
    maxTrace: 100
    nervousThreshold: 50
    panicThreshold: 80
    nervousEffect: tighten_doors
    panicEffect: kick_user
    actionTraceCosts:
      scan: 10
      deepScan: 20
      bruteforce: 30
      deleteSensitiveFile: 25
      openTrapFile: 40
- id: vault
  name: Vault
  scope: global
  network:
    primaryIp: 10.23.9.1
  credentials:
    username: root
  filesystem:
    readOnly: true
    snapshot:
      "/":
        type: dir
        children: ["/data"]
      "/data":
        type: file
        content: "sealed"
  securityRules:
    maxTrace: 100
    panicThreshold: 30
    panicEffect: lockout
    actionTraceCosts:
      scan: 35
- id: archive
  name: Archive
  scope: global
  network:
    primaryIp: 10.23.7.7
    hostnames: [archive.atlas.net]
  filesystem:
    snapshot:
      "/":
        type: dir
        children: ["/srv"]
      "/srv":
        type: dir
- id: archive-heist
  scope: quest_template
  extendsSystemId: archive
  appliesTo:
    templateId: heist
  filesystem:
    overrides:
      "/srv/plans.txt":
        type: file
        content: "vault code 1138"
`

func testQuests() []quests.Quest {
	return []quests.Quest{
		{
			ID:      "intro",
			Title:   "First Contact",
			Trigger: quests.Trigger{Type: quests.TriggerFirstTerminalOpen},
			Steps: []quests.Step{
				{ID: "scan", Type: quests.StepScanHost, Params: map[string]string{"ip": "10.23.4.8"}, Hint: "scan 10.23.4.8"},
				{ID: "connect", Type: quests.StepConnectHost, Params: map[string]string{"ip": "10.23.4.8"}},
				{ID: "leave", Type: quests.StepDisconnectHost},
			},
			Rewards: quests.Rewards{Credits: 150},
			CompletionEmail: quests.CompletionEmail{
				Default: &quests.MailTemplate{
					From:          "atlas",
					Subject:       "Nice work",
					Body:          "Payment sent. One more job attached.",
					LinkedQuestID: "sweep",
				},
			},
		},
		{
			ID:           "sweep",
			Title:        "Clean Sweep",
			TemplateID:   "heist",
			Requirements: quests.Requirements{RequiredQuests: []string{"intro"}},
			Steps: []quests.Step{
				{ID: "plans", Type: quests.StepReadFile, Params: map[string]string{"system": "archive", "path": "/srv/plans.txt"}},
			},
			Rewards: quests.Rewards{Credits: 300},
		},
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	systems.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { systems.PasswordCost = bcrypt.DefaultCost })

	defs, err := catalog.DecodeSystems("systems.yaml", []byte(testSystemsYAML))
	if err != nil {
		t.Fatalf("decode systems: %v", err)
	}
	cat, err := catalog.New(defs, testQuests())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestDesktop(t *testing.T) (*Desktop, *testClock) {
	t.Helper()
	cat := testCatalog(t)
	clock := &testClock{now: time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)}
	d, err := NewDesktop(DesktopOptions{
		Player:   "ghost",
		Resolve:  cat.Resolve,
		Machine:  cat.Machine(),
		Lockouts: security.NewLockoutBook(5 * time.Minute),
		Now:      clock.Now,
		Logger:   zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewDesktop: %v", err)
	}
	return d, clock
}

func mustConnect(t *testing.T, d *Desktop, target string, port int, password string) Result {
	t.Helper()
	res := d.Connect(target, port, password)
	if _, _, ok := d.Location(); !ok {
		t.Fatalf("connect %s:%d failed: %s", target, port, plain(res))
	}
	return res
}
