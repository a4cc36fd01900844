package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Axidify/Terminality-V2-sub001/internal/quests"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

const relayYAML = `
id: relay
name: Relay Node
scope: global
network:
  primaryIp: 10.23.4.8
  hostnames: [relay.atlas.net]
credentials:
  username: ops
  password: hunter2
  startPath: /home/ops
filesystem:
  snapshot:
    "/":
      type: dir
      children: ["/home", "/var"]
    "/home":
      type: dir
      children: ["/home/ops/"]
    "/home/ops":
      type: dir
    "/var":
      type: dir
      children: ["/var/logs"]
    "/var/logs":
      type: dir
      children: ["/var/logs/evidence.log"]
    "/var/logs/evidence.log":
      type: file
      content: "connection from 10.0.0.7"
      tags: [evidence, log]
doors:
  - id: ssh
    name: SSH
    port: 22
    status: guarded
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
`

const heistJSON = `[
  {
    "id": "relay-heist",
    "scope": "quest_template",
    "extendsSystemId": "relay",
    "appliesTo": {"templateId": "heist"},
    "filesystem": {
      "overrides": {
        "/home/ops/notes.txt": {"type": "file", "content": "vault code 1138"}
      }
    }
  }
]`

const introYAML = `
- id: intro
  title: First Contact
  trigger:
    type: on_first_terminal_open
  steps:
    - type: scan_host
      params: {ip: 10.23.4.8}
    - type: connect_host
      params: {ip: 10.23.4.8}
    - type: disconnect_host
  rewards:
    credits: 150
    mail:
      from: atlas
      subject: Payment
      body: Good work.
`

func writeContent(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func TestLoadDecodesJSONAndYAML(t *testing.T) {
	systems.PasswordCost = bcrypt.MinCost
	defer func() { systems.PasswordCost = bcrypt.DefaultCost }()

	root := writeContent(t, map[string]string{
		"systems/relay.yaml": relayYAML,
		"systems/heist.json": heistJSON,
		"systems/README.md":  "ignored",
		"quests/intro.yml":   introYAML,
	})
	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Systems) != 2 || len(c.Quests) != 1 {
		t.Fatalf("loaded %d systems and %d quests", len(c.Systems), len(c.Quests))
	}

	var relay systems.Definition
	for _, def := range c.Systems {
		if def.ID == "relay" {
			relay = def
		}
	}
	if relay.Credentials.Password != "" || !relay.Credentials.CheckPassword("hunter2") {
		t.Fatalf("relay password was not hashed: %+v", relay.Credentials)
	}
	if relay.SecurityRules == nil || relay.SecurityRules.NervousEffect != security.EffectTightenDoors {
		t.Fatalf("relay rules = %+v", relay.SecurityRules)
	}
	if relay.Doors[1].UnlockCondition.Type != security.ConditionAfterFileRead {
		t.Fatalf("maint door condition = %+v", relay.Doors[1].UnlockCondition)
	}
	home := relay.Filesystem.Snapshot["/home"]
	if home == nil || len(home.Children) != 1 || home.Children[0] != "/home/ops" {
		t.Fatalf("children were not canonicalized: %+v", home)
	}
	log := relay.Filesystem.Snapshot["/var/logs/evidence.log"]
	if log == nil || log.Name != "evidence.log" || !log.HasTag(vfs.TagEvidence) {
		t.Fatalf("evidence.log = %+v", log)
	}

	step := c.Quests[0].Steps[0]
	if step.Type != quests.StepScanHost || step.ID != "intro-1" {
		t.Fatalf("quest step = %+v", step)
	}
	if _, ok := c.Machine().Quest("intro"); !ok {
		t.Fatalf("machine is missing intro")
	}

	resolved, _, err := c.Resolve(systems.Context{TemplateID: "heist"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("resolved %d systems", len(resolved))
	}
	notes, ok := vfs.Lookup(resolved[0].Filesystem.Snapshot, "/home/ops/notes.txt")
	if !ok || notes.Content != "vault code 1138" {
		t.Fatalf("override file missing from resolved filesystem")
	}
	if _, ok := relay.Filesystem.Snapshot["/home/ops/notes.txt"]; ok {
		t.Fatalf("resolution leaked into the catalog")
	}
}

func TestLoadScopedOverlayKeepsBaseRoot(t *testing.T) {
	root := writeContent(t, map[string]string{
		"systems/relay.yaml": relayYAML,
		"systems/heist.json": heistJSON,
	})
	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, def := range c.Systems {
		if def.ID != "relay-heist" {
			continue
		}
		if _, ok := def.Filesystem.Overrides[vfs.Root]; ok {
			t.Fatalf("overlay gained a root node")
		}
	}
	resolved, _, err := c.Resolve(systems.Context{TemplateID: "heist"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rootNode := resolved[0].Filesystem.Snapshot[vfs.Root]
	if rootNode == nil || len(rootNode.Children) != 2 {
		t.Fatalf("base root lost its children: %+v", rootNode)
	}
}

func TestLoadErrorsNameTheFile(t *testing.T) {
	root := writeContent(t, map[string]string{
		"quests/broken.json": `{"id":"x","steps":[{"type":"HACK_PLANET"}]}`,
	})
	_, err := Load(root)
	if err == nil || !strings.Contains(err.Error(), "broken.json") || !strings.Contains(err.Error(), "HACK_PLANET") {
		t.Fatalf("Load error = %v", err)
	}

	root = writeContent(t, map[string]string{
		"systems/door.yaml": "id: a\nscope: global\ndoors:\n  - id: d\n    port: 22\n    unlockCondition: {type: moon_phase}\n",
	})
	_, err = Load(root)
	if err == nil || !strings.Contains(err.Error(), "door.yaml") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoadMissingDirectoriesIsEmpty(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Systems) != 0 || len(c.Quests) != 0 || len(c.Warnings) != 0 {
		t.Fatalf("expected an empty catalog, got %+v", c)
	}
}

func TestLoadCollectsWarnings(t *testing.T) {
	root := writeContent(t, map[string]string{
		"systems/loose.json": `{"id":"loose","scope":"quest_instance","extendsSystemId":"relay"}`,
		"quests/a.json":      `{"id":"a","trigger":{"type":"on_flag_set"}}`,
	})
	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	text := strings.Join(c.Warnings, "\n")
	for _, want := range []string{"loose: scoped system has no appliesTo", "quest a: on_flag_set trigger has no flagKey"} {
		if !strings.Contains(text, want) {
			t.Fatalf("warnings missing %q:\n%s", want, text)
		}
	}
}

func TestLooseSnapshotKeysDoNotWarn(t *testing.T) {
	systems.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { systems.PasswordCost = bcrypt.DefaultCost })

	defs, err := DecodeSystems("box.yaml", []byte(`
id: box
scope: global
filesystem:
  snapshot:
    "/":
      type: dir
      children: ["/home/"]
    "/home/":
      type: dir
      children: ["/home/notes.txt"]
    "home/notes.txt":
      type: file
      content: hi
securityRules:
  maxTrace: 50
  panicThreshold: 90
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := New(defs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text := strings.Join(c.Warnings, "\n")
	if strings.Contains(text, "filesystem") {
		t.Fatalf("canonical keys reported as broken:\n%s", text)
	}
	if !strings.Contains(text, "panicThreshold 90 above maxTrace 50") {
		t.Fatalf("rule clamp not reported:\n%s", text)
	}
	if _, ok := vfs.Lookup(c.Systems[0].Filesystem.Snapshot, "/home/notes.txt"); !ok {
		t.Fatalf("snapshot not canonicalized: %v", c.Systems[0].Filesystem.Snapshot)
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	if _, err := DecodeSystems("relay.toml", []byte("id = 1")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("DecodeSystems error = %v", err)
	}
	defs, err := DecodeSystems("empty.yaml", []byte("# nothing yet\n"))
	if err != nil || len(defs) != 0 {
		t.Fatalf("DecodeSystems(empty) = %v, %v", defs, err)
	}
}

func TestBundledContentLoadsCleanly(t *testing.T) {
	systems.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { systems.PasswordCost = bcrypt.DefaultCost })

	cat, err := Load(filepath.Join("..", "..", DefaultContentPath))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Warnings) != 0 {
		t.Fatalf("bundled content has warnings: %v", cat.Warnings)
	}
	if len(cat.Systems) != 3 || len(cat.Quests) != 2 {
		t.Fatalf("got %d systems and %d quests", len(cat.Systems), len(cat.Quests))
	}

	defs, _, err := cat.Resolve(systems.Context{QuestID: "vault-job", TemplateID: "heist"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, def := range defs {
		if def.ID != "atlas-vault" {
			continue
		}
		if _, ok := vfs.Lookup(def.Filesystem.Snapshot, "/data/keys.txt"); !ok {
			t.Fatalf("heist overlay missing from resolved vault")
		}
		return
	}
	t.Fatalf("atlas-vault not resolved")
}
