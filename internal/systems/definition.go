// Package systems describes simulated remote hosts and folds quest-scoped
// overrides onto their global definitions.
package systems

import (
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// Scope says which layer of authoring a definition belongs to.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopeQuestTemplate Scope = "quest_template"
	ScopeQuestInstance Scope = "quest_instance"
)

// Priority orders scopes so later tiers win when folded.
func (s Scope) Priority() int {
	switch s {
	case ScopeQuestTemplate:
		return 1
	case ScopeQuestInstance:
		return 2
	default:
		return 0
	}
}

// Scoped reports whether s is a quest-scoped tier.
func (s Scope) Scoped() bool {
	return s == ScopeQuestTemplate || s == ScopeQuestInstance
}

// Network lists the addresses a system answers on.
type Network struct {
	PrimaryIP string   `json:"primaryIp" yaml:"primaryIp" validate:"omitempty,ip"`
	IPs       []string `json:"ips,omitempty" yaml:"ips,omitempty" validate:"dive,ip"`
	Hostnames []string `json:"hostnames,omitempty" yaml:"hostnames,omitempty"`
}

// Credentials describe the login a system accepts. Plaintext passwords are
// replaced by PasswordHash when content is loaded.
type Credentials struct {
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	StartPath    string `json:"startPath,omitempty" yaml:"startPath,omitempty"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty" yaml:"passwordHash,omitempty"`
}

// PasswordCost is the bcrypt cost used when hashing authored passwords.
var PasswordCost = bcrypt.DefaultCost

// HashPassword moves a plaintext password into PasswordHash.
func (c *Credentials) HashPassword() error {
	if c.Password == "" {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), PasswordCost)
	if err != nil {
		return err
	}
	c.PasswordHash = string(hashed)
	c.Password = ""
	return nil
}

// RequiresPassword reports whether a password is configured.
func (c Credentials) RequiresPassword() bool {
	return c.PasswordHash != "" || c.Password != ""
}

// CheckPassword compares plain against the configured password.
func (c Credentials) CheckPassword(plain string) bool {
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(plain)) == nil
	}
	return c.Password == "" || c.Password == plain
}

// Filesystem is a system's disk. Snapshot is the authored tree and Overrides
// an overlay applied on top of whatever it extends.
type Filesystem struct {
	RootPath    string  `json:"rootPath,omitempty" yaml:"rootPath,omitempty"`
	TemplateKey string  `json:"templateKey,omitempty" yaml:"templateKey,omitempty"`
	ReadOnly    *bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Snapshot    vfs.Map `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Overrides   vfs.Map `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// IsReadOnly reports the effective read-only flag.
func (f Filesystem) IsReadOnly() bool {
	return f.ReadOnly != nil && *f.ReadOnly
}

// Tool binds a terminal command to a system.
type Tool struct {
	Command     string `json:"command" yaml:"command" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Host describes the service a system exposes.
type Host struct {
	Protocol  string   `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Port      int      `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	OpenPorts []int    `json:"openPorts,omitempty" yaml:"openPorts,omitempty" validate:"dive,min=1,max=65535"`
	Flags     []string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// AppliesTo restricts a scoped definition to a quest context. Empty keys
// match anything.
type AppliesTo struct {
	QuestID    string `json:"questId,omitempty" yaml:"questId,omitempty"`
	TemplateID string `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	InstanceID string `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`
}

// Context identifies the quest a session is resolving systems for.
type Context struct {
	QuestID    string
	TemplateID string
	InstanceID string
}

// Matches reports whether every key set on a equals the context value.
func (a AppliesTo) Matches(ctx Context) bool {
	if a.QuestID != "" && a.QuestID != ctx.QuestID {
		return false
	}
	if a.TemplateID != "" && a.TemplateID != ctx.TemplateID {
		return false
	}
	if a.InstanceID != "" && a.InstanceID != ctx.InstanceID {
		return false
	}
	return true
}

// Definition is an authored or resolved system.
type Definition struct {
	ID              string          `json:"id" yaml:"id" validate:"required"`
	Key             string          `json:"key,omitempty" yaml:"key,omitempty"`
	Name            string          `json:"name,omitempty" yaml:"name,omitempty"`
	Label           string          `json:"label,omitempty" yaml:"label,omitempty"`
	Scope           Scope           `json:"scope" yaml:"scope" validate:"oneof=global quest_template quest_instance"`
	Kind            string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	ExtendsSystemID string          `json:"extendsSystemId,omitempty" yaml:"extendsSystemId,omitempty"`
	Network         Network         `json:"network" yaml:"network"`
	Credentials     Credentials     `json:"credentials" yaml:"credentials"`
	Filesystem      Filesystem      `json:"filesystem" yaml:"filesystem"`
	Tools           []Tool          `json:"tools,omitempty" yaml:"tools,omitempty" validate:"dive"`
	Host            *Host           `json:"host,omitempty" yaml:"host,omitempty"`
	AppliesTo       *AppliesTo      `json:"appliesTo,omitempty" yaml:"appliesTo,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Doors           []security.Door `json:"doors,omitempty" yaml:"doors,omitempty" validate:"dive"`
	SecurityRules   *security.Rules `json:"securityRules,omitempty" yaml:"securityRules,omitempty"`
}

// DisplayName returns the label players see.
func (d Definition) DisplayName() string {
	for _, candidate := range []string{d.Label, d.Name, d.Key, d.ID} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

// SyncIdentity fills key, name and label from each other so they agree.
func (d *Definition) SyncIdentity() {
	if d.Key == "" {
		d.Key = d.ID
	}
	if d.Name == "" {
		d.Name = d.Label
	}
	if d.Name == "" {
		d.Name = d.Key
	}
	d.Label = d.Name
}

// Addresses returns the primary IP, the other IPs and the hostnames without
// duplicates.
func (d Definition) Addresses() []string {
	out := make([]string, 0, 1+len(d.Network.IPs)+len(d.Network.Hostnames))
	for _, addr := range append(append([]string{d.Network.PrimaryIP}, d.Network.IPs...), d.Network.Hostnames...) {
		if addr == "" || slices.Contains(out, addr) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// Clone deep-copies the definition.
func (d Definition) Clone() Definition {
	out := d
	out.Network.IPs = slices.Clone(d.Network.IPs)
	out.Network.Hostnames = slices.Clone(d.Network.Hostnames)
	if d.Filesystem.ReadOnly != nil {
		ro := *d.Filesystem.ReadOnly
		out.Filesystem.ReadOnly = &ro
	}
	if d.Filesystem.Snapshot != nil {
		out.Filesystem.Snapshot = vfs.Clone(d.Filesystem.Snapshot)
	}
	if d.Filesystem.Overrides != nil {
		out.Filesystem.Overrides = vfs.Clone(d.Filesystem.Overrides)
	}
	out.Tools = slices.Clone(d.Tools)
	if d.Host != nil {
		host := *d.Host
		host.OpenPorts = slices.Clone(d.Host.OpenPorts)
		host.Flags = slices.Clone(d.Host.Flags)
		out.Host = &host
	}
	if d.AppliesTo != nil {
		applies := *d.AppliesTo
		out.AppliesTo = &applies
	}
	out.Metadata = cloneMetadata(d.Metadata)
	out.Doors = slices.Clone(d.Doors)
	if d.SecurityRules != nil {
		rules := d.SecurityRules.Clone()
		out.SecurityRules = &rules
	}
	return out
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMetadata(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
