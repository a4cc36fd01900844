package systems

import (
	"errors"
	"fmt"

	"github.com/Axidify/Terminality-V2-sub001/internal/validation"
	"github.com/Axidify/Terminality-V2-sub001/internal/vfs"
)

// ValidateDefinition checks the fields a definition cannot work without.
func ValidateDefinition(def Definition) error {
	if err := validation.Struct(def); err != nil {
		return fmt.Errorf("system %q: %w", def.ID, err)
	}
	return nil
}

// Validate reports soft problems across a set of definitions. Nothing here
// stops a definition from being resolved.
func Validate(defs []Definition) []Warning {
	var warnings []Warning
	seen := make(map[string]bool, len(defs))
	byID := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if seen[def.ID] {
			warnings = append(warnings, Warning{SystemID: def.ID, Message: "duplicate system id"})
			continue
		}
		seen[def.ID] = true
		byID[def.ID] = def
	}

	for _, def := range defs {
		if err := ValidateDefinition(def); err != nil {
			warnings = append(warnings, Warning{SystemID: def.ID, Message: err.Error()})
		}

		ports := make(map[int]string, len(def.Doors))
		for _, door := range def.Doors {
			if other, ok := ports[door.Port]; ok {
				warnings = append(warnings, Warning{
					SystemID: def.ID,
					Message:  fmt.Sprintf("doors %s and %s share port %d", other, door.ID, door.Port),
				})
				continue
			}
			ports[door.Port] = door.ID
		}

		if def.SecurityRules != nil {
			_, notes := def.SecurityRules.Normalize()
			for _, note := range notes {
				warnings = append(warnings, Warning{SystemID: def.ID, Message: "securityRules: " + note})
			}
		}

		if def.Scope.Scoped() && def.ExtendsSystemID != "" {
			_, err := findBase(def, byID)
			switch {
			case errors.Is(err, ErrExtendsCycle):
				warnings = append(warnings, Warning{SystemID: def.ID, Message: err.Error()})
			case err == nil:
				if _, ok := byID[def.ExtendsSystemID]; !ok {
					warnings = append(warnings, Warning{
						SystemID: def.ID,
						Message:  fmt.Sprintf("extendsSystemId %q does not exist", def.ExtendsSystemID),
					})
				}
			}
		}
		if def.Scope.Scoped() && def.AppliesTo == nil {
			warnings = append(warnings, Warning{SystemID: def.ID, Message: "scoped system has no appliesTo and never matches a context"})
		}

		if !def.Scope.Scoped() && def.Filesystem.Snapshot != nil {
			for _, w := range vfs.Validate(def.Filesystem.Snapshot) {
				warnings = append(warnings, Warning{SystemID: def.ID, Message: "filesystem " + w.String()})
			}
		}
	}
	return warnings
}
