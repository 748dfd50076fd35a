package core

import "fmt"

// PermissionLevel ranks how much trust an action requires
type PermissionLevel string

const (
	PermissionSafe       PermissionLevel = "safe"
	PermissionModerate   PermissionLevel = "moderate"
	PermissionElevated   PermissionLevel = "elevated"
	PermissionRestricted PermissionLevel = "restricted"
)

var permissionRank = map[PermissionLevel]int{
	PermissionSafe:       0,
	PermissionModerate:   1,
	PermissionElevated:   2,
	PermissionRestricted: 3,
}

// Valid reports whether l is one of the defined levels
func (l PermissionLevel) Valid() bool {
	_, ok := permissionRank[l]
	return ok
}

// AtMost reports whether l requires no more trust than max
func (l PermissionLevel) AtMost(max PermissionLevel) bool {
	return permissionRank[l] <= permissionRank[max]
}

// PermissionPolicy gates which action commands may run. A command passes
// when its required level does not exceed MaxLevel and, if AllowedCommands
// is non-empty, the command name appears in it. Restricted commands never
// pass regardless of MaxLevel.
type PermissionPolicy struct {
	MaxLevel        PermissionLevel
	AllowedCommands []string
}

// DefaultPermissionPolicy permits safe and moderate commands with no
// command allow-list.
func DefaultPermissionPolicy() PermissionPolicy {
	return PermissionPolicy{MaxLevel: PermissionModerate}
}

// Check returns nil when the command may execute, or an error describing
// why it was refused.
func (p PermissionPolicy) Check(command string, level PermissionLevel) error {
	if !level.Valid() {
		return fmt.Errorf("unknown permission level %q for command %q", level, command)
	}
	if level == PermissionRestricted {
		return fmt.Errorf("command %q is restricted", command)
	}
	if !level.AtMost(p.MaxLevel) {
		return fmt.Errorf("command %q requires %s permission, policy allows up to %s", command, level, p.MaxLevel)
	}
	if len(p.AllowedCommands) > 0 {
		for _, allowed := range p.AllowedCommands {
			if allowed == command {
				return nil
			}
		}
		return fmt.Errorf("command %q is not in the allowed command list", command)
	}
	return nil
}
