package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionPolicyLevels(t *testing.T) {
	policy := PermissionPolicy{MaxLevel: PermissionModerate}

	assert.NoError(t, policy.Check("get_time", PermissionSafe))
	assert.NoError(t, policy.Check("open_app", PermissionModerate))
	assert.Error(t, policy.Check("install_package", PermissionElevated))
	assert.Error(t, policy.Check("format_disk", PermissionRestricted))
}

func TestPermissionPolicyRestrictedNeverPasses(t *testing.T) {
	policy := PermissionPolicy{MaxLevel: PermissionRestricted}

	err := policy.Check("format_disk", PermissionRestricted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restricted")
}

func TestPermissionPolicyAllowList(t *testing.T) {
	policy := PermissionPolicy{
		MaxLevel:        PermissionElevated,
		AllowedCommands: []string{"open_app", "set_volume"},
	}

	assert.NoError(t, policy.Check("open_app", PermissionSafe))
	assert.NoError(t, policy.Check("set_volume", PermissionModerate))

	err := policy.Check("delete_file", PermissionSafe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed command list")
}

func TestPermissionPolicyUnknownLevel(t *testing.T) {
	policy := DefaultPermissionPolicy()

	err := policy.Check("mystery", PermissionLevel("sudo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown permission level")
}

func TestPermissionLevelAtMost(t *testing.T) {
	assert.True(t, PermissionSafe.AtMost(PermissionSafe))
	assert.True(t, PermissionSafe.AtMost(PermissionRestricted))
	assert.True(t, PermissionModerate.AtMost(PermissionElevated))
	assert.False(t, PermissionElevated.AtMost(PermissionModerate))
	assert.False(t, PermissionRestricted.AtMost(PermissionElevated))
}
