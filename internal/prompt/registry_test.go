package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPrompts(t *testing.T) {
	r := NewRegistry()
	for _, role := range []string{"diagnoser", "validator", "advisor"} {
		p := r.System(role)
		assert.NotEmpty(t, p, role)
		assert.Contains(t, p, "JSON", "every built-in pins the output contract")
	}
	assert.Empty(t, r.System("gardener"))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
roles:
  validator: |
    Custom validator prompt. Respond with ONLY a JSON object.
  gardener: ignored, unknown role
  advisor: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadOverrides(path))

	assert.Contains(t, r.System("validator"), "Custom validator prompt")
	// Unknown roles and empty overrides fall back to built-ins.
	assert.Empty(t, r.System("gardener"))
	assert.Equal(t, defaultPrompts()["advisor"], r.System("advisor"))
	assert.Equal(t, defaultPrompts()["diagnoser"], r.System("diagnoser"))
}

func TestLoadOverridesMissingFile(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, defaultPrompts()["diagnoser"], r.System("diagnoser"))
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  advisor: first advisor prompt\n"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadOverrides(path))
	require.NoError(t, r.Watch())
	t.Cleanup(r.Close)

	require.Equal(t, "first advisor prompt", r.System("advisor"))

	require.NoError(t, os.WriteFile(path, []byte("roles:\n  advisor: second advisor prompt\n"), 0o644))
	assert.Eventually(t, func() bool {
		return r.System("advisor") == "second advisor prompt"
	}, 3*time.Second, 10*time.Millisecond, "rewrite should be picked up without a restart")

	// A broken rewrite is rejected and the last good overrides stay active.
	require.NoError(t, os.WriteFile(path, []byte("roles: [not, a, map]"), 0o644))
	assert.Never(t, func() bool {
		return r.System("advisor") != "second advisor prompt"
	}, 300*time.Millisecond, 25*time.Millisecond)
}

func TestLoadOverridesRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: [not, a, map]"), 0o644))
	r := NewRegistry()
	assert.Error(t, r.LoadOverrides(path))
}
