package shell

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStartupFileSeedsVarsAndAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mysh.yaml")
	content := "vars:\n  EDITOR: vim\naliases:\n  ll: ls -la\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	env := NewEnv()
	require.NoError(t, LoadStartupFile(path, env))

	v, ok := env.Lookup("EDITOR")
	assert.True(t, ok)
	assert.Equal(t, "vim", v)

	a, ok := env.Alias("ll")
	assert.True(t, ok)
	assert.Equal(t, "ls -la", a)
}

func TestLoadStartupFileMissingIsNotError(t *testing.T) {
	env := NewEnv()
	err := LoadStartupFile(filepath.Join(t.TempDir(), "nope.yaml"), env)
	assert.NoError(t, err)
}

func TestLoadStartupFileInvalidYAMLIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mysh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vars: [this is not a map]"), 0o644))

	env := NewEnv()
	err := LoadStartupFile(path, env)
	assert.Error(t, err)
}
