package shell

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvSetAndLookupVar(t *testing.T) {
	e := NewEnv()
	e.SetVar("FOO", "bar")
	v, ok := e.Lookup("FOO")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestEnvLookupFallsBackToProcessEnv(t *testing.T) {
	os.Setenv("MYSH_TEST_VAR", "from-os")
	defer os.Unsetenv("MYSH_TEST_VAR")

	e := NewEnv()
	v, ok := e.Lookup("MYSH_TEST_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-os", v)
}

func TestEnvShellVarShadowsProcessEnv(t *testing.T) {
	os.Setenv("MYSH_TEST_VAR2", "from-os")
	defer os.Unsetenv("MYSH_TEST_VAR2")

	e := NewEnv()
	e.SetVar("MYSH_TEST_VAR2", "from-shell")
	v, ok := e.Lookup("MYSH_TEST_VAR2")
	assert.True(t, ok)
	assert.Equal(t, "from-shell", v)
}

func TestEnvAliasRoundTrip(t *testing.T) {
	e := NewEnv()
	e.SetAlias("ll", "ls -la")
	v, ok := e.Alias("ll")
	assert.True(t, ok)
	assert.Equal(t, "ls -la", v)
	assert.True(t, e.UnsetAlias("ll"))
	_, ok = e.Alias("ll")
	assert.False(t, ok)
}

func TestExpandTilde(t *testing.T) {
	os.Setenv("HOME", "/home/tester")
	defer os.Unsetenv("HOME")
	assert.Equal(t, "/home/tester/docs", expandTilde("~/docs"))
	assert.Equal(t, "/etc/passwd", expandTilde("/etc/passwd"))
	assert.Equal(t, "", expandTilde(""))
}
