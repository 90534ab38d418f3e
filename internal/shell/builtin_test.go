//go:build linux || darwin

package shell

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	env := NewEnv()
	jobs := NewJobTable()
	history := NewHistoryRing()
	reaper := NewReaper(jobs, nil)
	builtins := NewBuiltins(history)
	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	builtins.out = devNull
	t.Cleanup(func() { _ = devNull.Close() })
	return NewExecutor(env, jobs, reaper, builtins, nil)
}

func TestBuiltinCdChangesDirectory(t *testing.T) {
	e := newTestExecutor(t)
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	code, err := biCd(context.Background(), e, []string{"cd", dir})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	resolvedCwd, err := filepath.EvalSymlinks(cwd)
	require.NoError(t, err)
	assert.Equal(t, resolvedDir, resolvedCwd)
}

func TestBuiltinCdMissingDirFails(t *testing.T) {
	e := newTestExecutor(t)
	_, err := biCd(context.Background(), e, []string{"cd", "/no/such/dir/at/all"})
	assert.Error(t, err)
}

func TestBuiltinMkdirAndTouch(t *testing.T) {
	e := newTestExecutor(t)
	dir := filepath.Join(t.TempDir(), "a", "b")

	code, err := biMkdir(context.Background(), e, []string{"mkdir", dir})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(dir, "f.txt")
	code, err = biTouch(context.Background(), e, []string{"touch", file})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	_, err = os.Stat(file)
	assert.NoError(t, err)
}

func TestBuiltinExitReturnsExitRequest(t *testing.T) {
	e := newTestExecutor(t)
	code, err := biExit(context.Background(), e, []string{"exit", "3"})
	assert.Equal(t, 3, code)
	var exitReq *ExitRequest
	require.ErrorAs(t, err, &exitReq)
	assert.Equal(t, 3, exitReq.Code)
}

func TestBuiltinAliasSet(t *testing.T) {
	e := newTestExecutor(t)
	_, err := biAlias(context.Background(), e, []string{"alias", "ll=ls", "-la"})
	require.NoError(t, err)
	v, ok := e.env.Alias("ll")
	require.True(t, ok)
	assert.Equal(t, "ls -la", v)
}

func TestBuiltinUnaliasMissingReturnsNotFound(t *testing.T) {
	e := newTestExecutor(t)
	_, err := biUnalias(context.Background(), e, []string{"unalias", "nope"})
	assert.Error(t, err)
}

func TestBuiltinSetAndUnset(t *testing.T) {
	e := newTestExecutor(t)
	_, err := biSet(context.Background(), e, []string{"set", "FOO=bar"})
	require.NoError(t, err)
	v, ok := e.env.Lookup("FOO")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	_, err = biUnset(context.Background(), e, []string{"unset", "FOO"})
	require.NoError(t, err)
	_, ok = e.env.Lookup("FOO")
	assert.False(t, ok)
}

func TestBuiltinsLookupFindsRegisteredNames(t *testing.T) {
	e := newTestExecutor(t)
	for _, name := range []string{"cd", "exit", "jobs", "fg", "bg", "alias"} {
		_, ok := e.builtins.Lookup([]string{name})
		assert.True(t, ok, "expected builtin %q to be registered", name)
	}
	_, ok := e.builtins.Lookup([]string{"not-a-builtin"})
	assert.False(t, ok)
}
