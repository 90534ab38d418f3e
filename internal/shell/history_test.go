package shell

import (
	"context"
	"testing"

	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRingSuppressesConsecutiveDup(t *testing.T) {
	h := NewHistoryRing()
	h.Add("ls -l")
	h.Add("ls -l")
	h.Add("pwd")
	assert.Equal(t, []string{"ls -l", "pwd"}, h.Entries())
}

func TestHistoryRingIgnoresEmpty(t *testing.T) {
	h := NewHistoryRing()
	h.Add("")
	h.Add("   ")
	assert.Empty(t, h.Entries())
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	h := NewHistoryRing()
	for i := 0; i < historyCapacity+10; i++ {
		h.Add(string(rune('a' + i%26)))
	}
	assert.Len(t, h.Entries(), historyCapacity)
}

func TestHistoryRingAt(t *testing.T) {
	h := NewHistoryRing()
	h.Add("one")
	h.Add("two")
	h.Add("three")

	v, ok := h.At(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = h.At(-1)
	require.True(t, ok)
	assert.Equal(t, "three", v)

	_, ok = h.At(100)
	assert.False(t, ok)
}

func TestHistoryRingExpandBang(t *testing.T) {
	h := NewHistoryRing()
	h.Add("echo hi")
	h.Add("ls -la")

	expanded, err := h.ExpandBang("!1")
	require.NoError(t, err)
	assert.Equal(t, "echo hi", expanded)

	expanded, err = h.ExpandBang("!-1")
	require.NoError(t, err)
	assert.Equal(t, "ls -la", expanded)

	expanded, err = h.ExpandBang("pwd")
	require.NoError(t, err)
	assert.Equal(t, "pwd", expanded)

	_, err = h.ExpandBang("!99")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestHistoryRingSearch(t *testing.T) {
	h := NewHistoryRing()
	h.Add("cd /tmp")
	h.Add("git status")
	h.Add("git commit -m wip")

	v, ok := h.Search("git")
	require.True(t, ok)
	assert.Equal(t, "git commit -m wip", v)

	_, ok = h.Search("docker")
	assert.False(t, ok)
}

func TestHistoryRingSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := NewHistoryRing()
	h.Add("echo a")
	h.Add("echo b")
	require.NoError(t, h.Save(ctx, store, "history"))

	h2 := NewHistoryRing()
	require.NoError(t, h2.Load(ctx, store, "history"))
	assert.Equal(t, h.Entries(), h2.Entries())
}

func TestHistoryRingLoadMissingFileIsNotError(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	h := NewHistoryRing()
	require.NoError(t, h.Load(ctx, store, "missing"))
	assert.Empty(t, h.Entries())
}
