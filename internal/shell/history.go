package shell

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/storage"
)

// historyCapacity bounds the in-memory ring; the oldest entry is
// dropped once a new one pushes the ring past this size.
const historyCapacity = 1000

// HistoryRing is the bounded, append-only command history. A line
// identical to the immediately preceding one is never recorded twice in
// a row, matching an interactive shell's usual behavior when a user
// repeats a command by hitting enter twice.
type HistoryRing struct {
	mu      sync.RWMutex
	entries []string
}

func NewHistoryRing() *HistoryRing {
	return &HistoryRing{}
}

// Add appends line to the ring unless it is empty or a repeat of the
// last entry, evicting the oldest entry once the ring is full.
func (h *HistoryRing) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > historyCapacity {
		h.entries = h.entries[len(h.entries)-historyCapacity:]
	}
}

// Entries returns a snapshot of the history, oldest first.
func (h *HistoryRing) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// At returns the 1-based k-th entry (oldest is 1), used by "!k" history
// expansion. A negative k counts back from the most recent entry (-1 is
// the last one).
func (h *HistoryRing) At(k int) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.entries)
	idx := k - 1
	if k < 0 {
		idx = n + k
	}
	if idx < 0 || idx >= n {
		return "", false
	}
	return h.entries[idx], true
}

// Search returns the most recent entry containing substr.
func (h *HistoryRing) Search(substr string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if strings.Contains(h.entries[i], substr) {
			return h.entries[i], true
		}
	}
	return "", false
}

// ExpandBang rewrites a leading "!k" reference in line against the
// ring. A line that does not start with "!" followed by a digit or "-"
// is returned unchanged; a reference that is not a number, or that
// names no entry, returns an error.
func (h *HistoryRing) ExpandBang(line string) (string, error) {
	if !strings.HasPrefix(line, "!") {
		return line, nil
	}
	rest := line[1:]
	end := 0
	for end < len(rest) && (rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	if end == 0 {
		return line, nil
	}
	k, err := strconv.Atoi(rest[:end])
	if err != nil {
		return line, cerr.NewError(cerr.BuiltinUsage, "invalid history reference", err)
	}
	entry, ok := h.At(k)
	if !ok {
		return line, cerr.NewError(cerr.NotFound, "history entry not found", nil)
	}
	return entry + rest[end:], nil
}

// Load replaces the ring's contents from persisted storage at path, one
// entry per line. A missing file is not an error: a fresh shell simply
// starts with empty history.
func (h *HistoryRing) Load(ctx context.Context, store storage.Storage, path string) error {
	data, err := store.Read(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return cerr.NewError(cerr.PersistenceFailure, "failed to read history", err)
	}
	var entries []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			entries = append(entries, line)
		}
	}
	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return nil
}

// Save persists the ring's contents to path, one entry per line.
func (h *HistoryRing) Save(ctx context.Context, store storage.Storage, path string) error {
	h.mu.RLock()
	var sb strings.Builder
	for _, e := range h.entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	h.mu.RUnlock()
	if err := store.Write(ctx, path, []byte(sb.String())); err != nil {
		return cerr.NewError(cerr.PersistenceFailure, "failed to write history", err)
	}
	return nil
}
