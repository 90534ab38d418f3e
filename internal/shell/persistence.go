package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/storage"
)

const (
	// DefaultHistoryFile is the history path under $HOME when the user
	// hasn't overridden it.
	DefaultHistoryFile = ".mysh_history"

	// configDebounce settles rapid-fire fsnotify events (editors often
	// write-then-rename) before a reload is attempted.
	configDebounce = 100 * time.Millisecond
)

// ConfigPath derives the alias/var config path from the history file
// path by appending "_config" — so a history file "foo" persists its
// config to "foo_config" rather than a fixed, independent name. This
// mirrors the source's derivation exactly, quirks included: overriding
// the history file also silently relocates the config file.
func ConfigPath(historyPath string) string {
	return historyPath + "_config"
}

// Persistence wires the shell's history and environment tables to a
// storage backend, with an optional fsnotify watch on the config file
// for picking up external edits (another shell's "alias" call, or a
// hand-edited file) without a restart.
type Persistence struct {
	store       storage.Storage
	historyPath string
	configPath  string
	log         *slog.Logger
}

func NewPersistence(store storage.Storage, historyPath string, log *slog.Logger) *Persistence {
	if log == nil {
		log = slog.Default()
	}
	return &Persistence{
		store:       store,
		historyPath: historyPath,
		configPath:  ConfigPath(historyPath),
		log:         log,
	}
}

// LoadAll loads history and the env config, tolerating either file
// being absent (a fresh shell profile).
func (p *Persistence) LoadAll(ctx context.Context, history *HistoryRing, env *Env) error {
	if err := history.Load(ctx, p.store, p.historyPath); err != nil {
		return err
	}
	return p.loadConfig(ctx, env)
}

// SaveAll persists history and the env config, called when the shell
// exits (the exit builtin, end of input, or SIGTERM).
func (p *Persistence) SaveAll(ctx context.Context, history *HistoryRing, env *Env) error {
	if err := history.Save(ctx, p.store, p.historyPath); err != nil {
		return err
	}
	return p.saveConfig(ctx, env)
}

// configLine formats one alias/var entry as "kind NAME=VALUE" — kind is
// "alias" or "set", matching the literal on-disk format so a hand-edited
// or another-shell-written config file round-trips without surprises.
func configLine(kind, name, value string) string {
	return fmt.Sprintf("%s %s=%s\n", kind, name, value)
}

func (p *Persistence) saveConfig(ctx context.Context, env *Env) error {
	var sb strings.Builder
	for name, value := range env.Vars() {
		sb.WriteString(configLine("set", name, value))
	}
	for name, value := range env.Aliases() {
		sb.WriteString(configLine("alias", name, value))
	}
	if err := p.store.Write(ctx, p.configPath, []byte(sb.String())); err != nil {
		return cerr.NewError(cerr.PersistenceFailure, "failed to write config", err)
	}
	return nil
}

func (p *Persistence) loadConfig(ctx context.Context, env *Env) error {
	data, err := p.store.Read(ctx, p.configPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return cerr.NewError(cerr.PersistenceFailure, "failed to read config", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		kind, rest, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			continue
		}
		name, value, ok := strings.Cut(rest, "=")
		if !ok {
			continue
		}
		switch kind {
		case "set":
			env.SetVar(name, value)
		case "alias":
			env.SetAlias(name, value)
		}
	}
	return nil
}

// WatchConfig watches the config file's directory for external changes
// and reloads env, debounced, whenever the file is created, written, or
// renamed; the content is not compared with what was loaded before. It
// returns once ctx is canceled; errors setting up the watch are logged
// and treated as "hot reload unavailable" rather than fatal, since the
// shell works fine without it.
func (p *Persistence) WatchConfig(ctx context.Context, env *Env) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Debug("config hot-reload unavailable", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(p.configPath)
	name := filepath.Base(p.configPath)
	if err := watcher.Add(dir); err != nil {
		p.log.Debug("failed to watch config directory", "dir", dir, "error", err)
		return
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(configDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		case <-reload:
			if err := p.loadConfig(ctx, env); err != nil {
				p.log.Debug("config reload failed", "error", err)
			}
		}
	}
}
