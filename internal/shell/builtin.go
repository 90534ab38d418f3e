//go:build linux || darwin

package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/color"
)

// Builtin is one built-in command's implementation. It runs in-process
// (no fork) and returns the shell-visible exit code alongside any error
// worth logging.
type Builtin func(ctx context.Context, e *Executor, argv []string) (int, error)

// Builtins is the name -> implementation dispatch table, plus the
// shared state builtins need: command history and the output stream.
type Builtins struct {
	table   map[string]Builtin
	history *HistoryRing
	out     *os.File
}

func NewBuiltins(history *HistoryRing) *Builtins {
	b := &Builtins{history: history, out: os.Stdout}
	b.table = map[string]Builtin{
		"cd":        biCd,
		"exit":      biExit,
		"mkdir":     biMkdir,
		"touch":     biTouch,
		"clear":     biClear,
		"history":   b.biHistory,
		"histsearch": b.biHistsearch,
		"jobs":      biJobs,
		"fg":        biFg,
		"bg":        biBg,
		"alias":     biAlias,
		"unalias":   biUnalias,
		"unset":     biUnset,
		"set":       biSet,
		"vars":      biVars,
		"aliases":   biAliases,
	}
	return b
}

// Lookup returns the builtin matching argv's command word, if any.
func (b *Builtins) Lookup(argv []string) (Builtin, bool) {
	if len(argv) == 0 {
		return nil, false
	}
	bi, ok := b.table[argv[0]]
	return bi, ok
}

// Names returns every registered builtin name, sorted.
func (b *Builtins) Names() []string {
	names := make([]string, 0, len(b.table))
	for k := range b.table {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ExitRequest is returned by the exit builtin and unwrapped by the
// shell's REPL loop to end the session with the requested code.
type ExitRequest struct {
	Code int
}

func (r *ExitRequest) Error() string {
	return fmt.Sprintf("exit requested with code %d", r.Code)
}

func biExit(_ context.Context, _ *Executor, argv []string) (int, error) {
	code := 0
	if len(argv) > 1 {
		if _, err := fmt.Sscanf(argv[1], "%d", &code); err != nil {
			return 2, cerr.NewError(cerr.BuiltinUsage, "exit: numeric argument required", err)
		}
	}
	return code, &ExitRequest{Code: code}
}

func biCd(_ context.Context, e *Executor, argv []string) (int, error) {
	dir := homeDir()
	if len(argv) > 1 {
		dir = expandTilde(argv[1])
	}
	if err := os.Chdir(dir); err != nil {
		return 1, cerr.NewError(cerr.SyscallFailure, "cd: "+dir, err)
	}
	return 0, nil
}

func biMkdir(_ context.Context, _ *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "mkdir: missing operand", nil)
	}
	var errs []error
	for _, dir := range argv[1:] {
		if err := os.MkdirAll(expandTilde(dir), 0o755); err != nil {
			errs = append(errs, cerr.NewError(cerr.SyscallFailure, "mkdir: "+dir, err))
		}
	}
	if len(errs) > 0 {
		return 1, errors.Join(errs...)
	}
	return 0, nil
}

func biTouch(_ context.Context, _ *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "touch: missing operand", nil)
	}
	for _, path := range argv[1:] {
		path = expandTilde(path)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return 1, cerr.NewError(cerr.SyscallFailure, "touch: "+path, err)
		}
		now := time.Now()
		_ = os.Chtimes(path, now, now)
		_ = f.Close()
	}
	return 0, nil
}

func biClear(_ context.Context, e *Executor, _ []string) (int, error) {
	fmt.Fprint(e.builtins.out, color.ClearScreen())
	return 0, nil
}

func (b *Builtins) biHistory(_ context.Context, e *Executor, argv []string) (int, error) {
	for i, entry := range b.history.Entries() {
		fmt.Fprintf(e.builtins.out, "%5d  %s\n", i+1, entry)
	}
	return 0, nil
}

func (b *Builtins) biHistsearch(_ context.Context, e *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "histsearch: missing pattern", nil)
	}
	term := strings.Join(argv[1:], " ")
	found := false
	for _, entry := range b.history.Entries() {
		if strings.Contains(entry, term) {
			fmt.Fprintln(e.builtins.out, entry)
			found = true
		}
	}
	if !found {
		return 1, cerr.NewError(cerr.NotFound, "histsearch: no match", nil)
	}
	return 0, nil
}

func biAlias(_ context.Context, e *Executor, argv []string) (int, error) {
	if len(argv) == 1 {
		for _, name := range e.env.AliasNames() {
			v, _ := e.env.Alias(name)
			fmt.Fprintf(e.builtins.out, "alias %s='%s'\n", name, v)
		}
		return 0, nil
	}
	arg := strings.Join(argv[1:], " ")
	name, value, ok := strings.Cut(arg, "=")
	if !strings.Contains(argv[1], "=") && len(argv) > 2 {
		name, value, ok = argv[1], strings.Join(argv[2:], " "), true
	}
	if !ok {
		return 2, cerr.NewError(cerr.BuiltinUsage, "alias: expected name=value or name value", nil)
	}
	value = strings.Trim(value, `'"`)
	e.env.SetAlias(name, value)
	return 0, nil
}

func biUnalias(_ context.Context, e *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "unalias: missing name", nil)
	}
	if !e.env.UnsetAlias(argv[1]) {
		return 1, cerr.NewError(cerr.NotFound, "unalias: "+argv[1]+" not found", nil)
	}
	return 0, nil
}

func biUnset(_ context.Context, e *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "unset: missing name", nil)
	}
	if !e.env.UnsetVar(argv[1]) {
		return 1, cerr.NewError(cerr.NotFound, "unset: "+argv[1]+" not set", nil)
	}
	return 0, nil
}

func biSet(_ context.Context, e *Executor, argv []string) (int, error) {
	if len(argv) < 2 {
		return 2, cerr.NewError(cerr.BuiltinUsage, "set: expected name=value", nil)
	}
	arg := strings.Join(argv[1:], " ")
	name, value, ok := strings.Cut(arg, "=")
	if !strings.Contains(argv[1], "=") && len(argv) > 2 {
		name, value, ok = argv[1], strings.Join(argv[2:], " "), true
	}
	if !ok {
		return 2, cerr.NewError(cerr.BuiltinUsage, "set: expected name=value or name value", nil)
	}
	e.env.SetVar(name, value)
	return 0, nil
}

func biVars(_ context.Context, e *Executor, _ []string) (int, error) {
	vars := e.env.Vars()
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(e.builtins.out, "%s=%s\n", k, vars[k])
	}
	return 0, nil
}

func biAliases(_ context.Context, e *Executor, argv []string) (int, error) {
	return biAlias(context.Background(), e, argv[:1])
}
