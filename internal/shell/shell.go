//go:build linux || darwin

package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kazz187/mysh/pkg/color"
)

// Shell wires together every component: variable/alias tables, history,
// the job table, the signal reaper, and the executor, and drives the
// read-eval-print loop.
type Shell struct {
	Env     *Env
	History *HistoryRing
	Jobs    *JobTable
	Reaper  *Reaper
	Exec    *Executor

	persist *Persistence
	log     *slog.Logger

	LastStatus int
}

func NewShell(persist *Persistence, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	env := NewEnv()
	jobs := NewJobTable()
	history := NewHistoryRing()
	reaper := NewReaper(jobs, log)
	builtins := NewBuiltins(history)
	exec := NewExecutor(env, jobs, reaper, builtins, log)

	return &Shell{
		Env:     env,
		History: history,
		Jobs:    jobs,
		Reaper:  reaper,
		Exec:    exec,
		persist: persist,
		log:     log,
	}
}

// expandAlias replaces line's first word with its alias expansion, if
// any, exactly once — an alias body that itself starts with an alias
// name is never expanded again, so aliases cannot recurse.
func expandAlias(env *Env, line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return line
	}
	leading := line[:len(line)-len(trimmed)]
	first, rest, _ := strings.Cut(trimmed, " ")
	value, ok := env.Alias(first)
	if !ok {
		return line
	}
	if rest == "" {
		return leading + value
	}
	return leading + value + " " + rest
}

// expandCommandAliases re-checks every Command after the first in an
// already-parsed Pipeline: a Command appearing after a "|" (e.g. "echo x
// | hi") never went through expandAlias, since that only ever sees the
// raw line's first word. The first Command is skipped because expandAlias
// already expanded it. For each later Command whose argv[0] names an
// alias, the alias value plus the remaining argv is re-tokenized in
// place. Like expandAlias, this is not recursive — the re-tokenized argv
// is never checked against the alias table again.
func expandCommandAliases(env *Env, p *Pipeline) {
	for i, c := range p.Commands {
		if i == 0 || len(c.Argv) == 0 {
			continue
		}
		value, ok := env.Alias(c.Argv[0])
		if !ok {
			continue
		}
		line := value
		if rest := strings.Join(c.Argv[1:], " "); rest != "" {
			line += " " + rest
		}
		tokens := Tokenize(line, env)
		argv := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if t.Kind == Word {
				argv = append(argv, t.Value)
			}
		}
		if len(argv) > 0 {
			c.Argv = argv
		}
	}
}

// Prompt formats the interactive prompt, showing the current working
// directory and the count of background jobs still tracked.
func (s *Shell) Prompt() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "?"
	}
	if n := s.Jobs.Len(); n > 0 {
		return fmt.Sprintf("%s [%d job%s] $ ", cwd, n, plural(n))
	}
	return cwd + " $ "
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// ReadLineFunc reads one line of input from the user, returning ok=false
// on EOF or read error.
type ReadLineFunc func(prompt string) (string, bool)

// Run drives the read-eval-print loop until EOF or an exit builtin ends
// the session, returning the process exit code.
func (s *Shell) Run(ctx context.Context, readLine ReadLineFunc) int {
	s.Reaper.Start(ctx)
	defer s.Reaper.Stop()

	if s.persist != nil {
		go s.persist.WatchConfig(ctx, s.Env)
	}

	for {
		s.Jobs.PruneDone()

		line, ok := readLine(s.Prompt())
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		expanded, err := s.History.ExpandBang(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			s.LastStatus = 1
			continue
		}
		if expanded != line {
			fmt.Println(expanded)
		}

		s.History.Add(expanded)

		if body, preview := IsPreview(expanded); preview {
			fmt.Println(Preview(body))
			continue
		}

		aliased := expandAlias(s.Env, expanded)

		tokens := Tokenize(aliased, s.Env)
		pipeline := Parse(tokens, expanded)
		if pipeline.Empty() {
			continue
		}
		expandCommandAliases(s.Env, pipeline)

		result, err := s.Exec.Run(ctx, pipeline)
		if err != nil {
			var exitReq *ExitRequest
			if errors.As(err, &exitReq) {
				if s.persist != nil {
					if err := s.persist.SaveAll(ctx, s.History, s.Env); err != nil {
						s.log.Warn("failed to save shell history/config", "error", err)
					}
				}
				return exitReq.Code
			}
			fmt.Fprintln(os.Stderr, err)
		}
		if result != nil {
			s.LastStatus = result.ExitCode
			if result.Job != nil && !pipeline.Background {
				fmt.Printf("%s Stopped\t%s\n", color.JobTag(result.Job.ID), result.Job.Cmdline)
			}
		}
	}

	if s.persist != nil {
		if err := s.persist.SaveAll(ctx, s.History, s.Env); err != nil {
			s.log.Warn("failed to save shell history/config", "error", err)
		}
	}
	return s.LastStatus
}
