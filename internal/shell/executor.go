//go:build linux || darwin

package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/color"
	"github.com/kazz187/mysh/pkg/panicerr"
	"github.com/sourcegraph/conc"
)

// ttyFd is the controlling terminal used for foreground-group hand-off.
// Stdin is what an interactive shell actually reads its terminal from.
var ttyFd = int(os.Stdin.Fd())

// ExecResult summarizes how a pipeline's execution ended, for the
// caller to decide the next $? and whether a new job entered the table.
type ExecResult struct {
	ExitCode int
	Job      *Job // non-nil only for a backgrounded or stopped pipeline
}

// Executor runs parsed Pipelines: builtins always execute in-process —
// as a direct call when a builtin is the pipeline's only, unredirected
// stage, or as a goroutine stage surrogate otherwise, writing to/reading
// from the same pipe or redirected file an external command in that
// stage would have used. Every non-builtin stage launches one process
// per command, wired together with pipes, in a single new process group
// that briefly owns the controlling terminal when run in the
// foreground.
type Executor struct {
	env      *Env
	jobs     *JobTable
	reaper   *Reaper
	builtins *Builtins
	log      *slog.Logger
	shellPid int
}

func NewExecutor(env *Env, jobs *JobTable, reaper *Reaper, builtins *Builtins, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{env: env, jobs: jobs, reaper: reaper, builtins: builtins, log: log, shellPid: os.Getpid()}
}

// Run executes p and returns once its foreground work (if any) has
// finished or stopped; a backgrounded pipeline returns immediately with
// its Job populated.
func (e *Executor) Run(ctx context.Context, p *Pipeline) (*ExecResult, error) {
	if p.Empty() {
		return &ExecResult{ExitCode: 0}, nil
	}

	if len(p.Commands) == 1 && !p.HasRedirection() {
		if bi, ok := e.builtins.Lookup(p.Commands[0].Argv); ok {
			return e.runBuiltin(ctx, bi, p.Commands[0], p.Background)
		}
	}

	return e.runPipeline(ctx, p)
}

func (e *Executor) runBuiltin(ctx context.Context, bi Builtin, cmd *Command, background bool) (*ExecResult, error) {
	code, err := bi(ctx, e, cmd.Argv)
	if background {
		e.log.Debug("builtin ignores background request, ran synchronously", "argv", cmd.Argv)
	}
	if err != nil {
		return &ExecResult{ExitCode: code}, err
	}
	return &ExecResult{ExitCode: code}, nil
}

func (e *Executor) runPipeline(ctx context.Context, p *Pipeline) (*ExecResult, error) {
	n := len(p.Commands)
	cmds := make([]*exec.Cmd, n)
	biFns := make([]Builtin, n)
	stdins := make([]*os.File, n)
	stdouts := make([]*os.File, n)

	var pipeFiles []*os.File
	defer func() {
		for _, f := range pipeFiles {
			_ = f.Close()
		}
	}()

	for i, c := range p.Commands {
		if bi, ok := e.builtins.Lookup(c.Argv); ok {
			biFns[i] = bi
			continue
		}
		cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
		cmd.Env = os.Environ()
		cmds[i] = cmd
	}

	var pipeErr error
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			pipeErr = cerr.NewError(cerr.SyscallFailure, "failed to create pipe", err)
			break
		}
		pipeFiles = append(pipeFiles, r, w)
		stdouts[i] = w
		stdins[i+1] = r
	}
	if pipeErr != nil {
		return nil, pipeErr
	}

	for i, c := range p.Commands {
		if c.hasInfile() {
			f, err := os.Open(c.Infile)
			if err != nil {
				return nil, cerr.NewError(cerr.SyscallFailure, "failed to open input file", err)
			}
			pipeFiles = append(pipeFiles, f)
			stdins[i] = f
		} else if stdins[i] == nil {
			stdins[i] = os.Stdin
		}

		if c.hasOutfile() {
			flags := os.O_WRONLY | os.O_CREATE
			if c.Append {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(c.Outfile, flags, 0o644)
			if err != nil {
				return nil, cerr.NewError(cerr.SyscallFailure, "failed to open output file", err)
			}
			pipeFiles = append(pipeFiles, f)
			stdouts[i] = f
		} else if stdouts[i] == nil {
			stdouts[i] = os.Stdout
		}

		if cmds[i] != nil {
			cmds[i].Stdin = stdins[i]
			cmds[i].Stdout = stdouts[i]
			cmds[i].Stderr = os.Stderr
		}
	}

	// Builtin stages write directly to their assigned stdouts[i] (no
	// exec.Cmd duplicates the descriptor for them), so those files must
	// outlive the Start loop below; everything else is safe to close as
	// soon as every external child has its own duplicated copy.
	direct := make(map[*os.File]bool, n)
	for i := range p.Commands {
		if biFns[i] == nil {
			continue
		}
		if stdins[i] != nil && stdins[i] != os.Stdin {
			direct[stdins[i]] = true
		}
		if stdouts[i] != nil && stdouts[i] != os.Stdout {
			direct[stdouts[i]] = true
		}
	}

	leaderPgid := 0
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: leaderPgid}
		if err := cmd.Start(); err != nil {
			e.killStarted(cmds[:i])
			var notFound *exec.Error
			if errors.As(err, &notFound) {
				fmt.Fprintf(os.Stderr, "%s: command not found\n", cmd.Args[0])
				return &ExecResult{ExitCode: 127}, nil
			}
			return nil, cerr.NewError(cerr.SyscallFailure, fmt.Sprintf("failed to start %s", cmd.Args[0]), err)
		}
		if leaderPgid == 0 {
			leaderPgid = cmd.Process.Pid
		}
	}

	// Every child now has its own duplicated descriptor for each pipe and
	// redirected file; close our copies so a pipe reader sees EOF once
	// every writer ahead of it in the pipeline has exited. Files a
	// builtin stage uses directly are left open for its own goroutine to
	// close once it finishes writing.
	var remaining []*os.File
	for _, f := range pipeFiles {
		if direct[f] {
			remaining = append(remaining, f)
			continue
		}
		_ = f.Close()
	}
	pipeFiles = remaining

	builtinResults := make([]int, n)
	builtinErrs := make([]error, n)
	var builtinWG *conc.WaitGroup
	for i := range p.Commands {
		if biFns[i] == nil {
			continue
		}
		if builtinWG == nil {
			builtinWG = conc.NewWaitGroup()
		}
		argv := p.Commands[i].Argv
		in, out := stdins[i], stdouts[i]
		stageExec := &Executor{
			env:      e.env,
			jobs:     e.jobs,
			reaper:   e.reaper,
			log:      e.log,
			shellPid: e.shellPid,
			builtins: &Builtins{table: e.builtins.table, history: e.builtins.history, out: out},
		}
		run := panicerr.Safe(func() error {
			code, err := biFns[i](ctx, stageExec, argv)
			builtinResults[i] = code
			return err
		})
		builtinWG.Go(func() {
			if err := run(); err != nil {
				builtinErrs[i] = err
			}
			if in != os.Stdin {
				_ = in.Close()
			}
			if out != os.Stdout {
				_ = out.Close()
			}
		})
	}

	if leaderPgid == 0 {
		// Every stage was a builtin (a single redirected builtin skips
		// Run's single-command fast path, or several builtins are piped
		// together) — there is no process group or terminal to manage.
		if p.Background {
			e.log.Debug("builtin-only pipeline ignores background request, ran synchronously", "raw", p.Raw)
		}
		if builtinWG != nil {
			builtinWG.Wait()
		}
		last := n - 1
		if err := builtinErrs[last]; err != nil {
			return &ExecResult{ExitCode: builtinResults[last]}, err
		}
		return &ExecResult{ExitCode: builtinResults[last]}, nil
	}

	job := e.jobs.Add(leaderPgid, p.Raw)

	if p.Background {
		e.log.Info("started background job", "job", jobID(job), "pgid", leaderPgid)
		if job != nil {
			fmt.Fprintf(e.builtins.out, "%s %d\n", color.JobTag(job.ID), leaderPgid)
		}
		// Any builtin stage's goroutine is still running and owns its
		// direct pipe/redirect file; it closes that file itself when
		// done. Clearing pipeFiles here keeps the deferred cleanup from
		// racing it by closing the same file out from under it.
		pipeFiles = nil
		return &ExecResult{ExitCode: 0, Job: job}, nil
	}

	return e.waitForeground(ctx, cmds, builtinResults, builtinErrs, builtinWG, job, leaderPgid)
}

func jobID(j *Job) int {
	if j == nil {
		return -1
	}
	return j.ID
}

// waitForeground hands the terminal to leaderPgid, waits for every
// external process in the pipeline to finish and every builtin stage's
// goroutine to return, then reclaims the terminal for the shell itself.
// If the pipeline is stopped (SIGTSTP/SIGTTOU) rather than finishing, it
// returns with the job left in the Stopped state. builtinResults/
// builtinErrs carry the outcome of any stage whose cmds entry is nil
// (a builtin running in-process via builtinWG rather than execve'd).
func (e *Executor) waitForeground(ctx context.Context, cmds []*exec.Cmd, builtinResults []int, builtinErrs []error, builtinWG *conc.WaitGroup, job *Job, leaderPgid int) (*ExecResult, error) {
	e.reaper.SetForeground(leaderPgid)
	_ = tcSetForegroundPgid(ttyFd, leaderPgid)
	defer func() {
		e.reaper.SetForeground(0)
		_ = tcSetForegroundPgid(ttyFd, e.shellPid)
	}()

	lastExit := 0
	safeWait := panicerr.SafeContext(func(ctx context.Context) error {
		if builtinWG != nil {
			builtinWG.Wait()
		}
		for i, cmd := range cmds {
			if cmd == nil {
				lastExit = builtinResults[i]
				err := builtinErrs[i]
				if err == nil {
					continue
				}
				if _, ok := err.(*ExitRequest); ok {
					return err
				}
				if i == len(cmds)-1 {
					return cerr.NewError(cerr.SyscallFailure, "command failed", err)
				}
				continue
			}
			err := cmd.Wait()
			if err == nil {
				lastExit = 0
				continue
			}
			var exitErr *exec.ExitError
			if ok := asExitError(err, &exitErr); ok {
				if status, ok2 := exitErr.Sys().(syscall.WaitStatus); ok2 {
					if status.Stopped() {
						if job != nil {
							e.jobs.SetState(job.ID, Stopped)
						}
						return nil
					}
					if status.Signaled() {
						lastExit = 128 + int(status.Signal())
					} else {
						lastExit = status.ExitStatus()
					}
					continue
				}
			}
			if i == len(cmds)-1 {
				return cerr.NewError(cerr.SyscallFailure, "command failed", err)
			}
		}
		return nil
	})

	if err := safeWait(ctx); err != nil {
		if job != nil {
			e.jobs.Finish(leaderPgid, 1, false)
		}
		return &ExecResult{ExitCode: 1}, err
	}

	if job != nil {
		if j, ok := e.jobs.Get(job.ID); ok && j.State == Stopped {
			return &ExecResult{ExitCode: lastExit, Job: j}, nil
		}
		e.jobs.Finish(leaderPgid, lastExit, false)
		e.jobs.Remove(job.ID)
	}
	return &ExecResult{ExitCode: lastExit}, nil
}

// continueJob resumes a stopped (or already-running, backgrounded) job
// with SIGCONT. When foreground is true it also hands the job the
// controlling terminal and blocks until the job finishes or stops
// again, mirroring waitForeground but without a live []*exec.Cmd —
// fg can be invoked long after the original Start() calls returned, so
// it waits on the process group directly via Wait4(-pgid, ...).
func (e *Executor) continueJob(ctx context.Context, job *Job, foreground bool) (*ExecResult, error) {
	if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
		return &ExecResult{ExitCode: 1}, cerr.NewError(cerr.SyscallFailure, "failed to continue job", err)
	}
	e.jobs.SetState(job.ID, Running)

	if !foreground {
		return &ExecResult{ExitCode: 0, Job: job}, nil
	}

	e.reaper.SetForeground(job.Pgid)
	_ = tcSetForegroundPgid(ttyFd, job.Pgid)
	defer func() {
		e.reaper.SetForeground(0)
		_ = tcSetForegroundPgid(ttyFd, e.shellPid)
	}()

	exitCode := 0
	for {
		var status syscall.WaitStatus
		_, err := syscall.Wait4(-job.Pgid, &status, syscall.WUNTRACED, nil)
		if err != nil {
			if err == syscall.ECHILD {
				break
			}
			return &ExecResult{ExitCode: exitCode}, cerr.NewError(cerr.SyscallFailure, "wait4 failed", err)
		}
		if status.Stopped() {
			e.jobs.SetState(job.ID, Stopped)
			return &ExecResult{ExitCode: exitCode, Job: job}, nil
		}
		if status.Signaled() {
			exitCode = 128 + int(status.Signal())
		} else if status.Exited() {
			exitCode = status.ExitStatus()
		}
	}

	e.jobs.Finish(job.Pgid, exitCode, false)
	e.jobs.Remove(job.ID)
	return &ExecResult{ExitCode: exitCode}, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}

func (e *Executor) killStarted(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}

