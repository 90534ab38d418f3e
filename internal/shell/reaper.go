//go:build linux || darwin

package shell

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Reaper owns the shell's signal handling: it forwards SIGINT/SIGTSTP
// to whichever process group currently owns the terminal, and reaps
// every exited or stopped child with a single Wait4 loop per SIGCHLD,
// folding results back into the job table. This is the self-pipe
// idiom's Go equivalent — os/signal.Notify delivers signals onto a
// channel read by an ordinary goroutine, so no async-signal-unsafe
// code ever runs inside a signal handler.
type Reaper struct {
	jobs *JobTable
	log  *slog.Logger
	// fgPgid is the process group currently in the foreground, 0 when
	// the shell itself owns the terminal. SIGINT/SIGTSTP are forwarded
	// here rather than left to hit the shell's own process group.
	fgPgid atomic.Int64
	sigCh  chan os.Signal
	done   chan struct{}
}

func NewReaper(jobs *JobTable, log *slog.Logger) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		jobs:  jobs,
		log:   log,
		sigCh: make(chan os.Signal, 16),
		done:  make(chan struct{}),
	}
}

// SetForeground records which process group currently owns the
// terminal, 0 meaning the shell itself.
func (r *Reaper) SetForeground(pgid int) {
	r.fgPgid.Store(int64(pgid))
}

func (r *Reaper) Foreground() int {
	return int(r.fgPgid.Load())
}

// Start ignores SIGTTOU/SIGTTIN process-wide (a background job writing
// to or reading from the terminal must never stop the shell itself)
// and begins the reaper loop in a goroutine. Call Stop to shut it down.
func (r *Reaper) Start(ctx context.Context) {
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	signal.Notify(r.sigCh, syscall.SIGCHLD, syscall.SIGINT, syscall.SIGTSTP)
	go r.loop(ctx)
}

func (r *Reaper) Stop() {
	signal.Stop(r.sigCh)
	close(r.done)
}

func (r *Reaper) loop(ctx context.Context) {
	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case sig := <-r.sigCh:
			switch sig {
			case syscall.SIGCHLD:
				r.reapAll(r.log)
			case syscall.SIGINT:
				r.forward(syscall.SIGINT, r.log)
			case syscall.SIGTSTP:
				r.forward(syscall.SIGTSTP, r.log)
			}
		}
	}
}

// forward relays sig to the foreground process group. When the shell
// itself is in the foreground (fgPgid == 0), the signal is simply
// dropped: an interactive shell must never stop or interrupt itself
// from its own prompt.
func (r *Reaper) forward(sig syscall.Signal, log *slog.Logger) {
	pgid := r.Foreground()
	if pgid == 0 {
		return
	}
	if err := syscall.Kill(-pgid, sig); err != nil {
		log.Debug("failed to forward signal to foreground group", "signal", sig.String(), "pgid", pgid, "error", err)
	}
}

// reapAll collapses the source's nested WNOHANG waitpid loop into a
// single Wait4(-1, ...) loop that drains every pending status change
// for every child, stopping once no more children are waitable or
// there are no children left at all (ECHILD).
//
// While a job owns the foreground, the executor itself blocks waiting
// on that job's processes (cmd.Wait for a pipeline it just started,
// Wait4 on the process group for "fg"); reapAll steps aside entirely
// during that window; so the two calls never race over the same
// zombie. It resumes full reaping as soon as the foreground job
// finishes, stops, or is backgrounded.
func (r *Reaper) reapAll(log *slog.Logger) {
	if r.Foreground() != 0 {
		return
	}
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG|syscall.WUNTRACED|syscall.WCONTINUED, nil)
		if err != nil {
			if err != syscall.ECHILD {
				log.Debug("wait4 failed", "error", err)
			}
			return
		}
		if pid <= 0 {
			return
		}
		r.applyStatus(pid, status, log)
	}
}

func (r *Reaper) applyStatus(pid int, status syscall.WaitStatus, log *slog.Logger) {
	// A stopped or continued process still exists, so getpgid(pid) finds
	// its group even for a non-leader stage of a multi-stage pipeline. An
	// exited or killed process has already been reaped by Wait4, so
	// getpgid fails (ESRCH) and the lookup falls back to pid itself,
	// which matches a job only for the group leader (pid == pgid). A
	// non-leader stage's exit therefore updates no job; a job becomes
	// Done when its leader exits.
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		pgid = pid
	}
	job, ok := r.jobs.ByPgid(pgid)
	if !ok {
		return
	}
	switch {
	case status.Stopped():
		r.jobs.SetState(job.ID, Stopped)
		log.Info("job stopped", "job", job.ID, "pgid", job.Pgid)
	case status.Continued():
		r.jobs.SetState(job.ID, Running)
		log.Info("job continued", "job", job.ID, "pgid", job.Pgid)
	case status.Exited():
		r.jobs.Finish(job.Pgid, status.ExitStatus(), false)
		log.Info("job exited", "job", job.ID, "pgid", job.Pgid, "exit_code", status.ExitStatus())
	case status.Signaled():
		r.jobs.Finish(job.Pgid, 128+int(status.Signal()), true)
		log.Info("job killed by signal", "job", job.ID, "pgid", job.Pgid, "signal", status.Signal().String())
	}
}
