//go:build linux || darwin

package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/kazz187/mysh/pkg/cerr"
	"github.com/kazz187/mysh/pkg/color"
)

func biJobs(_ context.Context, e *Executor, _ []string) (int, error) {
	for _, j := range e.jobs.All() {
		fmt.Fprintf(e.builtins.out, "%s %-8s %s\n", color.JobTag(j.ID), j.State.String(), j.Cmdline)
	}
	e.jobs.PruneDone()
	return 0, nil
}

// parseJobArg accepts "%3", "3", or no argument (meaning the most
// recently added job) and resolves it against the job table.
func parseJobArg(jobs *JobTable, argv []string) (*Job, error) {
	if len(argv) < 2 {
		all := jobs.All()
		if len(all) == 0 {
			return nil, cerr.NewError(cerr.JobNotFound, "no current job", nil)
		}
		return all[len(all)-1], nil
	}
	spec := strings.TrimPrefix(argv[1], "%")
	id, err := strconv.Atoi(spec)
	if err != nil {
		return nil, cerr.NewError(cerr.BuiltinUsage, "invalid job id: "+argv[1], err)
	}
	job, ok := jobs.Get(id)
	if !ok {
		return nil, cerr.NewError(cerr.JobNotFound, fmt.Sprintf("job %d not found", id), nil)
	}
	return job, nil
}

func biFg(ctx context.Context, e *Executor, argv []string) (int, error) {
	job, err := parseJobArg(e.jobs, argv)
	if err != nil {
		return 1, err
	}
	result, err := e.continueJob(ctx, job, true)
	if result == nil {
		return 1, err
	}
	if result.Job != nil {
		fmt.Fprintf(e.builtins.out, "%s Stopped\t%s\n", color.JobTag(result.Job.ID), result.Job.Cmdline)
	}
	return result.ExitCode, err
}

func biBg(_ context.Context, e *Executor, argv []string) (int, error) {
	job, err := parseJobArg(e.jobs, argv)
	if err != nil {
		return 1, err
	}
	if err := syscall.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
		return 1, cerr.NewError(cerr.SyscallFailure, "bg: failed to continue job", err)
	}
	e.jobs.SetState(job.ID, Running)
	fmt.Fprintf(e.builtins.out, "%s %s\n", color.JobTag(job.ID), job.Cmdline)
	return 0, nil
}
