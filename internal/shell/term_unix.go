//go:build linux || darwin

package shell

import "golang.org/x/sys/unix"

// tcGetForegroundPgid returns the process group currently owning fd's
// controlling terminal.
func tcGetForegroundPgid(fd int) (int, error) {
	pgid, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return 0, err
	}
	return pgid, nil
}

// tcSetForegroundPgid hands fd's controlling terminal to pgid. The
// shell and every job it launches race over terminal ownership this
// way: whichever process group is in the foreground is the only one
// allowed to read from the terminal without being stopped by SIGTTIN.
func tcSetForegroundPgid(fd int, pgid int) error {
	return unix.IoctlSetInt(fd, unix.TIOCSPGRP, pgid)
}
