//go:build unix

package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup makes the child a session and process-group leader so a
// signal to -pid reaches everything it forks.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// verifyGroupLeader returns the child's pgid, failing unless it leads its own group.
func verifyGroupLeader(pid int) (int, error) {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return 0, fmt.Errorf("getpgid %d: %w", pid, err)
	}
	if pgid != pid {
		return 0, fmt.Errorf("process %d is in group %d, not its own", pid, pgid)
	}
	return pgid, nil
}

// signalGroup sends sig to every process in the group led by pgid.
func signalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 1 {
		return fmt.Errorf("refusing to signal process group %d", pgid)
	}
	return unix.Kill(-pgid, sig)
}

func groupGone(err error) bool {
	return errors.Is(err, unix.ESRCH)
}

// SignalByName maps names such as "SIGTERM" to signals.
func SignalByName(name string) (syscall.Signal, error) {
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
