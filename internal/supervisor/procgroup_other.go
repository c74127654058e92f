//go:build !unix

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

var errGroupUnsupported = errors.New("process groups are not supported on this platform")

func setProcessGroup(cmd *exec.Cmd) {}

func verifyGroupLeader(pid int) (int, error) { return 0, errGroupUnsupported }

func signalGroup(pgid int, sig syscall.Signal) error { return errGroupUnsupported }

func groupGone(err error) bool { return false }

// SignalByName always fails: builders cannot be supervised here.
func SignalByName(name string) (syscall.Signal, error) { return 0, errGroupUnsupported }
