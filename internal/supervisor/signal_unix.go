//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// terminate sends SIGTERM to the process group.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

// kill sends SIGKILL to the process group.
func kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

// signalGroup signals the whole group when p leads one, otherwise just p.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	pgid, err := unix.Getpgid(p.Pid)
	if err != nil || pgid != p.Pid {
		return signalProcess(p, sig)
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
