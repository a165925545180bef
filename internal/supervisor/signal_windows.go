//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

// terminate has no graceful equivalent on Windows; the process is killed.
func terminate(p *os.Process) error {
	return kill(p)
}

func kill(p *os.Process) error {
	return signalProcess(p, os.Kill)
}
