//go:build !unix

package decompiler

import (
	"os/exec"
	"time"
)

type processGroup struct{}

// configureProcess keeps exec's default Cancel, which kills the process.
func configureProcess(*exec.Cmd, time.Duration) *processGroup { return &processGroup{} }

func (*processGroup) release() {}

func killedByHost(*exec.ExitError) bool { return false }
