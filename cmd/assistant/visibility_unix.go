//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// visibilityTarget is told when the terminal job is suspended or resumed.
type visibilityTarget interface {
	SetVisible(visible bool)
}

// watchVisibility pauses background refreshes while the process is
// suspended with job control and resumes them on SIGCONT.
func watchVisibility(target visibilityTarget) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGTSTP, syscall.SIGCONT)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				switch sig {
				case syscall.SIGTSTP:
					target.SetVisible(false)
					// Let the default action stop the process, then take
					// the signal back once we are continued.
					signal.Reset(syscall.SIGTSTP)
					_ = syscall.Kill(os.Getpid(), syscall.SIGTSTP)
				case syscall.SIGCONT:
					signal.Notify(sigs, syscall.SIGTSTP)
					target.SetVisible(true)
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
