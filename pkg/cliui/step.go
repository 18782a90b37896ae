package cliui

import (
	"fmt"
	"io"
	"os"
	"time"
)

var (
	spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	spinnerStyle  = renderer.NewStyle().Foreground(green)
)

const frameInterval = 80 * time.Millisecond

// Step runs fn and reports it on w as a single line ending in a mark and the
// elapsed time. A spinner animates the line while fn runs when w is a
// terminal.
func Step(w io.Writer, msg string, fn func() error) error {
	stop := func() {}
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		stop = spin(w, msg)
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	stop()

	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, StepStyle.Render("("+FormatDuration(elapsed)+")"))
	return err
}

// spin draws frames until the returned func is called. The func returns
// once drawing has stopped.
func spin(w io.Writer, msg string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
