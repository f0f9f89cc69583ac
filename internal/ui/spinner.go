// Package ui holds terminal widgets shared by the commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message on a terminal while a step without measurable
// progress runs. On other writers it prints the message once.
type Spinner struct {
	w        io.Writer
	message  string
	animated bool

	mu     sync.Mutex
	active bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		animated: isTerminal(w) && !color.NoColor,
		done:     make(chan struct{}),
	}
}

// Start shows the spinner.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true

	if !s.animated {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(frames) {
			select {
			case <-s.done:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%s %s", color.CyanString(frames[i]), s.message)
				s.mu.Unlock()
			}
		}
	}()
}

// Update changes the message while the spinner runs.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop clears the spinner and prints the outcome of the step.
func (s *Spinner) Stop(ok bool, final string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	if final == "" {
		return
	}
	mark := color.GreenString("✓")
	if !ok {
		mark = color.RedString("✗")
	}
	fmt.Fprintf(s.w, "%s %s\n", mark, final)
}

// Run shows a spinner while fn runs. Nothing is written when w is nil.
func Run(w io.Writer, message string, fn func() error) error {
	if w == nil {
		return fn()
	}
	s := NewSpinner(w, message)
	s.Start()
	err := fn()
	if err != nil {
		s.Stop(false, err.Error())
	} else {
		s.Stop(true, "done")
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
