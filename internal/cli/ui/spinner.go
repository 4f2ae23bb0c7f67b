package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// StepSpinner shows progress for one long-running step. In TTY mode it
// animates a braille spinner whose suffix can be updated while it runs; in
// non-TTY mode it prints plain lines so piped output stays readable.
type StepSpinner struct {
	mu     sync.Mutex
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	active bool
	noSpin bool // true when not a TTY
}

// NewStepSpinner creates a spinner that writes to w.
// Set noSpin=true for non-interactive environments.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

// Start begins a named step.
func (ss *StepSpinner) Start(msg string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s\n", msg)
		return
	}
	ss.s = spinner.New(
		spinner.CharSets[14], // braille dots
		80*time.Millisecond,
		spinner.WithWriter(ss.w),
	)
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.Start()
	ss.active = true
}

// Update replaces the message of the running step. In non-TTY mode each
// update is printed on its own line.
func (ss *StepSpinner) Update(msg string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s\n", msg)
		return
	}
	if ss.s != nil {
		ss.s.Lock()
		ss.s.Suffix = " " + msg
		ss.s.Unlock()
	}
}

// Done completes the current step with a green checkmark.
func (ss *StepSpinner) Done() {
	ss.finish(StyleSuccess.Render(SymbolCheck))
}

// Fail completes the current step with a red cross.
func (ss *StepSpinner) Fail() {
	ss.finish(StyleError.Render(SymbolCross))
}

// Stop halts the spinner without printing a status (for cleanup on signals).
func (ss *StepSpinner) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.stopLocked()
}

func (ss *StepSpinner) finish(symbol string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s %s\n", ss.msg, symbol)
		return
	}
	ss.stopLocked()
	fmt.Fprintf(ss.w, "\r  %s %s\n", ss.msg, symbol)
}

func (ss *StepSpinner) stopLocked() {
	if ss.s != nil && ss.active {
		ss.s.Stop()
		ss.active = false
	}
}
