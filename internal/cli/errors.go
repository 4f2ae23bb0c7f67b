package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smsbridge/smsbridge/internal/cli/ui"
)

// hintError attaches fix suggestions to an error for display.
type hintError struct {
	err         error
	suggestions []string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

func withHints(err error, suggestions ...string) error {
	return &hintError{err: err, suggestions: suggestions}
}

// FormatError renders err for the terminal, including any suggestions
// attached by the command that failed.
func FormatError(err error) string {
	var h *hintError
	if errors.As(err, &h) {
		return ui.FormatError(err.Error(), h.suggestions...)
	}
	return ui.FormatError(err.Error())
}

// configHints wraps configuration errors with the usual ways to fix them.
func configHints(err error) error {
	return withHints(err,
		"smsbridge config init   # write a default smsbridge.toml",
		"smsbridge config        # show the resolved configuration",
	)
}

// portError wraps common listen errors with actionable suggestions.
func portError(port int, err error) error {
	if strings.Contains(err.Error(), "address already in use") {
		return withHints(fmt.Errorf("port %d is already in use", port),
			fmt.Sprintf("smsbridge serve --port %d   # use a different port", port+1),
		)
	}
	return err
}
