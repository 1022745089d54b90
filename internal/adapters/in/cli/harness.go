package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fatih/color"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// Status values of the scripted output record.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type successRecord struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

type errorRecord struct {
	Status string `json:"status"`
	Log    any    `json:"log"`
}

// run executes work and reports its outcome exactly once.
//
// Interactive: render prints the result, failures print one diagnostic on
// stderr. Scripted: one JSON line on stdout, {"status":"success","result":...}
// or {"status":"error","log":...}. A cancelled prompt reports nothing. run
// never returns the work error, so a failed command still exits 0.
func run[T any](ctx context.Context, a *App, work func(context.Context) (T, error), render func(io.Writer, T)) error {
	result, err := work(ctx)
	if err != nil {
		a.reportError(err)
		return nil
	}

	if a.opts.Interactive {
		render(a.stdout, result)
		return nil
	}

	line, err := json.Marshal(successRecord{Status: StatusSuccess, Result: result})
	if err != nil {
		a.reportError(fmt.Errorf("failed to encode result: %w", err))
		return nil
	}
	a.writeLine(line)
	return nil
}

func (a *App) reportError(err error) {
	if errors.Is(err, domain.ErrCancelled) {
		a.log.Debug("command cancelled by user")
		if a.opts.Interactive {
			_, _ = color.New(color.FgYellow).Fprintln(a.stderr, "Cancelled.")
		}
		return
	}

	if a.opts.Interactive {
		_, _ = fmt.Fprintln(a.stderr, cliRenderError(describeError(err)))
		return
	}

	line, marshalErr := json.Marshal(errorRecord{Status: StatusError, Log: errorLog(err)})
	if marshalErr != nil {
		line, _ = json.Marshal(errorRecord{Status: StatusError, Log: err.Error()})
	}
	a.writeLine(line)
}

func (a *App) writeLine(line []byte) {
	if _, err := fmt.Fprintf(a.stdout, "%s\n", line); err != nil {
		a.log.Error("could not write command output", "error", err)
	}
}

// errorLog is the "log" payload of an error record: structured when the
// error knows how to encode itself, its message otherwise.
func errorLog(err error) any {
	var m json.Marshaler
	if errors.As(err, &m) {
		return m
	}
	return err.Error()
}

// describeError maps err to the message shown in interactive mode.
func describeError(err error) string {
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized:
			return `Unauthorized. Please login first using the "auth login" command.`
		case http.StatusNotFound:
			return "Not found, or you are not authorized to access it."
		default:
			return fmt.Sprintf("Request failed (HTTP %d): %s", httpErr.StatusCode, httpErr.Message)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("Could not reach the server: %v", urlErr.Err)
	}

	var missing *domain.MissingOptionError
	if errors.As(err, &missing) || isValidationError(err) {
		return "Error: " + err.Error()
	}

	return "An unexpected error occurred: " + err.Error()
}

func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrVMIDRequired,
		domain.ErrInvalidDockerCredentials,
		domain.ErrEmptyRegistry,
		domain.ErrInteractiveRequired,
		domain.ErrNotLoggedIn,
		domain.ErrSessionUnknown,
		domain.ErrLoginTimeout,
		errUnreadableFile,
		ErrNoTerminal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
