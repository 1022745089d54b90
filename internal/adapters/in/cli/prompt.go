package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"

	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// Prompter asks the user for input in interactive mode. An interrupted
// prompt returns domain.ErrCancelled.
type Prompter interface {
	// Input asks for one line of text. validate may be nil.
	Input(message string, validate func(string) error) (string, error)
	// Password asks for a masked secret.
	Password(message string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(message string, defaultValue bool) (bool, error)
	// Editor opens $EDITOR for multi-line text. validate may be nil.
	Editor(message string, validate func(string) error) (string, error)
}

// ErrNoTerminal is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNoTerminal = errors.New("cannot prompt: stdin is not a terminal")

// SurveyPrompter prompts on the controlling terminal with survey.
type SurveyPrompter struct {
	in  *os.File
	out *os.File
	err io.Writer
}

// NewSurveyPrompter returns a prompter on stdin/stdout. Survey errors are
// written to errOut.
func NewSurveyPrompter(errOut io.Writer) *SurveyPrompter {
	return &SurveyPrompter{in: os.Stdin, out: os.Stdout, err: errOut}
}

// Input implements Prompter.
func (p *SurveyPrompter) Input(message string, validate func(string) error) (string, error) {
	var answer string
	err := p.ask(&survey.Input{Message: message}, &answer, validate)
	return strings.TrimSpace(answer), err
}

// Password implements Prompter.
func (p *SurveyPrompter) Password(message string) (string, error) {
	var answer string
	err := p.ask(&survey.Password{Message: message}, &answer, nil)
	return answer, err
}

// Confirm implements Prompter.
func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	var answer bool
	err := p.ask(&survey.Confirm{Message: message, Default: defaultValue}, &answer, nil)
	return answer, err
}

// Editor implements Prompter.
func (p *SurveyPrompter) Editor(message string, validate func(string) error) (string, error) {
	var answer string
	err := p.ask(&survey.Editor{Message: message, FileName: "*.env"}, &answer, validate)
	return answer, err
}

func (p *SurveyPrompter) ask(prompt survey.Prompt, response any, validate func(string) error) error {
	if !term.IsTerminal(int(p.in.Fd())) {
		return ErrNoTerminal
	}

	opts := []survey.AskOpt{survey.WithStdio(p.in, p.out, p.err)}
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans any) error {
			s, ok := ans.(string)
			if !ok {
				return nil
			}
			return validate(s)
		}))
	}

	if err := survey.AskOne(prompt, response, opts...); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return domain.ErrCancelled
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// notEmpty rejects blank answers with "<what> cannot be empty".
func notEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

// readableFile accepts a path to a readable regular file. When optional,
// a blank answer is accepted too.
func readableFile(optional bool) func(string) error {
	return func(s string) error {
		path := strings.TrimSpace(s)
		if path == "" {
			if optional {
				return nil
			}
			return errors.New("path cannot be empty")
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("file %q does not exist or is not readable", path)
		}
		_ = f.Close()
		return nil
	}
}
