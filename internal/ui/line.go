package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rtsh13/relay/internal/teps"
	"github.com/rtsh13/relay/internal/types"
)

// blockDelimiter opens and closes multi-line input in line mode.
const blockDelimiter = `"""`

// ErrInterrupted is returned when the operator cancels a prompt with Ctrl+C.
var ErrInterrupted = errors.New("input interrupted")

// LineInput reads operator input line by line. It works on any reader,
// including pipes.
type LineInput struct {
	r      *bufio.Reader
	out    io.Writer
	styles Styles
}

// NewLineInput creates a line-mode prompter.
func NewLineInput(in io.Reader, out io.Writer, styles Styles) *LineInput {
	return &LineInput{r: bufio.NewReader(in), out: out, styles: styles}
}

// ReadInput prints prompt and reads one line. A line holding only `"""`
// starts a block that runs until the next such line. io.EOF is returned at
// end of input.
func (l *LineInput) ReadInput(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(l.out, l.styles.Prompt.Render(prompt+" "))

	line, err := l.readLine()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", ErrInterrupted
	}

	if strings.TrimSpace(line) != blockDelimiter {
		return line, nil
	}

	var block []string
	for {
		next, err := l.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(block) > 0 {
				return strings.Join(block, "\n"), nil
			}
			return "", err
		}
		if strings.TrimSpace(next) == blockDelimiter {
			return strings.Join(block, "\n"), nil
		}
		block = append(block, next)
	}
}

func (l *LineInput) readLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks for y (accept), n (decline) or d (dry run) until it gets one.
func (l *LineInput) Confirm(ctx context.Context, req types.ToolRequest) (teps.Decision, error) {
	for {
		fmt.Fprint(l.out, l.styles.Prompt.Render(fmt.Sprintf("Run %s? [y]es / [n]o / [d]ry run: ", req.ToolName)))

		line, err := l.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return teps.Decline, fmt.Errorf("input closed during confirmation: %w", io.ErrUnexpectedEOF)
			}
			return teps.Decline, err
		}
		if ctx.Err() != nil {
			return teps.Decline, nil
		}

		if d, ok := parseDecision(line); ok {
			return d, nil
		}
		fmt.Fprintln(l.out, l.styles.Notice.Render("Please answer y, n or d."))
	}
}

func parseDecision(s string) (teps.Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return teps.Accept, true
	case "n", "no":
		return teps.Decline, true
	case "d", "dry", "dry-run", "dryrun":
		return teps.DryRun, true
	default:
		return teps.Decline, false
	}
}
