// Package prompt defines the user-confirmation surface consumed by the core.
//
// Destructive or consequential actions (clear, delete, resume-overwrite,
// submit, transfer) are gated behind a Confirmer. The CLI wires Terminal
// over stdin; tests and --yes mode use Auto.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer asks the user a yes/no question and waits for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// Auto is a Confirmer returning a fixed answer. Use in tests and
// non-interactive (--yes) mode.
type Auto bool

// Confirm implements Confirmer.
func (a Auto) Confirm(context.Context, string, string) (bool, error) {
	return bool(a), nil
}

// Terminal is a Confirmer reading y/n answers from an input stream.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer. Anything but "y"/"yes" (case-insensitive)
// counts as a refusal.
func (t *Terminal) Confirm(ctx context.Context, title, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(t.Out, "%s\n%s [y/N]: ", title, message)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
