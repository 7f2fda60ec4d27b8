package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/agentx-labs/agentpkg/internal/install"
)

// interactive reports whether conflicts may be asked about on stdin.
var interactive = stdinIsTerminal

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// terminal asks conflict and overwrite questions on stdin.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewReader(in), out: out}
}

func (t *terminal) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, question)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", install.ErrCancelled
		}
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

// Choose implements install.Decider.
func (t *terminal) Choose(ctx context.Context, c install.Conflict) (install.Resolution, error) {
	fmt.Fprintf(t.out, "%s %s\n", styleWarning.Render("Conflict:"), c)
	for {
		answer, err := t.ask(ctx, "? [k]eep both, [s]kip, [o]verwrite, [a]bort (k) ")
		if err != nil {
			return "", err
		}
		switch answer {
		case "", "k", "keep", "keep-both":
			return install.KeepBoth, nil
		case "s", "skip":
			return install.Skip, nil
		case "o", "overwrite":
			return install.Overwrite, nil
		case "a", "abort", "q":
			return "", install.ErrCancelled
		}
	}
}

// ConfirmOverwrite implements resolve.OverwriteConfirmer.
func (t *terminal) ConfirmOverwrite(ctx context.Context, name, current, candidate string) (bool, error) {
	answer, err := t.ask(ctx, fmt.Sprintf("? %s is resolved to %s; use %s instead? (y/N) ", name, current, candidate))
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "yes", nil
}
