package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/inspect"
	"github.com/xtxerr/numass/internal/storage"
)

func (a *app) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "browse the storage interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.NewValidation("shell", "stdin is not a terminal")
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			sh := newShell(cmd.Context(), svc, cmd.OutOrStdout())
			p := prompt.New(
				func(line string) { sh.execute(line) },
				sh.complete,
				prompt.OptionTitle("numass"),
				prompt.OptionLivePrefix(func() (string, bool) { return sh.cwd + "> ", true }),
				prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
					return breakline && isExit(in)
				}),
			)
			p.Run()
			return nil
		},
	}
}

var shellCommands = []prompt.Suggest{
	{Text: "ls", Description: "list a shelf or run"},
	{Text: "cd", Description: "change the current shelf"},
	{Text: "pwd", Description: "print the current shelf"},
	{Text: "points", Description: "list the points of a run"},
	{Text: "inspect", Description: "summarize the points of a run"},
	{Text: "refresh", Description: "rescan a shelf"},
	{Text: "help", Description: "show commands"},
	{Text: "exit", Description: "leave the shell"},
}

// shell interprets the interactive commands. It is independent of the
// terminal so it can be driven from tests.
type shell struct {
	ctx context.Context
	svc *storage.Service
	out io.Writer
	cwd string
}

func newShell(ctx context.Context, svc *storage.Service, out io.Writer) *shell {
	return &shell{ctx: ctx, svc: svc, out: out, cwd: "/"}
}

func isExit(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit":
		return true
	}
	return false
}

// abs resolves p against the current shelf.
func (s *shell) abs(p string) string {
	if p == "" {
		return s.cwd
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(s.cwd, p)
	}
	return path.Clean(p)
}

func (s *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || isExit(line) {
		return
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	var err error
	switch fields[0] {
	case "ls":
		err = printBrowse(s.out, s.svc.Tree(), s.abs(arg))
	case "cd":
		err = s.cd(arg)
	case "pwd":
		fmt.Fprintln(s.out, s.cwd)
	case "points":
		err = printPoints(s.out, s.svc, s.abs(arg))
	case "inspect":
		err = printInspect(s.out, s.svc, s.abs(arg), fields[min(2, len(fields)):], inspect.DefaultAccuracy)
	case "refresh":
		err = s.svc.Refresh(s.ctx, s.abs(arg))
	case "help":
		for _, c := range shellCommands {
			fmt.Fprintf(s.out, "  %-8s %s\n", c.Text, c.Description)
		}
	default:
		err = fmt.Errorf("unknown command %q, try help", fields[0])
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func (s *shell) cd(arg string) error {
	target := s.abs(arg)
	if arg == "" {
		target = "/"
	}
	n, err := s.svc.Tree().Resolve(target)
	if err != nil {
		return err
	}
	if _, err := n.Shelf(); err != nil {
		return err
	}
	s.cwd = n.Path()
	return nil
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	word := d.GetWordBeforeCursor()
	if !strings.Contains(before, " ") {
		return prompt.FilterHasPrefix(shellCommands, word, true)
	}
	return s.completePath(word)
}

// completePath suggests the children of the shelf named by the directory
// part of word.
func (s *shell) completePath(word string) []prompt.Suggest {
	dir, prefix := "", word
	if i := strings.LastIndex(word, "/"); i >= 0 {
		dir, prefix = word[:i+1], word[i+1:]
	}
	n, err := s.svc.Tree().Resolve(s.abs(dir))
	if err != nil {
		return nil
	}
	shelf, err := n.Shelf()
	if err != nil {
		return nil
	}

	var out []prompt.Suggest
	for _, child := range shelf.Children() {
		if !strings.HasPrefix(child.Name(), prefix) {
			continue
		}
		text := dir + child.Name()
		if child.IsShelf() {
			text += "/"
		}
		out = append(out, prompt.Suggest{Text: text, Description: child.Kind()})
	}
	return out
}
