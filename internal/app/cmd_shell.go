package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"codeberg.org/sigterm-de/boopscript/internal/buffer"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/adrg/xdg"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const shellHelp = `Each line is passed to the current script as the full text.
  :use <script>   switch to another script
  :list [query]   list scripts
  :reset          restart the current script's runtime
  :help           show this help
  :quit           leave the shell`

func (c *cli) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [script]",
		Short: "Run scripts interactively, one line at a time",
		Long:  "Start a shell that feeds each entered line to a script. Top-level script state persists between lines until :reset.\n\n" + shellHelp,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sh := &shell{catalog: catalog, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			if len(args) == 1 {
				if sh.current, err = findScript(catalog, args[0]); err != nil {
					return err
				}
			}

			if c.cfg.Watch {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go c.watchInBackground(ctx, catalog, sh.errOut)
			}
			return sh.run(cmd.InOrStdin())
		},
	}
}

type shell struct {
	catalog *scripts.Catalog
	current *scripts.Script
	out     io.Writer
	errOut  io.Writer
}

func (sh *shell) prompt() string {
	name := "none"
	if sh.current != nil {
		name = sh.current.Name()
	}
	return titleStyle.Render("boop["+name+"]") + "> "
}

func (sh *shell) run(in io.Reader) error {
	cfg := &readline.Config{
		Prompt:            sh.prompt(),
		HistoryLimit:      1000,
		AutoComplete:      sh.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
		Stdin:             io.NopCloser(in),
		Stdout:            sh.out,
		Stderr:            sh.errOut,
	}
	if p, err := xdg.StateFile(filepath.Join(appName, "history")); err == nil {
		cfg.HistoryFile = p
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer func() {
		_ = rl.Close()
	}()

	fmt.Fprintln(sh.errOut, subtleStyle.Render("type :help for commands"))
	for {
		rl.SetPrompt(sh.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Fprintln(sh.errOut, subtleStyle.Render("use :quit to exit"))
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("shell: read input: %w", err)
		}
		if sh.handle(line) {
			return nil
		}
	}
}

// completer offers shell commands and script names after :use.
func (sh *shell) completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(":use", readline.PcItemDynamic(func(string) []string {
			return sh.catalog.Names()
		})),
		readline.PcItem(":list"),
		readline.PcItem(":reset"),
		readline.PcItem(":help"),
		readline.PcItem(":quit"),
	)
}

// handle processes one input line and reports whether the shell should exit.
func (sh *shell) handle(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		sh.execute(line)
		return false
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":exit", ":q":
		return true
	case ":help":
		fmt.Fprintln(sh.out, shellHelp)
	case ":list":
		found := sh.catalog.All()
		if arg != "" {
			found = sh.catalog.Search(arg)
		}
		fmt.Fprint(sh.out, renderList(found, false))
	case ":use":
		s, err := findScript(sh.catalog, arg)
		if err != nil {
			fmt.Fprintln(sh.errOut, errorStyle.Render(err.Error()))
			return false
		}
		sh.current = s
	case ":reset":
		if sh.current == nil {
			fmt.Fprintln(sh.errOut, warningStyle.Render("no script selected"))
			return false
		}
		sh.current.Kill()
		fmt.Fprintln(sh.errOut, okStyle.Render(sh.current.Name()+" was reset"))
	default:
		fmt.Fprintln(sh.errOut, errorStyle.Render("unknown command "+name))
	}
	return false
}

func (sh *shell) execute(line string) {
	if sh.current == nil {
		fmt.Fprintln(sh.errOut, warningStyle.Render("no script selected, use :use <script>"))
		return
	}
	buf := buffer.New(line)
	status, err := sh.current.Execute(buf.Text, buf.Selection())
	if err != nil {
		_ = reportFailure(sh.errOut, err)
		logging.Log(logging.ERROR, sh.current.Name(), err.Error())
		return
	}
	_ = reportStatus(sh.errOut, status)
	if err := buf.Apply(status.Replacement()); err != nil {
		fmt.Fprintln(sh.errOut, errorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(sh.out, buf.Text)
}
