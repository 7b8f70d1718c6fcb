package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"codeberg.org/sigterm-de/boopscript/internal/buffer"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoInput = errors.New("no input: pipe text on stdin or use --file")

type runFlags struct {
	file     string
	write    bool
	selStart int
	selEnd   int
}

func (c *cli) runCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script over stdin or a file and print the result",
		Long: `Run a script over text read from stdin or --file and print the resulting text to stdout.
With --selection-start and --selection-end (rune offsets) the script sees that range as its selection.
Messages posted by the script are printed to stderr; a posted error makes the command exit non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.write && flags.file == "" {
				return errors.New("--write requires --file")
			}
			catalog, err := c.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			script, err := findScript(catalog, args[0])
			if err != nil {
				return err
			}
			text, err := readInput(cmd.InOrStdin(), flags.file)
			if err != nil {
				return err
			}

			buf := buffer.New(text)
			if flags.selStart >= 0 && flags.selEnd >= 0 {
				buf.Select(flags.selStart, flags.selEnd)
			}

			status, err := script.Execute(buf.Text, buf.Selection())
			if err != nil {
				logging.Log(logging.ERROR, script.Name(), err.Error())
				return reportFailure(cmd.ErrOrStderr(), err)
			}
			reported := reportStatus(cmd.ErrOrStderr(), status)
			if err := buf.Apply(status.Replacement()); err != nil {
				return err
			}

			if flags.write {
				if err := os.WriteFile(flags.file, []byte(buf.Text), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", flags.file, err)
				}
			} else if _, err := io.WriteString(cmd.OutOrStdout(), buf.Text); err != nil {
				return err
			}
			return reported
		},
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "read text from this file instead of stdin")
	cmd.Flags().BoolVarP(&flags.write, "write", "w", false, "write the result back to --file")
	cmd.Flags().IntVar(&flags.selStart, "selection-start", -1, "selection start offset")
	cmd.Flags().IntVar(&flags.selEnd, "selection-end", -1, "selection end offset")
	return cmd
}

// readInput returns the contents of file, or all of in. An interactive
// terminal on stdin is refused rather than waited on.
func readInput(in io.Reader, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errNoInput
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
