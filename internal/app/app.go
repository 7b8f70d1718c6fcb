// Package app is the boopscript command line: it loads configuration and
// scripts and drives them over stdin/stdout, an interactive shell or a
// directory watcher.
package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"codeberg.org/sigterm-de/boopscript/assets"
	"codeberg.org/sigterm-de/boopscript/internal/engine"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// annotationConfig set to "skip" runs a command on default settings without
// reading the config file.
const annotationConfig = "boopscript/config"

// errReported marks failures that were already shown to the user.
var errReported = errors.New("reported")

// cli carries state shared by all subcommands of one invocation.
type cli struct {
	version    string
	viper      *viper.Viper
	configFile string
	verbose    bool
	cfg        UserConfiguration
	catalog    *scripts.Catalog
}

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	c := newCLI(version)
	defer c.teardown()

	root := c.rootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(root.ErrOrStderr(), errorStyle.Render("Error: "+err.Error()))
		}
		return 1
	}
	return 0
}

func newCLI(version string) *cli {
	return &cli{version: version, viper: viper.New()}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Run Boop scripts over text",
		Long:          "boopscript runs Boop-compatible JavaScript text transformations on stdin, files or an interactive shell.",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default "+DefaultConfigPath()+")")
	flags.String("scripts-dir", "", "directory holding user scripts")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level to stderr")
	_ = c.viper.BindPFlag("scripts_dir", flags.Lookup("scripts-dir"))
	_ = c.viper.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(c.listCmd())
	root.AddCommand(c.runCmd())
	root.AddCommand(c.shellCmd())
	root.AddCommand(c.watchCmd())
	root.AddCommand(c.configCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotationConfig] == "skip" {
		c.cfg = DefaultConfiguration()
	} else {
		cfg, err := LoadConfiguration(c.viper, c.configFile)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	lvl, _ := logging.ParseLevel(c.cfg.LogLevel)
	if c.verbose {
		lvl = logging.DEBUG
		logging.SetOutput(cmd.ErrOrStderr())
	} else if _, err := logging.InitLogger(appName); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("warning: cannot initialise logger: "+err.Error()))
	}
	logging.SetLevel(lvl)
	logging.Log(logging.DEBUG, "", fmt.Sprintf("%s %s starting", appName, c.version))
	return nil
}

func (c *cli) teardown() {
	if c.catalog != nil {
		c.catalog.Close()
		c.catalog = nil
	}
	_ = logging.Close()
}

// loadCatalog loads bundled, system and user scripts. User directory
// problems are reported as warnings since bundled scripts still load.
func (c *cli) loadCatalog(stderr io.Writer) (*scripts.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	catalog, result, err := scripts.Load(assets.Scripts(), scripts.Dirs{
		System: SystemScriptDirs(),
		User:   c.cfg.ScriptsDir,
	}, c.cfg.HostOptions()...)
	if err != nil {
		if catalog == nil {
			return nil, err
		}
		fmt.Fprintln(stderr, warningStyle.Render("warning: "+err.Error()))
	}
	for _, skipped := range result.Skipped {
		logging.Log(logging.WARN, skipped.Path, "script was skipped during load: "+skipped.Err.Error())
	}
	logging.Log(logging.INFO, "", fmt.Sprintf("loaded %d bundled, %d system, %d user scripts (%d skipped)",
		result.Counts[scripts.Bundled], result.Counts[scripts.System], result.Counts[scripts.User], len(result.Skipped)))

	c.catalog = catalog
	return catalog, nil
}

// findScript looks a script up by exact name, falling back to a unique
// fuzzy match.
func findScript(catalog *scripts.Catalog, name string) (*scripts.Script, error) {
	if s, ok := catalog.Get(name); ok {
		return s, nil
	}
	found := catalog.Search(name)
	switch {
	case len(found) == 1:
		return found[0], nil
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %q", scripts.ErrScriptNotFound, name)
	}
	names := make([]string, 0, 3)
	for _, s := range found[:min(3, len(found))] {
		names = append(names, s.Name())
	}
	return nil, fmt.Errorf("%w: %q, did you mean %s?", scripts.ErrScriptNotFound, name, strings.Join(names, ", "))
}

// reportStatus prints a script's info and error messages to w and returns
// errReported when the script posted an error.
func reportStatus(w io.Writer, status *engine.ExecutionStatus) error {
	if info, ok := status.Info(); ok {
		fmt.Fprintln(w, okStyle.Render(info))
	}
	if msg, ok := status.ErrorMessage(); ok {
		fmt.Fprintln(w, errorStyle.Render(msg))
		return errReported
	}
	return nil
}

// reportFailure prints the user-facing notification for a failed run.
func reportFailure(w io.Writer, err error) error {
	fmt.Fprintln(w, errorStyle.Render(engine.Notification(err)))
	var ce *engine.CompileError
	var ee *engine.ExecuteError
	switch {
	case errors.As(err, &ce):
		printSourceLine(w, ce.Exception)
	case errors.As(err, &ee):
		printSourceLine(w, ee.Exception)
	}
	return errReported
}

func printSourceLine(w io.Writer, ex *engine.JSException) {
	if ex == nil || ex.Position == nil {
		return
	}
	p := ex.Position
	fmt.Fprintln(w, subtleStyle.Render(fmt.Sprintf("  at %s:%d", p.Resource, p.Line)))
	fmt.Fprintln(w, "  "+p.SourceLine)
	marker := strings.Repeat(" ", p.StartColumn) + strings.Repeat("^", max(1, p.EndColumn-p.StartColumn))
	fmt.Fprintln(w, "  "+errorStyle.Render(marker))
}
