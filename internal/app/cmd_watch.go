package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the user scripts directory and report script changes",
		Long:  "Watch the user scripts directory and validate scripts as they are saved. Stops on interrupt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := c.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := scripts.NewWatcher(c.cfg.ScriptsDir, catalog, scripts.WithNotify(printChange(cmd.OutOrStdout())))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render(fmt.Sprintf("watching %s (%d scripts loaded)", c.cfg.ScriptsDir, catalog.Len())))
			return w.Run(ctx)
		},
	}
}

// printChange reports each catalog change as one line on w.
func printChange(w io.Writer) func(scripts.ChangeEvent, error) {
	return func(ev scripts.ChangeEvent, err error) {
		switch {
		case err != nil:
			fmt.Fprintln(w, errorStyle.Render("invalid ")+ev.Path+subtleStyle.Render(": "+err.Error()))
		case ev.Kind == scripts.Removed:
			fmt.Fprintln(w, warningStyle.Render("removed ")+ev.Path)
		default:
			fmt.Fprintln(w, okStyle.Render("loaded  ")+ev.Path)
		}
	}
}

// watchInBackground keeps catalog in sync with the user directory until ctx
// is done. Failures only disable reloading.
func (c *cli) watchInBackground(ctx context.Context, catalog *scripts.Catalog, stderr io.Writer) {
	err := scripts.Watch(ctx, c.cfg.ScriptsDir, catalog, scripts.WithNotify(func(ev scripts.ChangeEvent, err error) {
		if err != nil {
			fmt.Fprintln(stderr, errorStyle.Render("reload failed: ")+ev.Path+": "+err.Error())
		}
	}))
	if err != nil {
		logging.Log(logging.WARN, "", "script reloading disabled: "+err.Error())
	}
}
