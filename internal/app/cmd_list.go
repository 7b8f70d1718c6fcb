package app

import (
	"fmt"
	"strings"

	"codeberg.org/sigterm-de/boopscript/internal/scripts"
	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:     "list [query]",
		Aliases: []string{"ls"},
		Short:   "List available scripts, optionally fuzzy filtered",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.loadCatalog(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			found := catalog.All()
			if len(args) == 1 {
				found = catalog.Search(args[0])
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render("no scripts found"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderList(found, verbose))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "long", "l", false, "show origin and tags")
	return cmd
}

func renderList(found []*scripts.Script, long bool) string {
	width := 0
	for _, s := range found {
		width = max(width, len(s.Name()))
	}

	var sb strings.Builder
	for _, s := range found {
		sb.WriteString(padRight(titleStyle.Render(s.Name()), width+2))
		sb.WriteString(s.Metadata.Description)
		if long {
			origin := "bundled"
			if !s.IsBundled() {
				origin = s.Path()
			}
			sb.WriteString(subtleStyle.Render("  [" + origin + "]"))
			if tags := s.Metadata.TagList(); len(tags) > 0 {
				sb.WriteString(subtleStyle.Render(" " + strings.Join(tags, ", ")))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
