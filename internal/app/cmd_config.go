package app

import (
	"fmt"

	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(c.cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration, log and scripts locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			path := c.configFile
			if path == "" {
				path = DefaultConfigPath()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config  "+path)
			fmt.Fprintln(out, "scripts "+c.cfg.ScriptsDir)
			if p := logging.Path(); p != "" {
				fmt.Fprintln(out, "log     "+p)
			}
			for _, dir := range SystemScriptDirs() {
				fmt.Fprintln(out, "system  "+dir)
			}
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the default settings",
		Annotations: map[string]string{annotationConfig: "skip"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.configFile
			if path == "" {
				path = DefaultConfigPath()
			}
			if err := WriteDefaultConfiguration(path, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("wrote "+path))
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
