package main

import (
	"github.com/spf13/cobra"

	"github.com/regardlab/regard/internal/config"
	"github.com/regardlab/regard/internal/logging"
	"github.com/regardlab/regard/internal/logtail"
)

func (c *cli) logsCmd() *cobra.Command {
	var lines int
	var level string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the end of the regard log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.opts.ConfigPath)
			if err != nil {
				return err
			}
			minLevel, err := logging.ParseLevel(level)
			if err != nil {
				return err
			}
			raw, err := logtail.Read(cfg.LogPath(), lines)
			if err != nil {
				return err
			}
			for _, e := range logtail.Filter(raw, minLevel) {
				c.printf("%s\n", e.Format())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to read, 0 for all")
	cmd.Flags().StringVar(&level, "level", "info", "lowest level to show")
	return cmd
}
