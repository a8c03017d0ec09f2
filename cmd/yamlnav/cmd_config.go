package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{Use: "config", Short: "Inspect the effective configuration"}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration after file, environment and flags are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	configCmd.AddCommand(showCmd)
	return configCmd
}
