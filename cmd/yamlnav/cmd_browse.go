package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/yamlnav/app/browse"
	"github.com/lexcodex/yamlnav/internal/runtime"
)

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Browse a YAML file with its active key path in the status bar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// the terminal belongs to the UI; logs go to the configured file only
			rt, err := runtime.New(cmd.Context(), cfg, io.Discard)
			if err != nil {
				return err
			}
			defer rt.Close()
			return browse.Run(cmd.Context(), browse.Options{
				Path:       args[0],
				Content:    string(data),
				Rule:       rt.Config.LocaleRule(),
				Workers:    rt.Workers,
				Classifier: rt.Classifier,
				Tracker:    rt.TrackerOptions(),
			})
		},
	}
}
