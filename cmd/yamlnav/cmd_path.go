package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lexcodex/yamlnav/framework/symbols"
)

func newPathCmd() *cobra.Command {
	var copyForm bool
	cmd := &cobra.Command{
		Use:   "path FILE LINE[:COL]",
		Short: "Print the key path active at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			line, col, err := parsePosition(args[1])
			if err != nil {
				return err
			}
			list, lines, err := scanFile(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			if line > lines.LineCount() {
				return fmt.Errorf("line %d is past the end of %s", line, args[0])
			}
			cursor := symbols.Cursor(symbols.Position{Line: line - 1, Column: col - 1})
			sym, ok := symbols.Resolve(list, []symbols.Selection{cursor})
			if !ok {
				return fmt.Errorf("no key at %s:%s", args[0], args[1])
			}
			path := sym.Path
			if copyForm {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				path = cfg.LocaleRule().Apply(path, filepath.ToSlash(abs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyForm, "copy-form", false, "Apply the locale rule, as the copy command does")
	return cmd
}
