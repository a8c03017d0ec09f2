package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/yamlnav/framework/symbols"
	"github.com/lexcodex/yamlnav/internal/runtime"
)

type outlineEntry struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func newOutlineCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "outline FILE",
		Short: "Print every key path in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			list, lines, err := scanFile(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			entries := make([]outlineEntry, 0, len(list))
			for _, sym := range list {
				pos := lines.Position(sym.Range.Begin)
				entries = append(entries, outlineEntry{Path: sym.Path, Line: pos.Line + 1, Column: pos.Column + 1})
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%d:%d %s\n", e.Line, e.Column, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outline as JSON")
	return cmd
}

// scanFile runs one extraction pass over path on the calling goroutine.
func scanFile(ctx context.Context, cfg runtime.Config, path string) (symbols.List, *symbols.LineIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := cfg.ClassifierImpl()
	if err != nil {
		return nil, nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	lines := symbols.NewLineIndex(string(data))
	tokens, err := classifier.KeyTokens(ctx, lines.Content())
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return symbols.ExtractIndexed(lines, tokens), lines, nil
}
