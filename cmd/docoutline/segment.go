package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/parser"
	"github.com/dgallion1/docoutline/internal/segment"
)

var segmentJSON bool

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Print the blocks a document splits into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		p, err := parser.ForFile(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		src, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		blocks := segment.SegmentWith(src.Text, segment.Config{ListIndent: cfg.Segment.ListIndent}).Blocks
		out := cmd.OutOrStdout()
		if segmentJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(blocks)
		}
		for i, b := range blocks {
			marker := " "
			if b.Meaningful {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s %s\n", summaryStyle.Render(fmt.Sprintf("%4d", i)), marker, b.Content)
		}
		return nil
	},
}

func init() {
	segmentCmd.Flags().BoolVar(&segmentJSON, "json", false, "Print blocks as a JSON array")
	rootCmd.AddCommand(segmentCmd)
}
