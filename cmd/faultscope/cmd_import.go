package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/faultscope/faultscope/engine/faultcode"
)

func newImportCmd() *cobra.Command {
	var flags struct {
		table string
	}
	cmd := &cobra.Command{
		Use:   "import <harvest.json>",
		Short: "Fold a harvest file into a YAML table overlay",
		Long:  "import adds harvested codes that are neither built in nor already in the\noverlay table. Point FAULTCODE_TABLE at the result to serve them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			harvested, err := faultcode.ReadHarvest(args[0])
			if err != nil {
				return err
			}

			records := map[string]faultcode.Record{}
			data, err := os.ReadFile(flags.table)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				return err
			default:
				if records, err = faultcode.Parse(data); err != nil {
					return fmt.Errorf("parse %s: %w", flags.table, err)
				}
			}

			builtin, err := faultcode.Default()
			if err != nil {
				return err
			}
			fresh := harvested[:0:0]
			for _, h := range harvested {
				if _, ok := builtin.Lookup(h.Code); !ok {
					fresh = append(fresh, h)
				}
			}

			added := faultcode.Import(records, fresh)
			out, err := faultcode.Marshal(records)
			if err != nil {
				return err
			}
			if err := os.WriteFile(flags.table, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d new codes (%d harvested, %d in %s)\n", added, len(harvested), len(records), flags.table)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.table, "table", "faultcodes.local.yaml", "Overlay table to create or extend")
	return cmd
}
