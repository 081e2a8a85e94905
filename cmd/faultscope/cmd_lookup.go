package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faultscope/faultscope/engine/faultcode"
)

func newLookupCmd() *cobra.Command {
	var flags struct {
		table     string
		equipment string
		list      bool
	}
	cmd := &cobra.Command{
		Use:   "lookup [code]",
		Short: "Print a code from the local table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := faultcode.Load(flags.table)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.list {
				for _, code := range table.Codes() {
					rec, _ := table.Lookup(code)
					fmt.Fprintf(out, "%-6s %s\n", code, rec.Description)
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("a code is required unless --list is given")
			}
			rec, ok := table.Lookup(args[0])
			if !ok {
				return fmt.Errorf("code %s is not in the local table", args[0])
			}
			fmt.Fprint(out, faultcode.Format(faultcode.FromRecord(rec, flags.equipment)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.table, "table", "", "YAML table overlaid on the built-in codes")
	f.StringVar(&flags.equipment, "equipment", "Generic vehicle", "Equipment shown in the report")
	f.BoolVar(&flags.list, "list", false, "List every code in the table")
	return cmd
}
