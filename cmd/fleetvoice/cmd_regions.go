package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/fleetvoice/pkg/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the spoken region names the skill understands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printRegions(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}

func printRegions(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPOKEN\tREGION")
	for _, name := range region.Names() {
		fmt.Fprintf(w, "%s\t%s\n", name, region.Resolve(name))
	}
	fmt.Fprintf(w, "(anything else)\t%s\n", region.Default)
	return w.Flush()
}
