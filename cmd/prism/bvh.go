package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newBVHCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bvh",
		Short: "Print acceleration structure statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			st, err := newStage(cfg, cfg.Width, cfg.Height)
			if err != nil {
				return err
			}
			ts, err := st.traceScene()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAutoFormatHeaders(false)
			table.SetHeader([]string{"Set", "Primitives", "Slots", "Nodes", "Leaves", "Depth", "Mean leaf depth"})
			for _, s := range ts.TreeStats() {
				table.Append([]string{
					s.Kind.String(),
					fmt.Sprintf("%d", s.Stats.Primitives),
					fmt.Sprintf("%d", s.Stats.Capacity),
					fmt.Sprintf("%d", s.Stats.Nodes),
					fmt.Sprintf("%d", s.Stats.Leaves),
					fmt.Sprintf("%d", s.Stats.Depth),
					fmt.Sprintf("%.2f", s.Stats.MeanLeafDepth),
				})
			}
			table.SetFooter([]string{"", "", "", "", "", "stack", fmt.Sprintf("%d", ts.StackSize())})
			table.Render()
			return nil
		},
	}
	bindFlags(cmd.Flags(), &opts.cfg)
	return cmd
}
