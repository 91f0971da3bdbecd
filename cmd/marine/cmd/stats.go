package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/marinedb/pkg/marine"
	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
)

type statsOutput struct {
	Driver  string               `json:"driver"`
	Regions []memory.RegionStats `json:"regions"`
	Pool    *pool.Stats          `json:"pool,omitempty"`
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show key counts per region and pool totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *marine.Registry) error {
				regions, err := reg.Stats()
				if err != nil {
					return err
				}
				out := statsOutput{Driver: driverLabel(a.cfg.Storage.Driver), Regions: regions}
				if ps, ok := reg.Manager.PoolStats(); ok {
					out.Pool = &ps
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim space held by overwritten and deleted records",
		Long: `Rewrite the pool without dead entries. Drivers that manage their own
space (sqlite, postgres, memory) are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func(reg *marine.Registry) error {
				before, _ := reg.Manager.PoolStats()
				if err := reg.Manager.Compact(); err != nil {
					return err
				}
				after, _ := reg.Manager.PoolStats()
				cmd.Printf("Compacted %s pool: %d -> %d bytes\n",
					driverLabel(a.cfg.Storage.Driver), before.DataSize, after.DataSize)
				return nil
			})
		},
	}
}
