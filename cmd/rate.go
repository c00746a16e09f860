package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/internal/monetary"
	"github.com/dividalabs/litigio-cli/pkg/bcb"
)

var rateAmount float64

var rateCmd = &cobra.Command{
	Use:   "rate DATE",
	Short: "Show the accumulated monetary index since DATE (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return eris.Wrapf(err, "rate: parse date %q", args[0])
		}

		caches, err := cache.Open(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		source := bcb.New(cfg.BCB.BaseURL, cfg.BCB.SeriesID, 30*time.Second)
		corrector := monetary.New(source, caches)

		rate := corrector.PeriodRate(cmd.Context(), start)
		fmt.Printf("accumulated rate since %s: %.4f%%\n", args[0], rate*100)
		if rateAmount > 0 {
			adjusted := corrector.Adjust(cmd.Context(), rateAmount, start)
			fmt.Printf("%.2f adjusted to present value: %.2f\n", rateAmount, adjusted)
		}

		if err := caches.Flush(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rateCmd.Flags().Float64Var(&rateAmount, "amount", 0, "amount to adjust to present value")
	rootCmd.AddCommand(rateCmd)
}
