package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dividalabs/litigio-cli/internal/docid"
)

var detailsOutput string

var detailsCmd = &cobra.Command{
	Use:   "details NUMBER...",
	Short: "Download case details for explicit process numbers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initCollector(ctx, cfg, detailsOutput)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.Collector.CollectProcesses(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("details: %d saved, %d cached, %d not found, %d failed\n",
			sum.Run.DetailsSaved, sum.Run.DetailsCached, sum.Run.DetailsNotFound, sum.Run.DetailsFailed)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check DOCUMENT...",
	Short: "Validate and classify taxpayer identifiers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bad := 0
		for _, raw := range args {
			doc := docid.Normalize(raw)
			kind := docid.DetectKind(doc)
			if kind == docid.KindInvalid {
				bad++
				fmt.Printf("%s\tINVALID\n", raw)
				continue
			}
			fmt.Printf("%s\t%s\t%s\n", raw, kind, doc)
		}
		if bad > 0 {
			return eris.Errorf("check: %d invalid document(s)", bad)
		}
		return nil
	},
}

func init() {
	detailsCmd.Flags().StringVar(&detailsOutput, "output", "", "output directory (default from config)")
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(checkCmd)
}
