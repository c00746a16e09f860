package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/roster"
)

var (
	collectInput   string
	collectOutput  string
	collectDetails bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect processes for every entity in the input workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := collectInput
		if input == "" {
			input = cfg.Collect.InputFile
		}
		if input == "" {
			return eris.New("collect: no input workbook (set --input or collect.input_file)")
		}

		if collectDetails {
			cfg.Collect.DownloadDetails = true
		}

		entities, err := roster.Load(input, roster.Options{})
		if err != nil {
			return err
		}
		zap.L().Info("roster loaded", zap.String("file", input), zap.Int("entities", len(entities)))

		e, err := initCollector(ctx, cfg, collectOutput)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.Collector.Run(ctx, entities)
		if err != nil {
			return err
		}

		fmt.Printf("run %s\n", sum.RunID)
		fmt.Printf("  entities:   %d (skipped %d, failed %d)\n",
			sum.Run.Entities, sum.Run.EntitiesSkipped, sum.Run.EntitiesFailed)
		fmt.Printf("  discovered: %d, selected %d\n", sum.Run.Discovered, sum.Run.Selected)
		fmt.Printf("  details:    %d saved, %d cached, %d not found, %d failed\n",
			sum.Run.DetailsSaved, sum.Run.DetailsCached, sum.Run.DetailsNotFound, sum.Run.DetailsFailed)
		fmt.Printf("  requests:   %d (%d retries, %d rate-limit hits)\n",
			sum.Client.Requests, sum.Client.Retries, sum.Client.RateLimitHits)
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectInput, "input", "", "entity workbook (xlsx)")
	collectCmd.Flags().StringVar(&collectOutput, "output", "", "output directory (default from config)")
	collectCmd.Flags().BoolVar(&collectDetails, "details", false, "also download case details")
	rootCmd.AddCommand(collectCmd)
}
