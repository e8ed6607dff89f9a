package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vendor-research/internal/model"
)

var (
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run research for every active vendor",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		vendors, err := env.Store.ListVendors(ctx)
		if err != nil {
			return eris.Wrap(err, "list vendors")
		}

		return processBatch(ctx, vendors, batchLimit, batchConcurrency, func(ctx context.Context, vendor model.Vendor) error {
			job, err := env.Orchestrator.CreateResearchRequest(ctx, vendor.ID)
			if err != nil {
				return err
			}
			return env.Orchestrator.ProcessResearch(ctx, job.ID)
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of vendors to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max vendors researched at once")
	rootCmd.AddCommand(batchCmd)
}

type researchFunc func(ctx context.Context, vendor model.Vendor) error

// processBatch researches vendors concurrently. Inactive vendors are
// skipped, and a failing vendor does not abort the batch.
func processBatch(ctx context.Context, vendors []model.Vendor, limit, concurrency int, run researchFunc) error {
	active := make([]model.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v.IsActive {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		zap.L().Info("no active vendors found")
		return nil
	}

	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("vendors", len(active)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, vendor := range active {
		g.Go(func() error {
			log := zap.L().With(
				zap.String("vendor_id", vendor.ID),
				zap.String("company", vendor.CompanyName),
			)

			if err := run(gctx, vendor); err != nil {
				failed.Add(1)
				log.Error("research failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("research complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
