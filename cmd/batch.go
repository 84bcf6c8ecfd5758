package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nin-ia/leadcard/internal/model"
	"github.com/nin-ia/leadcard/internal/pipeline"
)

var (
	batchDir           string
	batchQualification string
	batchNote          string
	batchLimit         int
)

var cardExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Capture every card photo in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		images, err := listCardImages(batchDir)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		qualification := model.Qualification(batchQualification)
		return processBatch(ctx, images, cfg.Batch.MaxConcurrentCards,
			func(ctx context.Context, image []byte) (*pipeline.Result, error) {
				return env.Pipeline.Capture(ctx, image, qualification, batchNote)
			})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of card photos (required)")
	batchCmd.Flags().StringVar(&batchQualification, "qualification", string(model.QualificationSmartTalk),
		"lead qualification applied to every card")
	batchCmd.Flags().StringVar(&batchNote, "note", "", "context note applied to every card (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of cards to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("dir")
	_ = batchCmd.MarkFlagRequired("note")
	rootCmd.AddCommand(batchCmd)
}

// listCardImages returns the image files directly under dir, sorted by name.
func listCardImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrap(err, "read card directory")
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if cardExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(images)

	if len(images) == 0 {
		return nil, eris.Errorf("no card images found in %s", dir)
	}
	return images, nil
}

// captureFunc is the callback signature for capturing one card image.
type captureFunc func(ctx context.Context, image []byte) (*pipeline.Result, error)

// processBatch captures images concurrently. One card failing does not stop
// the others; the command fails if any card failed.
func processBatch(ctx context.Context, images []string, concurrency int, capture captureFunc) error {
	if batchLimit > 0 && len(images) > batchLimit {
		images = images[:batchLimit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("cards", len(images)),
		zap.Int("concurrency", concurrency),
	)

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range images {
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			image, err := os.ReadFile(path)
			if err != nil {
				failed.Add(1)
				zap.L().Error("read card image", zap.String("path", path), zap.Error(err))
				return nil
			}

			res, err := capture(gctx, image)
			if err != nil {
				failed.Add(1)
				zap.L().Error("capture failed", zap.String("path", path), zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			zap.L().Info("card captured",
				zap.String("path", path),
				zap.Int64("lead_id", res.Lead.ID),
				zap.String("nom", res.Lead.Fields.Nom),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch interrupted")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)

	if failed.Load() > 0 {
		return eris.Errorf("%d of %d cards failed", failed.Load(), len(images))
	}
	return nil
}
