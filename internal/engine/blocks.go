package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/unitlink/internal/matching"
	"github.com/Veraticus/unitlink/internal/model"
)

// scoreBlocks runs the fuzzy tier over every block on a bounded worker pool.
// Blocks already stored under runKey are reused; every newly scored block is
// stored before the next one is counted done. Results are returned in block
// order regardless of completion order.
func (e *Engine) scoreBlocks(
	ctx context.Context,
	blocks []matching.Block,
	rejected map[model.PairKey]struct{},
	runKey string,
	stats *model.RunStats,
) ([]matching.BlockResult, error) {
	stored := map[string]matching.BlockResult{}
	if e.store != nil && len(blocks) > 0 {
		var err error
		if stored, err = e.store.LoadBlockResults(ctx, runKey); err != nil {
			return nil, fmt.Errorf("failed to load stored block results: %w", err)
		}
	}

	fuzzy := matching.NewFuzzyMatcher(e.cfg)
	results := make([]matching.BlockResult, len(blocks))

	var mu sync.Mutex
	e.progress.Start(len(blocks))
	defer e.progress.Finish()

	done := func(key string, resumed bool) {
		mu.Lock()
		defer mu.Unlock()
		if resumed {
			stats.Blocks.Resumed++
		} else {
			stats.Blocks.Scored++
		}
		e.progress.Advance(key, resumed)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range blocks {
		b := &blocks[i]
		if prev, ok := stored[b.Key]; ok {
			results[i] = prev
			done(b.Key, true)
			continue
		}

		g.Go(func() error {
			// Cancellation is honoured between blocks, never inside one.
			if err := gctx.Err(); err != nil {
				return err
			}
			r := fuzzy.MatchBlock(b, rejected)
			if e.store != nil {
				if _, err := e.store.SaveBlockResult(gctx, runKey, &r); err != nil {
					return fmt.Errorf("failed to store block %q: %w", b.Key, err)
				}
			}
			results[i] = r
			slog.Debug("Scored block",
				"block", b.Key,
				"pairs", r.Pairs,
				"accepted", len(r.Accepted),
				"review", len(r.Review),
				"skipped_rejected", r.Skipped)
			done(b.Key, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fuzzy matching: %w", err)
	}
	return results, nil
}
