// Package relay forwards database row-change notifications to the change feed.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/telemetry"
)

// Source produces raw notification payloads until ctx is done.
// Implemented by postgresql.ChangeListener.
type Source interface {
	Listen(ctx context.Context, out chan<- string) error
}

// Pool decodes payloads from a Source and publishes them with N workers.
// Changes to the same row always go to the same worker, so their order is kept.
type Pool struct {
	source    Source
	processor *Processor
	workers   int
}

func NewPool(source Source, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		source:    source,
		processor: processor,
		workers:   workers,
	}
}

// Run blocks until ctx is done or the source fails for good.
func (p *Pool) Run(ctx context.Context) error {
	log.Info().Int("workers", p.workers).Msg("relay pool started")

	payloads := make(chan string, 256)
	lanes := make([]chan entity.Change, p.workers)

	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan entity.Change, 64)
		wg.Add(1)
		go func(n int, in <-chan entity.Change) {
			defer wg.Done()
			for ch := range in {
				if err := p.processor.Process(ctx, ch); err != nil {
					log.Error().Err(err).Int("worker", n).Str("row_id", rowID(ch)).Msg("relay publish failed")
				}
			}
		}(i+1, lanes[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.source.Listen(gctx, payloads)
	})
	g.Go(func() error {
		defer func() {
			for _, l := range lanes {
				close(l)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return nil
			case payload := <-payloads:
				ch, err := p.processor.Decode(payload)
				if err != nil {
					telemetry.GetMetrics().RelayPublishErrorsTotal.Add(gctx, 1)
					log.Warn().Err(err).Msg("relay dropped notification")
					continue
				}
				select {
				case lanes[p.lane(ch)] <- ch:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	err := g.Wait()
	wg.Wait()
	log.Info().Msg("relay pool stopped")

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pool) lane(ch entity.Change) int {
	key := ch.Schema + "." + ch.Table + "/" + rowID(ch)
	return int(xxhash.Sum64String(key) % uint64(p.workers))
}
