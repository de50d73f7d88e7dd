// Package worker implements the retry-and-progress loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/amzdeals/postbot/internal/metrics"
	"github.com/amzdeals/postbot/internal/poster"
)

// Config controls Engine behavior. RetryBackoff separates attempts on
// the same item, ItemDelay separates consecutive items, IdleDelay
// separates full passes.
type Config struct {
	Origin       string
	MaxAttempts  int
	RetryBackoff time.Duration
	ItemDelay    time.Duration
	IdleDelay    time.Duration
}

// Engine walks the pending worklist sequentially, driving the fetcher
// and notifier with bounded retry, and records completions in the store.
type Engine struct {
	store    poster.Store
	fetcher  poster.Fetcher
	notifier poster.Notifier
	clock    poster.Clock
	idGen    poster.IDGenerator
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Engine.
func New(
	store poster.Store,
	fetcher poster.Fetcher,
	notifier poster.Notifier,
	clock poster.Clock,
	idGen poster.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Origin == "" {
		cfg.Origin = poster.DefaultOrigin
	}
	metrics.Init()
	return &Engine{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		clock:    clock,
		idGen:    idGen,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, repeating passes over the pending set until the context
// finishes. After each pass it idles, then reloads the store to pick up
// externally appended rows.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := e.runPass(ctx); err != nil {
			return err
		}
		if err := e.clock.Sleep(ctx, e.cfg.IdleDelay); err != nil {
			return err
		}
		if err := e.store.Reload(ctx); err != nil {
			// Keep walking the last good snapshot; the next idle
			// cycle retries the reload.
			e.logger.Error("worklist reload failed", zap.Error(err))
		}
	}
}

func (e *Engine) runPass(ctx context.Context) error {
	passID, err := e.idGen.NewID()
	if err != nil {
		return err
	}
	log := e.logger.With(zap.String("pass_id", passID))

	pending := e.store.Pending()
	metrics.ObservePass(len(pending))
	if len(pending) == 0 {
		log.Debug("no pending items")
		return nil
	}
	log.Info("pass started",
		zap.Int("pending", len(pending)),
		zap.Int("total", e.store.Len()),
	)

	for _, item := range pending {
		metrics.ObserveItem(e.processItem(ctx, log, item))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Fixed inter-item delay, success or failure alike. This is
		// the request throttle toward the upstream site, not an
		// optimization.
		if err := e.clock.Sleep(ctx, e.cfg.ItemDelay); err != nil {
			return err
		}
	}

	log.Info("pass finished")
	return nil
}

// processItem drives one item through up to MaxAttempts fetch+notify
// attempts. A panic anywhere in an attempt is recovered and treated as
// an exhausted outcome so the loop survives.
func (e *Engine) processItem(ctx context.Context, log *zap.Logger, item poster.Product) (outcome string) {
	log = log.With(zap.String("item_id", shortID(item.ID)))
	defer func() {
		if r := recover(); r != nil {
			log.Error("item processing panicked", zap.Any("panic", r))
			outcome = metrics.OutcomeExhausted
		}
	}()

	url, err := poster.Canonicalize(e.cfg.Origin, item.ProductURL)
	if err != nil {
		// Load-time filtering keeps these out of the pending set, so
		// reaching here means the snapshot went stale mid-pass.
		log.Warn("reference not canonicalizable",
			zap.String("reference", item.ProductURL),
			zap.Error(err),
		)
		return metrics.OutcomeInvalid
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if e.attempt(ctx, log.With(zap.Int("attempt", attempt)), item, url) {
			return metrics.OutcomePosted
		}
		if ctx.Err() != nil {
			return metrics.OutcomeExhausted
		}
		if attempt < e.cfg.MaxAttempts {
			if err := e.clock.Sleep(ctx, e.cfg.RetryBackoff); err != nil {
				return metrics.OutcomeExhausted
			}
		}
	}

	log.Warn("attempts exhausted, item stays pending",
		zap.Int("max_attempts", e.cfg.MaxAttempts),
	)
	return metrics.OutcomeExhausted
}

// attempt runs one fetch+notify+persist cycle. It reports true when the
// announcement went out and retrying must stop, even if the status
// write failed afterwards.
func (e *Engine) attempt(ctx context.Context, log *zap.Logger, item poster.Product, url string) bool {
	start := e.clock.Now()
	details, err := e.fetcher.Fetch(ctx, url)
	metrics.ObserveFetchDuration(e.clock.Now().Sub(start))
	if err != nil {
		metrics.ObserveAttempt(metrics.StageFetch, metrics.ResultError)
		kind := "fetch"
		if errors.Is(err, poster.ErrFetchTimeout) {
			kind = "timeout"
		}
		log.Warn("fetch failed",
			zap.String("kind", kind),
			zap.String("url", url),
			zap.Error(err),
		)
		return false
	}
	metrics.ObserveAttempt(metrics.StageFetch, metrics.ResultOK)

	err = e.notifier.Notify(ctx, poster.Announcement{
		Title:    details.Title,
		ImageURL: details.ImageURL,
		Link:     item.AffiliateLink,
	})
	if err != nil {
		metrics.ObserveAttempt(metrics.StageNotify, metrics.ResultError)
		log.Warn("notify failed", zap.String("kind", "notify"), zap.Error(err))
		return false
	}
	metrics.ObserveAttempt(metrics.StageNotify, metrics.ResultOK)

	if err := e.store.MarkCompleted(ctx, item.ID); err != nil {
		metrics.ObserveAttempt(metrics.StagePersist, metrics.ResultError)
		// The announcement went out but the durable flag did not
		// stick, so the item stays pending and the next pass may
		// post it again.
		log.Error("status write failed after successful post, duplicate send possible",
			zap.Error(err),
		)
		return true
	}
	metrics.ObserveAttempt(metrics.StagePersist, metrics.ResultOK)

	log.Info("item posted", zap.String("title", details.Title))
	return true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
