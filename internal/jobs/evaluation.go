// Package jobs hosts the timer-driven batch work: the realm evaluation
// job that keeps persisted evaluations fresh.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"craft-pricer/internal/engine"
	"craft-pricer/internal/logger"
	"craft-pricer/internal/model"
)

// ErrAlreadyRunning is returned when a job fires while the previous run is
// still in progress; the overlapping fire is skipped, not queued.
var ErrAlreadyRunning = errors.New("evaluation job already running")

// Store is the persistence surface the evaluation job needs.
type Store interface {
	ListRealms(ctx context.Context) ([]int64, error)
	DeleteEvaluations(ctx context.Context, realmID int64) error
	InsertEvaluations(ctx context.Context, records []model.EvaluationRecord) error
	Item(ctx context.Context, itemID int64) (*model.ItemRecord, error)
	MarketVolume(ctx context.Context, realmID, itemID int64) (float64, error)
}

// EvaluationJob periodically sweeps every known realm for profitable
// crafts and replaces that realm's persisted evaluation set.
type EvaluationJob struct {
	Store     Store
	Scanner   *engine.Scanner
	Evaluator *engine.Evaluator

	MinMargin float64
	MinProfit float64

	mu sync.Mutex // overlap guard: two fires must never race on delete-then-insert
}

// Start blocks, running the job immediately and then on every interval
// tick until ctx is cancelled.
func (j *EvaluationJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			logger.Error("EVAL", fmt.Sprintf("Run failed: %v", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes one full sweep across all realms. Per-realm failures
// are logged and do not stop the remaining realms; only a failure to list
// realms (or an overlapping run) fails the sweep itself.
func (j *EvaluationJob) RunOnce(ctx context.Context) error {
	if !j.mu.TryLock() {
		logger.Warn("EVAL", "Previous run still in progress, skipping this fire")
		return ErrAlreadyRunning
	}
	defer j.mu.Unlock()

	started := time.Now()
	realms, err := j.Store.ListRealms(ctx)
	if err != nil {
		return fmt.Errorf("evaluation run: %w", err)
	}
	logger.Section("Realm evaluation")
	logger.Info("EVAL", fmt.Sprintf("Sweeping %d realms", len(realms)))

	total := 0
	for _, realmID := range realms {
		n, err := j.runRealm(ctx, realmID)
		if err != nil {
			logger.Error("EVAL", fmt.Sprintf("Realm %d failed: %v", realmID, err))
			continue
		}
		total += n
	}

	logger.Success("EVAL", fmt.Sprintf("Persisted %d evaluations in %s", total, time.Since(started).Round(time.Millisecond)))
	return nil
}

// runRealm computes and persists one realm's evaluation batch. The old
// batch is deleted before the new one is written; a crash in between
// leaves the realm empty until the next run, which is the accepted
// degraded state.
func (j *EvaluationJob) runRealm(ctx context.Context, realmID int64) (int, error) {
	candidates, err := j.Scanner.ScanProfitableCrafts(ctx, realmID, engine.ScanParams{
		MinMargin: j.MinMargin,
		MinProfit: j.MinProfit,
	})
	if err != nil {
		return 0, fmt.Errorf("scan realm %d: %w", realmID, err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	records := make([]model.EvaluationRecord, 0, len(candidates))
	now := time.Now().UTC()
	for _, c := range candidates {
		record, err := j.buildRecord(ctx, realmID, c, now)
		if err != nil {
			// One item must not void the realm's batch.
			logger.Warn("EVAL", fmt.Sprintf("Item %d realm %d: %v", c.ItemID, realmID, err))
			continue
		}
		records = append(records, *record)
	}
	if len(records) == 0 {
		// Candidates existed but none could be recorded. Keep the realm's
		// previous batch rather than replacing it with nothing.
		return 0, fmt.Errorf("realm %d: no records built from %d candidates", realmID, len(candidates))
	}

	if err := j.Store.DeleteEvaluations(ctx, realmID); err != nil {
		return 0, fmt.Errorf("replace realm %d: %w", realmID, err)
	}
	if err := j.Store.InsertEvaluations(ctx, records); err != nil {
		return 0, fmt.Errorf("replace realm %d: %w", realmID, err)
	}
	return len(records), nil
}

// buildRecord runs the full evaluation for one profitable candidate to
// capture confidence, recommendations and provenance alongside the scan
// figures.
func (j *EvaluationJob) buildRecord(ctx context.Context, realmID int64, c engine.PriceComparison, now time.Time) (*model.EvaluationRecord, error) {
	eval, err := j.Evaluator.Evaluate(ctx, c.ItemID, realmID, engine.EvaluateOptions{})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	record := model.EvaluationRecord{
		ItemID:          c.ItemID,
		RealmID:         realmID,
		MarketPrice:     c.MarketPrice,
		CraftingCost:    c.CraftingCost,
		Profit:          c.Profit,
		ProfitMargin:    c.ProfitMargin,
		IsProfitable:    true,
		BestRecipeID:    c.RecipeID,
		RecipeRank:      c.RecipeRank,
		Profession:      c.Profession,
		Expansion:       c.Expansion,
		Recommendations: eval.Recommendations,
		Confidence:      c.Confidence,
		Timestamp:       now,
	}

	item, err := j.Store.Item(ctx, c.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item lookup: %w", err)
	}
	if item != nil {
		record.VendorSellPrice = item.VendorSellPrice
		record.AssetClassTags = item.AssetClassTags
	}

	volume, err := j.Store.MarketVolume(ctx, realmID, c.ItemID)
	if err != nil {
		return nil, fmt.Errorf("market volume: %w", err)
	}
	record.MarketVolume = volume

	return &record, nil
}
