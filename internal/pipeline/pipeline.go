// Package pipeline implements the staged asset-classification pipeline:
// a fixed ordered sequence of independently toggleable, individually
// idempotent stages that tag items with semantic asset classes derived
// from pricing, market and vendor data.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"craft-pricer/internal/logger"
	"craft-pricer/internal/model"
)

// MarkStore is the TTL key/value cache holding processed state hashes.
// Backed by the sqlite processed_marks table or by redis when configured.
type MarkStore interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
}

// Catalog is the storage surface the stages read and tag.
type Catalog interface {
	SourceStats(ctx context.Context, source string) (int64, string, error)
	DerivativeItemIDs(ctx context.Context) ([]int64, error)
	ReagentItemIDs(ctx context.Context) ([]int64, error)
	ObservedItemIDs(ctx context.Context) ([]int64, error)
	ObservedItemIDsByChannel(ctx context.Context, channel model.MarketChannel) ([]int64, error)
	ItemsByLootType(ctx context.Context, lootType string) ([]model.ItemRecord, error)
	ItemIDsWithVendorPrice(ctx context.Context) ([]int64, error)
	AllItems(ctx context.Context) ([]model.ItemRecord, error)
	AddAssetClasses(ctx context.Context, itemIDs []int64, classes ...string) (int, error)
	AddGeneralTags(ctx context.Context, tags map[int64][]string) (int, error)
}

// stage couples a name with the source tables feeding its state hash. A
// stage reading tags written by an earlier stage lists that stage's
// source too, so an upstream change re-runs the whole dependent chain.
type stage struct {
	name    string
	sources []string
	run     func(ctx context.Context) (int, error)
}

// StageResult reports what one stage did during a pipeline run.
type StageResult struct {
	Name    string
	Skipped bool // state hash already marked processed
	Updated int  // items whose tag set actually changed
}

// Pipeline runs the classification stages in their fixed order:
// pricing -> auctions -> premium -> currency -> vsp -> tags.
// Stages run sequentially so tag read-modify-writes never race.
type Pipeline struct {
	Catalog Catalog
	Marks   MarkStore
	TTL     time.Duration
	Enabled []string // stage-name subset; empty enables all
}

// StageNames returns the stage names in execution order.
func StageNames() []string {
	return []string{"pricing", "auctions", "premium", "currency", "vsp", "tags"}
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"pricing", []string{"recipes"}, p.runPricing},
		{"auctions", []string{"observations"}, p.runAuctions},
		// premium reads the REAGENT classes the pricing stage derives
		// from recipes.
		{"premium", []string{"items", "recipes"}, p.runPremium},
		{"currency", []string{"items"}, p.runCurrency},
		{"vsp", []string{"items"}, p.runVSP},
		// tags folds in asset classes from every earlier stage.
		{"tags", []string{"items", "recipes", "observations"}, p.runTags},
	}
}

func (p *Pipeline) enabled(name string) bool {
	if len(p.Enabled) == 0 {
		return true
	}
	for _, n := range p.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Run executes every enabled stage once. A stage whose source state hash
// is already marked processed is skipped entirely. A failing stage is
// logged and the remaining stages still run; the first failure is
// returned once the sweep completes.
func (p *Pipeline) Run(ctx context.Context) ([]StageResult, error) {
	logger.Section("Asset classification")
	var results []StageResult
	var firstErr error

	for _, st := range p.stages() {
		if !p.enabled(st.name) {
			continue
		}

		key, err := p.stateKey(ctx, st)
		if err != nil {
			logger.Error("CLASS", fmt.Sprintf("Stage %s: %v", st.name, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		processed, err := p.Marks.IsProcessed(ctx, key)
		if err != nil {
			logger.Error("CLASS", fmt.Sprintf("Stage %s: %v", st.name, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if processed {
			logger.Info("CLASS", fmt.Sprintf("Stage %s unchanged, skipping", st.name))
			results = append(results, StageResult{Name: st.name, Skipped: true})
			continue
		}

		updated, err := st.run(ctx)
		if err != nil {
			logger.Error("CLASS", fmt.Sprintf("Stage %s failed: %v", st.name, err))
			if firstErr == nil {
				firstErr = fmt.Errorf("stage %s: %w", st.name, err)
			}
			continue
		}
		if err := p.Marks.MarkProcessed(ctx, key, p.TTL); err != nil {
			logger.Warn("CLASS", fmt.Sprintf("Stage %s: mark failed: %v", st.name, err))
		}
		logger.Success("CLASS", fmt.Sprintf("Stage %s tagged %d items", st.name, updated))
		results = append(results, StageResult{Name: st.name, Updated: updated})
	}

	return results, firstErr
}

// stateKey derives the idempotency key for a stage from the row count
// and latest timestamp of every table feeding it.
func (p *Pipeline) stateKey(ctx context.Context, st stage) (string, error) {
	h := sha256.New()
	for _, source := range st.sources {
		count, latest, err := p.Catalog.SourceStats(ctx, source)
		if err != nil {
			return "", fmt.Errorf("state hash: %w", err)
		}
		fmt.Fprintf(h, "%s|%d|%s\n", source, count, latest)
	}
	return fmt.Sprintf("stage:%s:%s", st.name, hex.EncodeToString(h.Sum(nil)[:8])), nil
}
