package engine

import (
	"context"
	"fmt"
	"sync"

	"craft-pricer/internal/model"
	"golang.org/x/sync/singleflight"
)

// Batch queries are chunked so a huge reagent list never turns into one
// giant IN clause; chunks are fetched concurrently under the semaphore.
const resolveChunkSize = 100

// Resolver resolves representative current prices for items on a realm.
// It prefers the latest valuation snapshot and falls back to a
// quantity-weighted average over recent raw observations.
type Resolver struct {
	Source   PriceSource
	ObsLimit int // observations per item in the fallback average

	sem   chan struct{} // bounds in-flight store lookups
	group singleflight.Group
}

// NewResolver creates a Resolver with the given fan-out cap.
func NewResolver(source PriceSource, concurrency, obsLimit int) *Resolver {
	if concurrency <= 0 {
		concurrency = 32
	}
	if obsLimit <= 0 {
		obsLimit = 100
	}
	return &Resolver{
		Source:   source,
		ObsLimit: obsLimit,
		sem:      make(chan struct{}, concurrency),
	}
}

// Price resolves the current price of one item on one realm. The bool is
// false when no snapshot and no observations exist (missing data, not an
// error). Concurrent calls for the same (realm, item) are coalesced.
func (r *Resolver) Price(ctx context.Context, realmID, itemID int64) (float64, bool, error) {
	type resolved struct {
		price float64
		ok    bool
	}

	v, err, _ := r.group.Do(fmt.Sprintf("%d:%d", realmID, itemID), func() (interface{}, error) {
		snaps, err := r.Source.SnapshotPrices(ctx, realmID, []int64{itemID})
		if err != nil {
			return nil, fmt.Errorf("resolve item %d realm %d: %w", itemID, realmID, err)
		}
		if price, ok := snaps[itemID]; ok {
			return resolved{price, true}, nil
		}

		obs, err := r.Source.RecentObservations(ctx, realmID, itemID, r.ObsLimit)
		if err != nil {
			return nil, fmt.Errorf("resolve item %d realm %d: %w", itemID, realmID, err)
		}
		if len(obs) == 0 {
			return resolved{}, nil
		}
		return resolved{weightedAverage(obs), true}, nil
	})
	if err != nil {
		return 0, false, err
	}
	res := v.(resolved)
	return res.price, res.ok, nil
}

// Prices batch-resolves prices for many items on one realm: snapshot hits
// first, then one grouped observation fetch for the remaining ids. Items
// with no data are simply absent from the result map.
func (r *Resolver) Prices(ctx context.Context, realmID int64, itemIDs []int64) (map[int64]float64, error) {
	ids := dedupeIDs(itemIDs)
	if len(ids) == 0 {
		return map[int64]float64{}, nil
	}

	prices := make(map[int64]float64, len(ids))
	var mu sync.Mutex

	// Snapshot pass.
	err := r.forEachChunk(ctx, ids, func(chunk []int64) error {
		snaps, err := r.Source.SnapshotPrices(ctx, realmID, chunk)
		if err != nil {
			return fmt.Errorf("batch snapshots realm %d: %w", realmID, err)
		}
		mu.Lock()
		for id, price := range snaps {
			prices[id] = price
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var unresolved []int64
	for _, id := range ids {
		if _, ok := prices[id]; !ok {
			unresolved = append(unresolved, id)
		}
	}
	if len(unresolved) == 0 {
		return prices, nil
	}

	// Observation pass for the ids snapshots could not cover.
	err = r.forEachChunk(ctx, unresolved, func(chunk []int64) error {
		grouped, err := r.Source.ObservationsForItems(ctx, realmID, chunk, r.ObsLimit)
		if err != nil {
			return fmt.Errorf("batch observations realm %d: %w", realmID, err)
		}
		mu.Lock()
		for id, obs := range grouped {
			if len(obs) > 0 {
				prices[id] = weightedAverage(obs)
			}
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// forEachChunk runs fn over fixed-size chunks of ids, concurrently but
// never with more than the semaphore's capacity in flight.
func (r *Resolver) forEachChunk(ctx context.Context, ids []int64, fn func(chunk []int64) error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(ids); start += resolveChunkSize {
		end := start + resolveChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		r.sem <- struct{}{}
		wg.Add(1)
		go func(chunk []int64) {
			defer wg.Done()
			defer func() { <-r.sem }()
			if err := fn(chunk); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(chunk)
	}
	wg.Wait()
	return firstErr
}

// weightedAverage computes sum(price*qty)/sum(qty); observations with a
// missing quantity count as 1.
func weightedAverage(obs []model.MarketObservation) float64 {
	var valueSum, qtySum float64
	for _, o := range obs {
		qty := o.Quantity
		if qty <= 0 {
			qty = 1
		}
		valueSum += o.Price * qty
		qtySum += qty
	}
	if qtySum == 0 {
		return 0
	}
	return valueSum / qtySum
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
