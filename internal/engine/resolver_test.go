package engine

import (
	"context"
	"math"
	"testing"

	"craft-pricer/internal/model"
)

func obs(itemID int64, price, qty float64) model.MarketObservation {
	return model.MarketObservation{ItemID: itemID, RealmID: 1, Price: price, Quantity: qty}
}

func TestWeightedAverage(t *testing.T) {
	avg := weightedAverage([]model.MarketObservation{
		obs(1, 10, 1),
		obs(1, 20, 3),
	})
	if math.Abs(avg-17.5) > 1e-9 {
		t.Errorf("weightedAverage = %v, want 17.5", avg)
	}
}

func TestWeightedAverage_MissingQuantityCountsAsOne(t *testing.T) {
	avg := weightedAverage([]model.MarketObservation{
		obs(1, 10, 0), // missing quantity
		obs(1, 30, 1),
	})
	if math.Abs(avg-20) > 1e-9 {
		t.Errorf("weightedAverage = %v, want 20", avg)
	}
}

func TestWeightedAverage_Empty(t *testing.T) {
	if avg := weightedAverage(nil); avg != 0 {
		t.Errorf("weightedAverage(nil) = %v, want 0", avg)
	}
}

func TestPrice_PrefersSnapshot(t *testing.T) {
	f := newFakeStore()
	f.snapshots[10] = 42
	f.observations[10] = []model.MarketObservation{obs(10, 999, 1)}

	r := newTestResolver(f)
	price, ok, err := r.Price(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !ok || price != 42 {
		t.Errorf("price = %v ok = %v, want 42 from snapshot", price, ok)
	}
	if len(f.obsQueried) != 0 {
		t.Errorf("observations queried despite snapshot hit: %v", f.obsQueried)
	}
}

func TestPrice_FallsBackToObservations(t *testing.T) {
	f := newFakeStore()
	f.observations[10] = []model.MarketObservation{obs(10, 10, 1), obs(10, 20, 3)}

	r := newTestResolver(f)
	price, ok, err := r.Price(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if !ok || math.Abs(price-17.5) > 1e-9 {
		t.Errorf("price = %v ok = %v, want 17.5", price, ok)
	}
}

func TestPrice_AbsentWhenNoData(t *testing.T) {
	f := newFakeStore()
	r := newTestResolver(f)
	_, ok, err := r.Price(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if ok {
		t.Error("expected absent price for unknown item")
	}
}

func TestPrices_ObservationsOnlyForUnresolved(t *testing.T) {
	f := newFakeStore()
	f.snapshots[1] = 5
	f.snapshots[2] = 6
	f.observations[3] = []model.MarketObservation{obs(3, 100, 2)}

	r := newTestResolver(f)
	prices, err := r.Prices(context.Background(), 1, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if prices[1] != 5 || prices[2] != 6 || prices[3] != 100 {
		t.Errorf("prices = %v, want 1:5 2:6 3:100", prices)
	}
	if _, ok := prices[4]; ok {
		t.Error("item 4 has no data and must be absent")
	}

	// Snapshot hits must not reach the observation path.
	for _, id := range f.obsQueried {
		if id == 1 || id == 2 {
			t.Errorf("observation path queried snapshot-resolved item %d", id)
		}
	}
}

func TestPrices_DedupesIDs(t *testing.T) {
	f := newFakeStore()
	f.snapshots[7] = 3
	r := newTestResolver(f)
	prices, err := r.Prices(context.Background(), 1, []int64{7, 7, 7})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 1 || prices[7] != 3 {
		t.Errorf("prices = %v, want {7:3}", prices)
	}
}

func TestPrices_ChunksLargeBatches(t *testing.T) {
	f := newFakeStore()
	ids := make([]int64, 0, 250)
	for i := int64(1); i <= 250; i++ {
		f.snapshots[i] = float64(i)
		ids = append(ids, i)
	}

	r := newTestResolver(f)
	prices, err := r.Prices(context.Background(), 1, ids)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 250 {
		t.Errorf("len(prices) = %d, want 250", len(prices))
	}
	if prices[250] != 250 {
		t.Errorf("prices[250] = %v, want 250", prices[250])
	}
}
