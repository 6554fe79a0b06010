package engine

import (
	"context"
	"sync"

	"craft-pricer/internal/model"
)

// fakeStore is an in-memory PriceSource/RecipeSource/ItemSource for one
// realm's worth of data.
type fakeStore struct {
	mu           sync.Mutex
	snapshots    map[int64]float64
	observations map[int64][]model.MarketObservation
	recipes      []model.RecipeMethod
	items        map[int64]*model.ItemRecord

	obsQueried []int64 // item ids the observation path was asked for
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots:    make(map[int64]float64),
		observations: make(map[int64][]model.MarketObservation),
		items:        make(map[int64]*model.ItemRecord),
	}
}

func (f *fakeStore) SnapshotPrices(ctx context.Context, realmID int64, itemIDs []int64) (map[int64]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]float64)
	for _, id := range itemIDs {
		if p, ok := f.snapshots[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) RecentObservations(ctx context.Context, realmID, itemID int64, limit int) ([]model.MarketObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obsQueried = append(f.obsQueried, itemID)
	obs := f.observations[itemID]
	if len(obs) > limit {
		obs = obs[:limit]
	}
	return obs, nil
}

func (f *fakeStore) ObservationsForItems(ctx context.Context, realmID int64, itemIDs []int64, limit int) (map[int64][]model.MarketObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64][]model.MarketObservation)
	for _, id := range itemIDs {
		f.obsQueried = append(f.obsQueried, id)
		if obs, ok := f.observations[id]; ok {
			if len(obs) > limit {
				obs = obs[:limit]
			}
			out[id] = obs
		}
	}
	return out, nil
}

func (f *fakeStore) ForwardRecipes(ctx context.Context, expansion, profession string) ([]model.RecipeMethod, error) {
	var out []model.RecipeMethod
	for _, r := range f.recipes {
		if r.MethodType != model.MethodForward {
			continue
		}
		if expansion != "" && r.Expansion != expansion {
			continue
		}
		if profession != "" && r.Profession != profession {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) ForwardRecipesProducing(ctx context.Context, itemID int64) ([]model.RecipeMethod, error) {
	var out []model.RecipeMethod
	for _, r := range f.recipes {
		if r.MethodType != model.MethodForward {
			continue
		}
		for _, st := range r.Derivatives {
			if st.ItemID == itemID {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ReverseRecipesConsuming(ctx context.Context, itemID int64) ([]model.RecipeMethod, error) {
	var out []model.RecipeMethod
	for _, r := range f.recipes {
		if r.MethodType != model.MethodReverse {
			continue
		}
		for _, st := range r.Reagents {
			if st.ItemID == itemID {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Item(ctx context.Context, itemID int64) (*model.ItemRecord, error) {
	return f.items[itemID], nil
}

func stack(itemID int64, qty float64) model.ItemStack {
	return model.ItemStack{ItemID: itemID, Quantity: qty, MatRate: 1}
}

func newTestResolver(f *fakeStore) *Resolver {
	return NewResolver(f, 4, 100)
}
