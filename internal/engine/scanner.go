package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Scanner sweeps a realm's forward recipe catalog for outputs whose
// market price exceeds their allocated crafting cost.
type Scanner struct {
	Resolver *Resolver
	Crafting *CraftingCalculator
	Recipes  RecipeSource
}

// NewScanner creates a Scanner sharing the given resolver.
func NewScanner(resolver *Resolver, recipes RecipeSource) *Scanner {
	return &Scanner{
		Resolver: resolver,
		Crafting: &CraftingCalculator{Resolver: resolver},
		Recipes:  recipes,
	}
}

// ScanProfitableCrafts evaluates every FORWARD recipe on the realm and
// returns the derivatives that clear the profit and margin filters,
// highest margin first.
//
// Per-recipe and per-derivative failures are logged and skipped: the
// scan runs over the whole catalog and one malformed row must never void
// it. Only the initial catalog query fails the scan as a whole.
func (s *Scanner) ScanProfitableCrafts(ctx context.Context, realmID int64, params ScanParams) ([]PriceComparison, error) {
	recipes, err := s.Recipes.ForwardRecipes(ctx, params.Expansion, params.Profession)
	if err != nil {
		return nil, fmt.Errorf("scan realm %d: %w", realmID, err)
	}
	log.Printf("[SCAN] realm=%d recipes=%d expansion=%q profession=%q",
		realmID, len(recipes), params.Expansion, params.Profession)

	var results []PriceComparison
	for _, recipe := range recipes {
		cost, err := s.Crafting.Cost(ctx, recipe, realmID)
		if err != nil {
			log.Printf("[SCAN] cost recipe %d realm %d: %v", recipe.RecipeID, realmID, err)
			continue
		}
		if cost == nil || cost.Confidence < MinScanConfidence {
			continue
		}
		if params.MaxCraftingCost > 0 && cost.TotalCost > params.MaxCraftingCost {
			continue
		}

		derivativeIDs := make([]int64, 0, len(recipe.Derivatives))
		for _, st := range recipe.Derivatives {
			derivativeIDs = append(derivativeIDs, st.ItemID)
		}
		marketPrices, err := s.Resolver.Prices(ctx, realmID, derivativeIDs)
		if err != nil {
			log.Printf("[SCAN] prices recipe %d realm %d: %v", recipe.RecipeID, realmID, err)
			continue
		}

		for _, st := range recipe.Derivatives {
			unitCost, ok := cost.CostPerUnit[st.ItemID]
			if !ok || unitCost <= 0 {
				continue
			}
			marketPrice, ok := marketPrices[st.ItemID]
			if !ok {
				continue
			}
			profit := marketPrice - unitCost
			if profit <= 0 {
				continue
			}
			margin := profit / unitCost * 100
			if params.MinMargin > 0 && margin < params.MinMargin {
				continue
			}
			if params.MinProfit > 0 && profit < params.MinProfit {
				continue
			}
			results = append(results, PriceComparison{
				ItemID:       st.ItemID,
				RecipeID:     recipe.RecipeID,
				RecipeRank:   recipe.Rank,
				Profession:   recipe.Profession,
				Expansion:    recipe.Expansion,
				MarketPrice:  marketPrice,
				CraftingCost: unitCost,
				Profit:       profit,
				ProfitMargin: margin,
				Confidence:   cost.Confidence,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProfitMargin > results[j].ProfitMargin
	})
	log.Printf("[SCAN] realm=%d profitable=%d", realmID, len(results))
	return results, nil
}
