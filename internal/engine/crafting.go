package engine

import (
	"context"
	"fmt"

	"craft-pricer/internal/model"
)

// CraftingCalculator costs FORWARD recipes.
type CraftingCalculator struct {
	Resolver *Resolver
}

// Cost computes the reagent cost of a FORWARD recipe on a realm and
// allocates it across the recipe's derivatives. Returns (nil, nil) when
// the recipe cannot be costed (no reagents, no derivatives, or wrong
// method type); that is missing data, not an error.
//
// Allocation is proportional: each derivative's unit cost is the full
// reagent cost divided by that derivative's own quantity, so a recipe
// producing 2x A and 10x B prices a unit of B five times cheaper than a
// unit of A.
func (c *CraftingCalculator) Cost(ctx context.Context, recipe model.RecipeMethod, realmID int64) (*CraftingCost, error) {
	if recipe.MethodType != model.MethodForward {
		return nil, fmt.Errorf("recipe %d: cost requires a FORWARD recipe, got %s", recipe.RecipeID, recipe.MethodType)
	}
	if len(recipe.Reagents) == 0 || len(recipe.Derivatives) == 0 {
		return nil, nil
	}

	reagentIDs := make([]int64, 0, len(recipe.Reagents))
	for _, st := range recipe.Reagents {
		reagentIDs = append(reagentIDs, st.ItemID)
	}
	prices, err := c.Resolver.Prices(ctx, realmID, reagentIDs)
	if err != nil {
		return nil, fmt.Errorf("cost recipe %d realm %d: %w", recipe.RecipeID, realmID, err)
	}

	cost := &CraftingCost{
		RecipeID:    recipe.RecipeID,
		RealmID:     realmID,
		CostPerUnit: make(map[int64]float64, len(recipe.Derivatives)),
		Derivatives: recipe.Derivatives,
	}

	for _, st := range recipe.Reagents {
		if st.Quantity <= 0 {
			continue
		}
		price, ok := prices[st.ItemID]
		if !ok {
			// Unpriced reagents are excluded from the sum and reported as
			// missing; confidence carries the degradation downstream.
			cost.MissingData = append(cost.MissingData, st.ItemID)
			continue
		}
		line := ReagentCost{
			ItemID:    st.ItemID,
			Quantity:  st.Quantity,
			UnitPrice: price,
			LineCost:  price * st.Quantity,
		}
		cost.Reagents = append(cost.Reagents, line)
		cost.TotalCost += line.LineCost
	}

	reagentCount := len(recipe.Reagents)
	cost.Confidence = float64(reagentCount-len(cost.MissingData)) / float64(reagentCount)

	for _, st := range recipe.Derivatives {
		if st.Quantity <= 0 {
			continue
		}
		cost.CostPerUnit[st.ItemID] = cost.TotalCost / st.Quantity
	}

	return cost, nil
}
