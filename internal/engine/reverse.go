package engine

import (
	"context"
	"fmt"

	"craft-pricer/internal/model"
)

// ReverseCalculator values REVERSE (byproduct extraction) recipes:
// milling, prospecting, disenchanting.
type ReverseCalculator struct {
	Resolver *Resolver
}

// Value computes the expected output value of a REVERSE recipe net of its
// input cost. Returns (nil, nil) when the recipe has no derivatives.
//
// Each derivative contributes quantity * matRate * price, the expected
// value under probabilistic yield. Unlike forward costing, unknown input
// prices count as 0 rather than lowering confidence: reverse methods are
// valued by benefit, so an unpriced input must not block the valuation.
func (c *ReverseCalculator) Value(ctx context.Context, recipe model.RecipeMethod, realmID int64) (*ReverseValue, error) {
	if recipe.MethodType != model.MethodReverse {
		return nil, fmt.Errorf("recipe %d: value requires a REVERSE recipe, got %s", recipe.RecipeID, recipe.MethodType)
	}
	if len(recipe.Derivatives) == 0 {
		return nil, nil
	}

	derivativeIDs := make([]int64, 0, len(recipe.Derivatives))
	for _, st := range recipe.Derivatives {
		derivativeIDs = append(derivativeIDs, st.ItemID)
	}
	yieldPrices, err := c.Resolver.Prices(ctx, realmID, derivativeIDs)
	if err != nil {
		return nil, fmt.Errorf("value recipe %d realm %d: %w", recipe.RecipeID, realmID, err)
	}

	var inputPrices map[int64]float64
	if len(recipe.Reagents) > 0 {
		reagentIDs := make([]int64, 0, len(recipe.Reagents))
		for _, st := range recipe.Reagents {
			reagentIDs = append(reagentIDs, st.ItemID)
		}
		inputPrices, err = c.Resolver.Prices(ctx, realmID, reagentIDs)
		if err != nil {
			return nil, fmt.Errorf("value recipe %d realm %d: %w", recipe.RecipeID, realmID, err)
		}
	}

	value := &ReverseValue{
		RecipeID: recipe.RecipeID,
		RealmID:  realmID,
	}

	for _, st := range recipe.Derivatives {
		if st.Quantity <= 0 {
			continue
		}
		matRate := st.MatRate
		if matRate <= 0 {
			matRate = 1
		}
		price, ok := yieldPrices[st.ItemID]
		if !ok {
			value.MissingData = append(value.MissingData, st.ItemID)
			continue
		}
		y := YieldValue{
			ItemID:    st.ItemID,
			Quantity:  st.Quantity,
			MatRate:   matRate,
			UnitPrice: price,
			Expected:  st.Quantity * matRate * price,
		}
		value.Yields = append(value.Yields, y)
		value.ExpectedValue += y.Expected
	}

	for _, st := range recipe.Reagents {
		// Unpriced inputs contribute 0 to the cost side.
		value.TotalCost += inputPrices[st.ItemID] * st.Quantity
	}

	if value.TotalCost > 0 {
		value.ProfitMargin = (value.ExpectedValue - value.TotalCost) / value.TotalCost * 100
	}

	derivativeCount := len(recipe.Derivatives)
	value.Confidence = float64(derivativeCount-len(value.MissingData)) / float64(derivativeCount)

	return value, nil
}
