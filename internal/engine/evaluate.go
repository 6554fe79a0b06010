package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"craft-pricer/internal/model"
)

// vendorArbitrageRatio: a market price below this fraction of the vendor
// sell price earns a vendor-arbitrage recommendation.
const vendorArbitrageRatio = 0.8

// Evaluator aggregates pricing methods from every source and ranks them.
type Evaluator struct {
	Resolver *Resolver
	Crafting *CraftingCalculator
	Reverse  *ReverseCalculator
	Recipes  RecipeSource
	Items    ItemSource
}

// NewEvaluator wires an Evaluator over the given sources.
func NewEvaluator(resolver *Resolver, recipes RecipeSource, items ItemSource) *Evaluator {
	return &Evaluator{
		Resolver: resolver,
		Crafting: &CraftingCalculator{Resolver: resolver},
		Reverse:  &ReverseCalculator{Resolver: resolver},
		Recipes:  recipes,
		Items:    items,
	}
}

// Evaluate gathers all applicable pricing methods for an item on a realm,
// ranks them, and derives the best method for buying, selling and
// crafting. Missing sources degrade the result instead of failing it: an
// item with no crafting data still evaluates from market/vendor methods.
func (e *Evaluator) Evaluate(ctx context.Context, itemID, realmID int64, opts EvaluateOptions) (*ItemEvaluation, error) {
	eval := &ItemEvaluation{ItemID: itemID, RealmID: realmID}

	marketPrice, hasMarket, err := e.Resolver.Price(ctx, realmID, itemID)
	if err != nil {
		return nil, fmt.Errorf("evaluate item %d realm %d: %w", itemID, realmID, err)
	}
	eval.MarketPrice = marketPrice
	eval.HasMarketPrice = hasMarket
	if hasMarket {
		eval.Methods = append(eval.Methods, PricingMethod{
			Source:          SourceMarket,
			CalculatedValue: marketPrice,
			Confidence:      MarketConfidence,
		})
	}

	var item *model.ItemRecord
	if !opts.ExcludeVendor {
		item, err = e.Items.Item(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("evaluate item %d realm %d: %w", itemID, realmID, err)
		}
		if item != nil && item.VendorSellPrice > 0 {
			eval.Methods = append(eval.Methods, PricingMethod{
				Source:          SourceVendor,
				CalculatedValue: item.VendorSellPrice,
				Confidence:      VendorConfidence,
			})
		}
	}

	if !opts.ExcludeCrafting {
		if err := e.appendCraftingMethods(ctx, eval, itemID, realmID); err != nil {
			return nil, err
		}
	}
	if !opts.ExcludeReverse {
		if err := e.appendReverseMethods(ctx, eval, itemID, realmID); err != nil {
			return nil, err
		}
	}

	if opts.MinConfidence > 0 {
		kept := eval.Methods[:0]
		for _, m := range eval.Methods {
			if m.Confidence >= opts.MinConfidence {
				kept = append(kept, m)
			}
		}
		eval.Methods = kept
	}

	rankMethods(eval.Methods)
	eval.BestForBuying = pickBest(eval.Methods, "", false)
	eval.BestForSelling = pickBest(eval.Methods, "", true)
	eval.BestForCrafting = pickBest(eval.Methods, SourceCrafting, false)

	var vendorPrice float64
	if item != nil {
		vendorPrice = item.VendorSellPrice
	}
	eval.Recommendations = buildRecommendations(eval, vendorPrice)

	return eval, nil
}

// appendCraftingMethods adds one method per FORWARD recipe producing the
// item, valued at that recipe's allocated unit cost. Per-recipe costing
// failures are logged and skipped so one bad recipe cannot void the
// evaluation.
func (e *Evaluator) appendCraftingMethods(ctx context.Context, eval *ItemEvaluation, itemID, realmID int64) error {
	recipes, err := e.Recipes.ForwardRecipesProducing(ctx, itemID)
	if err != nil {
		return fmt.Errorf("evaluate item %d realm %d: %w", itemID, realmID, err)
	}
	for _, recipe := range recipes {
		cost, err := e.Crafting.Cost(ctx, recipe, realmID)
		if err != nil {
			log.Printf("[EVAL] cost recipe %d item %d realm %d: %v", recipe.RecipeID, itemID, realmID, err)
			continue
		}
		if cost == nil {
			continue
		}
		unitCost, ok := cost.CostPerUnit[itemID]
		if !ok {
			continue
		}
		eval.Methods = append(eval.Methods, PricingMethod{
			Source:          SourceCrafting,
			CalculatedValue: unitCost,
			Confidence:      cost.Confidence,
			RecipeID:        recipe.RecipeID,
			RecipeRank:      recipe.Rank,
			Profession:      recipe.Profession,
			Expansion:       recipe.Expansion,
		})
	}
	return nil
}

// appendReverseMethods adds one method per REVERSE recipe consuming the
// item. The method value is the recipe's expected output value divided by
// the reagent quantity consumed: the value attributable to one unit of
// the input item.
func (e *Evaluator) appendReverseMethods(ctx context.Context, eval *ItemEvaluation, itemID, realmID int64) error {
	recipes, err := e.Recipes.ReverseRecipesConsuming(ctx, itemID)
	if err != nil {
		return fmt.Errorf("evaluate item %d realm %d: %w", itemID, realmID, err)
	}
	for _, recipe := range recipes {
		value, err := e.Reverse.Value(ctx, recipe, realmID)
		if err != nil {
			log.Printf("[EVAL] reverse recipe %d item %d realm %d: %v", recipe.RecipeID, itemID, realmID, err)
			continue
		}
		if value == nil {
			continue
		}
		var consumed float64
		for _, st := range recipe.Reagents {
			if st.ItemID == itemID {
				consumed = st.Quantity
				break
			}
		}
		if consumed <= 0 {
			continue
		}
		eval.Methods = append(eval.Methods, PricingMethod{
			Source:          SourceReverse,
			CalculatedValue: value.ExpectedValue / consumed,
			Confidence:      value.Confidence,
			RecipeID:        recipe.RecipeID,
			RecipeRank:      recipe.Rank,
			Profession:      recipe.Profession,
			Expansion:       recipe.Expansion,
		})
	}
	return nil
}

// rankMethods sorts by confidence descending, value ascending on ties.
func rankMethods(methods []PricingMethod) {
	sort.SliceStable(methods, func(i, j int) bool {
		if methods[i].Confidence != methods[j].Confidence {
			return methods[i].Confidence > methods[j].Confidence
		}
		return methods[i].CalculatedValue < methods[j].CalculatedValue
	})
}

// pickBest returns the min (or max) valued method, optionally restricted
// to one source. Nil when no candidate exists.
func pickBest(methods []PricingMethod, source string, max bool) *PricingMethod {
	var best *PricingMethod
	for i := range methods {
		m := &methods[i]
		if source != "" && m.Source != source {
			continue
		}
		if best == nil ||
			(max && m.CalculatedValue > best.CalculatedValue) ||
			(!max && m.CalculatedValue < best.CalculatedValue) {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// buildRecommendations generates advisory free-text hints. These strings
// never gate persistence or control flow.
func buildRecommendations(eval *ItemEvaluation, vendorPrice float64) []string {
	var recs []string

	if eval.BestForCrafting != nil && eval.HasMarketPrice {
		craftCost := eval.BestForCrafting.CalculatedValue
		profit := eval.MarketPrice - craftCost
		if profit > 0 && craftCost > 0 {
			margin := profit / craftCost * 100
			recs = append(recs, fmt.Sprintf(
				"Crafting is profitable: craft for %.2f, sell for %.2f (profit %.2f, margin %.1f%%)",
				craftCost, eval.MarketPrice, profit, margin))
		} else {
			recs = append(recs, fmt.Sprintf(
				"Crafting is not profitable at current prices (cost %.2f vs market %.2f)",
				craftCost, eval.MarketPrice))
		}
	}

	if eval.HasMarketPrice {
		for _, m := range eval.Methods {
			if m.Source == SourceReverse && m.CalculatedValue > eval.MarketPrice {
				recs = append(recs, fmt.Sprintf(
					"Breaking down via recipe %d yields %.2f per item against a %.2f market price",
					m.RecipeID, m.CalculatedValue, eval.MarketPrice))
			}
		}
	}

	if vendorPrice > 0 && eval.HasMarketPrice && eval.MarketPrice < vendorPrice*vendorArbitrageRatio {
		recs = append(recs, fmt.Sprintf(
			"Market price %.2f is below 80%% of the vendor sell price %.2f; vendoring is the better exit",
			eval.MarketPrice, vendorPrice))
	}

	return recs
}
