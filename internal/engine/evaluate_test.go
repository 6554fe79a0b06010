package engine

import (
	"context"
	"math"
	"strings"
	"testing"

	"craft-pricer/internal/model"
)

func TestRankMethods_TiesBreakValueAscending(t *testing.T) {
	methods := []PricingMethod{
		{Source: SourceCrafting, CalculatedValue: 70, Confidence: 0.9},
		{Source: SourceMarket, CalculatedValue: 50, Confidence: 0.9},
	}
	rankMethods(methods)
	if methods[0].CalculatedValue != 50 || methods[1].CalculatedValue != 70 {
		t.Errorf("equal-confidence methods must sort value-ascending, got %v then %v",
			methods[0].CalculatedValue, methods[1].CalculatedValue)
	}
}

func TestRankMethods_ConfidenceDescending(t *testing.T) {
	methods := []PricingMethod{
		{Source: SourceMarket, CalculatedValue: 10, Confidence: 0.9},
		{Source: SourceVendor, CalculatedValue: 99, Confidence: 1.0},
	}
	rankMethods(methods)
	if methods[0].Source != SourceVendor {
		t.Errorf("methods[0].Source = %s, want vendor (highest confidence)", methods[0].Source)
	}
}

// End-to-end: item 100 sells at vendor for 10; a recipe turns 2x item 200
// (market price 5 each) into 1x item 100; item 100 trades at 30.
func TestEvaluate_EndToEnd(t *testing.T) {
	f := newFakeStore()
	f.snapshots[100] = 30
	f.snapshots[200] = 5
	f.items[100] = &model.ItemRecord{ItemID: 100, VendorSellPrice: 10}
	f.recipes = append(f.recipes, forwardRecipe(77,
		[]model.ItemStack{stack(200, 2)},
		[]model.ItemStack{stack(100, 1)},
	))

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(eval.Methods) != 3 {
		t.Fatalf("len(Methods) = %d, want 3 (market, vendor, crafting)", len(eval.Methods))
	}
	if eval.BestForCrafting == nil {
		t.Fatal("BestForCrafting is nil")
	}
	if math.Abs(eval.BestForCrafting.CalculatedValue-10) > 1e-9 {
		t.Errorf("crafting cost = %v, want 10", eval.BestForCrafting.CalculatedValue)
	}
	if eval.BestForCrafting.Confidence != 1 {
		t.Errorf("crafting confidence = %v, want 1", eval.BestForCrafting.Confidence)
	}
	if eval.BestForCrafting.RecipeID != 77 {
		t.Errorf("crafting RecipeID = %d, want 77", eval.BestForCrafting.RecipeID)
	}

	if eval.BestForBuying == nil || math.Abs(eval.BestForBuying.CalculatedValue-10) > 1e-9 {
		t.Errorf("BestForBuying = %+v, want value 10", eval.BestForBuying)
	}
	if eval.BestForSelling == nil || math.Abs(eval.BestForSelling.CalculatedValue-30) > 1e-9 {
		t.Errorf("BestForSelling = %+v, want market at 30", eval.BestForSelling)
	}

	// profit 20 on cost 10 = 200% margin, and the advisory text says so.
	found := false
	for _, rec := range eval.Recommendations {
		if strings.Contains(rec, "profitable") && strings.Contains(rec, "200.0%") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing profitable-crafting recommendation with 200%% margin, got %v", eval.Recommendations)
	}
}

func TestEvaluate_NoCraftingData(t *testing.T) {
	f := newFakeStore()
	f.snapshots[100] = 30

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.BestForCrafting != nil {
		t.Error("BestForCrafting should be nil without recipes")
	}
	if eval.BestForBuying == nil || eval.BestForBuying.Source != SourceMarket {
		t.Errorf("BestForBuying = %+v, want the market method", eval.BestForBuying)
	}
}

func TestEvaluate_EmptyMethodSet(t *testing.T) {
	f := newFakeStore()
	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.BestForBuying != nil || eval.BestForSelling != nil || eval.BestForCrafting != nil {
		t.Error("all bests must be nil for an item with no data")
	}
	if len(eval.Methods) != 0 {
		t.Errorf("Methods = %v, want empty", eval.Methods)
	}
}

func TestEvaluate_MinConfidenceFilters(t *testing.T) {
	f := newFakeStore()
	f.snapshots[100] = 30
	f.snapshots[200] = 5
	// Recipe with a second, unpriced reagent: confidence 0.5.
	f.recipes = append(f.recipes, forwardRecipe(77,
		[]model.ItemStack{stack(200, 1), stack(201, 1)},
		[]model.ItemStack{stack(100, 1)},
	))

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{MinConfidence: 0.8})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, m := range eval.Methods {
		if m.Confidence < 0.8 {
			t.Errorf("method %+v survived MinConfidence filter", m)
		}
	}
	if eval.BestForCrafting != nil {
		t.Error("low-confidence crafting method should have been filtered")
	}
}

func TestEvaluate_ReverseMethodPerUnitOfInput(t *testing.T) {
	f := newFakeStore()
	f.snapshots[300] = 8 // the input herb
	f.snapshots[301] = 20
	// Milling 5 herbs yields 2.5 pigment expected (qty 5, matRate 0.5) at 20 each.
	f.recipes = append(f.recipes, reverseRecipe(88,
		[]model.ItemStack{stack(300, 5)},
		[]model.ItemStack{{ItemID: 301, Quantity: 5, MatRate: 0.5}},
	))

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 300, 1, EvaluateOptions{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	var reverse *PricingMethod
	for i := range eval.Methods {
		if eval.Methods[i].Source == SourceReverse {
			reverse = &eval.Methods[i]
		}
	}
	if reverse == nil {
		t.Fatal("no reverse method produced")
	}
	// Expected value 5*0.5*20 = 50 over 5 consumed units = 10 per input.
	if math.Abs(reverse.CalculatedValue-10) > 1e-9 {
		t.Errorf("reverse value = %v, want 10 per consumed unit", reverse.CalculatedValue)
	}
	// 10 per unit > 8 market: the advisory mentions breaking down.
	found := false
	for _, rec := range eval.Recommendations {
		if strings.Contains(rec, "Breaking down") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing break-down recommendation, got %v", eval.Recommendations)
	}
}

func TestEvaluate_VendorArbitrageHint(t *testing.T) {
	f := newFakeStore()
	f.snapshots[100] = 7 // below 80% of vendor 10
	f.items[100] = &model.ItemRecord{ItemID: 100, VendorSellPrice: 10}

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	found := false
	for _, rec := range eval.Recommendations {
		if strings.Contains(rec, "vendor") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing vendor-arbitrage hint, got %v", eval.Recommendations)
	}
}

func TestEvaluate_ExcludeSources(t *testing.T) {
	f := newFakeStore()
	f.snapshots[100] = 30
	f.snapshots[200] = 5
	f.items[100] = &model.ItemRecord{ItemID: 100, VendorSellPrice: 10}
	f.recipes = append(f.recipes, forwardRecipe(77,
		[]model.ItemStack{stack(200, 2)},
		[]model.ItemStack{stack(100, 1)},
	))

	e := NewEvaluator(newTestResolver(f), f, f)
	eval, err := e.Evaluate(context.Background(), 100, 1, EvaluateOptions{
		ExcludeVendor:   true,
		ExcludeCrafting: true,
		ExcludeReverse:  true,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(eval.Methods) != 1 || eval.Methods[0].Source != SourceMarket {
		t.Errorf("Methods = %v, want only the market method", eval.Methods)
	}
}
