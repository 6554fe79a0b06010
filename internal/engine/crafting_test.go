package engine

import (
	"context"
	"math"
	"testing"

	"craft-pricer/internal/model"
)

func forwardRecipe(id int64, reagents, derivatives []model.ItemStack) model.RecipeMethod {
	return model.RecipeMethod{
		RecipeID:    id,
		MethodType:  model.MethodForward,
		Reagents:    reagents,
		Derivatives: derivatives,
	}
}

func TestCost_ProportionalAllocation(t *testing.T) {
	f := newFakeStore()
	f.snapshots[1] = 20
	f.snapshots[2] = 30
	// totalCost = 20*2 + 30*2 = 100
	recipe := forwardRecipe(5,
		[]model.ItemStack{stack(1, 2), stack(2, 2)},
		[]model.ItemStack{stack(10, 2), stack(11, 5)},
	)

	calc := &CraftingCalculator{Resolver: newTestResolver(f)}
	cost, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost == nil {
		t.Fatal("Cost returned nil")
	}
	if math.Abs(cost.TotalCost-100) > 1e-9 {
		t.Errorf("TotalCost = %v, want 100", cost.TotalCost)
	}
	// Allocation divides by each derivative's own quantity, not the sum.
	if math.Abs(cost.CostPerUnit[10]-50) > 1e-9 {
		t.Errorf("CostPerUnit[10] = %v, want 100/2 = 50", cost.CostPerUnit[10])
	}
	if math.Abs(cost.CostPerUnit[11]-20) > 1e-9 {
		t.Errorf("CostPerUnit[11] = %v, want 100/5 = 20", cost.CostPerUnit[11])
	}
	if cost.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", cost.Confidence)
	}
}

func TestCost_MissingReagentLowersConfidence(t *testing.T) {
	f := newFakeStore()
	f.snapshots[1] = 10
	f.snapshots[2] = 10
	recipe := forwardRecipe(5,
		[]model.ItemStack{stack(1, 1), stack(2, 1), stack(3, 1), stack(4, 1)},
		[]model.ItemStack{stack(10, 1)},
	)

	calc := &CraftingCalculator{Resolver: newTestResolver(f)}
	cost, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	// 2 of 4 reagents priced.
	if math.Abs(cost.Confidence-0.5) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.5", cost.Confidence)
	}
	if len(cost.MissingData) != 2 {
		t.Errorf("MissingData = %v, want 2 ids", cost.MissingData)
	}
	// Unpriced reagents are excluded from the sum, not zeroed.
	if math.Abs(cost.TotalCost-20) > 1e-9 {
		t.Errorf("TotalCost = %v, want 20", cost.TotalCost)
	}
}

func TestCost_ConfidenceDropIsOneOverN(t *testing.T) {
	f := newFakeStore()
	f.snapshots[1] = 10
	f.snapshots[2] = 10
	f.snapshots[3] = 10
	recipe := forwardRecipe(5,
		[]model.ItemStack{stack(1, 1), stack(2, 1), stack(3, 1)},
		[]model.ItemStack{stack(10, 1)},
	)
	calc := &CraftingCalculator{Resolver: newTestResolver(f)}

	full, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}

	delete(f.snapshots, 3)
	degraded, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}

	drop := full.Confidence - degraded.Confidence
	if math.Abs(drop-1.0/3.0) > 1e-9 {
		t.Errorf("confidence drop = %v, want 1/3", drop)
	}
}

func TestCost_EmptyReagentsAbsent(t *testing.T) {
	calc := &CraftingCalculator{Resolver: newTestResolver(newFakeStore())}
	recipe := forwardRecipe(5, nil, []model.ItemStack{stack(10, 1)})
	cost, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != nil {
		t.Error("expected nil cost for recipe without reagents")
	}
}

func TestCost_EmptyDerivativesAbsent(t *testing.T) {
	calc := &CraftingCalculator{Resolver: newTestResolver(newFakeStore())}
	recipe := forwardRecipe(5, []model.ItemStack{stack(1, 1)}, nil)
	cost, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != nil {
		t.Error("expected nil cost for recipe without derivatives")
	}
}

func TestCost_RejectsReverseRecipe(t *testing.T) {
	calc := &CraftingCalculator{Resolver: newTestResolver(newFakeStore())}
	recipe := model.RecipeMethod{
		RecipeID:    9,
		MethodType:  model.MethodReverse,
		Reagents:    []model.ItemStack{stack(1, 1)},
		Derivatives: []model.ItemStack{stack(2, 1)},
	}
	if _, err := calc.Cost(context.Background(), recipe, 1); err == nil {
		t.Error("expected error costing a REVERSE recipe")
	}
}

func TestCost_SkipsNonPositiveDerivativeQuantity(t *testing.T) {
	f := newFakeStore()
	f.snapshots[1] = 10
	recipe := forwardRecipe(5,
		[]model.ItemStack{stack(1, 1)},
		[]model.ItemStack{{ItemID: 10, Quantity: 0}, stack(11, 1)},
	)
	calc := &CraftingCalculator{Resolver: newTestResolver(f)}
	cost, err := calc.Cost(context.Background(), recipe, 1)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if _, ok := cost.CostPerUnit[10]; ok {
		t.Error("derivative with quantity 0 must not be allocated a cost")
	}
	if cost.CostPerUnit[11] != 10 {
		t.Errorf("CostPerUnit[11] = %v, want 10", cost.CostPerUnit[11])
	}
}
