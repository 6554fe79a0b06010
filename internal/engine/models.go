// Package engine derives pricing methods and valuations for tradable
// items: market price resolution, forward crafting cost, reverse
// byproduct yield, method ranking and realm-wide profitability scans.
package engine

import (
	"context"

	"craft-pricer/internal/model"
)

// Method sources, ordered roughly by data authority.
const (
	SourceMarket   = "market"
	SourceVendor   = "vendor"
	SourceCrafting = "crafting"
	SourceReverse  = "reverse"
)

// Confidence assigned to sources whose data is not per-recipe derived.
const (
	// MarketConfidence reflects that observed prices are real but not
	// guaranteed current.
	MarketConfidence = 0.9
	// VendorConfidence is authoritative static catalog data.
	VendorConfidence = 1.0
	// MinScanConfidence is the floor below which the profitability scanner
	// discards a recipe costing.
	MinScanConfidence = 0.5
)

// PriceSource supplies market snapshots and raw observations.
type PriceSource interface {
	SnapshotPrices(ctx context.Context, realmID int64, itemIDs []int64) (map[int64]float64, error)
	RecentObservations(ctx context.Context, realmID, itemID int64, limit int) ([]model.MarketObservation, error)
	ObservationsForItems(ctx context.Context, realmID int64, itemIDs []int64, limit int) (map[int64][]model.MarketObservation, error)
}

// RecipeSource supplies recipe methods.
type RecipeSource interface {
	ForwardRecipes(ctx context.Context, expansion, profession string) ([]model.RecipeMethod, error)
	ForwardRecipesProducing(ctx context.Context, itemID int64) ([]model.RecipeMethod, error)
	ReverseRecipesConsuming(ctx context.Context, itemID int64) ([]model.RecipeMethod, error)
}

// ItemSource supplies catalog master data.
type ItemSource interface {
	Item(ctx context.Context, itemID int64) (*model.ItemRecord, error)
}

// ReagentCost is one reagent line in a crafting cost breakdown.
type ReagentCost struct {
	ItemID    int64   `json:"item_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineCost  float64 `json:"line_cost"`
}

// CraftingCost is the costing of one FORWARD recipe on one realm.
type CraftingCost struct {
	RecipeID    int64             `json:"recipe_id"`
	RealmID     int64             `json:"realm_id"`
	TotalCost   float64           `json:"total_cost"`
	Confidence  float64           `json:"confidence"`
	CostPerUnit map[int64]float64 `json:"cost_per_unit"` // derivative item id -> allocated unit cost
	Reagents    []ReagentCost     `json:"reagents"`
	MissingData []int64           `json:"missing_data"` // reagent item ids with no resolvable price
	Derivatives []model.ItemStack `json:"derivatives"`
}

// YieldValue is one derivative line in a reverse valuation.
type YieldValue struct {
	ItemID    int64   `json:"item_id"`
	Quantity  float64 `json:"quantity"`
	MatRate   float64 `json:"mat_rate"`
	UnitPrice float64 `json:"unit_price"`
	Expected  float64 `json:"expected"` // quantity * matRate * unitPrice
}

// ReverseValue is the expected-value analysis of one REVERSE recipe.
type ReverseValue struct {
	RecipeID      int64        `json:"recipe_id"`
	RealmID       int64        `json:"realm_id"`
	ExpectedValue float64      `json:"expected_value"`
	TotalCost     float64      `json:"total_cost"`
	ProfitMargin  float64      `json:"profit_margin"`
	Confidence    float64      `json:"confidence"`
	Yields        []YieldValue `json:"yields"`
	MissingData   []int64      `json:"missing_data"` // derivative item ids with no resolvable price
}

// PricingMethod is one way to acquire or dispose of an item, with the
// value attributable to a single unit.
type PricingMethod struct {
	Source          string  `json:"source"`
	CalculatedValue float64 `json:"calculated_value"`
	Confidence      float64 `json:"confidence"`
	RecipeID        int64   `json:"recipe_id,omitempty"`
	RecipeRank      int     `json:"recipe_rank,omitempty"`
	Profession      string  `json:"profession,omitempty"`
	Expansion       string  `json:"expansion,omitempty"`
}

// EvaluateOptions selects which method sources an evaluation considers.
// The zero value enables everything with no confidence floor.
type EvaluateOptions struct {
	ExcludeVendor   bool
	ExcludeCrafting bool
	ExcludeReverse  bool
	MinConfidence   float64
}

// ItemEvaluation is the aggregated, ranked method set for one item on one
// realm. Best* pointers are nil when the candidate set is empty; callers
// must handle absence.
type ItemEvaluation struct {
	ItemID          int64           `json:"item_id"`
	RealmID         int64           `json:"realm_id"`
	MarketPrice     float64         `json:"market_price"`
	HasMarketPrice  bool            `json:"has_market_price"`
	Methods         []PricingMethod `json:"methods"`
	BestForBuying   *PricingMethod  `json:"best_for_buying"`
	BestForSelling  *PricingMethod  `json:"best_for_selling"`
	BestForCrafting *PricingMethod  `json:"best_for_crafting"`
	Recommendations []string        `json:"recommendations"`
}

// ScanParams filters a realm-wide profitability scan. Zero values disable
// the corresponding filter.
type ScanParams struct {
	Expansion       string
	Profession      string
	MaxCraftingCost float64
	MinMargin       float64 // percent
	MinProfit       float64
}

// PriceComparison is one profitable derivative found by the scanner.
type PriceComparison struct {
	ItemID       int64   `json:"item_id"`
	RecipeID     int64   `json:"recipe_id"`
	RecipeRank   int     `json:"recipe_rank"`
	Profession   string  `json:"profession"`
	Expansion    string  `json:"expansion"`
	MarketPrice  float64 `json:"market_price"`
	CraftingCost float64 `json:"crafting_cost"`
	Profit       float64 `json:"profit"`
	ProfitMargin float64 `json:"profit_margin"`
	Confidence   float64 `json:"confidence"`
}
