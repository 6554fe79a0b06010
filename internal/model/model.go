// Package model defines the core domain entities shared by the pricing
// engine, the evaluation job and the classification pipeline.
package model

import (
	"encoding/json"
	"time"
)

// MethodType distinguishes deterministic crafting from probabilistic
// byproduct extraction.
type MethodType string

const (
	// MethodForward is a deterministic crafting recipe (reagents -> derivatives).
	MethodForward MethodType = "FORWARD"
	// MethodReverse is a probabilistic extraction recipe (milling, prospecting,
	// disenchanting) with a yield chance per derivative.
	MethodReverse MethodType = "REVERSE"
)

// MarketChannel identifies where an observation was made.
type MarketChannel string

const (
	ChannelAuction   MarketChannel = "AUCTION"
	ChannelCommodity MarketChannel = "COMMODITY"
	ChannelToken     MarketChannel = "TOKEN"
)

// Asset classes derived by the classification pipeline.
const (
	AssetDerivative = "DERIVATIVE"
	AssetReagent    = "REAGENT"
	AssetMarket     = "MARKET"
	AssetCommodity  = "COMMDTY"
	AssetItem       = "ITEM"
	AssetPremium    = "PREMIUM"
	AssetWowToken   = "WOWTOKEN"
	AssetGold       = "GOLD"
	AssetVSP        = "VSP"
)

// Reserved item ids with fixed semantics in the item catalog.
const (
	GoldItemID = int64(1)
)

// WowTokenItemIDs are the region-token item ids.
var WowTokenItemIDs = []int64{122270, 122284}

// LootTypeOnAcquire marks items bound when looted; reagents of this loot
// type are classified PREMIUM.
const LootTypeOnAcquire = "ON_ACQUIRE"

// ItemStack is the normalized form of a recipe reagent or derivative.
// Upstream payloads are loosely typed (sometimes a bare item id, sometimes
// an object); they are normalized into this shape at the storage boundary
// and never branched on again.
type ItemStack struct {
	ItemID        int64   `json:"itemId"`
	Quantity      float64 `json:"quantity"`
	MatRate       float64 `json:"matRate,omitempty"`
	MinAmount     float64 `json:"minAmount,omitempty"`
	MaxAmount     float64 `json:"maxAmount,omitempty"`
	SourceQuality int     `json:"sourceQuality,omitempty"`
	TargetQuality int     `json:"targetQuality,omitempty"`
}

// UnmarshalJSON accepts either a bare item id (number) or a full stack
// object, normalizing both into an ItemStack with Quantity >= 1 and
// MatRate in (0, 1].
func (s *ItemStack) UnmarshalJSON(data []byte) error {
	// Bare id form: 12345
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*s = ItemStack{ItemID: id, Quantity: 1, MatRate: 1}
		return nil
	}

	type stackAlias ItemStack
	var a stackAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = ItemStack(a)
	s.normalize()
	return nil
}

func (s *ItemStack) normalize() {
	if s.Quantity <= 0 {
		s.Quantity = 1
	}
	// Absent yield chance means guaranteed output.
	if s.MatRate <= 0 || s.MatRate > 1 {
		s.MatRate = 1
	}
}

// RecipeMethod is one way to transform inputs into outputs. Rows are
// written by the external recipe crawler or bulk loader and are read-only
// to the engine.
type RecipeMethod struct {
	RecipeID    int64       `json:"recipeId"`
	MethodType  MethodType  `json:"methodType"`
	Profession  string      `json:"profession"`
	Expansion   string      `json:"expansion"`
	Rank        int         `json:"rank"`
	Provenance  string      `json:"provenance"`
	Reagents    []ItemStack `json:"reagents"`
	Derivatives []ItemStack `json:"derivatives"`
	ImportedAt  time.Time   `json:"importedAt"`
}

// MarketObservation is one observed trade or listing, appended by an
// external ingester.
type MarketObservation struct {
	ItemID    int64         `json:"itemId"`
	RealmID   int64         `json:"realmId"`
	Price     float64       `json:"price"`
	Quantity  float64       `json:"quantity"`
	Value     float64       `json:"value"`
	Channel   MarketChannel `json:"channel"`
	Timestamp time.Time     `json:"timestamp"`
}

// MarketValuationSnapshot is the cached representative price for one item
// on one realm, written by an upstream aggregator.
type MarketValuationSnapshot struct {
	ItemID      int64     `json:"itemId"`
	RealmID     int64     `json:"realmId"`
	MarketPrice float64   `json:"marketPrice"`
	Timestamp   time.Time `json:"timestamp"`
}

// ItemRecord is master data for a tradable item. Asset-class and general
// tags are mutated only by the classification pipeline.
type ItemRecord struct {
	ItemID          int64    `json:"itemId"`
	Name            string   `json:"name"`
	VendorSellPrice float64  `json:"vendorSellPrice"`
	PurchasePrice   float64  `json:"purchasePrice"`
	LootType        string   `json:"lootType"`
	Profession      string   `json:"profession"`
	Expansion       string   `json:"expansion"`
	ItemClass       string   `json:"itemClass"`
	ItemSubclass    string   `json:"itemSubclass"`
	Quality         string   `json:"quality"`
	Ticker          string   `json:"ticker"`
	AssetClassTags  []string `json:"assetClassTags"`
	GeneralTags     []string `json:"generalTags"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAssetClass reports whether the item carries the given asset class.
func (it *ItemRecord) HasAssetClass(tag string) bool {
	for _, t := range it.AssetClassTags {
		if t == tag {
			return true
		}
	}
	return false
}

// EvaluationRecord is the persisted result of one full item evaluation.
// The scheduled job replaces a realm's records wholesale on every run.
type EvaluationRecord struct {
	ItemID          int64     `json:"itemId"`
	RealmID         int64     `json:"realmId"`
	MarketPrice     float64   `json:"marketPrice"`
	CraftingCost    float64   `json:"craftingCost"`
	VendorSellPrice float64   `json:"vendorSellPrice"`
	Profit          float64   `json:"profit"`
	ProfitMargin    float64   `json:"profitMargin"`
	IsProfitable    bool      `json:"isProfitable"`
	BestRecipeID    int64     `json:"bestRecipeId"`
	RecipeRank      int       `json:"recipeRank"`
	Profession      string    `json:"profession"`
	Expansion       string    `json:"expansion"`
	AssetClassTags  []string  `json:"assetClassTags"`
	Recommendations []string  `json:"recommendations"`
	Confidence      float64   `json:"confidence"`
	MarketVolume    float64   `json:"marketVolume"`
	Timestamp       time.Time `json:"timestamp"`
}

// UnionTags returns existing ∪ add preserving existing order; added tags
// keep their input order. The bool reports whether anything changed.
func UnionTags(existing, add []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	out := existing
	changed := false
	for _, t := range add {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		changed = true
	}
	return out, changed
}
