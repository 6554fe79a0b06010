package pipeline

import (
	"context"
	"fmt"
	"strings"

	"craft-pricer/internal/model"
)

// runPricing tags every item referenced by a recipe: outputs become
// DERIVATIVE, inputs become REAGENT. An item can be both.
func (p *Pipeline) runPricing(ctx context.Context) (int, error) {
	derivatives, err := p.Catalog.DerivativeItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("derivative ids: %w", err)
	}
	changed, err := p.Catalog.AddAssetClasses(ctx, derivatives, model.AssetDerivative)
	if err != nil {
		return 0, fmt.Errorf("tag derivatives: %w", err)
	}

	reagents, err := p.Catalog.ReagentItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reagent ids: %w", err)
	}
	n, err := p.Catalog.AddAssetClasses(ctx, reagents, model.AssetReagent)
	if err != nil {
		return 0, fmt.Errorf("tag reagents: %w", err)
	}
	return changed + n, nil
}

// runAuctions tags market-visible items. Everything ever observed gets
// MARKET; commodity-channel items additionally get COMMDTY and
// auction-channel items ITEM.
func (p *Pipeline) runAuctions(ctx context.Context) (int, error) {
	observed, err := p.Catalog.ObservedItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("observed ids: %w", err)
	}
	changed, err := p.Catalog.AddAssetClasses(ctx, observed, model.AssetMarket)
	if err != nil {
		return 0, fmt.Errorf("tag market: %w", err)
	}

	commodities, err := p.Catalog.ObservedItemIDsByChannel(ctx, model.ChannelCommodity)
	if err != nil {
		return 0, fmt.Errorf("commodity ids: %w", err)
	}
	n, err := p.Catalog.AddAssetClasses(ctx, commodities, model.AssetCommodity)
	if err != nil {
		return 0, fmt.Errorf("tag commodities: %w", err)
	}
	changed += n

	auctioned, err := p.Catalog.ObservedItemIDsByChannel(ctx, model.ChannelAuction)
	if err != nil {
		return 0, fmt.Errorf("auction ids: %w", err)
	}
	n, err = p.Catalog.AddAssetClasses(ctx, auctioned, model.AssetItem)
	if err != nil {
		return 0, fmt.Errorf("tag auctioned: %w", err)
	}
	return changed + n, nil
}

// runPremium tags reagents that bind on acquisition: they cannot be
// bought, so crafting with them carries an opportunity premium.
func (p *Pipeline) runPremium(ctx context.Context) (int, error) {
	bound, err := p.Catalog.ItemsByLootType(ctx, model.LootTypeOnAcquire)
	if err != nil {
		return 0, fmt.Errorf("bound items: %w", err)
	}
	var ids []int64
	for i := range bound {
		if bound[i].HasAssetClass(model.AssetReagent) {
			ids = append(ids, bound[i].ItemID)
		}
	}
	changed, err := p.Catalog.AddAssetClasses(ctx, ids, model.AssetPremium)
	if err != nil {
		return 0, fmt.Errorf("tag premium: %w", err)
	}
	return changed, nil
}

// runCurrency tags the reserved currency items: gold itself and the
// region token items.
func (p *Pipeline) runCurrency(ctx context.Context) (int, error) {
	changed, err := p.Catalog.AddAssetClasses(ctx, []int64{model.GoldItemID}, model.AssetGold)
	if err != nil {
		return 0, fmt.Errorf("tag gold: %w", err)
	}
	n, err := p.Catalog.AddAssetClasses(ctx, model.WowTokenItemIDs, model.AssetWowToken)
	if err != nil {
		return 0, fmt.Errorf("tag tokens: %w", err)
	}
	return changed + n, nil
}

// runVSP tags items a vendor will buy at a nonzero price.
func (p *Pipeline) runVSP(ctx context.Context) (int, error) {
	ids, err := p.Catalog.ItemIDsWithVendorPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("vendor-priced ids: %w", err)
	}
	changed, err := p.Catalog.AddAssetClasses(ctx, ids, model.AssetVSP)
	if err != nil {
		return 0, fmt.Errorf("tag vsp: %w", err)
	}
	return changed, nil
}

// runTags derives the free-form general tags from each item's master
// data and accumulated asset classes.
func (p *Pipeline) runTags(ctx context.Context) (int, error) {
	items, err := p.Catalog.AllItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("all items: %w", err)
	}

	tags := make(map[int64][]string, len(items))
	for i := range items {
		if t := generalTags(&items[i]); len(t) > 0 {
			tags[items[i].ItemID] = t
		}
	}
	changed, err := p.Catalog.AddGeneralTags(ctx, tags)
	if err != nil {
		return 0, fmt.Errorf("tag general: %w", err)
	}
	return changed, nil
}

// generalTags flattens an item's descriptive fields into lowercase tags.
func generalTags(it *model.ItemRecord) []string {
	var out []string
	add := func(raw string) {
		tag := normalizeTag(raw)
		if tag == "" {
			return
		}
		for _, t := range out {
			if t == tag {
				return
			}
		}
		out = append(out, tag)
	}

	add(it.Expansion)
	add(it.Profession)
	add(it.ItemClass)
	add(it.ItemSubclass)
	add(it.Quality)
	for _, c := range it.AssetClassTags {
		add(c)
	}
	for _, seg := range splitTicker(it.Ticker) {
		add(seg)
	}
	return out
}

func normalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// splitTicker breaks a ticker like "ALCH.R3-TWW" into its segments.
func splitTicker(ticker string) []string {
	return strings.FieldsFunc(ticker, func(r rune) bool {
		return r == ' ' || r == '.' || r == '-' || r == '_'
	})
}
