package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"craft-pricer/internal/model"
)

// UpsertItem writes catalog master data for an item. Tag columns are left
// untouched on update; only the classification pipeline mutates them.
func (d *DB) UpsertItem(ctx context.Context, it model.ItemRecord) error {
	assetClasses, err := json.Marshal(emptyIfNil(it.AssetClassTags))
	if err != nil {
		return fmt.Errorf("marshal asset classes: %w", err)
	}
	generalTags, err := json.Marshal(emptyIfNil(it.GeneralTags))
	if err != nil {
		return fmt.Errorf("marshal general tags: %w", err)
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = time.Now().UTC()
	}

	_, err = d.sql.ExecContext(ctx, `
		INSERT INTO items
			(item_id, name, vendor_sell_price, purchase_price, loot_type, profession,
			 expansion, item_class, item_subclass, quality, ticker, asset_classes, general_tags, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(item_id) DO UPDATE SET
			name              = excluded.name,
			vendor_sell_price = excluded.vendor_sell_price,
			purchase_price    = excluded.purchase_price,
			loot_type         = excluded.loot_type,
			profession        = excluded.profession,
			expansion         = excluded.expansion,
			item_class        = excluded.item_class,
			item_subclass     = excluded.item_subclass,
			quality           = excluded.quality,
			ticker            = excluded.ticker,
			updated_at        = excluded.updated_at
	`, it.ItemID, it.Name, it.VendorSellPrice, it.PurchasePrice, it.LootType, it.Profession,
		it.Expansion, it.ItemClass, it.ItemSubclass, it.Quality, it.Ticker,
		string(assetClasses), string(generalTags), it.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert item %d: %w", it.ItemID, err)
	}
	return nil
}

func emptyIfNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

const itemColumns = `item_id, name, vendor_sell_price, purchase_price, loot_type, profession,
	expansion, item_class, item_subclass, quality, ticker, asset_classes, general_tags, updated_at`

func scanItem(row interface{ Scan(...interface{}) error }) (*model.ItemRecord, error) {
	var it model.ItemRecord
	var assetClasses, generalTags, updatedAt string
	err := row.Scan(&it.ItemID, &it.Name, &it.VendorSellPrice, &it.PurchasePrice, &it.LootType,
		&it.Profession, &it.Expansion, &it.ItemClass, &it.ItemSubclass, &it.Quality, &it.Ticker,
		&assetClasses, &generalTags, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(assetClasses), &it.AssetClassTags); err != nil {
		return nil, fmt.Errorf("decode asset classes for item %d: %w", it.ItemID, err)
	}
	if err := json.Unmarshal([]byte(generalTags), &it.GeneralTags); err != nil {
		return nil, fmt.Errorf("decode general tags for item %d: %w", it.ItemID, err)
	}
	it.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &it, nil
}

// Item returns the catalog record for itemID, or (nil, nil) when unknown.
func (d *DB) Item(ctx context.Context, itemID int64) (*model.ItemRecord, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = ?`, itemID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item %d: %w", itemID, err)
	}
	return it, nil
}

func (d *DB) queryItems(ctx context.Context, query string, args ...interface{}) ([]model.ItemRecord, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []model.ItemRecord
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// AllItems returns the full item catalog.
func (d *DB) AllItems(ctx context.Context) ([]model.ItemRecord, error) {
	return d.queryItems(ctx, `SELECT `+itemColumns+` FROM items`)
}

// ItemsByLootType returns catalog items with the given loot type.
func (d *DB) ItemsByLootType(ctx context.Context, lootType string) ([]model.ItemRecord, error) {
	return d.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE loot_type = ?`, lootType)
}

// ItemIDsWithVendorPrice returns item ids with a positive vendor sell price.
func (d *DB) ItemIDsWithVendorPrice(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT item_id FROM items WHERE vendor_sell_price > 0`)
}

// AddAssetClasses unions the given asset classes into every listed item's
// tag set inside one transaction, so concurrent pipeline stages never race
// on the read-modify-write. Returns the number of items actually changed.
func (d *DB) AddAssetClasses(ctx context.Context, itemIDs []int64, classes ...string) (int, error) {
	return d.addTags(ctx, "asset_classes", itemIDs, func(int64) []string { return classes })
}

// AddGeneralTags unions per-item free-form tags into general_tags.
func (d *DB) AddGeneralTags(ctx context.Context, tags map[int64][]string) (int, error) {
	ids := make([]int64, 0, len(tags))
	for id := range tags {
		ids = append(ids, id)
	}
	return d.addTags(ctx, "general_tags", ids, func(id int64) []string { return tags[id] })
}

func (d *DB) addTags(ctx context.Context, column string, itemIDs []int64, tagsFor func(int64) []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add %s: begin tx: %w", column, err)
	}
	defer tx.Rollback()

	selectStmt, err := tx.PrepareContext(ctx, `SELECT `+column+` FROM items WHERE item_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("add %s: prepare select: %w", column, err)
	}
	defer selectStmt.Close()
	// Tag writes leave updated_at alone: the column tracks master-data
	// changes, and classification must not invalidate its own state hash.
	updateStmt, err := tx.PrepareContext(ctx, `UPDATE items SET `+column+` = ? WHERE item_id = ?`)
	if err != nil {
		return 0, fmt.Errorf("add %s: prepare update: %w", column, err)
	}
	defer updateStmt.Close()

	changed := 0
	for _, id := range itemIDs {
		var raw string
		err := selectStmt.QueryRowContext(ctx, id).Scan(&raw)
		if err == sql.ErrNoRows {
			// Not in the catalog; classification only tags known items.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("add %s: read item %d: %w", column, id, err)
		}
		var existing []string
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return 0, fmt.Errorf("add %s: decode item %d: %w", column, id, err)
		}
		merged, dirty := model.UnionTags(existing, tagsFor(id))
		if !dirty {
			continue
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return 0, fmt.Errorf("add %s: encode item %d: %w", column, id, err)
		}
		if _, err := updateStmt.ExecContext(ctx, string(encoded), id); err != nil {
			return 0, fmt.Errorf("add %s: write item %d: %w", column, id, err)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add %s: commit: %w", column, err)
	}
	return changed, nil
}
