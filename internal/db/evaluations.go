package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"craft-pricer/internal/model"
)

// DeleteEvaluations removes all persisted evaluations for a realm. The
// scheduled job calls this before inserting a fresh batch so stale rows
// never linger once an item stops being profitable.
func (d *DB) DeleteEvaluations(ctx context.Context, realmID int64) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM evaluations WHERE realm_id = ?`, realmID)
	if err != nil {
		return fmt.Errorf("delete evaluations realm %d: %w", realmID, err)
	}
	return nil
}

// InsertEvaluations bulk-inserts a realm's evaluation batch in one
// transaction.
func (d *DB) InsertEvaluations(ctx context.Context, records []model.EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert evaluations: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO evaluations (
		item_id, realm_id, market_price, crafting_cost, vendor_sell_price,
		profit, profit_margin, is_profitable, best_recipe_id, recipe_rank,
		profession, expansion, asset_classes, recommendations,
		confidence, market_volume, timestamp
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("insert evaluations: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		assetClasses, err := json.Marshal(emptyIfNil(r.AssetClassTags))
		if err != nil {
			return fmt.Errorf("insert evaluations: encode asset classes item %d: %w", r.ItemID, err)
		}
		recommendations, err := json.Marshal(emptyIfNil(r.Recommendations))
		if err != nil {
			return fmt.Errorf("insert evaluations: encode recommendations item %d: %w", r.ItemID, err)
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			r.ItemID, r.RealmID, r.MarketPrice, r.CraftingCost, r.VendorSellPrice,
			r.Profit, r.ProfitMargin, r.IsProfitable, r.BestRecipeID, r.RecipeRank,
			r.Profession, r.Expansion, string(assetClasses), string(recommendations),
			r.Confidence, r.MarketVolume, ts.Format(timeLayout),
		); err != nil {
			return fmt.Errorf("insert evaluations: item %d realm %d: %w", r.ItemID, r.RealmID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert evaluations: commit: %w", err)
	}
	return nil
}

// Evaluations returns the persisted evaluations for a realm, highest
// margin first.
func (d *DB) Evaluations(ctx context.Context, realmID int64) ([]model.EvaluationRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT item_id, realm_id, market_price, crafting_cost, vendor_sell_price,
			profit, profit_margin, is_profitable, best_recipe_id, recipe_rank,
			profession, expansion, asset_classes, recommendations,
			confidence, market_volume, timestamp
		FROM evaluations WHERE realm_id = ?
		ORDER BY profit_margin DESC
	`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations realm %d: %w", realmID, err)
	}
	defer rows.Close()

	var records []model.EvaluationRecord
	for rows.Next() {
		var r model.EvaluationRecord
		var assetClasses, recommendations, ts string
		if err := rows.Scan(
			&r.ItemID, &r.RealmID, &r.MarketPrice, &r.CraftingCost, &r.VendorSellPrice,
			&r.Profit, &r.ProfitMargin, &r.IsProfitable, &r.BestRecipeID, &r.RecipeRank,
			&r.Profession, &r.Expansion, &assetClasses, &recommendations,
			&r.Confidence, &r.MarketVolume, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if err := json.Unmarshal([]byte(assetClasses), &r.AssetClassTags); err != nil {
			return nil, fmt.Errorf("decode asset classes item %d: %w", r.ItemID, err)
		}
		if err := json.Unmarshal([]byte(recommendations), &r.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations item %d: %w", r.ItemID, err)
		}
		r.Timestamp, _ = time.Parse(timeLayout, ts)
		records = append(records, r)
	}
	return records, rows.Err()
}
