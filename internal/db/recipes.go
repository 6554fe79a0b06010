package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"craft-pricer/internal/model"
)

const timeLayout = time.RFC3339Nano

// UpsertRecipe writes a recipe method and rebuilds its reagent/derivative
// reference rows. Recipes are produced by external loaders; the engine
// itself only writes REVERSE lab catalogs and test fixtures through this.
func (d *DB) UpsertRecipe(ctx context.Context, r model.RecipeMethod) error {
	reagents, err := json.Marshal(r.Reagents)
	if err != nil {
		return fmt.Errorf("marshal reagents: %w", err)
	}
	derivatives, err := json.Marshal(r.Derivatives)
	if err != nil {
		return fmt.Errorf("marshal derivatives: %w", err)
	}
	if r.ImportedAt.IsZero() {
		r.ImportedAt = time.Now().UTC()
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert recipe %d: begin tx: %w", r.RecipeID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recipe_methods
			(recipe_id, method_type, profession, expansion, rank, provenance, reagents, derivatives, imported_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(recipe_id) DO UPDATE SET
			method_type = excluded.method_type,
			profession  = excluded.profession,
			expansion   = excluded.expansion,
			rank        = excluded.rank,
			provenance  = excluded.provenance,
			reagents    = excluded.reagents,
			derivatives = excluded.derivatives,
			imported_at = excluded.imported_at
	`, r.RecipeID, string(r.MethodType), r.Profession, r.Expansion, r.Rank, r.Provenance,
		string(reagents), string(derivatives), r.ImportedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert recipe %d: %w", r.RecipeID, err)
	}

	// Rebuild reference rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_reagents WHERE recipe_id = ?`, r.RecipeID); err != nil {
		return fmt.Errorf("upsert recipe %d: clear reagents: %w", r.RecipeID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_derivatives WHERE recipe_id = ?`, r.RecipeID); err != nil {
		return fmt.Errorf("upsert recipe %d: clear derivatives: %w", r.RecipeID, err)
	}
	for _, st := range r.Reagents {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO recipe_reagents (recipe_id, item_id) VALUES (?,?)`,
			r.RecipeID, st.ItemID); err != nil {
			return fmt.Errorf("upsert recipe %d: reagent ref: %w", r.RecipeID, err)
		}
	}
	for _, st := range r.Derivatives {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO recipe_derivatives (recipe_id, item_id) VALUES (?,?)`,
			r.RecipeID, st.ItemID); err != nil {
			return fmt.Errorf("upsert recipe %d: derivative ref: %w", r.RecipeID, err)
		}
	}

	return tx.Commit()
}

func scanRecipeRows(rows *sql.Rows) ([]model.RecipeMethod, error) {
	defer rows.Close()

	var recipes []model.RecipeMethod
	for rows.Next() {
		var r model.RecipeMethod
		var methodType, reagents, derivatives, importedAt string
		if err := rows.Scan(&r.RecipeID, &methodType, &r.Profession, &r.Expansion,
			&r.Rank, &r.Provenance, &reagents, &derivatives, &importedAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		r.MethodType = model.MethodType(methodType)
		// Loose upstream payloads (bare ids or objects) normalize here, at
		// the read boundary.
		if err := json.Unmarshal([]byte(reagents), &r.Reagents); err != nil {
			return nil, fmt.Errorf("decode reagents for recipe %d: %w", r.RecipeID, err)
		}
		if err := json.Unmarshal([]byte(derivatives), &r.Derivatives); err != nil {
			return nil, fmt.Errorf("decode derivatives for recipe %d: %w", r.RecipeID, err)
		}
		r.ImportedAt, _ = time.Parse(timeLayout, importedAt)
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

const recipeColumns = `recipe_id, method_type, profession, expansion, rank, provenance, reagents, derivatives, imported_at`

// ForwardRecipes returns all FORWARD recipes, optionally filtered by
// expansion and/or profession (empty string = no filter).
func (d *DB) ForwardRecipes(ctx context.Context, expansion, profession string) ([]model.RecipeMethod, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipe_methods WHERE method_type = ?`
	args := []interface{}{string(model.MethodForward)}
	if expansion != "" {
		query += ` AND expansion = ?`
		args = append(args, expansion)
	}
	if profession != "" {
		query += ` AND profession = ?`
		args = append(args, profession)
	}

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forward recipes: %w", err)
	}
	return scanRecipeRows(rows)
}

// ForwardRecipesProducing returns FORWARD recipes that list itemID among
// their derivatives.
func (d *DB) ForwardRecipesProducing(ctx context.Context, itemID int64) ([]model.RecipeMethod, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT `+recipeColumns+` FROM recipe_methods
		WHERE method_type = ?
		  AND recipe_id IN (SELECT recipe_id FROM recipe_derivatives WHERE item_id = ?)
	`, string(model.MethodForward), itemID)
	if err != nil {
		return nil, fmt.Errorf("query recipes producing item %d: %w", itemID, err)
	}
	return scanRecipeRows(rows)
}

// ReverseRecipesConsuming returns REVERSE recipes that list itemID among
// their reagents.
func (d *DB) ReverseRecipesConsuming(ctx context.Context, itemID int64) ([]model.RecipeMethod, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT `+recipeColumns+` FROM recipe_methods
		WHERE method_type = ?
		  AND recipe_id IN (SELECT recipe_id FROM recipe_reagents WHERE item_id = ?)
	`, string(model.MethodReverse), itemID)
	if err != nil {
		return nil, fmt.Errorf("query recipes consuming item %d: %w", itemID, err)
	}
	return scanRecipeRows(rows)
}

// DerivativeItemIDs returns every item id referenced as a recipe derivative.
func (d *DB) DerivativeItemIDs(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT DISTINCT item_id FROM recipe_derivatives`)
}

// ReagentItemIDs returns every item id referenced as a recipe reagent.
func (d *DB) ReagentItemIDs(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT DISTINCT item_id FROM recipe_reagents`)
}

func (d *DB) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
