package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"craft-pricer/internal/model"
)

// marketVolumeWindow bounds the observation window used for volume figures.
const marketVolumeWindow = 7 * 24 * time.Hour

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64, extra ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(ids)+len(extra))
	for _, id := range ids {
		args = append(args, id)
	}
	return append(args, extra...)
}

// InsertObservation appends one market observation. The production writer
// is an external ingester; this path exists for lab catalogs and tests.
func (d *DB) InsertObservation(ctx context.Context, o model.MarketObservation) error {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	if o.Channel == "" {
		o.Channel = model.ChannelAuction
	}
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO market_observations (item_id, realm_id, price, quantity, value, channel, timestamp)
		VALUES (?,?,?,?,?,?,?)
	`, o.ItemID, o.RealmID, o.Price, o.Quantity, o.Value, string(o.Channel), o.Timestamp.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert observation item %d realm %d: %w", o.ItemID, o.RealmID, err)
	}
	return nil
}

// UpsertSnapshot writes the representative price for (item, realm).
func (d *DB) UpsertSnapshot(ctx context.Context, s model.MarketValuationSnapshot) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO market_snapshots (item_id, realm_id, market_price, timestamp)
		VALUES (?,?,?,?)
		ON CONFLICT(item_id, realm_id) DO UPDATE SET
			market_price = excluded.market_price,
			timestamp    = excluded.timestamp
	`, s.ItemID, s.RealmID, s.MarketPrice, s.Timestamp.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert snapshot item %d realm %d: %w", s.ItemID, s.RealmID, err)
	}
	return nil
}

// SnapshotPrices returns the snapshot price for each of itemIDs that has
// one on the realm, in a single query.
func (d *DB) SnapshotPrices(ctx context.Context, realmID int64, itemIDs []int64) (map[int64]float64, error) {
	if len(itemIDs) == 0 {
		return map[int64]float64{}, nil
	}
	rows, err := d.sql.QueryContext(ctx, `
		SELECT item_id, market_price FROM market_snapshots
		WHERE realm_id = ? AND market_price > 0 AND item_id IN (`+placeholders(len(itemIDs))+`)
	`, append([]interface{}{realmID}, idArgs(itemIDs)...)...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots realm %d: %w", realmID, err)
	}
	defer rows.Close()

	prices := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var price float64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		prices[id] = price
	}
	return prices, rows.Err()
}

// RecentObservations returns the most recent observations for one item on
// one realm, newest first.
func (d *DB) RecentObservations(ctx context.Context, realmID, itemID int64, limit int) ([]model.MarketObservation, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT item_id, realm_id, price, quantity, value, channel, timestamp
		FROM market_observations
		WHERE item_id = ? AND realm_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, itemID, realmID, limit)
	if err != nil {
		return nil, fmt.Errorf("query observations item %d realm %d: %w", itemID, realmID, err)
	}
	defer rows.Close()

	var obs []model.MarketObservation
	for rows.Next() {
		var o model.MarketObservation
		var channel, ts string
		if err := rows.Scan(&o.ItemID, &o.RealmID, &o.Price, &o.Quantity, &o.Value, &channel, &ts); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Channel = model.MarketChannel(channel)
		o.Timestamp, _ = time.Parse(timeLayout, ts)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// ObservationsForItems returns up to limit recent observations per item for
// all of itemIDs in one query, grouped by item. This backs the batch price
// resolver so recipe costing never issues one query per reagent.
func (d *DB) ObservationsForItems(ctx context.Context, realmID int64, itemIDs []int64, limit int) (map[int64][]model.MarketObservation, error) {
	if len(itemIDs) == 0 {
		return map[int64][]model.MarketObservation{}, nil
	}
	rows, err := d.sql.QueryContext(ctx, `
		SELECT item_id, realm_id, price, quantity, value, channel, timestamp FROM (
			SELECT item_id, realm_id, price, quantity, value, channel, timestamp,
				ROW_NUMBER() OVER (PARTITION BY item_id ORDER BY timestamp DESC) AS rn
			FROM market_observations
			WHERE realm_id = ? AND item_id IN (`+placeholders(len(itemIDs))+`)
		) WHERE rn <= ?
	`, append(append([]interface{}{realmID}, idArgs(itemIDs)...), limit)...)
	if err != nil {
		return nil, fmt.Errorf("query observations realm %d: %w", realmID, err)
	}
	defer rows.Close()

	grouped := make(map[int64][]model.MarketObservation)
	for rows.Next() {
		var o model.MarketObservation
		var channel, ts string
		if err := rows.Scan(&o.ItemID, &o.RealmID, &o.Price, &o.Quantity, &o.Value, &channel, &ts); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Channel = model.MarketChannel(channel)
		o.Timestamp, _ = time.Parse(timeLayout, ts)
		grouped[o.ItemID] = append(grouped[o.ItemID], o)
	}
	return grouped, rows.Err()
}

// MarketVolume sums observed quantity for an item on a realm over the
// recent volume window.
func (d *DB) MarketVolume(ctx context.Context, realmID, itemID int64) (float64, error) {
	cutoff := time.Now().UTC().Add(-marketVolumeWindow).Format(timeLayout)
	var volume float64
	err := d.sql.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM market_observations
		WHERE item_id = ? AND realm_id = ? AND timestamp >= ?
	`, itemID, realmID, cutoff).Scan(&volume)
	if err != nil {
		return 0, fmt.Errorf("query market volume item %d realm %d: %w", itemID, realmID, err)
	}
	return volume, nil
}

// ListRealms returns every realm id that has market data.
func (d *DB) ListRealms(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, `
		SELECT DISTINCT realm_id FROM market_snapshots
		UNION
		SELECT DISTINCT realm_id FROM market_observations
		ORDER BY 1
	`)
}

// ObservedItemIDs returns every item id with at least one observation on
// any realm.
func (d *DB) ObservedItemIDs(ctx context.Context) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT DISTINCT item_id FROM market_observations`)
}

// ObservedItemIDsByChannel returns item ids observed on the given channel.
func (d *DB) ObservedItemIDsByChannel(ctx context.Context, channel model.MarketChannel) ([]int64, error) {
	return d.queryIDs(ctx,
		`SELECT DISTINCT item_id FROM market_observations WHERE channel = ?`, string(channel))
}
