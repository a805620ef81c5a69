package storage

import (
	"context"
	"database/sql"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/match"
)

// SaveSubscription inserts or replaces a subscription record. The editing
// surface lives elsewhere; this exists for the sync path and for seeding.
func (d *DB) SaveSubscription(ctx context.Context, s *match.Subscription) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT OR REPLACE INTO subscriptions (
  id, user_id, name, region, section, kind, shape, fitment, layout, bathroom,
  price_min, price_max, area_min, area_max, floor_min, floor_max,
  exclude_rooftop, gender, pet_required, other, options, enabled, target,
  updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP)`,
		s.ID, s.UserID, s.Name, s.Region, toJSONInts(s.Section),
		toJSONInts(s.Kind), toJSONInts(s.Shape), toJSONInts(s.Fitment),
		toJSONInts(s.Layout), toJSONInts(s.Bathroom), nullInt(s.PriceMin),
		nullInt(s.PriceMax), nullFloat(s.AreaMin), nullFloat(s.AreaMax),
		nullInt(s.FloorMin), nullInt(s.FloorMax), boolToInt(s.ExcludeRooftop),
		s.Gender, boolToInt(s.PetRequired), toJSONStrings(s.Other),
		toJSONStrings(s.Options), boolToInt(s.Enabled), s.Target)
	return err
}

// DeleteSubscription removes a subscription and its notified markers.
func (d *DB) DeleteSubscription(ctx context.Context, id int64) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, "DELETE FROM notified WHERE subscription_id = ?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// EnabledSubscriptions loads every enabled subscription, for the
// durable-to-cache resync.
func (d *DB) EnabledSubscriptions(ctx context.Context) ([]match.Subscription, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, user_id, name, region, section, kind, shape, fitment, layout,
  bathroom, price_min, price_max, area_min, area_max, floor_min, floor_max,
  exclude_rooftop, gender, pet_required, other, options, enabled, target
FROM subscriptions WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []match.Subscription
	for rows.Next() {
		var (
			s                                  match.Subscription
			section, kind, shape, fitment      string
			layout, bathroom, other, options   string
			priceMin, priceMax                 sql.NullInt64
			floorMin, floorMax                 sql.NullInt64
			areaMin, areaMax                   sql.NullFloat64
			excludeRooftop, petReq, enabledInt int
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Region, &section,
			&kind, &shape, &fitment, &layout, &bathroom, &priceMin, &priceMax,
			&areaMin, &areaMax, &floorMin, &floorMax, &excludeRooftop,
			&s.Gender, &petReq, &other, &options, &enabledInt, &s.Target); err != nil {
			return nil, err
		}
		s.Section = fromJSONInts(section)
		s.Kind = fromJSONInts(kind)
		s.Shape = fromJSONInts(shape)
		s.Fitment = fromJSONInts(fitment)
		s.Layout = fromJSONInts(layout)
		s.Bathroom = fromJSONInts(bathroom)
		s.PriceMin = intPtr(priceMin)
		s.PriceMax = intPtr(priceMax)
		s.FloorMin = intPtr(floorMin)
		s.FloorMax = intPtr(floorMax)
		if areaMin.Valid {
			s.AreaMin = &areaMin.Float64
		}
		if areaMax.Valid {
			s.AreaMax = &areaMax.Float64
		}
		s.ExcludeRooftop = excludeRooftop == 1
		s.PetRequired = petReq == 1
		s.Enabled = enabledInt == 1
		s.Other = fromJSONStrings(other)
		s.Options = fromJSONStrings(options)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
