package storage

import (
	"context"
	"database/sql"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

// UpsertListing inserts a listing or merges it into the existing row.
// Merge never clobbers: a NULL or empty incoming field keeps the stored
// value, so a later list-only pass cannot erase detail data.
func (d *DB) UpsertListing(ctx context.Context, l *listing.Listing) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO listings (
  id, url, title, price, price_unit, region, section, kind, kind_name,
  address, floor, floor_str, total_floor, is_rooftop, layout, layout_str,
  bathroom, area, shape, fitment, gender, pet_allowed, options, other, tags,
  surrounding_type, surrounding_desc, surrounding_distance, has_detail
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  url                  = COALESCE(NULLIF(excluded.url, ''), listings.url),
  title                = COALESCE(NULLIF(excluded.title, ''), listings.title),
  price                = COALESCE(excluded.price, listings.price),
  price_unit           = COALESCE(NULLIF(excluded.price_unit, ''), listings.price_unit),
  region               = CASE WHEN excluded.region != 0 THEN excluded.region ELSE listings.region END,
  section              = CASE WHEN excluded.section != 0 THEN excluded.section ELSE listings.section END,
  kind                 = CASE WHEN excluded.kind != 0 THEN excluded.kind ELSE listings.kind END,
  kind_name            = COALESCE(NULLIF(excluded.kind_name, ''), listings.kind_name),
  address              = COALESCE(NULLIF(excluded.address, ''), listings.address),
  floor                = COALESCE(excluded.floor, listings.floor),
  floor_str            = COALESCE(NULLIF(excluded.floor_str, ''), listings.floor_str),
  total_floor          = COALESCE(excluded.total_floor, listings.total_floor),
  is_rooftop           = MAX(excluded.is_rooftop, listings.is_rooftop),
  layout               = COALESCE(excluded.layout, listings.layout),
  layout_str           = COALESCE(NULLIF(excluded.layout_str, ''), listings.layout_str),
  bathroom             = COALESCE(excluded.bathroom, listings.bathroom),
  area                 = COALESCE(excluded.area, listings.area),
  shape                = COALESCE(excluded.shape, listings.shape),
  fitment              = COALESCE(excluded.fitment, listings.fitment),
  gender               = COALESCE(NULLIF(excluded.gender, ''), listings.gender),
  pet_allowed          = COALESCE(excluded.pet_allowed, listings.pet_allowed),
  options              = CASE WHEN excluded.options != '[]' THEN excluded.options ELSE listings.options END,
  other                = CASE WHEN excluded.other != '[]' THEN excluded.other ELSE listings.other END,
  tags                 = CASE WHEN excluded.tags != '[]' THEN excluded.tags ELSE listings.tags END,
  surrounding_type     = COALESCE(NULLIF(excluded.surrounding_type, ''), listings.surrounding_type),
  surrounding_desc     = COALESCE(NULLIF(excluded.surrounding_desc, ''), listings.surrounding_desc),
  surrounding_distance = COALESCE(excluded.surrounding_distance, listings.surrounding_distance),
  has_detail           = MAX(excluded.has_detail, listings.has_detail),
  updated_at           = CURRENT_TIMESTAMP`,
		l.ID, l.URL, l.Title, nullInt(l.Price), l.PriceUnit, l.Region, l.Section,
		l.Kind, l.KindName, l.Address, nullInt(l.Floor), l.FloorStr,
		nullInt(l.TotalFloor), boolToInt(l.IsRooftop), nullInt(l.Layout),
		l.LayoutStr, nullInt(l.Bathroom), nullFloat(l.Area), nullInt(l.Shape),
		nullInt(l.Fitment), l.Gender, nullBoolToInt(l.PetAllowed),
		toJSONStrings(l.Options), toJSONStrings(l.Other), toJSONStrings(l.Tags),
		l.SurroundingType, l.SurroundingDesc, nullInt(l.SurroundingDistance),
		boolToInt(l.HasDetail))
	return err
}

// GetListing reads one listing by its external id. Returns nil when the id
// is unknown.
func (d *DB) GetListing(ctx context.Context, id int64) (*listing.Listing, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT id, url, title, price, price_unit, region, section, kind, kind_name,
  address, floor, floor_str, total_floor, is_rooftop, layout, layout_str,
  bathroom, area, shape, fitment, gender, pet_allowed, options, other, tags,
  surrounding_type, surrounding_desc, surrounding_distance, has_detail
FROM listings WHERE id = ?`, id)

	var (
		l                     listing.Listing
		price, floor          sql.NullInt64
		totalFloor, layout    sql.NullInt64
		bathroom, shape       sql.NullInt64
		fitment, surroundDist sql.NullInt64
		petAllowed            sql.NullInt64
		area                  sql.NullFloat64
		isRooftop, hasDetail  int
		options, other, tags  string
	)
	err := row.Scan(&l.ID, &l.URL, &l.Title, &price, &l.PriceUnit, &l.Region,
		&l.Section, &l.Kind, &l.KindName, &l.Address, &floor, &l.FloorStr,
		&totalFloor, &isRooftop, &layout, &l.LayoutStr, &bathroom, &area,
		&shape, &fitment, &l.Gender, &petAllowed, &options, &other, &tags,
		&l.SurroundingType, &l.SurroundingDesc, &surroundDist, &hasDetail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.Price = intPtr(price)
	l.Floor = intPtr(floor)
	l.TotalFloor = intPtr(totalFloor)
	l.Layout = intPtr(layout)
	l.Bathroom = intPtr(bathroom)
	l.Shape = intPtr(shape)
	l.Fitment = intPtr(fitment)
	l.SurroundingDistance = intPtr(surroundDist)
	if petAllowed.Valid {
		v := petAllowed.Int64 == 1
		l.PetAllowed = &v
	}
	if area.Valid {
		l.Area = &area.Float64
	}
	l.IsRooftop = isRooftop == 1
	l.HasDetail = hasDetail == 1
	l.Options = fromJSONStrings(options)
	l.Other = fromJSONStrings(other)
	l.Tags = fromJSONStrings(tags)
	return &l, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
