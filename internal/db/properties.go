package db

import (
	"fmt"
	"time"

	"propsignal/internal/models"
)

// UpsertProperty inserts or updates a canonical property keyed by BBL.
// Existing values are preserved when the incoming row has nulls.
func (db *DB) UpsertProperty(p *models.Property) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO properties (
			bbl, base_bbl, unit_designation, address, normalized_address,
			zip_code, borough, latitude, longitude, bldg_area,
			assessed_value, year_built, created_at, updated_at
		) VALUES (
			:bbl, :base_bbl, :unit_designation, :address, :normalized_address,
			:zip_code, :borough, :latitude, :longitude, :bldg_area,
			:assessed_value, :year_built, :created_at, :updated_at
		)
		ON CONFLICT(bbl) DO UPDATE SET
			base_bbl = COALESCE(excluded.base_bbl, properties.base_bbl),
			unit_designation = COALESCE(excluded.unit_designation, properties.unit_designation),
			address = COALESCE(excluded.address, properties.address),
			normalized_address = COALESCE(excluded.normalized_address, properties.normalized_address),
			zip_code = COALESCE(excluded.zip_code, properties.zip_code),
			borough = COALESCE(excluded.borough, properties.borough),
			latitude = COALESCE(excluded.latitude, properties.latitude),
			longitude = COALESCE(excluded.longitude, properties.longitude),
			bldg_area = COALESCE(excluded.bldg_area, properties.bldg_area),
			assessed_value = COALESCE(excluded.assessed_value, properties.assessed_value),
			year_built = COALESCE(excluded.year_built, properties.year_built),
			updated_at = excluded.updated_at
	`

	_, err := db.NamedExec(query, p)
	if err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", p.BBL.String, err)
	}
	return nil
}

// UpsertBuilding inserts or updates a building aggregate keyed by base BBL.
func (db *DB) UpsertBuilding(b *models.Building) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	query := `
		INSERT INTO buildings (base_bbl, address, zip_code, unit_count, created_at, updated_at)
		VALUES (:base_bbl, :address, :zip_code, :unit_count, :created_at, :updated_at)
		ON CONFLICT(base_bbl) DO UPDATE SET
			address = COALESCE(excluded.address, buildings.address),
			zip_code = COALESCE(excluded.zip_code, buildings.zip_code),
			unit_count = excluded.unit_count,
			updated_at = excluded.updated_at
	`

	_, err := db.NamedExec(query, b)
	if err != nil {
		return fmt.Errorf("failed to upsert building %s: %w", b.BaseBBL, err)
	}
	return nil
}

// ListProperties returns all canonical properties.
func (db *DB) ListProperties() ([]models.Property, error) {
	var out []models.Property
	err := db.Select(&out, `SELECT * FROM properties`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return out, nil
}

// ListPropertiesPage returns one page of canonical properties ordered by id.
func (db *DB) ListPropertiesPage(limit, offset int) ([]models.Property, error) {
	var out []models.Property
	err := db.Select(&out, `SELECT * FROM properties ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties page: %w", err)
	}
	return out, nil
}

// GetProperty returns a single canonical property by id.
func (db *DB) GetProperty(id int64) (*models.Property, error) {
	var p models.Property
	err := db.Get(&p, `SELECT * FROM properties WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, err)
	}
	return &p, nil
}

// GetPropertyByBBL returns a canonical property by its BBL.
func (db *DB) GetPropertyByBBL(bbl string) (*models.Property, error) {
	var p models.Property
	err := db.Get(&p, `SELECT * FROM properties WHERE bbl = ?`, bbl)
	if err != nil {
		return nil, fmt.Errorf("failed to get property bbl=%s: %w", bbl, err)
	}
	return &p, nil
}

// UpdatePropertyLocation writes geocoded coordinates and the enriched
// normalized address back onto a canonical property row.
func (db *DB) UpdatePropertyLocation(id int64, lat, lon float64, normalizedAddress string) error {
	_, err := db.Exec(`
		UPDATE properties
		SET latitude = ?, longitude = ?, normalized_address = ?, updated_at = ?
		WHERE id = ?
	`, lat, lon, normalizedAddress, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update location for property %d: %w", id, err)
	}
	return nil
}

// UpdatePropertyUnit writes enriched unit fields from the condo registry
// back onto a canonical property row.
func (db *DB) UpdatePropertyUnit(id int64, baseBBL, unitDesignation string) error {
	_, err := db.Exec(`
		UPDATE properties
		SET base_bbl = ?, unit_designation = ?, updated_at = ?
		WHERE id = ?
	`, baseBBL, unitDesignation, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update unit fields for property %d: %w", id, err)
	}
	return nil
}

// GetPropertyCount returns total number of canonical properties.
func (db *DB) GetPropertyCount() (int, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM properties")
	return count, err
}
