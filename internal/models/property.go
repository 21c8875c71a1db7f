package models

import (
	"database/sql"
	"time"
)

// Property is a canonical property identified by BBL or, for condo units,
// by a base BBL plus unit designation.
type Property struct {
	ID                int64           `db:"id" json:"id"`
	BBL               sql.NullString  `db:"bbl" json:"bbl"`
	BaseBBL           sql.NullString  `db:"base_bbl" json:"base_bbl"`
	UnitDesignation   sql.NullString  `db:"unit_designation" json:"unit_designation"`
	Address           sql.NullString  `db:"address" json:"address"`
	NormalizedAddress sql.NullString  `db:"normalized_address" json:"normalized_address"`
	ZipCode           sql.NullString  `db:"zip_code" json:"zip_code"`
	Borough           sql.NullString  `db:"borough" json:"borough"`
	Latitude          sql.NullFloat64 `db:"latitude" json:"latitude"`
	Longitude         sql.NullFloat64 `db:"longitude" json:"longitude"`
	BldgArea          sql.NullFloat64 `db:"bldg_area" json:"bldg_area"`
	AssessedValue     sql.NullFloat64 `db:"assessed_value" json:"assessed_value"`
	YearBuilt         sql.NullInt64   `db:"year_built" json:"year_built"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Building is the building-level aggregate for condo units, keyed by base BBL.
type Building struct {
	ID        int64          `db:"id" json:"id"`
	BaseBBL   string         `db:"base_bbl" json:"base_bbl"`
	Address   sql.NullString `db:"address" json:"address"`
	ZipCode   sql.NullString `db:"zip_code" json:"zip_code"`
	UnitCount int            `db:"unit_count" json:"unit_count"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
