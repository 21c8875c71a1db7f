package models

import (
	"database/sql"
	"time"
)

// Dataset names used as source_system keys throughout the pipeline.
const (
	DatasetDOBPermits     = "dob_permits"
	DatasetHPDViolations  = "hpd_violations"
	DatasetComplaints311  = "complaints_311"
	DatasetDOBComplaints  = "dob_complaints"
	DatasetSubwayStations = "subway_stations"
	DatasetFloodZones     = "flood_zones"
	DatasetAmenities      = "amenities"
	DatasetCondoUnits     = "condo_units"
	DatasetPlutoLots      = "pluto_lots"
)

// RawPermit is a DOB permit issuance record from the staging table.
type RawPermit struct {
	ID        int64          `db:"id" json:"id"`
	JobNumber string         `db:"job_number" json:"job_number"`
	BBL       sql.NullString `db:"bbl" json:"bbl"`
	Address   sql.NullString `db:"address" json:"address"`
	ZipCode   sql.NullString `db:"zip_code" json:"zip_code"`
	WorkType  sql.NullString `db:"work_type" json:"work_type"`
	Status    sql.NullString `db:"status" json:"status"`
	IssuedAt  sql.NullTime   `db:"issued_at" json:"issued_at"`
	FetchedAt time.Time      `db:"fetched_at" json:"fetched_at"`
}

// RawViolation is an HPD housing-maintenance violation record.
type RawViolation struct {
	ID          int64          `db:"id" json:"id"`
	ViolationID string         `db:"violation_id" json:"violation_id"`
	BBL         sql.NullString `db:"bbl" json:"bbl"`
	Address     sql.NullString `db:"address" json:"address"`
	ZipCode     sql.NullString `db:"zip_code" json:"zip_code"`
	Class       sql.NullString `db:"class" json:"class"`
	Status      sql.NullString `db:"status" json:"status"`
	ReportedAt  sql.NullTime   `db:"reported_at" json:"reported_at"`
	FetchedAt   time.Time      `db:"fetched_at" json:"fetched_at"`
}

// RawComplaint311 is a 311 service request record.
type RawComplaint311 struct {
	ID            int64          `db:"id" json:"id"`
	UniqueKey     string         `db:"unique_key" json:"unique_key"`
	BBL           sql.NullString `db:"bbl" json:"bbl"`
	Address       sql.NullString `db:"address" json:"address"`
	ZipCode       sql.NullString `db:"zip_code" json:"zip_code"`
	ComplaintType sql.NullString `db:"complaint_type" json:"complaint_type"`
	Status        sql.NullString `db:"status" json:"status"`
	CreatedDate   sql.NullTime   `db:"created_date" json:"created_date"`
	FetchedAt     time.Time      `db:"fetched_at" json:"fetched_at"`
}

// RawDOBComplaint is a DOB complaint record.
type RawDOBComplaint struct {
	ID              int64          `db:"id" json:"id"`
	ComplaintNumber string         `db:"complaint_number" json:"complaint_number"`
	BBL             sql.NullString `db:"bbl" json:"bbl"`
	Address         sql.NullString `db:"address" json:"address"`
	ZipCode         sql.NullString `db:"zip_code" json:"zip_code"`
	Category        sql.NullString `db:"category" json:"category"`
	Status          sql.NullString `db:"status" json:"status"`
	EnteredAt       sql.NullTime   `db:"entered_at" json:"entered_at"`
	FetchedAt       time.Time      `db:"fetched_at" json:"fetched_at"`
}

// RawSubwayStation is a subway station point with its serving lines.
type RawSubwayStation struct {
	ID        int64     `db:"id" json:"id"`
	ObjectID  string    `db:"object_id" json:"object_id"`
	Name      string    `db:"name" json:"name"`
	Lines     string    `db:"lines" json:"lines"` // comma separated
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}

// RawFloodZone is a FEMA flood zone centroid with its zone code.
type RawFloodZone struct {
	ID        int64     `db:"id" json:"id"`
	ZoneID    string    `db:"zone_id" json:"zone_id"`
	ZoneCode  string    `db:"zone_code" json:"zone_code"`
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}

// Amenity categories recognized by the signal computer.
const (
	AmenityPark     = "park"
	AmenitySchool   = "school"
	AmenityHospital = "hospital"
)

// RawAmenity is a point-of-interest record (park, school, hospital).
type RawAmenity struct {
	ID        int64     `db:"id" json:"id"`
	SourceID  string    `db:"source_id" json:"source_id"`
	Category  string    `db:"category" json:"category"`
	Name      string    `db:"name" json:"name"`
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}

// RawCondoUnit is a condo registry record linking unit lots to base lots.
type RawCondoUnit struct {
	ID              int64          `db:"id" json:"id"`
	CondoNumber     string         `db:"condo_number" json:"condo_number"`
	BaseBBL         string         `db:"base_bbl" json:"base_bbl"`
	UnitBBL         sql.NullString `db:"unit_bbl" json:"unit_bbl"`
	UnitDesignation sql.NullString `db:"unit_designation" json:"unit_designation"`
	Address         sql.NullString `db:"address" json:"address"`
	ZipCode         sql.NullString `db:"zip_code" json:"zip_code"`
	FetchedAt       time.Time      `db:"fetched_at" json:"fetched_at"`
}

// RawPlutoLot is a tax-lot record from PLUTO with assessment fields.
type RawPlutoLot struct {
	ID          int64           `db:"id" json:"id"`
	BBL         string          `db:"bbl" json:"bbl"`
	Address     sql.NullString  `db:"address" json:"address"`
	ZipCode     sql.NullString  `db:"zip_code" json:"zip_code"`
	Borough     sql.NullString  `db:"borough" json:"borough"`
	AssessTotal sql.NullFloat64 `db:"assess_total" json:"assess_total"`
	BldgArea    sql.NullFloat64 `db:"bldg_area" json:"bldg_area"`
	LotArea     sql.NullFloat64 `db:"lot_area" json:"lot_area"`
	YearBuilt   sql.NullInt64   `db:"year_built" json:"year_built"`
	Latitude    sql.NullFloat64 `db:"latitude" json:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude" json:"longitude"`
	FetchedAt   time.Time       `db:"fetched_at" json:"fetched_at"`
}
