package db

import (
	"fmt"

	"propsignal/internal/models"
)

// Staging inserts use "insert, skip on conflict" keyed by the natural source
// id, so re-fetching an unchanged upstream never duplicates rows. Each
// insert reports whether a row actually landed.

// InsertRawPermit inserts a permit staging row, skipping duplicates.
func (db *DB) InsertRawPermit(p *models.RawPermit) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_permits (job_number, bbl, address, zip_code, work_type, status, issued_at, fetched_at)
		VALUES (:job_number, :bbl, :address, :zip_code, :work_type, :status, :issued_at, :fetched_at)
		ON CONFLICT(job_number) DO NOTHING
	`, p)
	if err != nil {
		return false, fmt.Errorf("failed to insert permit %s: %w", p.JobNumber, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawViolation inserts a violation staging row, skipping duplicates.
func (db *DB) InsertRawViolation(v *models.RawViolation) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_violations (violation_id, bbl, address, zip_code, class, status, reported_at, fetched_at)
		VALUES (:violation_id, :bbl, :address, :zip_code, :class, :status, :reported_at, :fetched_at)
		ON CONFLICT(violation_id) DO NOTHING
	`, v)
	if err != nil {
		return false, fmt.Errorf("failed to insert violation %s: %w", v.ViolationID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawComplaint311 inserts a 311 complaint staging row, skipping duplicates.
func (db *DB) InsertRawComplaint311(c *models.RawComplaint311) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_complaints_311 (unique_key, bbl, address, zip_code, complaint_type, status, created_date, fetched_at)
		VALUES (:unique_key, :bbl, :address, :zip_code, :complaint_type, :status, :created_date, :fetched_at)
		ON CONFLICT(unique_key) DO NOTHING
	`, c)
	if err != nil {
		return false, fmt.Errorf("failed to insert 311 complaint %s: %w", c.UniqueKey, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawDOBComplaint inserts a DOB complaint staging row, skipping duplicates.
func (db *DB) InsertRawDOBComplaint(c *models.RawDOBComplaint) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_dob_complaints (complaint_number, bbl, address, zip_code, category, status, entered_at, fetched_at)
		VALUES (:complaint_number, :bbl, :address, :zip_code, :category, :status, :entered_at, :fetched_at)
		ON CONFLICT(complaint_number) DO NOTHING
	`, c)
	if err != nil {
		return false, fmt.Errorf("failed to insert DOB complaint %s: %w", c.ComplaintNumber, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawSubwayStation inserts a subway station row, skipping duplicates.
func (db *DB) InsertRawSubwayStation(s *models.RawSubwayStation) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_subway_stations (object_id, name, lines, latitude, longitude, fetched_at)
		VALUES (:object_id, :name, :lines, :latitude, :longitude, :fetched_at)
		ON CONFLICT(object_id) DO NOTHING
	`, s)
	if err != nil {
		return false, fmt.Errorf("failed to insert subway station %s: %w", s.ObjectID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawFloodZone inserts a flood zone row, skipping duplicates.
func (db *DB) InsertRawFloodZone(z *models.RawFloodZone) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_flood_zones (zone_id, zone_code, latitude, longitude, fetched_at)
		VALUES (:zone_id, :zone_code, :latitude, :longitude, :fetched_at)
		ON CONFLICT(zone_id) DO NOTHING
	`, z)
	if err != nil {
		return false, fmt.Errorf("failed to insert flood zone %s: %w", z.ZoneID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawAmenity inserts an amenity row, skipping duplicates.
func (db *DB) InsertRawAmenity(a *models.RawAmenity) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_amenities (source_id, category, name, latitude, longitude, fetched_at)
		VALUES (:source_id, :category, :name, :latitude, :longitude, :fetched_at)
		ON CONFLICT(source_id) DO NOTHING
	`, a)
	if err != nil {
		return false, fmt.Errorf("failed to insert amenity %s: %w", a.SourceID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawCondoUnit inserts a condo registry row, skipping duplicates.
func (db *DB) InsertRawCondoUnit(u *models.RawCondoUnit) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_condo_units (condo_number, base_bbl, unit_bbl, unit_designation, address, zip_code, fetched_at)
		VALUES (:condo_number, :base_bbl, :unit_bbl, :unit_designation, :address, :zip_code, :fetched_at)
		ON CONFLICT(condo_number) DO NOTHING
	`, u)
	if err != nil {
		return false, fmt.Errorf("failed to insert condo unit %s: %w", u.CondoNumber, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertRawPlutoLot inserts a PLUTO tax-lot row, skipping duplicates.
func (db *DB) InsertRawPlutoLot(l *models.RawPlutoLot) (bool, error) {
	res, err := db.NamedExec(`
		INSERT INTO raw_pluto_lots (bbl, address, zip_code, borough, assess_total, bldg_area, lot_area, year_built, latitude, longitude, fetched_at)
		VALUES (:bbl, :address, :zip_code, :borough, :assess_total, :bldg_area, :lot_area, :year_built, :latitude, :longitude, :fetched_at)
		ON CONFLICT(bbl) DO NOTHING
	`, l)
	if err != nil {
		return false, fmt.Errorf("failed to insert pluto lot %s: %w", l.BBL, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListRawPermits returns all staged permits.
func (db *DB) ListRawPermits() ([]models.RawPermit, error) {
	var out []models.RawPermit
	err := db.Select(&out, `SELECT * FROM raw_permits`)
	return out, err
}

// ListRawViolations returns all staged violations.
func (db *DB) ListRawViolations() ([]models.RawViolation, error) {
	var out []models.RawViolation
	err := db.Select(&out, `SELECT * FROM raw_violations`)
	return out, err
}

// ListRawComplaints311 returns all staged 311 complaints.
func (db *DB) ListRawComplaints311() ([]models.RawComplaint311, error) {
	var out []models.RawComplaint311
	err := db.Select(&out, `SELECT * FROM raw_complaints_311`)
	return out, err
}

// ListRawDOBComplaints returns all staged DOB complaints.
func (db *DB) ListRawDOBComplaints() ([]models.RawDOBComplaint, error) {
	var out []models.RawDOBComplaint
	err := db.Select(&out, `SELECT * FROM raw_dob_complaints`)
	return out, err
}

// ListRawSubwayStations returns all staged subway stations.
func (db *DB) ListRawSubwayStations() ([]models.RawSubwayStation, error) {
	var out []models.RawSubwayStation
	err := db.Select(&out, `SELECT * FROM raw_subway_stations`)
	return out, err
}

// ListRawFloodZones returns all staged flood zones.
func (db *DB) ListRawFloodZones() ([]models.RawFloodZone, error) {
	var out []models.RawFloodZone
	err := db.Select(&out, `SELECT * FROM raw_flood_zones`)
	return out, err
}

// ListRawAmenities returns all staged amenities.
func (db *DB) ListRawAmenities() ([]models.RawAmenity, error) {
	var out []models.RawAmenity
	err := db.Select(&out, `SELECT * FROM raw_amenities`)
	return out, err
}

// ListRawCondoUnits returns all staged condo registry rows.
func (db *DB) ListRawCondoUnits() ([]models.RawCondoUnit, error) {
	var out []models.RawCondoUnit
	err := db.Select(&out, `SELECT * FROM raw_condo_units`)
	return out, err
}

// ListRawPlutoLots returns all staged PLUTO tax lots.
func (db *DB) ListRawPlutoLots() ([]models.RawPlutoLot, error) {
	var out []models.RawPlutoLot
	err := db.Select(&out, `SELECT * FROM raw_pluto_lots`)
	return out, err
}

var stagingTables = map[string]string{
	models.DatasetDOBPermits:     "raw_permits",
	models.DatasetHPDViolations:  "raw_violations",
	models.DatasetComplaints311:  "raw_complaints_311",
	models.DatasetDOBComplaints:  "raw_dob_complaints",
	models.DatasetSubwayStations: "raw_subway_stations",
	models.DatasetFloodZones:     "raw_flood_zones",
	models.DatasetAmenities:      "raw_amenities",
	models.DatasetCondoUnits:     "raw_condo_units",
	models.DatasetPlutoLots:      "raw_pluto_lots",
}

// StagingCounts returns row counts per dataset, used by the sync gate.
func (db *DB) StagingCounts() (map[string]int, error) {
	counts := make(map[string]int, len(stagingTables))
	for dataset, table := range stagingTables {
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[dataset] = n
	}
	return counts, nil
}
