package db

import (
	"fmt"

	"propsignal/internal/models"
)

// InsertRaw dispatches a mapped staging record to its table. Implements the
// fetch.Sink interface.
func (db *DB) InsertRaw(dataset string, rec any) (bool, error) {
	switch r := rec.(type) {
	case *models.RawPermit:
		return db.InsertRawPermit(r)
	case *models.RawViolation:
		return db.InsertRawViolation(r)
	case *models.RawComplaint311:
		return db.InsertRawComplaint311(r)
	case *models.RawDOBComplaint:
		return db.InsertRawDOBComplaint(r)
	case *models.RawSubwayStation:
		return db.InsertRawSubwayStation(r)
	case *models.RawFloodZone:
		return db.InsertRawFloodZone(r)
	case *models.RawAmenity:
		return db.InsertRawAmenity(r)
	case *models.RawCondoUnit:
		return db.InsertRawCondoUnit(r)
	case *models.RawPlutoLot:
		return db.InsertRawPlutoLot(r)
	default:
		return false, fmt.Errorf("unknown staging record type %T for dataset %s", rec, dataset)
	}
}
