package fetch

import (
	"fmt"
	"strings"
	"time"

	"propsignal/internal/models"
)

// DatasetSpec describes one open-data feed: where it lives, its natural key
// and a mapper that converts a loose upstream row into a strict staging
// record. Mappers return ErrMalformedRecord for rows missing their natural
// key or carrying unparseable values, and (nil, nil) for rows that are
// valid upstream but irrelevant here (filtered, not malformed).
type DatasetSpec struct {
	Name       string
	Resource   string
	SinceField string
	Map        func(row map[string]any) (any, error)
}

// Datasets returns the registry of municipal feeds the pipeline ingests.
func Datasets() []DatasetSpec {
	return []DatasetSpec{
		{
			Name:       models.DatasetPlutoLots,
			Resource:   "64uk-42ks.json",
			SinceField: "",
			Map:        mapPlutoLot,
		},
		{
			Name:       models.DatasetCondoUnits,
			Resource:   "8h5j-fqxa.json",
			SinceField: "",
			Map:        mapCondoUnit,
		},
		{
			Name:       models.DatasetDOBPermits,
			Resource:   "ipu4-2q9a.json",
			SinceField: "issuance_date",
			Map:        mapPermit,
		},
		{
			Name:       models.DatasetHPDViolations,
			Resource:   "wvxf-dwi5.json",
			SinceField: "inspectiondate",
			Map:        mapViolation,
		},
		{
			Name:       models.DatasetComplaints311,
			Resource:   "erm2-nwe9.json",
			SinceField: "created_date",
			Map:        mapComplaint311,
		},
		{
			Name:       models.DatasetDOBComplaints,
			Resource:   "eabe-havv.json",
			SinceField: "date_entered",
			Map:        mapDOBComplaint,
		},
		{
			Name:     models.DatasetSubwayStations,
			Resource: "kk4q-3rt2.json",
			Map:      mapSubwayStation,
		},
		{
			Name:     models.DatasetFloodZones,
			Resource: "flood-hazard.json",
			Map:      mapFloodZone,
		},
		{
			Name:     models.DatasetAmenities,
			Resource: "rxuy-2muj.json",
			Map:      mapAmenity,
		},
	}
}

func mapPermit(row map[string]any) (any, error) {
	jobNumber := strField(row, "job__", "job_number", "job")
	if jobNumber == "" {
		return nil, fmt.Errorf("%w: permit missing job number", ErrMalformedRecord)
	}

	issued, issuedOK := timeField(row, "issuance_date")
	return &models.RawPermit{
		JobNumber: jobNumber,
		BBL:       nullStr(composeBBL(row)),
		Address:   nullStr(joinAddress(row)),
		ZipCode:   nullStr(strField(row, "zip_code", "zip")),
		WorkType:  nullStr(strField(row, "work_type", "permit_type")),
		Status:    nullStr(strField(row, "permit_status", "status")),
		IssuedAt:  nullTime(issued, issuedOK),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func mapViolation(row map[string]any) (any, error) {
	violationID := strField(row, "violationid", "violation_id")
	if violationID == "" {
		return nil, fmt.Errorf("%w: violation missing id", ErrMalformedRecord)
	}

	reported, reportedOK := timeField(row, "inspectiondate", "novissueddate")
	return &models.RawViolation{
		ViolationID: violationID,
		BBL:         nullStr(composeBBL(row)),
		Address:     nullStr(joinAddress(row)),
		ZipCode:     nullStr(strField(row, "zip", "zip_code")),
		Class:       nullStr(strField(row, "class")),
		Status:      nullStr(strField(row, "violationstatus", "status")),
		ReportedAt:  nullTime(reported, reportedOK),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func mapComplaint311(row map[string]any) (any, error) {
	uniqueKey := strField(row, "unique_key")
	if uniqueKey == "" {
		return nil, fmt.Errorf("%w: 311 complaint missing unique key", ErrMalformedRecord)
	}

	created, createdOK := timeField(row, "created_date")
	return &models.RawComplaint311{
		UniqueKey:     uniqueKey,
		BBL:           nullStr(composeBBL(row)),
		Address:       nullStr(strField(row, "incident_address")),
		ZipCode:       nullStr(strField(row, "incident_zip")),
		ComplaintType: nullStr(strField(row, "complaint_type")),
		Status:        nullStr(strField(row, "status")),
		CreatedDate:   nullTime(created, createdOK),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func mapDOBComplaint(row map[string]any) (any, error) {
	number := strField(row, "complaint_number")
	if number == "" {
		return nil, fmt.Errorf("%w: DOB complaint missing number", ErrMalformedRecord)
	}

	entered, enteredOK := timeField(row, "date_entered")
	return &models.RawDOBComplaint{
		ComplaintNumber: number,
		BBL:             nullStr(composeBBL(row)),
		Address:         nullStr(joinAddress(row)),
		ZipCode:         nullStr(strField(row, "zip_code")),
		Category:        nullStr(strField(row, "complaint_category")),
		Status:          nullStr(strField(row, "status")),
		EnteredAt:       nullTime(entered, enteredOK),
		FetchedAt:       time.Now().UTC(),
	}, nil
}

func mapSubwayStation(row map[string]any) (any, error) {
	objectID := strField(row, "objectid", "object_id", "url")
	if objectID == "" {
		return nil, fmt.Errorf("%w: station missing object id", ErrMalformedRecord)
	}

	lat, lon, ok := pointField(row)
	if !ok {
		return nil, fmt.Errorf("%w: station %s missing coordinates", ErrMalformedRecord, objectID)
	}

	return &models.RawSubwayStation{
		ObjectID:  objectID,
		Name:      strField(row, "name", "station_name"),
		Lines:     normalizeLines(strField(row, "line", "lines")),
		Latitude:  lat,
		Longitude: lon,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func mapFloodZone(row map[string]any) (any, error) {
	zoneID := strField(row, "fld_ar_id", "zone_id", "objectid")
	if zoneID == "" {
		return nil, fmt.Errorf("%w: flood zone missing id", ErrMalformedRecord)
	}

	code := strField(row, "fld_zone", "zone_code")
	if code == "" {
		return nil, fmt.Errorf("%w: flood zone %s missing code", ErrMalformedRecord, zoneID)
	}

	lat, lon, ok := pointField(row)
	if !ok {
		return nil, fmt.Errorf("%w: flood zone %s missing centroid", ErrMalformedRecord, zoneID)
	}

	return &models.RawFloodZone{
		ZoneID:    zoneID,
		ZoneCode:  code,
		Latitude:  lat,
		Longitude: lon,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// amenityCategories maps POI facility domains to the categories the signal
// computer weighs. Matched in order, so a domain naming several keywords
// categorizes the same way every run.
var amenityCategories = []struct {
	keyword  string
	category string
}{
	{"RECREATION", models.AmenityPark},
	{"PARK", models.AmenityPark},
	{"EDUCATION", models.AmenitySchool},
	{"SCHOOL", models.AmenitySchool},
	{"HEALTH", models.AmenityHospital},
	{"HOSPITAL", models.AmenityHospital},
}

func mapAmenity(row map[string]any) (any, error) {
	sourceID := strField(row, "objectid", "source_id", "poi_id")
	if sourceID == "" {
		return nil, fmt.Errorf("%w: amenity missing source id", ErrMalformedRecord)
	}

	domain := strings.ToUpper(strField(row, "facdomain", "facility_domain", "category"))
	category := ""
	for _, c := range amenityCategories {
		if strings.Contains(domain, c.keyword) {
			category = c.category
			break
		}
	}
	if category == "" {
		// Valid POI outside the categories we score; filtered, not malformed
		return nil, nil
	}

	lat, lon, ok := pointField(row)
	if !ok {
		return nil, fmt.Errorf("%w: amenity %s missing coordinates", ErrMalformedRecord, sourceID)
	}

	return &models.RawAmenity{
		SourceID:  sourceID,
		Category:  category,
		Name:      strField(row, "name", "facname"),
		Latitude:  lat,
		Longitude: lon,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func mapCondoUnit(row map[string]any) (any, error) {
	condoNumber := strField(row, "condo_number", "condono")
	if condoNumber == "" {
		return nil, fmt.Errorf("%w: condo unit missing condo number", ErrMalformedRecord)
	}

	baseBBL := strField(row, "condo_base_bbl", "base_bbl")
	if baseBBL == "" {
		baseBBL = composeBBL(row)
	}
	if baseBBL == "" {
		return nil, fmt.Errorf("%w: condo unit %s missing base bbl", ErrMalformedRecord, condoNumber)
	}

	return &models.RawCondoUnit{
		CondoNumber:     condoNumber,
		BaseBBL:         baseBBL,
		UnitBBL:         nullStr(strField(row, "unit_bbl")),
		UnitDesignation: nullStr(strField(row, "unit_designation", "unit")),
		Address:         nullStr(joinAddress(row)),
		ZipCode:         nullStr(strField(row, "zip", "zip_code")),
		FetchedAt:       time.Now().UTC(),
	}, nil
}

func mapPlutoLot(row map[string]any) (any, error) {
	bbl := strField(row, "bbl")
	if bbl == "" {
		bbl = composeBBL(row)
	}
	if bbl == "" {
		return nil, fmt.Errorf("%w: pluto lot missing bbl", ErrMalformedRecord)
	}
	// PLUTO publishes BBL as a float-formatted string ("1000470001.00")
	if idx := strings.IndexByte(bbl, '.'); idx > 0 {
		bbl = bbl[:idx]
	}

	assess, assessOK := floatField(row, "assesstot", "assess_total")
	bldgArea, bldgOK := floatField(row, "bldgarea", "bldg_area")
	lotArea, lotOK := floatField(row, "lotarea", "lot_area")
	yearBuilt, yearOK := intField(row, "yearbuilt", "year_built")
	lat, latOK := floatField(row, "latitude")
	lon, lonOK := floatField(row, "longitude")

	return &models.RawPlutoLot{
		BBL:         bbl,
		Address:     nullStr(strField(row, "address")),
		ZipCode:     nullStr(strField(row, "zipcode", "zip_code")),
		Borough:     nullStr(strField(row, "borough")),
		AssessTotal: nullFloat(assess, assessOK),
		BldgArea:    nullFloat(bldgArea, bldgOK),
		LotArea:     nullFloat(lotArea, lotOK),
		YearBuilt:   nullInt(yearBuilt, yearOK),
		Latitude:    nullFloat(lat, latOK),
		Longitude:   nullFloat(lon, lonOK),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// joinAddress assembles "house number street" from the split fields most
// DOB/HPD feeds use.
func joinAddress(row map[string]any) string {
	if addr := strField(row, "address", "incident_address"); addr != "" {
		return addr
	}
	house := strField(row, "house__", "house_number", "housenumber")
	street := strField(row, "street_name", "streetname", "house_street")
	if house == "" || street == "" {
		return ""
	}
	return house + " " + street
}

func normalizeLines(lines string) string {
	parts := strings.FieldsFunc(lines, func(r rune) bool { return r == '-' || r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
