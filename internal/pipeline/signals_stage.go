package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"propsignal/internal/geoindex"
	"propsignal/internal/models"
	"propsignal/internal/signals"
)

// propertyFacts accumulates the per-property counts extracted from staging
// rows via their resolution records.
type propertyFacts struct {
	openViolations  int
	openComplaints  int
	recent311       int
	permitsLast12Mo int
	permitsPrior12  int
	newestRecordAt  time.Time
}

// runComputeSignals rebuilds the grid indexes and per-property fact maps
// from persisted state, scores every canonical property, and upserts the
// summaries. One bad property never aborts the batch.
func (o *Orchestrator) runComputeSignals(ctx context.Context, run *models.PipelineRun) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	properties, err := o.db.ListProperties()
	if err != nil {
		return err
	}

	facts, err := o.gatherFacts()
	if err != nil {
		return err
	}

	subwayIdx, amenityIdx, floodIdx, err := o.buildIndexes()
	if err != nil {
		return err
	}

	counts, err := o.db.StagingCounts()
	if err != nil {
		return err
	}

	zipMedians := zipMedianValuePerSqft(properties)
	now := o.now().UTC()

	gather := func(p models.Property) (signals.Inputs, error) {
		in := signals.Inputs{
			Property: p,

			HasViolationsData: counts[models.DatasetHPDViolations] > 0,
			HasPermitsData:    counts[models.DatasetDOBPermits] > 0,
			Has311Data:        counts[models.DatasetComplaints311] > 0,
		}

		if f, ok := facts[p.ID]; ok {
			in.OpenViolations = f.openViolations
			in.OpenComplaints = f.openComplaints
			in.Recent311 = f.recent311
			in.PermitsLast12Mo = f.permitsLast12Mo
			in.PermitsPrior12 = f.permitsPrior12
			in.NewestRecordAt = f.newestRecordAt
		}

		if p.Latitude.Valid && p.Longitude.Valid {
			lat, lon := p.Latitude.Float64, p.Longitude.Float64

			if subwayIdx.Size() > 0 {
				in.HasTransitData = true
				if nearest := subwayIdx.Nearest(lat, lon, o.cfg.TransitGridCells, 1); len(nearest) > 0 {
					d := nearest[0].DistanceM
					in.NearestSubwayM = &d
					if nearest[0].Point.Lines != "" {
						in.SubwayLines = strings.Split(nearest[0].Point.Lines, ",")
					}
				}
			}

			if amenityIdx.Size() > 0 {
				in.HasAmenityData = true
				byCategory := amenityIdx.CountByCategory(lat, lon, o.cfg.AmenityGridCells)
				in.ParksNearby = byCategory[models.AmenityPark]
				in.SchoolsNearby = byCategory[models.AmenitySchool]
				in.HospitalsNearby = byCategory[models.AmenityHospital]
			}

			if floodIdx.Size() > 0 {
				in.HasFloodData = true
				if nearest := floodIdx.Nearest(lat, lon, o.cfg.AmenityGridCells, 1); len(nearest) > 0 {
					in.FloodZone = nearest[0].Point.Category
				}
			}
		}

		if p.AssessedValue.Valid && p.BldgArea.Valid && p.BldgArea.Float64 > 0 {
			if median := zipMedians[p.ZipCode.String]; median > 0 {
				in.HasValueData = true
				in.ZipMedianValuePerSqft = median
			}
		}

		return in, nil
	}

	result := signals.ComputeAll(properties, gather, now, o.log)
	for i := range result.Summaries {
		if err := o.db.UpsertSignalSummary(&result.Summaries[i]); err != nil {
			return err
		}
	}

	run.Computed += len(result.Summaries)
	run.Failed += len(result.Failures)

	o.log.Info().
		Int("properties", len(properties)).
		Int("computed", len(result.Summaries)).
		Int("failed", len(result.Failures)).
		Msg("signal computation complete")
	return nil
}

// gatherFacts joins each fact staging table to its resolution records and
// folds the rows into per-property counts.
func (o *Orchestrator) gatherFacts() (map[int64]*propertyFacts, error) {
	facts := make(map[int64]*propertyFacts)
	at := func(id int64) *propertyFacts {
		f, ok := facts[id]
		if !ok {
			f = &propertyFacts{}
			facts[id] = f
		}
		return f
	}

	now := o.now().UTC()
	yearAgo := now.AddDate(-1, 0, 0)
	twoYearsAgo := now.AddDate(-2, 0, 0)
	recentCutoff := now.Add(-o.cfg.Recent311Window)

	violationIDs, err := o.resolutionTargets(models.DatasetHPDViolations)
	if err != nil {
		return nil, err
	}
	violations, err := o.db.ListRawViolations()
	if err != nil {
		return nil, err
	}
	for i := range violations {
		v := &violations[i]
		id, ok := violationIDs[v.ViolationID]
		if !ok {
			continue
		}
		f := at(id)
		if isOpenStatus(v.Status.String) {
			f.openViolations++
		}
		f.observe(v.ReportedAt.Time)
	}

	complaintIDs, err := o.resolutionTargets(models.DatasetDOBComplaints)
	if err != nil {
		return nil, err
	}
	dobComplaints, err := o.db.ListRawDOBComplaints()
	if err != nil {
		return nil, err
	}
	for i := range dobComplaints {
		c := &dobComplaints[i]
		id, ok := complaintIDs[c.ComplaintNumber]
		if !ok {
			continue
		}
		f := at(id)
		if isOpenStatus(c.Status.String) {
			f.openComplaints++
		}
		f.observe(c.EnteredAt.Time)
	}

	requestIDs, err := o.resolutionTargets(models.DatasetComplaints311)
	if err != nil {
		return nil, err
	}
	requests, err := o.db.ListRawComplaints311()
	if err != nil {
		return nil, err
	}
	for i := range requests {
		r := &requests[i]
		id, ok := requestIDs[r.UniqueKey]
		if !ok {
			continue
		}
		f := at(id)
		if r.CreatedDate.Valid && r.CreatedDate.Time.After(recentCutoff) {
			f.recent311++
		}
		f.observe(r.CreatedDate.Time)
	}

	permitIDs, err := o.resolutionTargets(models.DatasetDOBPermits)
	if err != nil {
		return nil, err
	}
	permits, err := o.db.ListRawPermits()
	if err != nil {
		return nil, err
	}
	for i := range permits {
		p := &permits[i]
		id, ok := permitIDs[p.JobNumber]
		if !ok {
			continue
		}
		f := at(id)
		if p.IssuedAt.Valid {
			switch {
			case p.IssuedAt.Time.After(yearAgo):
				f.permitsLast12Mo++
			case p.IssuedAt.Time.After(twoYearsAgo):
				f.permitsPrior12++
			}
		}
		f.observe(p.IssuedAt.Time)
	}

	return facts, nil
}

// resolutionTargets maps source keys to matched property ids for one source.
// Unmatched records carry a null property id and are excluded.
func (o *Orchestrator) resolutionTargets(sourceSystem string) (map[string]int64, error) {
	records, err := o.db.ListResolutions(sourceSystem)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]int64, len(records))
	for i := range records {
		if records[i].PropertyID.Valid {
			targets[records[i].SourceKey] = records[i].PropertyID.Int64
		}
	}
	return targets, nil
}

// buildIndexes loads the citywide point sets into grid indexes.
func (o *Orchestrator) buildIndexes() (subway, amenity, flood *geoindex.Index, err error) {
	stations, err := o.db.ListRawSubwayStations()
	if err != nil {
		return nil, nil, nil, err
	}
	subwayPoints := make([]geoindex.Point, 0, len(stations))
	for i := range stations {
		s := &stations[i]
		subwayPoints = append(subwayPoints, geoindex.Point{
			ID:    s.ObjectID,
			Name:  s.Name,
			Lines: s.Lines,
			Lat:   s.Latitude,
			Lon:   s.Longitude,
		})
	}

	amenities, err := o.db.ListRawAmenities()
	if err != nil {
		return nil, nil, nil, err
	}
	amenityPoints := make([]geoindex.Point, 0, len(amenities))
	for i := range amenities {
		a := &amenities[i]
		amenityPoints = append(amenityPoints, geoindex.Point{
			ID:       a.SourceID,
			Name:     a.Name,
			Category: a.Category,
			Lat:      a.Latitude,
			Lon:      a.Longitude,
		})
	}

	zones, err := o.db.ListRawFloodZones()
	if err != nil {
		return nil, nil, nil, err
	}
	floodPoints := make([]geoindex.Point, 0, len(zones))
	for i := range zones {
		z := &zones[i]
		floodPoints = append(floodPoints, geoindex.Point{
			ID:       z.ZoneID,
			Category: z.ZoneCode,
			Lat:      z.Latitude,
			Lon:      z.Longitude,
		})
	}

	o.log.Info().
		Int("subway_stations", len(subwayPoints)).
		Int("amenities", len(amenityPoints)).
		Int("flood_zones", len(floodPoints)).
		Msg("grid indexes built")

	return geoindex.NewIndex(subwayPoints), geoindex.NewIndex(amenityPoints), geoindex.NewIndex(floodPoints), nil
}

func (f *propertyFacts) observe(t time.Time) {
	if !t.IsZero() && t.After(f.newestRecordAt) {
		f.newestRecordAt = t
	}
}

// isOpenStatus covers the open-flavored statuses across HPD and DOB feeds.
func isOpenStatus(status string) bool {
	s := strings.ToUpper(strings.TrimSpace(status))
	return s == "ACTIVE" || strings.HasPrefix(s, "OPEN")
}

// zipMedianValuePerSqft computes the median assessed value per square foot
// for each zip with at least one assessable property.
func zipMedianValuePerSqft(properties []models.Property) map[string]float64 {
	byZip := make(map[string][]float64)
	for i := range properties {
		p := &properties[i]
		if !p.ZipCode.Valid || !p.AssessedValue.Valid || !p.BldgArea.Valid || p.BldgArea.Float64 <= 0 {
			continue
		}
		byZip[p.ZipCode.String] = append(byZip[p.ZipCode.String], p.AssessedValue.Float64/p.BldgArea.Float64)
	}

	medians := make(map[string]float64, len(byZip))
	for zip, values := range byZip {
		sort.Float64s(values)
		n := len(values)
		if n%2 == 1 {
			medians[zip] = values[n/2]
		} else {
			medians[zip] = (values[n/2-1] + values[n/2]) / 2
		}
	}
	return medians
}
