// Package pipeline sequences the batch run: fetch, resolve, enrich, score.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"propsignal/internal/config"
	"propsignal/internal/db"
	"propsignal/internal/fetch"
	"propsignal/internal/models"
	"propsignal/internal/normalize"
	"propsignal/internal/resolve"
)

// Pipeline stages. Each stage re-reads its inputs from persisted tables, so
// a run is restartable from any stage without re-fetching landed data.
const (
	StageFetchAll         = "fetch_all"
	StageResolveAll       = "resolve_all"
	StageEnrichGeospatial = "enrich_geospatial"
	StageComputeSignals   = "compute_signals"
	StageDone             = "done"
)

// Orchestrator drives a full batch run.
type Orchestrator struct {
	db       *db.DB
	fetcher  *fetch.Client
	geo      *normalize.Geoclient
	batchGeo *normalize.BatchGeocoder
	cfg      config.PipelineConfig
	log      zerolog.Logger
	now      func() time.Time
}

// New wires an orchestrator.
func New(database *db.DB, fetcher *fetch.Client, geo *normalize.Geoclient, batchGeo *normalize.BatchGeocoder, cfg config.PipelineConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		db:       database,
		fetcher:  fetcher,
		geo:      geo,
		batchGeo: batchGeo,
		cfg:      cfg,
		log:      log.With().Str("component", "pipeline").Logger(),
		now:      time.Now,
	}
}

// NeedsSync reports whether a full run is warranted, so process starts
// don't trigger redundant multi-minute refreshes. Reasons: empty canonical
// source staging, no computed summaries, or summaries older than the
// configured max age.
func (o *Orchestrator) NeedsSync() (bool, string, error) {
	counts, err := o.db.StagingCounts()
	if err != nil {
		return false, "", err
	}
	if counts[models.DatasetPlutoLots] == 0 {
		return true, "no tax-lot data staged", nil
	}

	summaries, err := o.db.GetSummaryCount()
	if err != nil {
		return false, "", err
	}
	if summaries == 0 {
		return true, "no signal summaries computed", nil
	}

	last, err := o.db.GetLatestPipelineRun()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, "no prior pipeline run", nil
		}
		return false, "", err
	}
	if !last.FinishedAt.Valid {
		return true, "last run did not finish", nil
	}
	if age := o.now().Sub(last.FinishedAt.Time); age > o.cfg.SummaryMaxAge {
		return true, fmt.Sprintf("summaries are %s old", age.Round(time.Minute)), nil
	}

	return false, "", nil
}

// Run executes the full stage machine. Dataset and per-property failures
// are isolated; only store-level failures abort the run.
func (o *Orchestrator) Run(ctx context.Context) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Stage:     StageFetchAll,
		StartedAt: o.now().UTC(),
	}
	if err := o.db.InsertPipelineRun(run); err != nil {
		return nil, err
	}

	stages := []struct {
		name string
		fn   func(context.Context, *models.PipelineRun) error
	}{
		{StageFetchAll, o.runFetchAll},
		{StageResolveAll, o.runResolveAll},
		{StageEnrichGeospatial, o.runEnrichGeospatial},
		{StageComputeSignals, o.runComputeSignals},
	}

	for _, stage := range stages {
		run.Stage = stage.name
		if err := o.db.UpdatePipelineRun(run); err != nil {
			return run, err
		}

		o.log.Info().Str("run_id", run.ID).Str("stage", stage.name).Msg("stage starting")
		if err := stage.fn(ctx, run); err != nil {
			run.Error = sql.NullString{String: err.Error(), Valid: true}
			run.FinishedAt = sql.NullTime{Time: o.now().UTC(), Valid: true}
			_ = o.db.UpdatePipelineRun(run)
			return run, fmt.Errorf("stage %s: %w", stage.name, err)
		}
	}

	run.Stage = StageDone
	run.FinishedAt = sql.NullTime{Time: o.now().UTC(), Valid: true}
	if err := o.db.UpdatePipelineRun(run); err != nil {
		return run, err
	}

	o.log.Info().
		Str("run_id", run.ID).
		Int("fetched", run.Fetched).
		Int("resolved", run.Resolved).
		Int("computed", run.Computed).
		Int("failed", run.Failed).
		Dur("elapsed", o.now().Sub(run.StartedAt)).
		Msg("pipeline run complete")

	return run, nil
}

// runFetchAll imports every registered dataset. A dataset whose pages
// exhaust their retries is logged and skipped; siblings proceed. Datasets
// with a since field fetch incrementally from the last finished run; the
// insert-skip staging layer absorbs any overlap.
func (o *Orchestrator) runFetchAll(ctx context.Context, run *models.PipelineRun) error {
	var since time.Time
	if last, err := o.db.GetLatestFinishedRunBefore(run.ID); err == nil {
		since = last.FinishedAt.Time
	}

	for _, ds := range fetch.Datasets() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := o.fetcher.FetchDataset(ctx, ds, o.db, since)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			o.log.Warn().Str("dataset", ds.Name).Err(err).Msg("dataset import aborted, continuing with siblings")
			continue
		}
		run.Fetched += result.Inserted
	}
	return nil
}

// runResolveAll synchronizes the canonical tables from staging, then links
// every raw source record to a canonical property. Full recompute: prior
// resolution rows per source are cleared first.
func (o *Orchestrator) runResolveAll(ctx context.Context, run *models.PipelineRun) error {
	if err := o.syncCanonical(); err != nil {
		return err
	}

	properties, err := o.db.ListProperties()
	if err != nil {
		return err
	}
	idx := resolve.BuildIndex(properties)
	resolver := resolve.NewResolver(idx)
	o.log.Info().Int("properties", len(properties)).Int("indexed_bbls", idx.Size()).Msg("resolution index built")

	sources, err := o.collectRawRefs()
	if err != nil {
		return err
	}

	for source, refs := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := o.db.ClearResolutions(source); err != nil {
			return err
		}
		records, stats := resolver.ResolveAll(source, refs)
		if err := o.db.InsertResolutions(records); err != nil {
			return err
		}

		run.Resolved += stats.Matched
		o.log.Info().
			Str("source", source).
			Int("matched", stats.Matched).
			Int("unmatched", stats.Unmatched).
			Float64("match_rate", stats.MatchRate()).
			Msg("source resolved")
	}

	return nil
}

// syncCanonical upserts canonical properties from PLUTO and buildings plus
// enriched unit fields from the condo registry.
func (o *Orchestrator) syncCanonical() error {
	lots, err := o.db.ListRawPlutoLots()
	if err != nil {
		return err
	}
	for i := range lots {
		lot := &lots[i]
		p := models.Property{
			BBL:           sql.NullString{String: lot.BBL, Valid: true},
			Address:       lot.Address,
			ZipCode:       lot.ZipCode,
			Borough:       lot.Borough,
			Latitude:      lot.Latitude,
			Longitude:     lot.Longitude,
			BldgArea:      lot.BldgArea,
			AssessedValue: lot.AssessTotal,
			YearBuilt:     lot.YearBuilt,
		}
		if lot.Address.Valid {
			p.NormalizedAddress = sql.NullString{String: normalize.Normalize(lot.Address.String), Valid: true}
		}
		if err := o.db.UpsertProperty(&p); err != nil {
			return err
		}
	}

	units, err := o.db.ListRawCondoUnits()
	if err != nil {
		return err
	}
	unitCounts := make(map[string]int)
	for i := range units {
		unitCounts[units[i].BaseBBL]++
	}
	for baseBBL, count := range unitCounts {
		b := models.Building{BaseBBL: baseBBL, UnitCount: count}
		if err := o.db.UpsertBuilding(&b); err != nil {
			return err
		}
	}

	// Write unit designations back onto unit-lot properties
	enriched := 0
	for i := range units {
		u := &units[i]
		if !u.UnitBBL.Valid || !u.UnitDesignation.Valid {
			continue
		}
		p, err := o.db.GetPropertyByBBL(u.UnitBBL.String)
		if err != nil {
			continue // unit lot not in PLUTO yet
		}
		if err := o.db.UpdatePropertyUnit(p.ID, u.BaseBBL, u.UnitDesignation.String); err != nil {
			return err
		}
		enriched++
	}

	o.log.Info().
		Int("lots", len(lots)).
		Int("buildings", len(unitCounts)).
		Int("units_enriched", enriched).
		Msg("canonical tables synchronized")
	return nil
}

// collectRawRefs projects every fact-bearing staging table into the
// resolver's input shape.
func (o *Orchestrator) collectRawRefs() (map[string][]resolve.RawRef, error) {
	sources := make(map[string][]resolve.RawRef)

	permits, err := o.db.ListRawPermits()
	if err != nil {
		return nil, err
	}
	for i := range permits {
		p := &permits[i]
		sources[models.DatasetDOBPermits] = append(sources[models.DatasetDOBPermits], resolve.RawRef{
			SourceKey: p.JobNumber,
			BBL:       p.BBL.String,
			Address:   p.Address.String,
			ZipCode:   p.ZipCode.String,
		})
	}

	violations, err := o.db.ListRawViolations()
	if err != nil {
		return nil, err
	}
	for i := range violations {
		v := &violations[i]
		sources[models.DatasetHPDViolations] = append(sources[models.DatasetHPDViolations], resolve.RawRef{
			SourceKey: v.ViolationID,
			BBL:       v.BBL.String,
			Address:   v.Address.String,
			ZipCode:   v.ZipCode.String,
		})
	}

	complaints, err := o.db.ListRawComplaints311()
	if err != nil {
		return nil, err
	}
	for i := range complaints {
		c := &complaints[i]
		sources[models.DatasetComplaints311] = append(sources[models.DatasetComplaints311], resolve.RawRef{
			SourceKey: c.UniqueKey,
			BBL:       c.BBL.String,
			Address:   c.Address.String,
			ZipCode:   c.ZipCode.String,
		})
	}

	dobComplaints, err := o.db.ListRawDOBComplaints()
	if err != nil {
		return nil, err
	}
	for i := range dobComplaints {
		c := &dobComplaints[i]
		sources[models.DatasetDOBComplaints] = append(sources[models.DatasetDOBComplaints], resolve.RawRef{
			SourceKey: c.ComplaintNumber,
			BBL:       c.BBL.String,
			Address:   c.Address.String,
			ZipCode:   c.ZipCode.String,
		})
	}

	units, err := o.db.ListRawCondoUnits()
	if err != nil {
		return nil, err
	}
	for i := range units {
		u := &units[i]
		sources[models.DatasetCondoUnits] = append(sources[models.DatasetCondoUnits], resolve.RawRef{
			SourceKey: u.CondoNumber,
			BBL:       u.UnitBBL.String,
			BaseBBL:   u.BaseBBL,
			Address:   u.Address.String,
			ZipCode:   u.ZipCode.String,
		})
	}

	return sources, nil
}

// runEnrichGeospatial geocodes properties missing coordinates. Skipped
// entirely when the geocoder is not configured; resolution then relies on
// lower-confidence tiers, which is a valid degraded mode.
func (o *Orchestrator) runEnrichGeospatial(ctx context.Context, run *models.PipelineRun) error {
	if o.geo == nil || !o.geo.Available() {
		o.log.Info().Msg("geoclient not configured, skipping geocoding enrichment")
		return nil
	}

	properties, err := o.db.ListProperties()
	if err != nil {
		return err
	}

	var queries []normalize.AddressQuery
	for i := range properties {
		p := &properties[i]
		if p.Latitude.Valid && p.Longitude.Valid {
			continue
		}
		if !p.Address.Valid || p.Address.String == "" {
			continue
		}
		zone := p.ZipCode.String
		if zone == "" {
			zone = p.Borough.String
		}
		queries = append(queries, normalize.AddressQuery{
			PropertyID:   p.ID,
			Address:      p.Address.String,
			BoroughOrZip: zone,
		})
	}
	if len(queries) == 0 {
		return nil
	}

	results, err := o.batchGeo.GeocodeAll(ctx, queries)
	if err != nil {
		return err
	}

	updated := 0
	for _, r := range results {
		if r.Err != nil {
			o.log.Debug().Int64("property_id", r.Query.PropertyID).Err(r.Err).Msg("geocode failed")
			continue
		}
		if err := o.db.UpdatePropertyLocation(r.Query.PropertyID, r.Result.Latitude, r.Result.Longitude, r.Result.NormalizedAddress); err != nil {
			return err
		}
		updated++
	}

	o.log.Info().Int("queried", len(queries)).Int("updated", updated).Msg("geospatial enrichment complete")
	return nil
}
