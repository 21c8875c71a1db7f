package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsignal/internal/config"
	"propsignal/internal/db"
	"propsignal/internal/fetch"
	"propsignal/internal/models"
	"propsignal/internal/normalize"
)

const socrataLayout = "2006-01-02T15:04:05.000"

// fakeCity serves canned rows per dataset resource, Socrata style.
func fakeCity(t *testing.T) *httptest.Server {
	t.Helper()

	recent := time.Now().UTC().AddDate(0, 0, -10).Format(socrataLayout)
	lastSpring := time.Now().UTC().AddDate(0, -3, 0).Format(socrataLayout)

	fixtures := map[string][]map[string]any{
		// Two Manhattan lots on the same block; the second assessed far higher
		"64uk-42ks.json": {
			{
				"bbl": "1001230001.00", "address": "123 MAIN STREET", "zipcode": "10001",
				"borough": "MN", "assesstot": "500000", "bldgarea": "1000",
				"yearbuilt": "1920", "latitude": "40.7128", "longitude": "-74.0060",
			},
			{
				"bbl": "1001230002.00", "address": "125 MAIN STREET", "zipcode": "10001",
				"borough": "MN", "assesstot": "2000000", "bldgarea": "1000",
				"yearbuilt": "1985", "latitude": "40.7130", "longitude": "-74.0061",
			},
		},
		"8h5j-fqxa.json": {},
		"ipu4-2q9a.json": {
			{"job__": "140915936", "bbl": "1001230001", "issuance_date": lastSpring},
		},
		"wvxf-dwi5.json": {
			{"violationid": "v1", "bbl": "1001230001", "violationstatus": "Open", "inspectiondate": lastSpring},
		},
		"erm2-nwe9.json": {
			{
				"unique_key": "k1", "incident_address": "123 MAIN STREET",
				"incident_zip": "10001", "status": "Open", "created_date": recent,
			},
		},
		"eabe-havv.json": {
			// Unknown BBL: resolves to an explicit unmatched record
			{"complaint_number": "d1", "bbl": "9999999999", "status": "ACTIVE", "date_entered": recent},
		},
		"kk4q-3rt2.json": {
			{
				"objectid": "s1", "name": "Main St", "line": "A-C",
				"the_geom": map[string]any{"type": "Point", "coordinates": []any{-74.0060, 40.7158}},
			},
		},
		"flood-hazard.json": {
			{"fld_ar_id": "f1", "fld_zone": "AE", "latitude": 40.7129, "longitude": -74.0059},
		},
		"rxuy-2muj.json": {
			{"objectid": "a1", "facdomain": "PARKS AND RECREATION", "facname": "Main St Park", "latitude": 40.7131, "longitude": -74.0062},
			{"objectid": "a2", "facdomain": "EDUCATION", "facname": "PS 1", "latitude": 40.7125, "longitude": -74.0058},
		},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resource := strings.TrimPrefix(r.URL.Path, "/")
		rows, ok := fixtures[resource]
		if !ok {
			http.Error(w, "unknown resource", http.StatusNotFound)
			return
		}
		// Single short page per dataset
		if r.URL.Query().Get("$offset") != "0" {
			rows = nil
		}
		json.NewEncoder(w).Encode(rows)
	}))
}

func testOrchestrator(t *testing.T, baseURL string) (*Orchestrator, *db.DB) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := zerolog.Nop()
	fetcher := fetch.NewClient(config.FetchConfig{
		PageSize:       100,
		MaxAttempts:    1,
		RequestTimeout: 5 * time.Second,
		BaseURL:        baseURL,
	}, log)

	geoCfg := config.GeoclientConfig{RequestsPerSecond: 100, MaxConcurrent: 2}
	geo := normalize.NewGeoclient(geoCfg)

	orch := New(database, fetcher, geo, normalize.NewBatchGeocoder(geo, geoCfg, log), config.PipelineConfig{
		SummaryMaxAge:    24 * time.Hour,
		Recent311Window:  90 * 24 * time.Hour,
		TransitGridCells: 5,
		AmenityGridCells: 10,
	}, log)

	return orch, database
}

func TestRunEndToEnd(t *testing.T) {
	srv := fakeCity(t)
	defer srv.Close()

	orch, database := testOrchestrator(t, srv.URL)

	needed, reason, err := orch.NeedsSync()
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Contains(t, reason, "tax-lot")

	run, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageDone, run.Stage)
	assert.True(t, run.FinishedAt.Valid)
	assert.Zero(t, run.Failed)

	// Canonical properties seeded from the tax-lot feed
	count, err := database.GetPropertyCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Coverage: permits, violations and 311 all matched; the bogus DOB
	// complaint is recorded as unmatched
	stats, err := database.GetResolutionStats()
	require.NoError(t, err)
	bySource := make(map[string]models.ResolutionStats)
	for _, s := range stats {
		bySource[s.SourceSystem] = s
	}
	assert.Equal(t, 1, bySource[models.DatasetDOBPermits].Matched)
	assert.Equal(t, 1, bySource[models.DatasetHPDViolations].Matched)
	assert.Equal(t, 1, bySource[models.DatasetComplaints311].Matched, "matched via normalized address")
	assert.Equal(t, 1, bySource[models.DatasetDOBComplaints].Unmatched)
	assert.Zero(t, bySource[models.DatasetDOBComplaints].Matched)

	summaries, err := database.GetSummaryCount()
	require.NoError(t, err)
	assert.Equal(t, 2, summaries)

	p, err := database.GetPropertyByBBL("1001230001")
	require.NoError(t, err)
	s, err := database.GetSignalSummary(p.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, s.OpenViolations)
	assert.Zero(t, s.OpenComplaints, "the unmatched DOB complaint attaches to nobody")
	assert.Equal(t, 1, s.Recent311)
	assert.Equal(t, 1, s.PermitsLast12Mo)
	assert.Equal(t, 93.0, s.BuildingHealthScore)

	// Station sits ~330m north
	require.True(t, s.NearestSubwayM.Valid)
	assert.InDelta(t, 333, s.NearestSubwayM.Float64, 15)
	assert.Equal(t, 90.0, s.TransitScore)
	assert.Equal(t, "A,C", s.SubwayLines.String)

	assert.Equal(t, 1, s.ParksNearby)
	assert.Equal(t, 1, s.SchoolsNearby)
	assert.Equal(t, "AE", s.FloodZone.String)
	assert.True(t, s.FloodHighRisk)

	// Assessed at 40% of the zip median: strong value points
	assert.Equal(t, 40.0, s.OpportunityValuePts)
	assert.Greater(t, s.OpportunityScore, 40.0)

	assert.Greater(t, s.DataCompleteness, 0.9)
	assert.Equal(t, models.ConfidenceHigh, s.SignalConfidence)
}

func TestRunIsIdempotent(t *testing.T) {
	srv := fakeCity(t)
	defer srv.Close()

	orch, database := testOrchestrator(t, srv.URL)

	first, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, first.Fetched, 0)

	second, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Fetched, "unchanged upstream stages nothing new")
	assert.Equal(t, first.Resolved, second.Resolved)
	assert.Equal(t, first.Computed, second.Computed)

	count, err := database.GetPropertyCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	summaries, err := database.GetSummaryCount()
	require.NoError(t, err)
	assert.Equal(t, 2, summaries)
}

func TestNeedsSyncAfterFreshRun(t *testing.T) {
	srv := fakeCity(t)
	defer srv.Close()

	orch, _ := testOrchestrator(t, srv.URL)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	needed, _, err := orch.NeedsSync()
	require.NoError(t, err)
	assert.False(t, needed, "fresh summaries gate a redundant run")
}

func TestNeedsSyncStaleSummaries(t *testing.T) {
	srv := fakeCity(t)
	defer srv.Close()

	orch, _ := testOrchestrator(t, srv.URL)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Shift the clock two days forward
	orch.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	needed, reason, err := orch.NeedsSync()
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Contains(t, reason, "old")
}

func TestRunIsolatesDatasetFailures(t *testing.T) {
	// Every resource 404s except the tax lots; the run still completes and
	// scores what it has
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/") != "64uk-42ks.json" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"bbl": "1001230001", "address": "123 MAIN STREET", "zipcode": "10001", "latitude": "40.7128", "longitude": "-74.0060"},
		})
	}))
	defer srv.Close()

	orch, database := testOrchestrator(t, srv.URL)

	run, err := orch.Run(context.Background())
	require.NoError(t, err, "sibling dataset failures never abort the run")
	assert.Equal(t, StageDone, run.Stage)

	count, err := database.GetPropertyCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	summaries, err := database.GetSummaryCount()
	require.NoError(t, err)
	assert.Equal(t, 1, summaries)
}
