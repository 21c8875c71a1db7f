package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsignal/internal/db"
	"propsignal/internal/models"
)

func testServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	srv := httptest.NewServer(NewRouter(database, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, database
}

func seedProperty(t *testing.T, database *db.DB, bbl string) *models.Property {
	t.Helper()
	require.NoError(t, database.UpsertProperty(&models.Property{
		BBL:     sql.NullString{String: bbl, Valid: true},
		Address: sql.NullString{String: "123 Main Street", Valid: true},
	}))
	p, err := database.GetPropertyByBBL(bbl)
	require.NoError(t, err)
	return p
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv, database := testServer(t)
	seedProperty(t, database, "1001230001")

	var body map[string]any
	status := getJSON(t, srv.URL+"/api/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["properties"])
	assert.Equal(t, float64(0), body["scored"])
}

func TestGetPropertySignalsProcessing(t *testing.T) {
	srv, database := testServer(t)
	p := seedProperty(t, database, "1001230001")

	// Exists but unscored: 202, not 404
	var body map[string]string
	status := getJSON(t, srv.URL+"/api/properties/"+itoa(p.ID)+"/signals", &body)

	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "processing", body["status"])
}

func TestGetPropertySignalsScored(t *testing.T) {
	srv, database := testServer(t)
	p := seedProperty(t, database, "1001230001")

	require.NoError(t, database.UpsertSignalSummary(&models.SignalSummary{
		PropertyID:          p.ID,
		BuildingHealthScore: 87,
		TransitScore:        90,
		SignalConfidence:    models.ConfidenceMedium,
		ComputedAt:          time.Now().UTC(),
	}))

	var body models.SignalSummary
	status := getJSON(t, srv.URL+"/api/properties/"+itoa(p.ID)+"/signals", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 87.0, body.BuildingHealthScore)
	assert.Equal(t, models.ConfidenceMedium, body.SignalConfidence)
}

func TestGetPropertySignalsUnknownProperty(t *testing.T) {
	srv, _ := testServer(t)

	status := getJSON(t, srv.URL+"/api/properties/404/signals", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, srv.URL+"/api/properties/not-a-number/signals", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetPropertyStoreFailureIsNot404(t *testing.T) {
	srv, database := testServer(t)
	p := seedProperty(t, database, "1001230001")

	status := getJSON(t, srv.URL+"/api/properties/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusOK, status)

	status = getJSON(t, srv.URL+"/api/properties/404", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// A broken store must surface as a server error, not a missing row
	database.Close()
	status = getJSON(t, srv.URL+"/api/properties/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestListPropertiesPagination(t *testing.T) {
	srv, database := testServer(t)
	for _, bbl := range []string{"1000010001", "1000010002", "1000010003"} {
		seedProperty(t, database, bbl)
	}

	var body struct {
		Properties []models.Property `json:"properties"`
		Count      int               `json:"count"`
	}
	status := getJSON(t, srv.URL+"/api/properties?limit=2", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Properties, 2)
}

func TestResolutionStatsEndpoint(t *testing.T) {
	srv, database := testServer(t)
	p := seedProperty(t, database, "1001230001")

	require.NoError(t, database.InsertResolutions([]models.ResolutionRecord{
		{SourceSystem: "dob_permits", SourceKey: "1", PropertyID: sql.NullInt64{Int64: p.ID, Valid: true}, MatchType: models.MatchExact, MatchConfidence: 1, ResolvedAt: time.Now().UTC()},
		{SourceSystem: "dob_permits", SourceKey: "2", MatchType: models.MatchUnmatched, ResolvedAt: time.Now().UTC()},
	}))

	var body struct {
		Sources []models.ResolutionStats `json:"sources"`
	}
	status := getJSON(t, srv.URL+"/api/resolution/stats", &body)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "dob_permits", body.Sources[0].SourceSystem)
	assert.Equal(t, 0.5, body.Sources[0].MatchRate)
}

func TestLatestRunEndpoint(t *testing.T) {
	srv, database := testServer(t)

	status := getJSON(t, srv.URL+"/api/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, database.InsertPipelineRun(&models.PipelineRun{
		ID: "run-1", Stage: "done", StartedAt: time.Now().UTC(),
	}))

	var body models.PipelineRun
	status = getJSON(t, srv.URL+"/api/runs/latest", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "run-1", body.ID)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
