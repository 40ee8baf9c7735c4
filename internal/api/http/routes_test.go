package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sismosve/sismos-api/internal/observability"
	"github.com/sismosve/sismos-api/internal/scheduler"
	"github.com/sismosve/sismos-api/internal/sismos"
	"github.com/sismosve/sismos-api/internal/store"
)

type fakeUpdater struct {
	ok      bool
	err     error
	running bool
	status  scheduler.Status
	forced  int
}

func (f *fakeUpdater) ForceRefresh(context.Context) (bool, error) {
	f.forced++
	return f.ok, f.err
}

func (f *fakeUpdater) Status() scheduler.Status { return f.status }

func (f *fakeUpdater) Running() bool { return f.running }

func event(value, date, clock string) sismos.Event {
	return sismos.Event{
		Type:     sismos.EventType,
		Geometry: sismos.Geometry{Type: "Point", Coordinates: []float64{-63.25, 10.61}},
		Properties: sismos.Properties{
			Depth:            "10.3 km",
			Value:            value,
			AddressFormatted: "25 Km al sur de Carúpano",
			Time:             clock,
			Country:          "Venezuela",
			Date:             date,
			Lat:              "10.61",
			Long:             "-63.25",
		},
	}
}

type testEnv struct {
	app     *fiber.App
	store   *store.FileStore
	updater *fakeUpdater
}

func newTestEnv(t *testing.T, events ...sismos.Event) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "sismosve.json"), 0, logger, observability.NewMetricsForTesting())
	if events != nil {
		require.NoError(t, fs.Save(&sismos.Collection{Type: sismos.CollectionType, Features: events}, false))
	}

	updater := &fakeUpdater{running: true}
	app := NewApp(false)
	RegisterRoutes(app, sismos.NewService(fs, nil, logger), updater, logger)
	return &testEnv{app: app, store: fs, updater: updater}
}

func (e *testEnv) do(t *testing.T, method, target string, out any) int {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest(method, target, nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func sampleEvents() []sismos.Event {
	return []sismos.Event{
		event("2.5", "10-03-2024", "08:00"),
		event("4.1", "12-03-2024", "14:32"),
		event("3.0", "11-03-2024", "23:59"),
		event("", "12-03-2024", "15:00"),
	}
}

func TestReadEndpoints_NoData(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/sismos",
		"/api/sismos/stats",
		"/api/sismos/recent",
		"/api/sismos/magnitude/3",
		"/api/sismos/coordinates",
	} {
		var body map[string]any
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, &body), path)
		assert.Equal(t, true, body["error"], path)
		assert.Equal(t, "no earthquake data found", body["message"], path)
	}
}

func TestReadEndpoints_EmptySnapshot(t *testing.T) {
	env := newTestEnv(t, []sismos.Event{}...)
	require.True(t, env.store.Exists())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sismos", nil))
}

func TestListEarthquakes(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	var c sismos.Collection
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos", &c))
	assert.Equal(t, sismos.CollectionType, c.Type)
	assert.Len(t, c.Features, 4)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	var stats map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos/stats", &stats))
	assert.EqualValues(t, 4, stats["total_sismos"])
	assert.EqualValues(t, 2.5, stats["magnitud_minima"])
	assert.EqualValues(t, 4.1, stats["magnitud_maxima"])
	assert.InDelta(t, 3.2, stats["magnitud_promedio"], 1e-9)

	latest, ok := stats["ultimo_sismo"].(map[string]any)
	require.True(t, ok)
	props := latest["properties"].(map[string]any)
	assert.Equal(t, "15:00", props["time"])
	assert.NotEmpty(t, stats["ultima_actualizacion"])
}

func TestRecentEndpoint(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	var body struct {
		Sismos []sismos.Event `json:"sismos"`
		Total  int            `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos/recent?limit=2", &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Sismos, 2)
	assert.Equal(t, "15:00", body.Sismos[0].Properties.Time)
	assert.Equal(t, "14:32", body.Sismos[1].Properties.Time)

	body.Sismos = nil
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos/recent", &body))
	assert.Equal(t, 4, body.Total)
}

func TestRecentEndpoint_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	for _, q := range []string{"0", "51", "-3", "ten"} {
		var body map[string]any
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/sismos/recent?limit="+q, &body), q)
		assert.Equal(t, true, body["error"])
	}
}

func TestMagnitudeEndpoint(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	var body struct {
		Sismos       []sismos.Event `json:"sismos"`
		Total        int            `json:"total"`
		MinMagnitude float64        `json:"min_magnitude"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos/magnitude/3", &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 3.0, body.MinMagnitude)
	for _, e := range body.Sismos {
		assert.Contains(t, []string{"4.1", "3.0"}, e.Properties.Value)
	}
}

func TestMagnitudeEndpoint_Invalid(t *testing.T) {
	env := newTestEnv(t, sampleEvents()...)

	for _, p := range []string{"abc", "-1", "10.5"} {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/sismos/magnitude/"+p, nil), p)
	}
}

func TestCoordinatesEndpoint(t *testing.T) {
	env := newTestEnv(t, event("4.1", "12-03-2024", "14:32"), event("", "12-03-2024", "15:00"))

	var body struct {
		Coordinates []sismos.Coordinate `json:"coordinates"`
		Total       int                 `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/sismos/coordinates", &body))
	require.Equal(t, 1, body.Total, "events without a magnitude are not plotted")
	assert.Equal(t, 10.61, body.Coordinates[0].Lat)
	assert.Equal(t, -63.25, body.Coordinates[0].Lng)
	assert.Equal(t, 4.1, body.Coordinates[0].Magnitude)
	assert.Equal(t, "14:32", body.Coordinates[0].Time)
}

func TestUpdateEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		ok          bool
		err         error
		wantStatus  int
		wantSuccess any
	}{
		{"success", true, nil, http.StatusOK, true},
		{"cycle failed", false, nil, http.StatusInternalServerError, false},
		{"not completed", false, errors.New("context deadline exceeded"), http.StatusInternalServerError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.updater.ok, env.updater.err = tt.ok, tt.err

			var body map[string]any
			assert.Equal(t, tt.wantStatus, env.do(t, http.MethodPost, "/api/update", &body))
			assert.Equal(t, 1, env.updater.forced)
			assert.Equal(t, tt.wantSuccess, body["success"])
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	last := time.Date(2024, 3, 12, 14, 0, 0, 0, time.UTC)
	next := last.Add(5 * time.Minute)
	env.updater.status = scheduler.Status{
		Running:    true,
		Interval:   300,
		LastUpdate: &last,
		NextUpdate: &next,
		Stats:      scheduler.RefreshStats{Total: 2, Successful: 1, Failed: 1, LastSuccess: &last},
	}

	var body struct {
		Success bool             `json:"success"`
		Data    scheduler.Status `json:"data"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/status", &body))
	assert.True(t, body.Success)
	assert.True(t, body.Data.Running)
	assert.Equal(t, int64(300), body.Data.Interval)
	assert.Equal(t, int64(2), body.Data.Stats.Total)
	require.NotNil(t, body.Data.NextUpdate)
	assert.True(t, next.Equal(*body.Data.NextUpdate))
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		env := newTestEnv(t, sampleEvents()...)

		var report healthReport
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/health", &report))
		assert.Equal(t, "healthy", report.Status)
		assert.Equal(t, healthChecks{DataFileExists: true, SchedulerRunning: true, DataValid: true, TotalSismos: 4}, report.Checks)
	})

	t.Run("scheduler stopped", func(t *testing.T) {
		env := newTestEnv(t, sampleEvents()...)
		env.updater.running = false

		var report healthReport
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/health", &report))
		assert.Equal(t, "unhealthy", report.Status)
		assert.False(t, report.Checks.SchedulerRunning)
	})

	t.Run("no snapshot", func(t *testing.T) {
		env := newTestEnv(t)

		var report healthReport
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/health", &report))
		assert.Equal(t, "unhealthy", report.Status)
		assert.False(t, report.Checks.DataFileExists)
		assert.False(t, report.Checks.DataValid)
		assert.Nil(t, report.Timestamp)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/metrics", nil))
}
