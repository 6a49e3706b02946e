package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vbonduro/mapnote/internal/db"
	"github.com/vbonduro/mapnote/internal/geocode"
	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/routing"
	"github.com/vbonduro/mapnote/internal/service"
	"github.com/vbonduro/mapnote/internal/snapshotstore/local"
	"github.com/vbonduro/mapnote/internal/store"
	"github.com/vbonduro/mapnote/internal/weather"
	"github.com/vbonduro/mapnote/internal/web"
)

const rectangleData = `{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[20,10],[20,11],[21,11],[21,10]]]},"properties":{"shape":"rectangle"}}`

type stubElevation struct{ meters float64 }

func (s stubElevation) Elevation(context.Context, geometry.LatLng) (float64, error) {
	return s.meters, nil
}

type stubRouter struct{ err error }

func (s stubRouter) Route(_ context.Context, from, to geometry.LatLng) (*routing.Route, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &routing.Route{DistanceMeters: 1500, DurationSeconds: 120, Path: []geometry.LatLng{from, to}}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Search(_ context.Context, query string, _ int) ([]geocode.Place, error) {
	if query == "atlantis" {
		return nil, geocode.ErrNoResults
	}
	return []geocode.Place{{Lat: 48.85, Lng: 2.35, DisplayName: "Paris", Class: "place", Type: "city"}}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer sets up a real web.Server backed by in-memory SQLite, a
// temporary snapshot archive and stub providers.
func newTestServer(t *testing.T, providers web.Providers) *httptest.Server {
	t.Helper()
	database, err := db.OpenForTesting()
	if err != nil {
		t.Fatalf("OpenForTesting: %v", err)
	}

	archive, err := local.NewLocalSnapshotStore(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("NewLocalSnapshotStore: %v", err)
	}

	svc := service.NewMapService(
		store.NewViewportStore(database),
		store.NewMarkerStore(database),
		store.NewShapeStore(database),
		store.NewSnapshotStore(database, quietLogger()),
		archive,
		providers.Elevation,
		quietLogger(),
	)
	srv := httptest.NewServer(web.NewServer(svc, providers, heatmap.DefaultSettings(), weather.DefaultSettings(), quietLogger()))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return srv
}

func defaultProviders() web.Providers {
	return web.Providers{
		Router:    stubRouter{},
		Geocoder:  stubGeocoder{},
		Elevation: stubElevation{meters: 35},
	}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestIntegration_Health(t *testing.T) {
	srv := newTestServer(t, web.Providers{})

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "")
	expectStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("missing security header, got %q", got)
	}
}

func TestIntegration_StateRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodPut, srv.URL+"/api/viewport", `{"centerLat":51.5,"centerLng":-0.12,"zoom":11}`)
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, http.MethodPost, srv.URL+"/api/markers", `{"lat":51.5,"lng":-0.12,"title":"Office","color":"red"}`)
	expectStatus(t, resp, http.StatusCreated)
	var marker struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	decode(t, resp, &marker)
	if marker.ID == 0 || marker.Title != "Office" {
		t.Fatalf("unexpected marker: %+v", marker)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/shapes", `{"data":`+rectangleData+`,"title":"Park"}`)
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, http.MethodGet, srv.URL+"/api/state", "")
	expectStatus(t, resp, http.StatusOK)
	var state struct {
		Viewport *struct {
			CenterLat float64 `json:"centerLat"`
			Zoom      int     `json:"zoom"`
		} `json:"viewport"`
		Markers  []json.RawMessage `json:"markers"`
		Shapes   []json.RawMessage `json:"shapes"`
		Warnings []string          `json:"warnings"`
	}
	decode(t, resp, &state)
	if state.Viewport == nil || state.Viewport.Zoom != 11 {
		t.Errorf("viewport not restored: %+v", state.Viewport)
	}
	if len(state.Markers) != 1 || len(state.Shapes) != 1 {
		t.Errorf("expected 1 marker and 1 shape, got %d and %d", len(state.Markers), len(state.Shapes))
	}
	if len(state.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", state.Warnings)
	}
}

func TestIntegration_ViewportSkippedWhenIncomplete(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodPut, srv.URL+"/api/viewport", `{"centerLat":51.5,"zoom":11}`)
	expectStatus(t, resp, http.StatusAccepted)

	resp = do(t, http.MethodGet, srv.URL+"/api/state", "")
	var state struct {
		Viewport json.RawMessage `json:"viewport"`
	}
	decode(t, resp, &state)
	if string(state.Viewport) != "null" {
		t.Errorf("expected no viewport, got %s", state.Viewport)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	tests := []struct {
		name, method, path, body string
	}{
		{"viewport out of range", http.MethodPut, "/api/viewport", `{"centerLat":120,"centerLng":0,"zoom":3}`},
		{"viewport malformed", http.MethodPut, "/api/viewport", `{"centerLat":`},
		{"marker missing lng", http.MethodPost, "/api/markers", `{"lat":1}`},
		{"marker out of range", http.MethodPost, "/api/markers", `{"lat":95,"lng":5}`},
		{"shape not a feature", http.MethodPost, "/api/shapes", `{"data":[1,2]}`},
		{"bad marker id", http.MethodDelete, "/api/markers/abc", ""},
		{"heatmap bad intensity", http.MethodGet, "/api/heatmap?intensity=lots", ""},
		{"heatmap zero intensity", http.MethodGet, "/api/heatmap?intensity=0", ""},
		{"distance missing to", http.MethodGet, "/api/distance?from=1,2", ""},
		{"elevation bad lat", http.MethodGet, "/api/elevation?lat=x&lng=1", ""},
		{"geocode empty", http.MethodGet, "/api/geocode?q=", ""},
		{"import invalid", http.MethodPost, "/api/import", `{"markers":[{"lat":"north"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			expectStatus(t, resp, http.StatusBadRequest)

			var body map[string]string
			decode(t, resp, &body)
			if body["error"] == "" {
				t.Errorf("expected JSON error body")
			}
		})
	}
}

func TestIntegration_DeleteMarker(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodPost, srv.URL+"/api/markers", `{"lat":1,"lng":2}`)
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, http.MethodDelete, srv.URL+"/api/markers/1", "")
	expectStatus(t, resp, http.StatusNoContent)

	// Deleting again is a no-op.
	resp = do(t, http.MethodDelete, srv.URL+"/api/markers/1", "")
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, http.MethodGet, srv.URL+"/api/markers", "")
	expectStatus(t, resp, http.StatusOK)
	var markers []json.RawMessage
	decode(t, resp, &markers)
	if len(markers) != 0 {
		t.Errorf("expected no markers, got %d", len(markers))
	}
}

func TestIntegration_Heatmap(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	do(t, http.MethodPost, srv.URL+"/api/markers", `{"lat":10,"lng":20}`)
	do(t, http.MethodPost, srv.URL+"/api/shapes", `{"data":`+rectangleData+`}`)

	resp := do(t, http.MethodGet, srv.URL+"/api/heatmap?intensity=2&radius=40", "")
	expectStatus(t, resp, http.StatusOK)

	var body struct {
		Settings heatmap.Settings `json:"settings"`
		Samples  [][3]float64     `json:"samples"`
	}
	decode(t, resp, &body)
	if body.Settings.Radius != 40 || body.Settings.Blur != 15 {
		t.Errorf("settings not merged with defaults: %+v", body.Settings)
	}
	if len(body.Samples) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(body.Samples))
	}
	if body.Samples[0] != [3]float64{10, 20, 2} {
		t.Errorf("unexpected marker sample %v", body.Samples[0])
	}
	if w := body.Samples[5][2]; w != 3 {
		t.Errorf("expected centroid weight 3, got %v", w)
	}
}

func TestIntegration_Statistics(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	do(t, http.MethodPut, srv.URL+"/api/viewport", `{"centerLat":1,"centerLng":1,"zoom":4}`)
	do(t, http.MethodPost, srv.URL+"/api/markers", `{"lat":1,"lng":1,"description":"tall tree"}`)

	resp := do(t, http.MethodGet, srv.URL+"/api/stats", "")
	expectStatus(t, resp, http.StatusOK)

	var stats service.Statistics
	decode(t, resp, &stats)
	if stats.TotalMarkers != 1 || stats.AreaType != service.AreaTypeForest || stats.ElevationMeters != 35 {
		t.Errorf("unexpected statistics: %+v", stats)
	}
}

func TestIntegration_ExportImport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	source := newTestServer(t, defaultProviders())
	do(t, http.MethodPost, source.URL+"/api/markers", `{"lat":3,"lng":4,"title":"Hut"}`)
	do(t, http.MethodPost, source.URL+"/api/shapes", `{"data":`+rectangleData+`}`)

	resp := do(t, http.MethodGet, source.URL+"/api/export", "")
	expectStatus(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
	exported, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	target := newTestServer(t, defaultProviders())

	// Multipart upload, the way a browser file picker sends it.
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "map-data.json")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(exported); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err = http.Post(target.URL+"/api/import", mw.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("POST /api/import: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	expectStatus(t, resp, http.StatusOK)

	var result struct {
		Markers []struct {
			Title string `json:"title"`
		} `json:"markers"`
		Shapes []json.RawMessage `json:"shapes"`
	}
	decode(t, resp, &result)
	if len(result.Markers) != 1 || result.Markers[0].Title != "Hut" || len(result.Shapes) != 1 {
		t.Errorf("unexpected import result: %+v", result)
	}
}

func TestIntegration_SnapshotArchive(t *testing.T) {
	srv := newTestServer(t, defaultProviders())
	do(t, http.MethodPost, srv.URL+"/api/markers", `{"lat":3,"lng":4}`)

	resp := do(t, http.MethodPost, srv.URL+"/api/snapshots", "")
	expectStatus(t, resp, http.StatusCreated)
	var created struct {
		Key string `json:"key"`
	}
	decode(t, resp, &created)
	if created.Key == "" {
		t.Fatal("expected snapshot key")
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/snapshots/"+created.Key, "")
	expectStatus(t, resp, http.StatusOK)
	var snap struct {
		Markers []json.RawMessage `json:"markers"`
	}
	decode(t, resp, &snap)
	if len(snap.Markers) != 1 {
		t.Errorf("expected 1 archived marker, got %d", len(snap.Markers))
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/snapshots/"+created.Key+"/restore", "")
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, http.MethodDelete, srv.URL+"/api/snapshots/"+created.Key, "")
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, http.MethodGet, srv.URL+"/api/snapshots/"+created.Key, "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestIntegration_Distance(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodGet, srv.URL+"/api/distance?from=0,0&to=1,0", "")
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		StraightLineMeters float64        `json:"straightLineMeters"`
		Route              *routing.Route `json:"route"`
	}
	decode(t, resp, &body)
	if body.StraightLineMeters < 111000 || body.StraightLineMeters > 111400 {
		t.Errorf("unexpected straight line distance %v", body.StraightLineMeters)
	}
	if body.Route == nil || body.Route.DistanceMeters != 1500 {
		t.Errorf("expected route, got %+v", body.Route)
	}
}

func TestIntegration_DistanceRouteFailureDegrades(t *testing.T) {
	providers := defaultProviders()
	providers.Router = stubRouter{err: errors.New("upstream down")}
	srv := newTestServer(t, providers)

	resp := do(t, http.MethodGet, srv.URL+"/api/distance?from=0,0&to=0,1", "")
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		StraightLineMeters float64         `json:"straightLineMeters"`
		Route              json.RawMessage `json:"route"`
		RouteError         string          `json:"routeError"`
	}
	decode(t, resp, &body)
	if body.StraightLineMeters == 0 || body.Route != nil || body.RouteError == "" {
		t.Errorf("expected straight line only with route error, got %+v", body)
	}
}

func TestIntegration_Geocode(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodGet, srv.URL+"/api/geocode?q=paris&limit=2", "")
	expectStatus(t, resp, http.StatusOK)
	var places []geocode.Place
	decode(t, resp, &places)
	if len(places) != 1 || places[0].DisplayName != "Paris" {
		t.Errorf("unexpected places: %+v", places)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/geocode?q=atlantis", "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestIntegration_Elevation(t *testing.T) {
	srv := newTestServer(t, defaultProviders())

	resp := do(t, http.MethodGet, srv.URL+"/api/elevation?lat=27.98&lng=86.92", "")
	expectStatus(t, resp, http.StatusOK)
	var body map[string]float64
	decode(t, resp, &body)
	if body["elevationMeters"] != 35 {
		t.Errorf("unexpected elevation: %v", body)
	}
}

func TestIntegration_ProvidersNotConfigured(t *testing.T) {
	srv := newTestServer(t, web.Providers{})

	for _, path := range []string{
		"/api/geocode?q=paris",
		"/api/elevation?lat=1&lng=1",
		"/api/weather/temperature/1/0/0.png",
	} {
		resp := do(t, http.MethodGet, srv.URL+path, "")
		expectStatus(t, resp, http.StatusServiceUnavailable)
	}

	// Distance still works without a router.
	resp := do(t, http.MethodGet, srv.URL+"/api/distance?from=0,0&to=0,1", "")
	expectStatus(t, resp, http.StatusOK)
}

func TestIntegration_WeatherTiles(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("tile:" + r.URL.Path))
	}))
	t.Cleanup(upstream.Close)

	providers := defaultProviders()
	providers.Weather = weather.NewProxy("key", upstream.URL, time.Minute, quietLogger())
	srv := newTestServer(t, providers)

	resp := do(t, http.MethodGet, srv.URL+"/api/weather/precipitation/2/1/3.png", "")
	expectStatus(t, resp, http.StatusOK)
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "tile:/precipitation/2/1/3.png" {
		t.Errorf("unexpected tile body %q", data)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=1800" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/weather/fog/2/1/3.png", "")
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, http.MethodGet, srv.URL+"/api/weather/wind/2/9/3", "")
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, http.MethodGet, srv.URL+"/api/weather", "")
	expectStatus(t, resp, http.StatusOK)
	var settings struct {
		Kind    string   `json:"kind"`
		Kinds   []string `json:"kinds"`
		Enabled bool     `json:"enabled"`
	}
	decode(t, resp, &settings)
	if settings.Kind != "temperature" || len(settings.Kinds) != 6 || !settings.Enabled {
		t.Errorf("unexpected weather settings: %+v", settings)
	}
}
