package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/snapshotstore"
)

func seed(t *testing.T, svc *MapService) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddMarker(ctx, &domain.Marker{
		Lat: 10, Lng: 20, Title: "Well", Description: "fresh water", Color: "blue",
		CreatedAt: time.Date(2023, 7, 4, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.AddShape(ctx, &domain.Shape{
		Data: json.RawMessage(rectangleData), Title: "Field", Description: "barley",
		CreatedAt: time.Date(2023, 7, 5, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestMapServiceExport(t *testing.T) {
	env := newTestService(t)
	seed(t, env.svc)

	snap, err := env.svc.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Markers, 1)
	assert.Len(t, snap.Shapes, 1)
	require.NotNil(t, snap.Statistics)
	assert.Equal(t, 1, snap.Statistics.TotalMarkers)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), snap.ExportedAt)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "markers")
	assert.Contains(t, doc, "shapes")
	assert.Contains(t, doc, "statistics")
	assert.JSONEq(t, `"2024-05-01T09:30:00Z"`, string(doc["exportedAt"]))
}

func TestMapServiceExportImportRoundTrip(t *testing.T) {
	source := newTestService(t)
	seed(t, source.svc)

	snap, err := source.svc.Export(context.Background())
	require.NoError(t, err)
	payload, err := json.Marshal(snap)
	require.NoError(t, err)

	target := newTestService(t)
	// Occupy id 1 so imported records are renumbered.
	placeholder, err := target.svc.AddMarker(context.Background(), &domain.Marker{Lat: 1, Lng: 1})
	require.NoError(t, err)
	require.NoError(t, target.svc.DeleteMarker(context.Background(), placeholder.ID))

	result, err := target.svc.Import(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, result.Markers, 1)
	require.Len(t, result.Shapes, 1)

	orig, got := snap.Markers[0], result.Markers[0]
	assert.NotEqual(t, orig.ID, got.ID)
	assert.Equal(t, orig.Lat, got.Lat)
	assert.Equal(t, orig.Lng, got.Lng)
	assert.Equal(t, orig.Title, got.Title)
	assert.Equal(t, orig.Description, got.Description)
	assert.Equal(t, orig.Color, got.Color)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))

	origShape, gotShape := snap.Shapes[0], result.Shapes[0]
	assert.JSONEq(t, string(origShape.Data), string(gotShape.Data))
	assert.Equal(t, origShape.Title, gotShape.Title)
	assert.Equal(t, origShape.Description, gotShape.Description)
	assert.True(t, origShape.CreatedAt.Equal(gotShape.CreatedAt))

	state, err := target.svc.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, state.Markers, 1)
	assert.Len(t, state.Shapes, 1)
}

func TestMapServiceImportMissingCreatedAt(t *testing.T) {
	env := newTestService(t)

	result, err := env.svc.Import(context.Background(), []byte(`{"markers":[{"lat":5,"lng":6}]}`))
	require.NoError(t, err)
	require.Len(t, result.Markers, 1)
	assert.False(t, result.Markers[0].CreatedAt.IsZero())
	assert.Empty(t, result.Shapes)
}

func TestMapServiceImportRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `markers: []`},
		{"not an object", `[1,2,3]`},
		{"no collections", `{"exportedAt":"2024-01-01T00:00:00Z"}`},
		{"marker without coordinates", `{"markers":[{"title":"x"}]}`},
		{"marker out of range", `{"markers":[{"lat":10,"lng":20},{"lat":-95,"lng":0}]}`},
		{"shape without data", `{"markers":[{"lat":1,"lng":1}],"shapes":[{"title":"x"}]}`},
		{"shape data not an object", `{"shapes":[{"data":"polygon"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestService(t)

			_, err := env.svc.Import(context.Background(), []byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidInput)

			state, err := env.svc.LoadAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, state.Markers, "nothing applied")
			assert.Empty(t, state.Shapes, "nothing applied")
		})
	}
}

func TestMapServiceArchiveAndRestore(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	seed(t, env.svc)

	key, err := env.svc.ArchiveSnapshot(ctx)
	require.NoError(t, err)

	infos, err := env.svc.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, key, infos[0].Key)

	rc, err := env.svc.OpenSnapshot(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	var snap Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Len(t, snap.Markers, 1)

	result, err := env.svc.RestoreSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Len(t, result.Markers, 1)

	markers, err := env.svc.ListMarkers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 2, "restore appends to the current state")

	require.NoError(t, env.svc.DeleteSnapshot(ctx, key))
	_, err = env.svc.OpenSnapshot(ctx, key)
	assert.ErrorIs(t, err, snapshotstore.ErrNotFound)
}

func TestMapServiceArchiveDisabled(t *testing.T) {
	env := newTestService(t)
	env.svc.archive = nil

	_, err := env.svc.ArchiveSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = env.svc.ListSnapshots(context.Background())
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestMapServiceImportWrapsLongitude(t *testing.T) {
	env := newTestService(t)

	result, err := env.svc.Import(context.Background(), []byte(`{"markers":[{"lat":35,"lng":200}]}`))
	require.NoError(t, err)
	require.Len(t, result.Markers, 1)
	assert.Equal(t, -160.0, result.Markers[0].Lng)
}
