package service

import (
	"context"
	"strings"
	"time"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/logging"
)

const (
	// CarbonTonsPerHectare is the flat sequestration estimate applied to
	// annotated area.
	CarbonTonsPerHectare = 150.0

	squareMetersPerHectare = 10000.0
	defaultMarkerCategory  = "general"
)

const (
	AreaTypeForest  = "Forest Area"
	AreaTypeUrban   = "Urban Area"
	AreaTypeManaged = "Managed Area"
	AreaTypeMixed   = "Mixed Use Area"
)

type Statistics struct {
	TotalMarkers        int       `json:"totalMarkers"`
	TotalShapes         int       `json:"totalShapes"`
	TotalAreaHectares   float64   `json:"totalAreaHectares"`
	ForestCoverHectares float64   `json:"forestCoverHectares"`
	CarbonStorageTons   float64   `json:"carbonStorageTons"`
	BiodiversityIndex   float64   `json:"biodiversityIndex"`
	AreaType            string    `json:"areaType"`
	ElevationMeters     float64   `json:"elevationMeters"`
	HeatmapPoints       int       `json:"heatmapPoints"`
	LastUpdated         time.Time `json:"lastUpdated"`
}

// Statistics summarises the stored annotations. Elevation is looked up at
// the saved viewport center; lookup failures are logged and reported as 0.
func (s *MapService) Statistics(ctx context.Context) (*Statistics, error) {
	markers, shapes, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := computeStatistics(markers, shapes)
	stats.LastUpdated = s.now().UTC()
	stats.ElevationMeters = s.viewportElevation(ctx)
	return stats, nil
}

func (s *MapService) viewportElevation(ctx context.Context) float64 {
	if s.elevation == nil {
		return 0
	}

	viewport, err := s.viewportStore.Get(ctx)
	if err != nil {
		logging.LogError(s.logger, "load viewport for elevation failed", err)
		return 0
	}
	if viewport == nil {
		return 0
	}

	meters, err := s.elevation.Elevation(ctx, geometry.LatLng{Lat: viewport.CenterLat, Lng: viewport.CenterLng})
	if err != nil {
		logging.LogError(s.logger, "elevation lookup failed", err)
		return 0
	}
	return meters
}

func computeStatistics(markers []*domain.Marker, shapes []*domain.Shape) *Statistics {
	var areaSquareMeters float64
	shapeKinds := make(map[geometry.Kind]struct{})
	for _, sh := range shapes {
		f, err := geometry.Parse(sh.Data)
		if err != nil {
			shapeKinds[geometry.KindUnknown] = struct{}{}
			continue
		}
		shapeKinds[f.Kind()] = struct{}{}
		areaSquareMeters += f.Area()
	}

	hectares := areaSquareMeters / squareMetersPerHectare

	return &Statistics{
		TotalMarkers:        len(markers),
		TotalShapes:         len(shapes),
		TotalAreaHectares:   hectares,
		ForestCoverHectares: hectares,
		CarbonStorageTons:   hectares * CarbonTonsPerHectare,
		BiodiversityIndex:   biodiversityIndex(markers, len(shapeKinds), len(shapes)),
		AreaType:            classifyArea(markers, len(shapes)),
		HeatmapPoints:       len(heatmap.Synthesize(markers, shapes, 1.0)),
	}
}

// biodiversityIndex scores category variety per feature on a 0..10 scale.
// Markers are categorised by color.
func biodiversityIndex(markers []*domain.Marker, shapeKinds, shapeCount int) float64 {
	total := len(markers) + shapeCount
	if total == 0 {
		return 0
	}

	categories := make(map[string]struct{})
	for _, m := range markers {
		c := strings.ToLower(strings.TrimSpace(m.Color))
		if c == "" {
			c = defaultMarkerCategory
		}
		categories[c] = struct{}{}
	}

	return float64(len(categories)+shapeKinds) / float64(total) * 10
}

func classifyArea(markers []*domain.Marker, shapeCount int) string {
	var forest, urban bool
	for _, m := range markers {
		title := strings.ToLower(m.Title)
		desc := strings.ToLower(m.Description)
		if strings.Contains(title, "forest") || strings.Contains(desc, "tree") {
			forest = true
		}
		if strings.Contains(title, "building") || strings.Contains(desc, "urban") {
			urban = true
		}
	}

	switch {
	case forest:
		return AreaTypeForest
	case urban:
		return AreaTypeUrban
	case shapeCount > 0:
		return AreaTypeManaged
	default:
		return AreaTypeMixed
	}
}
