package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/mapnote/internal/domain"
	"github.com/vbonduro/mapnote/internal/elevation"
	"github.com/vbonduro/mapnote/internal/geometry"
	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/logging"
	"github.com/vbonduro/mapnote/internal/snapshotstore"
)

// ErrInvalidInput marks caller mistakes: bad coordinates, unparseable shapes,
// malformed imports. The web layer maps it to 400.
var ErrInvalidInput = errors.New("invalid input")

// viewportRepository is the subset of store.ViewportStore that MapService requires.
type viewportRepository interface {
	Get(ctx context.Context) (*domain.Viewport, error)
	Save(ctx context.Context, lat, lng float64, zoom int) error
}

// markerRepository is the subset of store.MarkerStore that MapService requires.
type markerRepository interface {
	Create(ctx context.Context, m *domain.Marker) (*domain.Marker, error)
	List(ctx context.Context) ([]*domain.Marker, error)
	Delete(ctx context.Context, id int64) error
}

// shapeRepository is the subset of store.ShapeStore that MapService requires.
type shapeRepository interface {
	Create(ctx context.Context, sh *domain.Shape) (*domain.Shape, error)
	List(ctx context.Context) ([]*domain.Shape, error)
	Delete(ctx context.Context, id int64) error
}

// importRepository is the subset of store.SnapshotStore that MapService requires.
type importRepository interface {
	Import(ctx context.Context, markers []*domain.Marker, shapes []*domain.Shape) ([]*domain.Marker, []*domain.Shape, error)
}

type MapService struct {
	viewportStore viewportRepository
	markerStore   markerRepository
	shapeStore    shapeRepository
	importStore   importRepository
	archive       snapshotstore.SnapshotStore
	elevation     elevation.Lookup
	logger        *slog.Logger
	now           func() time.Time
}

// NewMapService wires the service. elev may be nil, in which case statistics
// report zero elevation.
func NewMapService(
	viewportStore viewportRepository,
	markerStore markerRepository,
	shapeStore shapeRepository,
	importStore importRepository,
	archive snapshotstore.SnapshotStore,
	elev elevation.Lookup,
	logger *slog.Logger,
) *MapService {
	return &MapService{
		viewportStore: viewportStore,
		markerStore:   markerStore,
		shapeStore:    shapeStore,
		importStore:   importStore,
		archive:       archive,
		elevation:     elev,
		logger:        logger,
		now:           time.Now,
	}
}

// MapState is everything the client needs to restore a session.
type MapState struct {
	Viewport *domain.Viewport `json:"viewport"`
	Markers  []*domain.Marker `json:"markers"`
	Shapes   []*domain.Shape  `json:"shapes"`
}

func emptyState() *MapState {
	return &MapState{Markers: []*domain.Marker{}, Shapes: []*domain.Shape{}}
}

// LoadError reports one part of the map state that could not be read.
type LoadError struct {
	Part string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Part, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadAll reads the viewport, markers and shapes. It never returns a nil
// state: each part that fails to load is left at its default (no viewport,
// empty lists) while the parts that loaded are kept. Failures come back
// joined, one *LoadError per part.
func (s *MapService) LoadAll(ctx context.Context) (*MapState, error) {
	state := emptyState()
	var errs []error

	viewport, err := s.viewportStore.Get(ctx)
	if err != nil {
		logging.LogError(s.logger, "load viewport failed", err)
		errs = append(errs, &LoadError{Part: "viewport", Err: err})
	} else {
		state.Viewport = viewport
	}

	markers, err := s.markerStore.List(ctx)
	if err != nil {
		logging.LogError(s.logger, "load markers failed", err)
		errs = append(errs, &LoadError{Part: "markers", Err: err})
	} else {
		state.Markers = markers
	}

	shapes, err := s.shapeStore.List(ctx)
	if err != nil {
		logging.LogError(s.logger, "load shapes failed", err)
		errs = append(errs, &LoadError{Part: "shapes", Err: err})
	} else {
		state.Shapes = shapes
	}

	return state, errors.Join(errs...)
}

// FailedParts lists the parts named by the *LoadError values in err.
func FailedParts(err error) []string {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	var parts []string
	for _, e := range errs {
		var le *LoadError
		if errors.As(e, &le) {
			parts = append(parts, le.Part)
		}
	}
	return parts
}

func (s *MapService) listAll(ctx context.Context) ([]*domain.Marker, []*domain.Shape, error) {
	markers, err := s.markerStore.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list markers: %w", err)
	}
	shapes, err := s.shapeStore.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list shapes: %w", err)
	}
	return markers, shapes, nil
}

// SaveViewport stores the camera position. It reports false without writing
// when any value is missing, which happens while the map is still mounting.
func (s *MapService) SaveViewport(ctx context.Context, lat, lng *float64, zoom *int) (bool, error) {
	if lat == nil || lng == nil || zoom == nil {
		s.logger.Debug("viewport save skipped, incomplete camera frame")
		return false, nil
	}

	center := geometry.LatLng{Lat: *lat, Lng: *lng}.Normalized()
	if !center.Valid() {
		return false, fmt.Errorf("%w: viewport center %v,%v out of range", ErrInvalidInput, *lat, *lng)
	}
	if *zoom < 0 {
		return false, fmt.Errorf("%w: zoom must not be negative", ErrInvalidInput)
	}

	if err := s.viewportStore.Save(ctx, center.Lat, center.Lng, *zoom); err != nil {
		return false, fmt.Errorf("failed to save viewport: %w", err)
	}
	return true, nil
}

func (s *MapService) ListMarkers(ctx context.Context) ([]*domain.Marker, error) {
	return s.markerStore.List(ctx)
}

func (s *MapService) ListShapes(ctx context.Context) ([]*domain.Shape, error) {
	return s.shapeStore.List(ctx)
}

// AddMarker stores m and returns the stored record with its new ID.
func (s *MapService) AddMarker(ctx context.Context, m *domain.Marker) (*domain.Marker, error) {
	if err := validateMarker(m); err != nil {
		return nil, err
	}
	created, err := s.markerStore.Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create marker: %w", err)
	}
	s.logger.Info("marker added", "marker_id", created.ID)
	return created, nil
}

// AddShape stores sh and returns the stored record with its new ID.
func (s *MapService) AddShape(ctx context.Context, sh *domain.Shape) (*domain.Shape, error) {
	if err := validateShape(sh); err != nil {
		return nil, err
	}
	created, err := s.shapeStore.Create(ctx, sh)
	if err != nil {
		return nil, fmt.Errorf("failed to create shape: %w", err)
	}
	s.logger.Info("shape added", "shape_id", created.ID)
	return created, nil
}

// DeleteMarker removes a marker. Unknown IDs are not an error.
func (s *MapService) DeleteMarker(ctx context.Context, id int64) error {
	if err := s.markerStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete marker %d: %w", id, err)
	}
	return nil
}

// DeleteShape removes a shape. Unknown IDs are not an error.
func (s *MapService) DeleteShape(ctx context.Context, id int64) error {
	if err := s.shapeStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete shape %d: %w", id, err)
	}
	return nil
}

// Heatmap synthesizes density samples for every stored marker and shape.
func (s *MapService) Heatmap(ctx context.Context, settings heatmap.Settings) ([]heatmap.HeatSample, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	markers, shapes, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return heatmap.Synthesize(markers, shapes, settings.Intensity), nil
}

// validateMarker checks the position and wraps the longitude in place.
func validateMarker(m *domain.Marker) error {
	if m == nil {
		return fmt.Errorf("%w: marker is required", ErrInvalidInput)
	}
	pos := geometry.LatLng{Lat: m.Lat, Lng: m.Lng}.Normalized()
	if !pos.Valid() {
		return fmt.Errorf("%w: marker position %v,%v out of range", ErrInvalidInput, m.Lat, m.Lng)
	}
	m.Lng = pos.Lng
	return nil
}

func validateShape(sh *domain.Shape) error {
	if sh == nil {
		return fmt.Errorf("%w: shape is required", ErrInvalidInput)
	}
	if _, err := geometry.Parse(sh.Data); err != nil {
		return fmt.Errorf("%w: shape data: %v", ErrInvalidInput, err)
	}
	return nil
}
