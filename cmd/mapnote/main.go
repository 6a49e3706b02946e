package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vbonduro/mapnote/internal/config"
	"github.com/vbonduro/mapnote/internal/db"
	"github.com/vbonduro/mapnote/internal/elevation"
	googleelevation "github.com/vbonduro/mapnote/internal/elevation/google"
	"github.com/vbonduro/mapnote/internal/elevation/openelevation"
	"github.com/vbonduro/mapnote/internal/geocode/nominatim"
	"github.com/vbonduro/mapnote/internal/logging"
	"github.com/vbonduro/mapnote/internal/routing/locationiq"
	"github.com/vbonduro/mapnote/internal/service"
	"github.com/vbonduro/mapnote/internal/snapshotstore/local"
	"github.com/vbonduro/mapnote/internal/store"
	"github.com/vbonduro/mapnote/internal/weather"
	"github.com/vbonduro/mapnote/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	archive, err := local.NewLocalSnapshotStore(cfg.SnapshotPath, logger)
	if err != nil {
		logger.Error("failed to initialize snapshot store", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers := web.Providers{
		Elevation: newElevation(cfg, logger),
		Geocoder:  nominatim.NewClient(cfg.NominatimServer, logger),
	}
	if cfg.LocationIQKey != "" {
		providers.Router = locationiq.NewClient(cfg.LocationIQKey, cfg.LocationIQURL)
	} else {
		logger.Info("LOCATIONIQ_KEY not set, driving routes disabled")
	}
	if cfg.WeatherAPIKey != "" {
		proxy := weather.NewProxy(cfg.WeatherAPIKey, cfg.WeatherTileURL, cfg.Weather.UpdateInterval, logger)
		go proxy.Run(ctx)
		providers.Weather = proxy
	} else {
		logger.Info("OPENWEATHER_API_KEY not set, weather overlay disabled")
	}

	mapService := service.NewMapService(
		store.NewViewportStore(database),
		store.NewMarkerStore(database),
		store.NewShapeStore(database),
		store.NewSnapshotStore(database, logger),
		archive,
		providers.Elevation,
		logger,
	)
	server := web.NewServer(mapService, providers, cfg.Heatmap, cfg.Weather, logger)

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newElevation(cfg *config.Config, logger *slog.Logger) elevation.Lookup {
	switch cfg.ElevationBackend {
	case config.ElevationGoogle:
		client, err := googleelevation.NewClient(cfg.GoogleMapsAPIKey, "")
		if err != nil {
			logger.Error("failed to create Google elevation client, elevation disabled", "error", err)
			return nil
		}
		logger.Info("using Google elevation backend")
		return client
	case config.ElevationNone:
		logger.Info("elevation lookups disabled")
		return nil
	default:
		logger.Info("using open-elevation backend", "host", cfg.OpenElevationHost)
		return openelevation.NewClient(cfg.OpenElevationHost)
	}
}
