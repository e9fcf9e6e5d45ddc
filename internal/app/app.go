package app

import (
	"context"
	"log/slog"

	httpapp "github.com/civiclab/agora/internal/app/http"
	"github.com/civiclab/agora/internal/config"
	"github.com/civiclab/agora/internal/geocode"
	"github.com/civiclab/agora/internal/handlers"
	"github.com/civiclab/agora/internal/location"
	"github.com/civiclab/agora/internal/middleware"
	"github.com/civiclab/agora/internal/repo/postgres"
	"github.com/civiclab/agora/internal/services"
)

type App struct {
	HTTPServer *httpapp.App
	Voting     *services.Voting
	storage    *postgres.Storage
}

func NewApp(log *slog.Logger, cfg *config.Config) *App {
	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		panic(err)
	}

	geocoder := geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.Zoom, cfg.Geocode.Timeout)
	resolver := location.NewResolver(geocoder, cfg.Geocode.Zoom, cfg.Geocode.CacheTTL, log)

	votingService := services.NewVoting(log, storage, storage, storage, resolver)
	votingHandler := handlers.NewVotingHandler(votingService)

	httpApp := httpapp.NewApp(log, cfg.HTTP.Port, votingHandler, middleware.Identity())

	return &App{
		HTTPServer: httpApp,
		Voting:     votingService,
		storage:    storage,
	}
}

func (a *App) Stop(ctx context.Context) error {
	if err := a.HTTPServer.Stop(ctx); err != nil {
		return err
	}
	return a.storage.Close()
}
