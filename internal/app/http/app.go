package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/civiclab/agora/internal/handlers"
	"github.com/civiclab/agora/internal/routes"
)

type App struct {
	engine *gin.Engine
	server *http.Server
	log    *slog.Logger
	port   int
}

func NewApp(
	log *slog.Logger,
	port int,
	handler *handlers.VotingHandler,
	identityMiddleware gin.HandlerFunc,
) *App {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:4200"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: true,
	}))

	api := r.Group("/api")
	{
		publicGroup := api.Group("/voting")
		routes.RegisterPublicRoutes(publicGroup, handler)

		privateGroup := api.Group("/voting", identityMiddleware)
		routes.RegisterPrivateRoutes(privateGroup, handler)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	return &App{
		engine: r,
		server: httpServer,
		log:    log,
		port:   port,
	}
}

func (a *App) Run() error {
	a.log.Info("HTTP server is running", slog.String("addr", a.server.Addr))
	return a.server.ListenAndServe()
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("HTTP server is stopping...")
	return a.server.Shutdown(ctx)
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}
