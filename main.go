package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/clients/instagram"
	"crosspost/infrastructure/clients/tiktok"
	"crosspost/infrastructure/clients/x"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/realtime"
	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"
	"crosspost/server"
	"crosspost/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	configuration.LoadEnvFromFile("config.env", ".env")
	app := configuration.C.App

	tokenRepository := initTokenRepository()
	sessionRepository := initSessionRepository(ctx)

	xConf := configuration.C.OAuth.X
	oauthClient := x.NewOAuthClient(x.OAuthConfig{
		ClientID:     xConf.ClientID,
		ClientSecret: xConf.ClientSecret,
		RedirectURI:  xConf.RedirectURI,
		Scopes:       xConf.Scopes,
	}, nil)
	oauth1aClient := x.NewOAuth1aClient(x.OAuth1aConfig{
		ConsumerKey:    xConf.APIKey,
		ConsumerSecret: xConf.APISecret,
		CallbackURL:    xConf.MediaCallbackURI,
	}, nil)
	uploadHTTPClient := &http.Client{
		Timeout: time.Duration(configuration.C.Upload.HTTPTimeoutSecs) * time.Second,
	}
	uploader := x.NewMediaUploader(uploadHTTPClient, "",
		time.Duration(configuration.C.Upload.ProcessingTimeoutSecs)*time.Second)
	postClient := x.NewPostClient(nil, "")

	tiktokConf := configuration.C.OAuth.TikTok
	tiktokClient := tiktok.NewClient(tiktok.Config{
		ClientKey:    tiktokConf.ClientID,
		ClientSecret: tiktokConf.ClientSecret,
		RedirectURI:  tiktokConf.RedirectURI,
	}, nil)
	instagramClient := instagram.NewClient(nil, "")

	registry := usecase.NewPlatformRegistry()
	xPublisher := usecase.NewXPublisher(tokenRepository, oauthClient, uploader, postClient)
	registry.Register(xPublisher)
	registry.Register(usecase.NewTikTokPublisher(tokenRepository, tiktokClient))
	registry.Register(usecase.NewInstagramPublisher(tokenRepository, instagramClient))

	authUsecase := usecase.NewAuthUsecase(oauthClient, oauth1aClient, tiktokClient, tokenRepository, sessionRepository, app.SecretKey)

	publishHub := realtime.NewPublishHub()
	postUsecase := usecase.NewPostUsecase(registry, xPublisher).
		WithBroadcaster(func(userID string, result model.PlatformResult) {
			publishHub.BroadcastResult(userID, result)
		})

	authHandler := httpHandler.NewAuthHandler(authUsecase)
	postHandler := httpHandler.NewPostHandler(postUsecase)

	router := server.InitiateRouter(authHandler, postHandler, configuration.C.Frontend.URL, app.SecretKey)

	// SSE endpoint for real-time publish status
	api := router.Group("api")
	api.Use(middleware.Session(app.SecretKey))
	api.GET("/posts/stream", func(c *gin.Context) { publishHub.Serve(c) })

	port := app.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// initTokenRepository prefers PostgreSQL and falls back to the in-memory
// store so the service stays usable in local development.
func initTokenRepository() repository.IToken {
	psqlDb, err := persistence.NewPsqlDb(configuration.C.Database.Psql)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PostgreSQL not available - using in-memory token store")
		return persistence.NewTokenRepository()
	}
	if err := persistence.EnsureTokenSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring token schema")
	}
	logger.GetLogger().Info("PostgreSQL connected.")
	return persistence.NewPsqlTokenRepository(psqlDb)
}

// initSessionRepository prefers Redis for the ephemeral OAuth state, with
// the same in-memory fallback.
func initSessionRepository(ctx context.Context) repository.IOAuthSession {
	redisClient, err := cache.NewRedisClient(ctx, configuration.C.RedisClient)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - using in-memory session store")
		return persistence.NewOAuthSessionRepository()
	}
	logger.GetLogger().Info("Redis client initialized successfully.")
	return cache.NewRedisSessionRepository(redisClient)
}
