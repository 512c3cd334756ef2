package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/crayonmonsters/server/api/rest"
	"github.com/kasuganosora/crayonmonsters/server/api/sse"
	apiws "github.com/kasuganosora/crayonmonsters/server/api/ws"
	"github.com/kasuganosora/crayonmonsters/server/cache"
	"github.com/kasuganosora/crayonmonsters/server/config"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"github.com/kasuganosora/crayonmonsters/server/game/player"
	"github.com/kasuganosora/crayonmonsters/server/game/roster"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"github.com/kasuganosora/crayonmonsters/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	limiterIdle     = 10 * time.Minute
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("security.jwt_secret is required")
	}

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	defer closeCache(c, logger)
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Roster rules ----
	var rules *roster.Rules
	if cfg.Game.RosterRulesPath != "" {
		rules, err = roster.LoadRules(cfg.Game.RosterRulesPath)
		if err != nil {
			logger.Fatal("roster rules", zap.String("path", cfg.Game.RosterRulesPath), zap.Error(err))
		}
		logger.Info("Roster rules loaded", zap.String("path", cfg.Game.RosterRulesPath))
	}

	// ---- Game Systems ----
	matches := match.NewManager(c, match.NewPubSubNotifier(pubsub), rules, match.Config{
		CreaturesPerPlayer: cfg.Game.CreaturesPerPlayer,
		TeamTTL:            cfg.Game.TeamSubmitTTL,
		IdleTimeout:        cfg.Game.MatchIdleTimeout,
		Seed:               cfg.Game.RNGSeed,
	}, logger)
	sm := player.NewSessionManager(logger)

	httpLimiter := mw.NewKeyedLimiter(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)
	wsLimiter := mw.NewKeyedLimiter(rate.Limit(cfg.Security.WSMessageRPS), cfg.Security.WSMessageBurst)

	// ---- Periodic Scheduler Tasks ----
	sched := scheduler.New(logger)
	reapEvery := cfg.Game.ReapInterval
	if reapEvery <= 0 {
		reapEvery = time.Minute
	}
	sched.AddTicker("match_reaper", reapEvery, func(ctx context.Context) {
		matches.ReapIdle(ctx)
	})
	sched.AddTicker("rate_limit_sweep", time.Minute, func(context.Context) {
		n := httpLimiter.Sweep(limiterIdle) + wsLimiter.Sweep(limiterIdle)
		if n > 0 {
			logger.Debug("rate limiters swept", zap.Int("removed", n))
		}
	})

	// ---- WS Router ----
	wsRouter := apiws.NewRouter(logger)
	wsH := apiws.NewHandler(c, pubsub, cfg.Security, sm, matches, wsRouter, wsLimiter, logger)
	apiws.NewBattleHandlers(matches, wsH, logger).RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(httpLimiter))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	allowList, err := mw.ParseAllowList(cfg.Server.AdminAllowIPs)
	if err != nil {
		logger.Fatal("server.admin_allow_ips", zap.Error(err))
	}
	adminOnly := []gin.HandlerFunc{mw.IPWhitelist(allowList), apirest.AdminAuth(cfg.Server.AdminKey)}

	// ---- REST API routes ----
	tokenH := apirest.NewTokenHandler(c, cfg.Security, logger)
	matchH := apirest.NewMatchHandler(matches, logger)
	adminH := apirest.NewAdminHandler(sm, matches, sched, logger)
	sseH := sse.NewHandler(pubsub, matches, logger)

	api := r.Group("/api")
	{
		tokensG := api.Group("/tokens", adminOnly...)
		tokensG.POST("", tokenH.Issue)
		tokensG.DELETE("", tokenH.Revoke)

		lobbyG := api.Group("/matches", adminOnly...)
		lobbyG.POST("", matchH.Create)
		lobbyG.GET("", matchH.List)
		lobbyG.GET("/:id", matchH.Get)
		lobbyG.DELETE("/:id", matchH.Cancel)
		lobbyG.GET("/:id/events", sseH.ServeMatch)

		api.GET("/matches/:id/state", mw.Auth(cfg.Security, c), matchH.State)

		adminG := api.Group("/admin", adminOnly...)
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.POST("/kick/:id", adminH.KickPlayer)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/scheduler/:name/run", adminH.RunSchedulerTask)
	}

	// ---- WebSocket ----
	r.GET("/ws", wsH.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sm.CloseAll(shutdownCtx)
	sched.Stop()
}

func closeCache(c cache.Cache, logger *zap.Logger) {
	switch cl := c.(type) {
	case interface{ Close() error }:
		if err := cl.Close(); err != nil {
			logger.Warn("cache close", zap.Error(err))
		}
	case interface{ Close() }:
		cl.Close()
	}
}
