package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/studygen/studygen/config"
	"github.com/studygen/studygen/internal/auth"
	"github.com/studygen/studygen/internal/generation"
	"github.com/studygen/studygen/internal/quota"
	"github.com/studygen/studygen/internal/search"
	"github.com/studygen/studygen/internal/store"
	"github.com/studygen/studygen/provider"
)

// Run wires dependencies and serves the API until the listener fails.
// A downed Postgres or a missing provider key does not prevent startup;
// those outages surface per-request as demo-mode responses.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	llmLogger := log.New(log.Writer(), "[LLM] ", log.LstdFlags)
	llm, err := provider.New(cfg.Provider.OpenRouter)
	if errors.Is(err, provider.ErrNotConfigured) {
		llmLogger.Printf("provider not configured, serving fallback content only")
		llm = nil
	} else if err != nil {
		return err
	}

	var limiter generation.QuotaLimiter
	if cfg.Quota.Enabled {
		if rAddr := cfg.Storage.Redis.Addr(); rAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     rAddr,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Printf("redis unreachable (%s), quota limiting disabled: %v", rAddr, err)
			} else {
				limiter = quota.New(rdb, log.New(log.Writer(), "[QUOTA] ", log.LstdFlags))
			}
		}
	}

	pipe := &generation.Pipeline{
		Store:          st,
		LLM:            llm,
		Model:          cfg.Provider.OpenRouter.Model,
		Temperature:    cfg.Provider.OpenRouter.Temperature,
		MaxTokens:      cfg.Provider.OpenRouter.MaxTokens,
		Quota:          limiter,
		FreeDailyLimit: cfg.Quota.FreeDailyLimit,
		ProbeTimeout:   2 * time.Second,
		DBTimeout:      5 * time.Second,
		GenTimeout:     cfg.Provider.OpenRouter.Timeout,
		Logger:         log.New(log.Writer(), "[GEN] ", log.LstdFlags),
	}

	idx, err := search.NewIndex()
	if err != nil {
		return err
	}

	verifier := &auth.JWTVerifier{Secret: []byte(secret)}
	strict := auth.EchoMiddleware(verifier, auth.Options{})
	lenient := auth.EchoMiddleware(verifier, auth.Options{DemoOnOutage: true})

	api := e.Group("/api")

	ah := &AuthHandler{Store: st, Secret: []byte(secret), Env: cfg.General.Env}
	ah.Register(api.Group("/auth"))

	nh := &NotesHandler{Store: st, Pipeline: pipe, Search: idx,
		Logger: log.New(log.Writer(), "[NOTES] ", log.LstdFlags)}
	nh.Register(api.Group("/notes", strict))

	ph := &PracticeHandler{Store: st, Pipeline: pipe,
		Logger: log.New(log.Writer(), "[PRACTICE] ", log.LstdFlags)}
	ph.Register(api.Group("/practice", strict))

	sh := &SummariesHandler{Store: st, Pipeline: pipe,
		Logger: log.New(log.Writer(), "[SUMMARIES] ", log.LstdFlags)}
	sh.Register(api, strict)

	uh := &UsersHandler{Store: st, Pipeline: pipe,
		Logger: log.New(log.Writer(), "[USERS] ", log.LstdFlags)}
	uh.Register(api, strict, lenient)

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10010"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
