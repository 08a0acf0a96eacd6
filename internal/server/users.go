package server

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/studygen/studygen/internal/auth"
	"github.com/studygen/studygen/internal/generation"
	"github.com/studygen/studygen/internal/store"
)

// UsersHandler bootstraps user records and serves the caller's profile.
// GET tolerates identity and store outages by answering with a demo
// profile instead of failing.
type UsersHandler struct {
	Store    *store.Store
	Pipeline *generation.Pipeline
	Logger   *log.Logger
}

// Register mounts the user routes. strict requires a verified token;
// lenient substitutes the demo principal when verification is degraded.
func (h *UsersHandler) Register(api *echo.Group, strict, lenient echo.MiddlewareFunc) {
	api.POST("/users", h.bootstrap, strict)
	api.GET("/users", h.me, lenient)
}

// Bootstrap user
//
//	@Summary		Create the user record and its FREE subscription
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UserBootstrapRequest	true	"User payload"
//	@Success		200		{object}	map[string]interface{}	"already exists"
//	@Success		201		{object}	map[string]interface{}
//	@Success		207		{object}	map[string]interface{}	"store unavailable"
//	@Failure		400		{object}	HTTPError
//	@Failure		403		{object}	HTTPError
//	@Router			/api/users [post]
func (h *UsersHandler) bootstrap(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	var req UserBootstrapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ID == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "User ID and email are required")
	}
	if req.ID != p.ID {
		return echo.NewHTTPError(http.StatusForbidden, "User ID mismatch")
	}

	ctx := c.Request().Context()
	if h.Pipeline.ProbeStore(ctx) == generation.StoreDown {
		return c.JSON(http.StatusMultiStatus, map[string]interface{}{
			"message": "User processed in demo mode, not saved to database",
			"user":    demoUser(req.ID, req.Email, req.Name),
			"demo":    true,
		})
	}

	if existing, ok, err := h.Store.GetUser(ctx, req.ID); err == nil && ok {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": "User already exists",
			"user":    existing,
		})
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	u, sub, err := h.Store.CreateUser(ctx, req.ID, req.Email, req.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "User created successfully",
		"user":         u,
		"subscription": sub,
	})
}

// Current user
//
//	@Summary	Fetch the caller's profile and subscription
//	@Tags		users
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Success	207	{object}	map[string]interface{}	"demo profile"
//	@Router		/api/users [get]
func (h *UsersHandler) me(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	ctx := c.Request().Context()

	if auth.Degraded(c) || h.Pipeline.ProbeStore(ctx) == generation.StoreDown {
		return h.demoProfile(c, p)
	}

	u, ok, err := h.Store.GetUser(ctx, p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return h.demoProfile(c, p)
	}

	body := map[string]interface{}{"user": u}
	if sub, ok, err := h.Store.GetSubscription(ctx, p.ID); err == nil && ok {
		body["subscription"] = sub
	} else if err != nil {
		h.Logger.Printf("subscription lookup for %s: %v", p.ID, err)
	}
	return c.JSON(http.StatusOK, body)
}

func (h *UsersHandler) demoProfile(c echo.Context, p auth.Principal) error {
	u := demoUser(p.ID, p.Email, p.DisplayName)
	now := time.Now()
	return c.JSON(http.StatusMultiStatus, map[string]interface{}{
		"message": "Profile served in demo mode",
		"user":    u,
		"subscription": store.Subscription{
			ID:         "demo-subscription",
			UserID:     u.ID,
			PlanType:   store.PlanDemo,
			QuotaLimit: store.DemoQuotaLimit,
			ValidUntil: now.Add(store.DemoValidityHours * time.Hour),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		"demo": true,
	})
}

func demoUser(id, email, name string) store.User {
	if id == "" {
		id = auth.DemoPrincipalID
	}
	if email == "" {
		email = "demo@example.com"
	}
	if name == "" {
		name = "Demo User"
	}
	now := time.Now()
	return store.User{ID: id, Email: email, Name: name, CreatedAt: now, UpdatedAt: now}
}
