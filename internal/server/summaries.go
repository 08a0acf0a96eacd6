package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/studygen/studygen/internal/auth"
	"github.com/studygen/studygen/internal/generation"
	"github.com/studygen/studygen/internal/store"
)

var (
	summaryLengthGuide = map[string]string{
		"short":  "very concise, about 1-2 paragraphs",
		"medium": "moderately detailed, about 3-4 paragraphs",
		"long":   "comprehensive, about 5-6 paragraphs",
	}
	summaryStyleGuide = map[string]string{
		"concise":  "straightforward and to the point",
		"detailed": "thorough with examples",
		"bullets":  "using bullet points for key information",
		"academic": "formal and scholarly with proper citations if available",
	}
)

// SummariesHandler serves text summarization. Persistence is gated on a
// premium entitlement; free callers still get their summary, unsaved.
type SummariesHandler struct {
	Store    *store.Store
	Pipeline *generation.Pipeline
	Logger   *log.Logger
}

func (h *SummariesHandler) Register(api *echo.Group, mw echo.MiddlewareFunc) {
	api.POST("/summarize", h.summarize, mw)
	api.GET("/summaries", h.list, mw)
}

func (h *SummariesHandler) spec() generation.Spec {
	return generation.Spec{
		Kind:          generation.KindSummary,
		CreatedStatus: http.StatusOK,
		RecordKey:     "summary",
		SavedMessage:  "Summary generated and saved",
		DemoMessage:   "Summary generated but not saved",
		Prompt:        summaryPrompt,
		Fallback:      summaryFallback,
		PersistWhen:   func(e *generation.Entitlement) bool { return e.Premium() },
		Save: func(ctx context.Context, p auth.Principal, req generation.Request, res generation.Result) (interface{}, error) {
			sum, err := h.Store.CreateSummary(ctx, store.Summary{
				UserID:         p.ID,
				Style:          req.Param("style", "concise"),
				Length:         req.Param("length", "medium"),
				OriginalLength: len(req.RawPrompt),
				SummaryLength:  len(res.Content),
				Content:        res.Content,
				StoragePath:    fmt.Sprintf("%s-summary-%d.txt", p.ID, time.Now().Unix()),
			})
			if err != nil {
				return nil, err
			}
			return sum, nil
		},
		DemoRecord: func(p auth.Principal, req generation.Request, res generation.Result) interface{} {
			return store.Summary{
				ID:             "demo-" + uuid.NewString(),
				UserID:         p.ID,
				Style:          req.Param("style", "concise"),
				Length:         req.Param("length", "medium"),
				OriginalLength: len(req.RawPrompt),
				SummaryLength:  len(res.Content),
				Content:        res.Content,
				CreatedAt:      time.Now(),
			}
		},
	}
}

// Summarize
//
//	@Summary		Summarize a text
//	@Tags			summaries
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		SummarizeRequest	true	"Summarize payload"
//	@Success		200		{object}	map[string]interface{}
//	@Success		207		{object}	map[string]interface{}	"not persisted"
//	@Failure		400		{object}	HTTPError
//	@Failure		403		{object}	HTTPError
//	@Failure		429		{object}	HTTPError
//	@Router			/api/summarize [post]
func (h *SummariesHandler) summarize(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.Length == "" {
		req.Length = "medium"
	}
	if req.Style == "" {
		req.Style = "concise"
	}
	if _, ok := summaryLengthGuide[req.Length]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "length must be one of short, medium, long")
	}
	if _, ok := summaryStyleGuide[req.Style]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "style must be one of concise, detailed, bullets, academic")
	}
	if req.UserID != p.ID {
		return echo.NewHTTPError(http.StatusForbidden, "User ID mismatch")
	}

	gr := generation.Request{
		Kind: generation.KindSummary,
		Parameters: map[string]string{
			"length": req.Length,
			"style":  req.Style,
		},
		RawPrompt: req.Text,
	}
	spec := h.spec()
	out, err := h.Pipeline.Run(c.Request().Context(), p, spec, gr)
	if errors.Is(err, generation.ErrQuotaExceeded) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Quota exceeded")
	}
	status, body := generation.Compose(spec, p, gr, out)
	return c.JSON(status, body)
}

// List summaries
//
//	@Summary	List the caller's saved summaries
//	@Tags		summaries
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Success	207	{object}	map[string]interface{}	"store unavailable"
//	@Router		/api/summaries [get]
func (h *SummariesHandler) list(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	ctx := c.Request().Context()

	if h.Pipeline.ProbeStore(ctx) == generation.StoreDown {
		return c.JSON(http.StatusMultiStatus, map[string]interface{}{
			"message":   "Database not accessible, summaries cannot be fetched right now",
			"summaries": []store.Summary{},
			"demo":      true,
		})
	}
	summaries, err := h.Store.ListSummaries(ctx, p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func summaryPrompt(req generation.Request) string {
	return fmt.Sprintf(`Summarize the following text in a %s style that is %s:

%s`,
		summaryLengthGuide[req.Param("length", "medium")],
		summaryStyleGuide[req.Param("style", "concise")],
		req.RawPrompt)
}

func summaryFallback(req generation.Request) string {
	text := req.RawPrompt
	const excerptLen = 200
	if len(text) > excerptLen {
		text = text[:excerptLen] + "..."
	}
	return fmt.Sprintf(`Summary unavailable (generated in demo mode).

Requested a %s, %s summary of a %d-character text beginning:

%s`,
		req.Param("length", "medium"), req.Param("style", "concise"),
		len(req.RawPrompt), text)
}
