package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/studygen/studygen/internal/auth"
	"github.com/studygen/studygen/internal/generation"
	"github.com/studygen/studygen/internal/store"
)

// PracticeHandler serves practice paper generation, listing and deletion.
// Creation, listing and deletion all operate on the same entity.
type PracticeHandler struct {
	Store    *store.Store
	Pipeline *generation.Pipeline
	Logger   *log.Logger
}

func (h *PracticeHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("/:id", h.delete)
}

func (h *PracticeHandler) spec() generation.Spec {
	return generation.Spec{
		Kind:          generation.KindPractice,
		CreatedStatus: http.StatusCreated,
		RecordKey:     "practice",
		SavedMessage:  "Practice paper generated and saved",
		DemoMessage:   "Practice paper generated but not saved to database",
		Prompt:        practicePrompt,
		Fallback:      practiceFallback,
		Save: func(ctx context.Context, p auth.Principal, req generation.Request, res generation.Result) (interface{}, error) {
			paper, err := h.Store.CreatePracticePaper(ctx, store.PracticePaper{
				UserID:     p.ID,
				Title:      req.Param("title", ""),
				Subject:    req.Param("subject", ""),
				Topic:      req.Param("topic", ""),
				Difficulty: req.Param("difficulty", ""),
				Content:    res.Content,
				Prompt:     req.RawPrompt,
			})
			if err != nil {
				return nil, err
			}
			return paper, nil
		},
		DemoRecord: func(p auth.Principal, req generation.Request, res generation.Result) interface{} {
			now := time.Now()
			return store.PracticePaper{
				ID:         "demo-" + uuid.NewString(),
				UserID:     p.ID,
				Title:      req.Param("title", ""),
				Subject:    req.Param("subject", ""),
				Topic:      req.Param("topic", ""),
				Difficulty: req.Param("difficulty", ""),
				Content:    res.Content,
				Prompt:     req.RawPrompt,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
		},
	}
}

// Create practice paper
//
//	@Summary		Generate and save a practice paper
//	@Tags			practice
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		PracticeCreateRequest	true	"Practice payload"
//	@Success		201		{object}	map[string]interface{}
//	@Success		207		{object}	map[string]interface{}	"demo mode"
//	@Failure		400		{object}	HTTPError
//	@Failure		403		{object}	HTTPError
//	@Failure		429		{object}	HTTPError
//	@Router			/api/practice [post]
func (h *PracticeHandler) create(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	var req PracticeCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" || req.Subject == "" || req.Topic == "" || req.Difficulty == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	if req.Questions < 1 || req.Questions > 15 {
		return echo.NewHTTPError(http.StatusBadRequest, "questions must be between 1 and 15")
	}
	if req.UserID != p.ID {
		return echo.NewHTTPError(http.StatusForbidden, "User ID mismatch")
	}

	gr := generation.Request{
		Kind: generation.KindPractice,
		Parameters: map[string]string{
			"title":      req.Title,
			"subject":    req.Subject,
			"topic":      req.Topic,
			"difficulty": req.Difficulty,
			"questions":  strconv.Itoa(req.Questions),
		},
		RawPrompt: req.Prompt,
	}
	spec := h.spec()
	out, err := h.Pipeline.Run(c.Request().Context(), p, spec, gr)
	if errors.Is(err, generation.ErrQuotaExceeded) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Quota exceeded")
	}
	status, body := generation.Compose(spec, p, gr, out)
	return c.JSON(status, body)
}

// List practice papers
//
//	@Summary	List the caller's practice papers
//	@Tags		practice
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Success	207	{object}	map[string]interface{}	"store unavailable"
//	@Router		/api/practice [get]
func (h *PracticeHandler) list(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	ctx := c.Request().Context()

	if h.Pipeline.ProbeStore(ctx) == generation.StoreDown {
		return c.JSON(http.StatusMultiStatus, map[string]interface{}{
			"message":   "Database not accessible, practice papers cannot be fetched right now",
			"practices": []store.PracticePaper{},
			"demo":      true,
		})
	}

	practices, err := h.Store.ListPracticePapers(ctx, p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if practices == nil {
		practices = []store.PracticePaper{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"practices": practices,
		"message":   "Practice papers retrieved successfully",
	})
}

// Delete practice paper
//
//	@Summary	Delete an owned practice paper
//	@Tags		practice
//	@Produce	json
//	@Param		id	path		string	true	"practice paper id"
//	@Success	200	{object}	map[string]interface{}
//	@Failure	403	{object}	HTTPError
//	@Failure	404	{object}	HTTPError
//	@Router		/api/practice/{id} [delete]
func (h *PracticeHandler) delete(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	err := h.Store.DeletePracticePaper(c.Request().Context(), c.Param("id"), p.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Practice paper not found")
	case errors.Is(err, store.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to delete this practice paper")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Practice paper deleted successfully"})
}

func practicePrompt(req generation.Request) string {
	if req.RawPrompt != "" {
		return req.RawPrompt
	}
	return fmt.Sprintf(`Create a %s difficulty practice paper for %s focusing on %s.

Guidelines:
- Include exactly %s questions
- For math and science, include step-by-step solutions where appropriate
- For essay subjects, provide clear evaluation criteria
- For multiple-choice questions, format options as A), B), C), D)
- Include a mix of question types appropriate for the subject

Format the practice paper with a clear title, instructions, and properly
numbered questions. If relevant, provide an answer key section at the end.`,
		req.Param("difficulty", "medium"), req.Param("subject", ""),
		req.Param("topic", ""), req.Param("questions", "5"))
}

func practiceFallback(req generation.Request) string {
	return fmt.Sprintf(`# %s

**Subject:** %s
**Topic:** %s
**Difficulty:** %s

The practice paper could not be generated at this time; this is a
placeholder produced in demo mode.

## Sample Question Format
1. Write your question here?
   - A) Option 1
   - B) Option 2
   - C) Option 3
   - D) Option 4`,
		req.Param("title", "Practice Paper"), req.Param("subject", ""),
		req.Param("topic", ""), req.Param("difficulty", ""))
}
