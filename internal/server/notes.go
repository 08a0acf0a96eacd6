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
	"github.com/studygen/studygen/internal/search"
	"github.com/studygen/studygen/internal/store"
)

// NotesHandler serves study-note generation, retrieval, search and deletion.
type NotesHandler struct {
	Store    *store.Store
	Pipeline *generation.Pipeline
	Search   *search.Index
	Logger   *log.Logger
}

func (h *NotesHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.DELETE("/:id", h.delete)
}

func (h *NotesHandler) spec() generation.Spec {
	return generation.Spec{
		Kind:          generation.KindNote,
		CreatedStatus: http.StatusCreated,
		RecordKey:     "note",
		SavedMessage:  "Note created successfully",
		DemoMessage:   "Note content generated in demo mode",
		Prompt:        notePrompt,
		Fallback:      noteFallback,
		Save: func(ctx context.Context, p auth.Principal, req generation.Request, res generation.Result) (interface{}, error) {
			note, err := h.Store.CreateNote(ctx, store.Note{
				UserID:  p.ID,
				Title:   req.Param("title", ""),
				Subject: req.Param("subject", ""),
				Topic:   req.Param("topic", ""),
				Content: res.Content,
				Prompt:  req.RawPrompt,
			})
			if err != nil {
				return nil, err
			}
			return note, nil
		},
		DemoRecord: func(p auth.Principal, req generation.Request, res generation.Result) interface{} {
			now := time.Now()
			return store.Note{
				ID:        "demo-" + uuid.NewString(),
				UserID:    p.ID,
				Title:     req.Param("title", ""),
				Subject:   req.Param("subject", ""),
				Topic:     req.Param("topic", ""),
				Content:   res.Content,
				Prompt:    req.RawPrompt,
				CreatedAt: now,
				UpdatedAt: now,
			}
		},
	}
}

// Create note
//
//	@Summary		Generate and save a study note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		NoteCreateRequest	true	"Note payload"
//	@Success		201		{object}	map[string]interface{}
//	@Success		207		{object}	map[string]interface{}	"demo mode"
//	@Failure		400		{object}	HTTPError
//	@Failure		401		{object}	HTTPError
//	@Failure		429		{object}	HTTPError
//	@Router			/api/notes [post]
func (h *NotesHandler) create(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	var req NoteCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" || req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title and prompt are required")
	}

	gr := generation.Request{
		Kind: generation.KindNote,
		Parameters: map[string]string{
			"title":   req.Title,
			"subject": req.Subject,
			"topic":   req.Topic,
		},
		RawPrompt: req.Prompt,
	}
	spec := h.spec()
	out, err := h.Pipeline.Run(c.Request().Context(), p, spec, gr)
	if errors.Is(err, generation.ErrQuotaExceeded) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Quota exceeded")
	}
	if n, ok := out.Record.(store.Note); ok && h.Search != nil {
		if err := h.Search.IndexNote(n); err != nil {
			h.logf("index note %s: %v", n.ID, err)
		}
	}
	status, body := generation.Compose(spec, p, gr, out)
	return c.JSON(status, body)
}

// List / get notes
//
//	@Summary	List notes, or fetch one via ?id=
//	@Tags		notes
//	@Produce	json
//	@Param		id	query		string	false	"note id"
//	@Success	200	{object}	map[string]interface{}
//	@Success	207	{object}	map[string]interface{}	"store unavailable"
//	@Failure	404	{object}	HTTPError
//	@Router		/api/notes [get]
func (h *NotesHandler) list(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	ctx := c.Request().Context()

	if h.Pipeline.ProbeStore(ctx) == generation.StoreDown {
		return c.JSON(http.StatusMultiStatus, map[string]interface{}{
			"message": "Database not accessible, notes cannot be fetched right now",
			"notes":   []store.Note{},
			"demo":    true,
		})
	}

	if id := c.QueryParam("id"); id != "" {
		n, err := h.Store.GetNote(ctx, id, p.ID)
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Note not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"note": n})
	}

	notes, err := h.Store.ListNotes(ctx, p.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if notes == nil {
		notes = []store.Note{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notes": notes})
}

// Search notes
//
//	@Summary	Full-text search over the caller's saved notes
//	@Tags		notes
//	@Produce	json
//	@Param		q	query		string	true	"query"
//	@Success	200	{object}	map[string]interface{}
//	@Failure	400	{object}	HTTPError
//	@Router		/api/notes/search [get]
func (h *NotesHandler) search(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}
	hits, err := h.Search.Search(p.ID, q, 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}

// Delete note
//
//	@Summary	Delete an owned note
//	@Tags		notes
//	@Produce	json
//	@Param		id	path		string	true	"note id"
//	@Success	200	{object}	map[string]interface{}
//	@Failure	403	{object}	HTTPError
//	@Failure	404	{object}	HTTPError
//	@Router		/api/notes/{id} [delete]
func (h *NotesHandler) delete(c echo.Context) error {
	p, _ := auth.PrincipalFromEcho(c)
	id := c.Param("id")
	err := h.Store.DeleteNote(c.Request().Context(), id, p.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Note not found")
	case errors.Is(err, store.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to delete this note")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Search != nil {
		if err := h.Search.RemoveNote(id); err != nil {
			h.logf("unindex note %s: %v", id, err)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Note deleted successfully"})
}

func (h *NotesHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func notePrompt(req generation.Request) string {
	return fmt.Sprintf(`Generate comprehensive study notes for the subject: %s,
topic: %s, based on the following request: %s.
Format the content with proper headings, subheadings, bullet points, and explanations.
Include key concepts, definitions, examples, and applications where appropriate.`,
		req.Param("subject", ""), req.Param("topic", ""), req.RawPrompt)
}

// noteFallback is deterministic for a given request: demo deployments and
// provider outages produce the same clearly-labeled placeholder.
func noteFallback(req generation.Request) string {
	title := req.Param("title", "Study Notes")
	subject := req.Param("subject", "the subject")
	topic := req.Param("topic", "General Overview")
	return fmt.Sprintf(`# %s

## Introduction to %s: %s

This is a placeholder note generated in demo mode because the text
generation provider is not available.

### Key Concepts
- First key concept about %s
- Second important point to understand
- Third fundamental idea

### Detailed Explanation
The %s is an important concept in %s.
Here we would normally have AI-generated comprehensive notes.

### Summary
These study notes provide a basic overview of %s.
For full content, configure the text generation provider.`,
		title, subject, topic, topic, topic, subject, topic)
}
