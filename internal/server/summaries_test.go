package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/studygen/studygen/internal/store"
)

func TestSummarizeMissingText(t *testing.T) {
	h := &SummariesHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/summarize", `{"userId":"user-1"}`)

	err := h.summarize(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSummarizeInvalidLength(t *testing.T) {
	h := &SummariesHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/summarize",
		`{"text":"some text","length":"gigantic","userId":"user-1"}`)

	err := h.summarize(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSummarizeUserMismatch(t *testing.T) {
	h := &SummariesHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/summarize",
		`{"text":"some text","userId":"intruder"}`)

	err := h.summarize(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if he.Message != "User ID mismatch" {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}

func TestSummarizeFreePlanNotPersisted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &SummariesHandler{Store: st, Pipeline: testPipeline(st)}

	now := time.Now()
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, user_id, plan_type`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "plan_type", "quota_limit", "quota_used", "valid_until", "created_at", "updated_at"}).
			AddRow("sub-1", "user-1", store.PlanFree, 10, 0, now.AddDate(0, 1, 0), now, now))
	// No INSERT expectation: free plans never persist summaries.

	ctx, rec := newTestContext(t, http.MethodPost, "/api/summarize",
		`{"text":"Photosynthesis converts light energy into chemical energy.","userId":"user-1"}`)
	if err := h.summarize(ctx); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207 for unpersisted summary, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["demo"] != true {
		t.Fatalf("expected demo:true, got %+v", resp)
	}
	if content, _ := resp["content"].(string); content == "" {
		t.Fatal("free callers still get their summary content")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummarizePremiumPlanPersisted(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &SummariesHandler{Store: st, Pipeline: testPipeline(st)}

	now := time.Now()
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, user_id, plan_type`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "plan_type", "quota_limit", "quota_used", "valid_until", "created_at", "updated_at"}).
			AddRow("sub-1", "user-1", "PREMIUM", 100, 0, now.AddDate(0, 1, 0), now, now))
	mock.ExpectQuery(`INSERT INTO summaries`).
		WithArgs(sqlmock.AnyArg(), "user-1", "concise", "medium", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	ctx, rec := newTestContext(t, http.MethodPost, "/api/summarize",
		`{"text":"Photosynthesis converts light energy into chemical energy.","userId":"user-1"}`)
	if err := h.summarize(ctx); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for persisted summary, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "Summary generated and saved" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	if _, ok := resp["demo"]; ok {
		t.Fatal("persisted response must not carry demo marker")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
