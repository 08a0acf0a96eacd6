package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/studygen/studygen/internal/store"
)

func TestCreatePracticeInvalidPayload(t *testing.T) {
	h := &PracticeHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/practice",
		`{"title":"Paper","subject":"","topic":"Algebra","difficulty":"easy","questions":5,"userId":"user-1"}`)

	err := h.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if he.Message != "Invalid request data" {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}

func TestCreatePracticeQuestionsOutOfRange(t *testing.T) {
	h := &PracticeHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/practice",
		`{"title":"Paper","subject":"Math","topic":"Algebra","difficulty":"easy","questions":20,"userId":"user-1"}`)

	err := h.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCreatePracticeUserMismatch(t *testing.T) {
	h := &PracticeHandler{}
	ctx, _ := newTestContext(t, http.MethodPost, "/api/practice",
		`{"title":"Paper","subject":"Math","topic":"Algebra","difficulty":"easy","questions":5,"userId":"someone-else"}`)

	err := h.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if he.Message != "User ID mismatch" {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}

func TestCreatePracticeStoreDownDemoMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &PracticeHandler{Store: st, Pipeline: testPipeline(st)}

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection refused"))

	ctx, rec := newTestContext(t, http.MethodPost, "/api/practice",
		`{"title":"Paper","subject":"Math","topic":"Algebra","difficulty":"easy","questions":5,"userId":"user-1"}`)
	if err := h.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["demo"] != true {
		t.Fatalf("expected demo:true, got %+v", resp)
	}
	if resp["message"] != "Practice paper generated but not saved to database" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	practice, ok := resp["practice"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected demo practice record, got %+v", resp["practice"])
	}
	if content, _ := practice["content"].(string); content == "" {
		t.Fatal("demo record must carry the generated content")
	}
}

func TestCreatePracticeSaved(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &PracticeHandler{Store: st, Pipeline: testPipeline(st)}

	now := time.Now()
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, user_id, plan_type`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "plan_type", "quota_limit", "quota_used", "valid_until", "created_at", "updated_at"}).
			AddRow("sub-1", "user-1", store.PlanFree, 10, 0, now.AddDate(0, 1, 0), now, now))
	mock.ExpectQuery(`INSERT INTO practice_papers`).
		WithArgs(sqlmock.AnyArg(), "user-1", "Paper", "Math", "Algebra", "easy", sqlmock.AnyArg(), "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	ctx, rec := newTestContext(t, http.MethodPost, "/api/practice",
		`{"title":"Paper","subject":"Math","topic":"Algebra","difficulty":"easy","questions":5,"userId":"user-1"}`)
	if err := h.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "Practice paper generated and saved" {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPracticeStoreDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &PracticeHandler{Store: st, Pipeline: testPipeline(st)}

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("down"))

	ctx, rec := newTestContext(t, http.MethodGet, "/api/practice", "")
	if err := h.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	practices, ok := resp["practices"].([]interface{})
	if !ok || len(practices) != 0 {
		t.Fatalf("expected empty practices array, got %+v", resp["practices"])
	}
}

func TestDeletePracticeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	h := &PracticeHandler{Store: st, Pipeline: testPipeline(st)}

	mock.ExpectQuery(`SELECT user_id FROM practice_papers`).
		WithArgs("pp-404").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	ctx, _ := newTestContext(t, http.MethodDelete, "/api/practice/pp-404", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("pp-404")

	err = h.delete(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "Practice paper not found" {
		t.Fatalf("unexpected message: %v", he.Message)
	}
}
