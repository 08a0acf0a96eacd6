package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestProbe(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if err := st.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection refused"))
	if err := st.Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure")
	}
}

func TestGetUserAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT id, email, name`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := st.GetUser(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if ok {
		t.Fatal("expected absent user")
	}
}

func TestCreateUserDefaultsNameFromEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("u-1", "jane@example.com", "jane").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "created_at", "updated_at"}).
			AddRow("u-1", "jane@example.com", "jane", now, now))
	mock.ExpectQuery(`INSERT INTO subscriptions`).
		WithArgs(sqlmock.AnyArg(), "u-1", PlanFree, FreeQuotaLimit, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	u, sub, err := st.CreateUser(context.Background(), "u-1", "jane@example.com", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Name != "jane" {
		t.Fatalf("expected name from email local part, got %q", u.Name)
	}
	if sub.PlanType != PlanFree || sub.QuotaLimit != FreeQuotaLimit {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSubscriptionAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT id, user_id, plan_type`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := st.GetSubscription(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if ok {
		t.Fatal("expected absent subscription")
	}
}

func TestDeleteOwnedDistinguishesOutcomes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery(`SELECT user_id FROM notes`).
		WithArgs("n-404").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	if err := st.DeleteNote(context.Background(), "n-404", "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectQuery(`SELECT user_id FROM notes`).
		WithArgs("n-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("other"))
	if err := st.DeleteNote(context.Background(), "n-1", "u-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	mock.ExpectQuery(`SELECT user_id FROM notes`).
		WithArgs("n-2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))
	mock.ExpectExec(`DELETE FROM notes`).
		WithArgs("n-2", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.DeleteNote(context.Background(), "n-2", "u-1"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
}

func TestListNotesScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	mock.ExpectQuery(`SELECT id, user_id, title`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "subject", "topic", "content", "prompt", "created_at", "updated_at"}).
			AddRow("n-1", "u-1", "Algebra", "Math", "Slope", "content one", "p", now, now).
			AddRow("n-2", "u-1", "Biology", "Science", "Cells", "content two", "p", now, now))

	notes, err := st.ListNotes(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 || notes[0].Title != "Algebra" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
}

func TestEmailLocalPart(t *testing.T) {
	cases := map[string]string{
		"jane@example.com": "jane",
		"noat":             "noat",
		"a@b@c":            "a",
	}
	for in, want := range cases {
		if got := emailLocalPart(in); got != want {
			t.Fatalf("emailLocalPart(%q) = %q, want %q", in, got, want)
		}
	}
}
