package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/creatorrr/sonnun/pkg/provenance"
)

func TestSQLLedger_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)
	ctx := context.Background()

	event := testEvent(provenance.KindHuman, "2024-05-01T12:00:00Z", 42)
	mock.ExpectQuery("INSERT INTO events").
		WithArgs(event.Timestamp, string(event.Kind), event.ContentDigest, event.Source, event.SpanLength).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := led.Append(ctx, event)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLLedger_AppendValidatesBeforeStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)
	bad := testEvent(provenance.KindHuman, "2024-05-01T12:00:00Z", 1)
	bad.Kind = "robot"

	if _, err := led.Append(context.Background(), bad); !errors.Is(err, provenance.ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	// No SQL may have been issued for a rejected event.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected SQL: %v", err)
	}
}

func TestSQLLedger_QueryFilterAndLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "timestamp", "event_type", "text_hash", "source", "span_length"}).
		AddRow(3, "2024-05-01T12:00:00Z", "human", provenance.DigestText("x"), "test", 30)

	human := provenance.KindHuman
	mock.ExpectQuery("SELECT id, timestamp, event_type, text_hash, source, span_length").
		WithArgs("human", 1).
		WillReturnRows(rows)

	records, err := led.Query(ctx, &human, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != 3 || records[0].Kind != provenance.KindHuman {
		t.Errorf("records = %+v", records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLLedger_Aggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)

	rows := sqlmock.NewRows([]string{"event_type", "sum"}).
		AddRow("human", 60).
		AddRow("ai", 30).
		AddRow("cited", 10)
	mock.ExpectQuery("SELECT event_type, COALESCE").WillReturnRows(rows)

	totals, err := led.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if totals.Human != 60 || totals.AI != 30 || totals.Cited != 10 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestSQLLedger_StorageErrorPassesThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)

	storageErr := errors.New("disk on fire")
	mock.ExpectQuery("SELECT event_type, COALESCE").WillReturnError(storageErr)

	_, err = led.Aggregate(context.Background())
	if !errors.Is(err, storageErr) {
		t.Errorf("storage error was reinterpreted: %v", err)
	}
}

func TestSQLLedger_ClearResetsSQLiteSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	led := NewSQLLedger(db, DialectSQLite)

	mock.ExpectExec("DELETE FROM events").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM sqlite_sequence").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := led.Clear(context.Background()); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
