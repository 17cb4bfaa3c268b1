package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(`CREATE TABLE receipts_uniq (invoice_id TEXT NOT NULL UNIQUE)`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec(`INSERT INTO receipts_uniq (invoice_id) VALUES ('a')`).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dupErr := conn.Exec(`INSERT INTO receipts_uniq (invoice_id) VALUES ('a')`).Error
	if !IsUniqueViolation(dupErr, "") {
		t.Fatalf("expected unique violation, got %v", dupErr)
	}
	if !IsUniqueViolation(dupErr, "receipts_uniq.invoice_id") {
		t.Fatalf("expected constraint match, got %v", dupErr)
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatal("plain errors are not unique violations")
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("settlement blew up")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Where("name = ?", "panicked").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf, Format: logger.FormatJSON})
	ql := newQueryLogger(logg, time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), sql, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not be logged: %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	if !bytes.Contains(buf.Bytes(), []byte("db.slow_query")) {
		t.Fatalf("expected slow query entry: %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("not found should stay silent: %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now(), sql, errors.New("deadlock detected"))
	if !bytes.Contains(buf.Bytes(), []byte("db.query_failed")) {
		t.Fatalf("expected failure entry: %s", buf.String())
	}
}
