package warehouse

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"wrdsquery/internal/config"
)

func TestExecuteWithoutConnection(t *testing.T) {
	p := NewPostgres(config.WarehouseConfig{}, zap.NewNop())

	result, err := p.Execute(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Err != "not connected to warehouse" {
		t.Errorf("Err = %q, want not connected to warehouse", result.Err)
	}
	if result.RowCount != 0 {
		t.Errorf("RowCount = %d, want 0", result.RowCount)
	}
}

func TestConnectRequiresCredentials(t *testing.T) {
	p := NewPostgres(config.WarehouseConfig{Host: "example.org", Port: 5432}, zap.NewNop())

	if err := p.Connect(context.Background()); err == nil {
		t.Fatal("Connect succeeded without credentials")
	}
	if p.Connected() {
		t.Error("Connected true after failed Connect")
	}
}

func TestExecuteScansRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	const stmt = "SELECT date, ticker, prc FROM crsp.dsf LIMIT 2"
	mock.ExpectQuery(stmt).WillReturnRows(
		sqlmock.NewRows([]string{"date", "ticker", "prc"}).
			AddRow("2022-01-03", "AAPL", 182.01).
			AddRow("2022-01-04", "AAPL", 179.70))

	p := NewPostgresFromDB(db, zap.NewNop())
	result, err := p.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Err != "" {
		t.Fatalf("Err = %q, want empty", result.Err)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
	if got := result.Columns; len(got) != 3 || got[0] != "date" {
		t.Errorf("Columns = %v", got)
	}
	if result.Rows[0]["ticker"] != "AAPL" {
		t.Errorf("first row = %v", result.Rows[0])
	}
	if result.Rows[1]["prc"] != 179.70 {
		t.Errorf("second row prc = %v", result.Rows[1]["prc"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExecuteRejectedStatement(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	const stmt = "SELECT nope FROM missing"
	mock.ExpectQuery(stmt).WillReturnError(fmt.Errorf(`relation "missing" does not exist`))

	p := NewPostgresFromDB(db, zap.NewNop())
	result, err := p.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute raised instead of reporting in-band: %v", err)
	}
	if result.Err == "" {
		t.Fatal("rejected statement produced no Err")
	}
	if result.RowCount != 0 {
		t.Errorf("RowCount = %d, want 0", result.RowCount)
	}
}

func TestExecuteConvertsBytes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	const stmt = "SELECT comnam FROM crsp.dsenames LIMIT 1"
	mock.ExpectQuery(stmt).WillReturnRows(
		sqlmock.NewRows([]string{"comnam"}).AddRow([]byte("APPLE INC")))

	p := NewPostgresFromDB(db, zap.NewNop())
	result, err := p.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Rows[0]["comnam"] != "APPLE INC" {
		t.Errorf("byte column = %v (%T), want string", result.Rows[0]["comnam"], result.Rows[0]["comnam"])
	}
}

func TestClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectClose()

	p := NewPostgresFromDB(db, zap.NewNop())
	if !p.Connected() {
		t.Fatal("wrapped handle not marked connected")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Connected() {
		t.Error("Connected true after Close")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
