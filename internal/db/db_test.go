package db

import (
	"testing"

	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

func TestConfigDSN(t *testing.T) {
	pg := Config{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n"}
	if got := pg.dsn(); got != "postgres://u:p@h:5432/n?sslmode=disable" {
		t.Fatalf("postgres dsn: got=%s", got)
	}
	if got := (Config{Driver: "SQLite"}).dsn(); got != "file:player.db?cache=shared" {
		t.Fatalf("sqlite dsn: got=%s", got)
	}
	if got := (Config{DSN: "x"}).dsn(); got != "x" {
		t.Fatalf("explicit dsn: got=%s", got)
	}
}

func TestOpenSQLiteAndRejectUnknownDriver(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	db, err := Open(log, Config{Driver: "sqlite", DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := Open(log, Config{Driver: "mysql"}); err == nil {
		t.Fatalf("want error for unsupported driver")
	}
}
