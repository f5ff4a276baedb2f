package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/feedbackbot/core/config"
	coredatabase "github.com/m3rciful/feedbackbot/core/database"
)

func noopLogger(*coreconfig.Config) error { return nil }

func TestRunFileStorageSkipsDatabase(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Storage.Driver = coreconfig.StorageFile
	cfg.Warnings = []string{"ADMIN_IDS ignored"}

	res, err := Run(Options{
		Config:     cfg,
		LoggerInit: noopLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect called for file storage")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.DB != nil {
		t.Fatal("unexpected db")
	}
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunPostgresConnectFailure(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Storage.Driver = coreconfig.StoragePostgres
	want := errors.New("refused")

	migrated := false
	_, err := Run(Options{
		Config:     cfg,
		LoggerInit: noopLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, want },
		Migrate: func(coredatabase.Config, string) error {
			migrated = true
			return nil
		},
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if migrated {
		t.Fatal("migrations ran without a connection")
	}
}

func TestRunLoggerFailure(t *testing.T) {
	want := errors.New("bad log dir")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return want },
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Run(Options{}); err == nil {
		t.Fatal("nil config accepted")
	}
}
