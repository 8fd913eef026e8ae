package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vitrine/internal/config"
	"vitrine/internal/logging"
	"vitrine/internal/testsupport"
)

func writeAgedFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanupOldLogsKeepsActiveFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.Paths.LogDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}

	active := logging.FilePath(cfg)
	stale := filepath.Join(dir, "vitrine-2025-01-01.log")
	writeAgedFile(t, active, 40*24*time.Hour)
	writeAgedFile(t, stale, 40*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{active},
	})

	if _, err := os.Stat(active); err != nil {
		t.Fatalf("active log file must survive retention: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale log removed, stat err %v", err)
	}
}

func TestCleanupOldLogsKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	recent := filepath.Join(dir, "vitrine-today.log")
	writeAgedFile(t, recent, time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent log file must survive retention: %v", err)
	}
}

func TestFilePathDisabledWithoutLogDir(t *testing.T) {
	if got := logging.FilePath(nil); got != "" {
		t.Fatalf("expected empty path for nil config, got %q", got)
	}
	if got := logging.FilePath(&config.Config{}); got != "" {
		t.Fatalf("expected empty path for empty log dir, got %q", got)
	}
}
