package history

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(runID string, success bool) *models.Result {
	res := &models.Result{
		RunID:       runID,
		Task:        "explain the diagnosis",
		UserID:      "user-1",
		Success:     success,
		FinalAnswer: "[MEDICAL]\nthe finding",
		Iterations:  2,
		Reason:      models.ReasonCompleted,
		StartedAt:   time.Now().Add(-time.Minute),
		FinishedAt:  time.Now(),
	}
	if !success {
		res.Reason = models.ReasonMaxRetry
		res.Err = "retry budget exhausted"
	}
	return res
}

func TestSaveAndList(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(sampleResult("run-1", true)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(sampleResult("run-2", false)); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := store.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.RunID] = e
	}
	if e := byID["run-1"]; !e.Success || e.Reason != models.ReasonCompleted || e.Iterations != 2 {
		t.Errorf("run-1 persisted wrong: %+v", e)
	}
	if e := byID["run-2"]; e.Success || e.Reason != models.ReasonMaxRetry {
		t.Errorf("run-2 persisted wrong: %+v", e)
	}
}

func TestGetFinalAnswer(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(sampleResult("run-1", true)); err != nil {
		t.Fatalf("save: %v", err)
	}

	answer, err := store.Get("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if answer != "[MEDICAL]\nthe finding" {
		t.Errorf("unexpected answer %q", answer)
	}

	if _, err := store.Get("missing"); err == nil {
		t.Error("expected error for unknown run id")
	}
}

func TestListSurfacesMalformedTimestamp(t *testing.T) {
	store := openTestStore(t)

	_, err := store.conn.Exec(`
		INSERT INTO runs
			(run_id, user_id, task, success, reason, iterations, final_answer, error, started_at, finished_at)
		VALUES ('run-bad', '', 'broken row', 1, 'completed', 1, '', '', 'not-a-time', 'not-a-time')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = store.List(10)
	if err == nil {
		t.Fatal("expected error for malformed started_at")
	}
	if !strings.Contains(err.Error(), "run-bad") {
		t.Errorf("error should name the run, got %v", err)
	}
}

func TestSaveIsIdempotentPerRunID(t *testing.T) {
	store := openTestStore(t)

	res := sampleResult("run-1", false)
	if err := store.Save(res); err != nil {
		t.Fatal(err)
	}
	res.Success = true
	res.Reason = models.ReasonCompleted
	res.Err = ""
	if err := store.Save(res); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single row after resave, got %d", len(entries))
	}
	if !entries[0].Success {
		t.Error("resave did not replace the row")
	}
}
