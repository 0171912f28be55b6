package manager

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bellanda/local-cameras-view/internal/config"
	"github.com/bellanda/local-cameras-view/internal/model"
)

func testConfig() config.Stream {
	return config.Stream{
		MaxBufferSize:   5,
		TargetFPS:       1000,
		JPEGQuality:     80,
		ClientQueueSize: 2,
	}
}

func TestAddGetRemove(t *testing.T) {
	mgr := New(testConfig(), zap.NewNop())

	if err := mgr.Add("desk", model.NewWebcamRef(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.Get("desk") == nil {
		t.Fatal("expected stream to be registered")
	}

	if err := mgr.Add("desk", model.NewWebcamRef(0)); err == nil {
		t.Fatal("expected error re-adding an existing camera")
	}

	if err := mgr.Remove("desk"); err != nil {
		t.Fatalf("unexpected error removing: %v", err)
	}
	if mgr.Get("desk") != nil {
		t.Fatal("expected stream to be gone after remove")
	}

	if err := mgr.Remove("desk"); err == nil {
		t.Fatal("expected error removing an unknown camera")
	}
}

func TestRestartIdempotence(t *testing.T) {
	mgr := New(testConfig(), zap.NewNop())
	if err := mgr.Add("desk", model.NewWebcamRef(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.StopAll()

	for i := 0; i < 3; i++ {
		if err := mgr.Restart("desk"); err != nil {
			t.Fatalf("unexpected error restarting: %v", err)
		}
	}

	if !mgr.Get("desk").Status().Running {
		t.Fatal("expected camera to be running after repeated restarts")
	}
}

func TestStatusSortedByName(t *testing.T) {
	mgr := New(testConfig(), zap.NewNop())
	_ = mgr.Add("zoo", model.NewWebcamRef(0))
	_ = mgr.Add("alpha", model.NewWebcamRef(1))
	defer mgr.StopAll()

	all := mgr.Status()
	if len(all) != 2 || all[0].Name != "alpha" || all[1].Name != "zoo" {
		t.Fatalf("expected sorted statuses, got %+v", all)
	}
}

func TestStopAllIsBounded(t *testing.T) {
	mgr := New(testConfig(), zap.NewNop())
	_ = mgr.Add("a", model.NewWebcamRef(0))
	_ = mgr.Add("b", model.NewWebcamRef(1))

	start := time.Now()
	mgr.StopAll()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("stop_all took too long: %s", elapsed)
	}
}

func TestStopAllClearsRegistry(t *testing.T) {
	mgr := New(testConfig(), zap.NewNop())
	_ = mgr.Add("a", model.NewWebcamRef(0))
	_ = mgr.Add("b", model.NewWebcamRef(1))

	mgr.StopAll()

	if mgr.Get("a") != nil || mgr.Get("b") != nil {
		t.Fatal("expected registry to be empty after StopAll")
	}
	if got := mgr.Status(); len(got) != 0 {
		t.Fatalf("expected no statuses after StopAll, got %+v", got)
	}

	// a name stopped via StopAll must be re-registerable, per spec.md §3's
	// "removed only by explicit remove or stop_all" contract.
	if err := mgr.Add("a", model.NewWebcamRef(0)); err != nil {
		t.Fatalf("expected re-Add after StopAll to succeed, got: %v", err)
	}
	mgr.StopAll()
}
