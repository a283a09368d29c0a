package prof

import (
	"testing"

	"github.com/grafana/pyroscope-go"
)

func TestStart_Disabled(t *testing.T) {
	var active []bool
	stop, err := Start(t.Context(), Options{
		Enabled:       false,
		ServerAddress: "http://ignored",
		OnActive:      func(a bool) { active = append(active, a) },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
	stop()
	if len(active) != 1 || active[0] {
		t.Fatalf("OnActive calls = %v, want [false]", active)
	}
}

func TestStart_MissingServer(t *testing.T) {
	var active []bool
	stop, err := Start(t.Context(), Options{
		Enabled:  true,
		AppName:  "sanctuary-web",
		OnActive: func(a bool) { active = append(active, a) },
	})
	if err == nil {
		t.Fatal("expected an error for an empty server address")
	}
	if stop == nil {
		t.Fatal("stop must never be nil")
	}
	stop()
	if len(active) != 1 || active[0] {
		t.Fatalf("OnActive calls = %v, want [false]", active)
	}
}

func TestProfileTypes(t *testing.T) {
	base := profileTypes(false)
	full := profileTypes(true)
	if len(full) != len(base)+4 {
		t.Fatalf("contention adds %d types, want 4", len(full)-len(base))
	}
	for _, pt := range base {
		if pt == pyroscope.ProfileMutexCount || pt == pyroscope.ProfileBlockCount {
			t.Fatalf("contention profile %s enabled without runtime sampling", pt)
		}
	}
}
