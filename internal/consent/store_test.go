package consent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sqlitedb.Open(context.Background(), filepath.Join(t.TempDir(), "consent.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db)
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return newSQLStore(t) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := mk(t)

			got, err := st.Load(ctx, "unknown")
			if err != nil {
				t.Fatalf("Load unknown visitor: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("unknown visitor has grants: %v", got)
			}

			at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 2; i++ {
				if err := st.Grant(ctx, "v1", YouTube, at); err != nil {
					t.Fatalf("Grant #%d: %v", i, err)
				}
			}

			got, err = st.Load(ctx, "v1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !got[YouTube] || got[Twitch] {
				t.Fatalf("Load = %v, want youtube only", got)
			}

			other, _ := st.Load(ctx, "v2")
			if len(other) != 0 {
				t.Fatalf("grants leaked across visitors: %v", other)
			}
		})
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().Load(ctx, "v"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSQLStore_IgnoresRetiredCategories(t *testing.T) {
	st := newSQLStore(t)
	if _, err := st.db.Exec(`INSERT INTO consent_grants (visitor_id, category, granted_at) VALUES ('v1', 'vimeo', 1)`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := st.Load(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load = %v, want empty", got)
	}
}
