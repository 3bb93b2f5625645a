package syncx_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/snapquiz/snapquiz-backend/internal/db"
	syncx "github.com/snapquiz/snapquiz-backend/internal/sync"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestEventRepo_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := syncx.NewEventRepo(openDB(t), "")

	for i, key := range []string{"1", "2", "3"} {
		uid := int64(7)
		if i == 1 {
			uid = 8
		}
		ev, err := syncx.NewEvent(syncx.TypeAttemptScored, key, uid, map[string]any{"score": 50})
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Append(ctx, nil, ev); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(ctx, syncx.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[0].SiteID != "local" || all[0].UserID != 7 || all[0].DataJSON != `{"score":50}` {
		t.Fatalf("unexpected event: %+v", all[0])
	}

	rest, err := repo.List(ctx, syncx.ListOpts{After: all[0].Seq})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0].Key != "2" {
		t.Fatalf("after seq %d: %+v", all[0].Seq, rest)
	}

	tests := []struct {
		name string
		opts syncx.ListOpts
		keys []string
	}{
		{name: "own events", opts: syncx.ListOpts{UserID: 7}, keys: []string{"1", "3"}},
		{name: "own events after cursor", opts: syncx.ListOpts{UserID: 7, After: all[0].Seq}, keys: []string{"3"}},
		{name: "other user", opts: syncx.ListOpts{UserID: 8}, keys: []string{"2"}},
		{name: "unknown user", opts: syncx.ListOpts{UserID: 99}, keys: nil},
		{name: "limit", opts: syncx.ListOpts{Limit: 1}, keys: []string{"1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.keys) {
				t.Fatalf("got %+v, want keys %v", got, tc.keys)
			}
			for i, e := range got {
				if e.Key != tc.keys[i] {
					t.Fatalf("got %+v, want keys %v", got, tc.keys)
				}
			}
		})
	}
}

func TestEventRepo_AppendInsideRolledBackTx(t *testing.T) {
	ctx := context.Background()
	h := openDB(t)
	repo := syncx.NewEventRepo(h, "site-a")

	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Append(ctx, tx, syncx.Event{Type: syncx.TypeTestDeleted, Key: "9", DataJSON: "{}"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	all, err := repo.List(ctx, syncx.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("rolled back event visible: %+v", all)
	}
}
