package http

import (
	"context"
	"net/http"
	"strconv"

	authmw "github.com/snapquiz/snapquiz-backend/internal/auth/middleware"
	syncx "github.com/snapquiz/snapquiz-backend/internal/sync"
)

type EventLister interface {
	List(ctx context.Context, o syncx.ListOpts) ([]syncx.Event, error)
}

// GET /api/events?after=<seq>&limit=<n>
// Only the caller's own events are returned, oldest first.
func ListEventsHandler(events EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authmw.UserIDFromContext(r.Context())
		if !ok {
			writeFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var after int64
		if s := r.URL.Query().Get("after"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				writeFail(w, http.StatusBadRequest, "invalid after")
				return
			}
			after = n
		}
		list, err := events.List(r.Context(), syncx.ListOpts{
			UserID: uid,
			After:  after,
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 100),
		})
		if err != nil {
			writeStoreError(w, r, "list events", err)
			return
		}
		next := after
		if len(list) > 0 {
			next = list[len(list)-1].Seq
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": list, "next": next})
	}
}
