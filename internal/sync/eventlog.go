package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"
)

const (
	TypeAttemptScored = "AttemptScored"
	TypeTestGenerated = "TestGenerated"
	TypeTestDeleted   = "TestDeleted"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	UserID    int64  `json:"user_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// NewEvent marshals data into the payload of an event owned by userID.
func NewEvent(typ, key string, userID int64, data any) (Event, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{UserID: userID, Type: typ, Key: key, DataJSON: string(buf)}, nil
}

// Execer lets callers append inside their own transaction (*sql.Tx) or
// directly on the pool (*sql.DB).
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

// Append writes e through ex, or through the pool when ex is nil.
func (r *EventRepo) Append(ctx context.Context, ex Execer, e Event) error {
	if ex == nil {
		ex = r.db
	}
	site := e.SiteID
	if site == "" {
		site = r.siteID
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, user_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		site, e.UserID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

type ListOpts struct {
	UserID int64 // 0 lists every user's events
	After  int64 // only events with seq > After
	Limit  int
}

// List returns events oldest first, at most 500 per call.
func (r *EventRepo) List(ctx context.Context, o ListOpts) ([]Event, error) {
	if o.Limit <= 0 || o.Limit > 500 {
		o.Limit = 100
	}
	q := `SELECT seq, site_id, user_id, typ, key, data, created_at
	        FROM event_log
	       WHERE seq > $1`
	args := []any{o.After}
	if o.UserID != 0 {
		q += ` AND user_id = $2`
		args = append(args, o.UserID)
	}
	q += ` ORDER BY seq LIMIT ` + strconv.Itoa(o.Limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.UserID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
