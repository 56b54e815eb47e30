package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type Event struct {
	Seq       int64  `db:"seq"`
	SiteID    string `db:"site_id"`
	Type      string `db:"typ"`
	Key       string `db:"key"`
	DataJSON  string `db:"data"`
	CreatedAt int64  `db:"created_at"`
}

// EventRepo is an append-only log of domain events kept next to the data.
type EventRepo struct {
	db     *sqlx.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sqlx.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES (?,?,?,?,?)`),
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return errors.Wrap(err, "append event")
}

// Record marshals data as the event payload.
func (r *EventRepo) Record(ctx context.Context, typ, key string, data interface{}) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(buf)})
}
