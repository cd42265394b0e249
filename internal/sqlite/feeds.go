package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/jdholdren/skimmer/internal/skimmer"
)

// sqlite extended result code for a unique constraint violation.
const codeConstraintUnique = 2067

func (r Repo) Feed(ctx context.Context, id string) (skimmer.Feed, error) {
	const q = `SELECT * FROM feeds WHERE id = ?;`

	var feed skimmer.Feed
	err := r.db.GetContext(ctx, &feed, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return skimmer.Feed{}, skimmer.ErrNotFound
	}
	if err != nil {
		return skimmer.Feed{}, fmt.Errorf("error fetching feed: %s", err)
	}

	return feed, nil
}

// AllFeeds retrieves _all_ feeds from the database.
func (r Repo) AllFeeds(ctx context.Context) ([]skimmer.Feed, error) {
	const q = "SELECT * FROM feeds;"

	feeds := []skimmer.Feed{}
	if err := r.db.SelectContext(ctx, &feeds, q); err != nil {
		return nil, fmt.Errorf("error selecting all feeds: %s", err)
	}

	return feeds, nil
}

// InsertFeed creates the row for a newly tracked url. The title, description
// and sync time stay empty until the first merge.
func (r Repo) InsertFeed(ctx context.Context, url string) (skimmer.Feed, error) {
	const q = `INSERT INTO feeds (id, url) VALUES (:id, :url);`
	f := skimmer.Feed{
		ID:  uuid.NewString(),
		URL: url,
	}
	_, err := r.db.NamedExecContext(ctx, q, f)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == codeConstraintUnique {
		return skimmer.Feed{}, fmt.Errorf("feed already exists: %w", skimmer.ErrConflict)
	}
	if err != nil {
		return skimmer.Feed{}, fmt.Errorf("error inserting feed: %s", err)
	}

	// Read it back for the defaulted timestamps.
	return r.Feed(ctx, f.ID)
}

// Entries returns a feed's entries ordered newest-known first: publish time
// descending, created time as the tiebreak. Entries with no publish time
// sort after everything that has one.
func (r Repo) Entries(ctx context.Context, feedID string) ([]skimmer.Entry, error) {
	const q = `SELECT * FROM feed_entries WHERE feed_id = ? ORDER BY publish_time DESC, created_at DESC;`

	entries := []skimmer.Entry{}
	if err := r.db.SelectContext(ctx, &entries, q, feedID); err != nil {
		return nil, fmt.Errorf("error fetching entries: %s", err)
	}

	return entries, nil
}

// Merge folds one fetch's results into the store: the feed row picks up the
// remote title, description, and a fresh sync time, and each fetched entry
// is inserted only if its guid has never been seen. Re-observed guids are
// no-ops, so calling this repeatedly with overlapping item sets is safe.
func (r Repo) Merge(ctx context.Context, feedID string, remote skimmer.RemoteFeed, entries []skimmer.RemoteEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning merge: %s", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query, args, err := sq.Update("feeds").
		Set("title", remote.Title).
		Set("description", remote.Description).
		Set("last_synced_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": feedID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error updating feed: %s", err)
	}

	// The guid constraint does the dedup: insert-if-absent is a single
	// statement, never a check followed by an insert.
	const q = `INSERT INTO feed_entries (id, feed_id, title, description, guid, link, publish_time)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(guid) DO NOTHING;`
	for _, e := range entries {
		var publishTime *time.Time
		if e.PublishTime != nil {
			utc := e.PublishTime.UTC()
			publishTime = &utc
		}
		if _, err := tx.ExecContext(ctx, q, uuid.NewString(), feedID, e.Title, e.Description, e.GUID, e.Link, publishTime); err != nil {
			return fmt.Errorf("error inserting entry %q: %s", e.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing merge: %s", err)
	}

	return nil
}
