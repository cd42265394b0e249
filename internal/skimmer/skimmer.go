// Package skimmer holds the domain types for tracked feeds and their
// entries, plus the Core that sequences fetching and storage.
package skimmer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound covers both a lookup miss in storage and a remote
	// responding with a 4xx.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned when inserting a feed whose url is already
	// tracked.
	ErrConflict = errors.New("resource already exists")
	// ErrRemote marks a failure attributed to the remote source: a 5xx
	// response or a document that would not parse. Wrapping errors carry
	// the diagnostic message.
	ErrRemote = errors.New("remote feed error")
)

type (
	// Feed represents an RSS feed's details.
	Feed struct {
		ID           string     `db:"id"`
		URL          string     `db:"url"`
		Title        *string    `db:"title"`
		Description  *string    `db:"description"`
		LastSyncedAt *time.Time `db:"last_synced_at"`
		CreatedAt    time.Time  `db:"created_at"`
		UpdatedAt    time.Time  `db:"updated_at"`
	}

	// Entry represents a unique entry discovered in a feed, deduplicated
	// across the whole store by its remote guid.
	Entry struct {
		ID          string     `db:"id"`
		FeedID      string     `db:"feed_id"`
		Title       string     `db:"title"`
		Description string     `db:"description"`
		GUID        string     `db:"guid"`
		Link        string     `db:"link"`
		CreatedAt   time.Time  `db:"created_at"`
		PublishTime *time.Time `db:"publish_time"`
	}

	// RemoteFeed is the feed-level content of a fetched document. It is
	// never persisted as-is; Merge folds it into an existing Feed row.
	RemoteFeed struct {
		Title       string
		Description string
		Link        string
	}

	// RemoteEntry is a single fetched item. PublishTime is nil when the
	// remote date could not be parsed.
	RemoteEntry struct {
		Title       string
		Description string
		GUID        string
		Link        string
		PublishTime *time.Time
	}

	// Storage is the surface for durable feed state.
	Storage interface {
		AllFeeds(ctx context.Context) ([]Feed, error)
		InsertFeed(ctx context.Context, url string) (Feed, error)
		Feed(ctx context.Context, id string) (Feed, error)
		Entries(ctx context.Context, feedID string) ([]Entry, error)
		Merge(ctx context.Context, feedID string, remote RemoteFeed, entries []RemoteEntry) error
	}

	// Fetcher takes a url and fetches the remote feed and its entries.
	// Alternate document formats plug in as alternate implementations.
	Fetcher interface {
		Fetch(ctx context.Context, url string) (RemoteFeed, []RemoteEntry, error)
	}
)
