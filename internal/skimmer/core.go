package skimmer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/jdholdren/skimmer/logger"
)

// Core sequences fetching and storage for tracked feeds.
//
// The store may be a single-writer embedded database, so every storage call
// goes through the mutex: one fetch-merge sequence's writes at a time. The
// guid constraint in the store is the real guard against double inserts; the
// mutex just keeps merge sequences from interleaving.
type Core struct {
	mu      sync.Mutex
	store   Storage
	fetcher Fetcher
}

func New(store Storage, fetcher Fetcher) *Core {
	return &Core{
		store:   store,
		fetcher: fetcher,
	}
}

// ListFeeds returns every tracked feed.
func (c *Core) ListFeeds(ctx context.Context) ([]Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.AllFeeds(ctx)
}

// GetFeed looks up a single feed by id.
func (c *Core) GetFeed(ctx context.Context, id string) (Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.Feed(ctx, id)
}

// ListEntries returns a feed's entries, newest first.
func (c *Core) ListEntries(ctx context.Context, feedID string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.Entries(ctx, feedID)
}

// AddFeed starts tracking a url and runs its first sync.
//
// The fetch happens before anything is written: a url that can't be fetched
// leaves no feed row behind.
func (c *Core) AddFeed(ctx context.Context, url string) (Feed, error) {
	remote, entries, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return Feed{}, fmt.Errorf("error fetching feed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	feed, err := c.store.InsertFeed(ctx, url)
	if err != nil {
		return Feed{}, fmt.Errorf("error inserting feed: %w", err)
	}
	if err := c.store.Merge(ctx, feed.ID, remote, entries); err != nil {
		return Feed{}, fmt.Errorf("error merging fetched content: %w", err)
	}

	// Re-read so the caller sees the post-merge title and sync time.
	return c.store.Feed(ctx, feed.ID)
}

// SyncAll fetches and merges every tracked feed, in listing order.
//
// A failing feed does not stop the run: its error is collected and the loop
// moves on, so one dead remote can't starve the rest. Merges that completed
// before a failure stay committed. The aggregate of all per-feed failures
// comes back to the caller.
func (c *Core) SyncAll(ctx context.Context) error {
	c.mu.Lock()
	feeds, err := c.store.AllFeeds(ctx)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error listing feeds to sync: %w", err)
	}

	var result *multierror.Error
	for _, feed := range feeds {
		if err := c.syncFeed(ctx, feed); err != nil {
			slog.ErrorContext(ctx, "feed sync failed", "feed_id", feed.ID, "url", feed.URL, "error", err)
			result = multierror.Append(result, fmt.Errorf("syncing feed %s: %w", feed.ID, err))
			continue
		}
	}

	return result.ErrorOrNil()
}

func (c *Core) syncFeed(ctx context.Context, feed Feed) error {
	ctx = logger.Ctx(ctx, slog.String("feed_id", feed.ID))

	remote, entries, err := c.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return fmt.Errorf("error fetching feed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Merge(ctx, feed.ID, remote, entries); err != nil {
		return fmt.Errorf("error merging fetched content: %w", err)
	}
	slog.InfoContext(ctx, "feed synced", "entries_fetched", len(entries))

	return nil
}
