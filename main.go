// Skimmer tracks rss feed subscriptions.
//
// It fetches the feeds it has been told about, stores the entries it has
// not seen before, and lists them back out.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/skimmer/internal/fetch"
	"github.com/jdholdren/skimmer/internal/server"
	"github.com/jdholdren/skimmer/internal/skimmer"
	"github.com/jdholdren/skimmer/internal/sqlite"
	"github.com/jdholdren/skimmer/logger"
)

type config struct {
	// Path to the sqlite file; empty means $HOME/.skimmer/data.sqlite3
	Database string `env:"DATABASE"`

	Port int `env:"PORT, default=4444"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	if err := newApp(cfg).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(cfg config) *cli.App {
	var (
		dbx  *sqlx.DB
		core *skimmer.Core
	)

	return &cli.App{
		Name:  "skimmer",
		Usage: "track rss feeds and pull down their entries",
		Before: func(c *cli.Context) error {
			var err error
			dbx, err = sqlite.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("error opening storage: %w", err)
			}
			core = skimmer.New(sqlite.New(dbx), fetch.New())

			return nil
		},
		After: func(c *cli.Context) error {
			if dbx != nil {
				return dbx.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "feeds",
				Usage:     "list all feeds, or describe one feed by id",
				ArgsUsage: "[id]",
				Action: func(c *cli.Context) error {
					if id := c.Args().First(); id != "" {
						feed, err := core.GetFeed(c.Context, id)
						if err != nil {
							return err
						}
						return describeFeed(os.Stdout, feed)
					}

					feeds, err := core.ListFeeds(c.Context)
					if err != nil {
						return err
					}
					return writeFeedTable(os.Stdout, feeds)
				},
			},
			{
				Name:      "add",
				Usage:     "add a feed and run its first sync",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					url := c.Args().First()
					if url == "" {
						return errors.New("a feed url is required")
					}

					feed, err := core.AddFeed(c.Context, url)
					if err != nil {
						return err
					}
					fmt.Printf("added feed %s (%s)\n", feed.ID, feed.URL)

					return nil
				},
			},
			{
				Name:      "entries",
				Usage:     "list entries for a feed",
				ArgsUsage: "<feed-id>",
				Action: func(c *cli.Context) error {
					feedID := c.Args().First()
					if feedID == "" {
						return errors.New("a feed id is required")
					}

					entries, err := core.ListEntries(c.Context, feedID)
					if err != nil {
						return err
					}
					return writeEntryTable(os.Stdout, entries)
				},
			},
			{
				Name:  "sync",
				Usage: "sync all feeds",
				Action: func(c *cli.Context) error {
					if err := core.SyncAll(c.Context); err != nil {
						return err
					}
					fmt.Println("all feeds synced")

					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "run the http api",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg.Port, core)
				},
			},
		},
	}
}

// serve runs the http server until the context is canceled.
func serve(ctx context.Context, port int, core *skimmer.Core) error {
	s := server.New(port, core)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "port", port)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}

const absent = "—"

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orAbsent(s *string) string {
	if s == nil {
		return absent
	}
	return *s
}

func describeFeed(out io.Writer, feed skimmer.Feed) error {
	lastSynced := absent
	if feed.LastSyncedAt != nil {
		lastSynced = formatTime(feed.LastSyncedAt)
	}

	fmt.Fprintf(out, "%12s: %s\n", "ID", feed.ID)
	fmt.Fprintf(out, "%12s: %s\n", "URL", feed.URL)
	fmt.Fprintf(out, "%12s: %s\n", "Title", orAbsent(feed.Title))
	fmt.Fprintf(out, "%12s: %s\n", "Description", orAbsent(feed.Description))
	fmt.Fprintf(out, "%12s: %s\n", "Last Synced", lastSynced)
	fmt.Fprintf(out, "%12s: %s\n", "Created", feed.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "%12s: %s\n", "Updated", feed.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))

	return nil
}

func writeFeedTable(out io.Writer, feeds []skimmer.Feed) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tURL")
	for _, f := range feeds {
		fmt.Fprintf(w, "%s\t%s\n", f.ID, f.URL)
	}

	return w.Flush()
}

func writeEntryTable(out io.Writer, entries []skimmer.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTitle\tPublished\tLink")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Title, formatTime(e.PublishTime), e.Link)
	}

	return w.Flush()
}
