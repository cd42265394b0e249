// Package fetch retrieves a feed's remote RSS document and normalizes it
// into the domain's transient types. It knows nothing about storage.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jdholdren/skimmer/internal/skimmer"
)

// Represents a response from an RSS feed fetch.
type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title       string `xml:"title"`
		Description string `xml:"description"`
		Link        string `xml:"link"`
		Items       []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			GUID        string `xml:"guid"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Client fetches RSS documents over HTTP.
type Client struct {
	http *http.Client
}

var _ skimmer.Fetcher = (*Client)(nil)

func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: time.Second * 3,
		},
	}
}

// Fetch goes to the url and grabs the RSS feed and its items.
func (c *Client) Fetch(ctx context.Context, url string) (skimmer.RemoteFeed, []skimmer.RemoteEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return skimmer.RemoteFeed{}, nil, fmt.Errorf("error building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return skimmer.RemoteFeed{}, nil, fmt.Errorf("error getting feed url: %w", err)
	}
	defer resp.Body.Close()

	// Triage the status for better messaging to the caller. Anything
	// outside these ranges falls through to the parse.
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		return skimmer.RemoteFeed{}, nil, fmt.Errorf("remote returned %d: %w", resp.StatusCode, skimmer.ErrNotFound)
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return skimmer.RemoteFeed{}, nil, fmt.Errorf("%w: error received from the remote server (status %d)", skimmer.ErrRemote, resp.StatusCode)
	}

	var doc rssDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return skimmer.RemoteFeed{}, nil, fmt.Errorf("%w: error decoding feed: %s", skimmer.ErrRemote, err)
	}

	remote := skimmer.RemoteFeed{
		Title:       sanitize(doc.Channel.Title),
		Description: sanitize(doc.Channel.Description),
		Link:        doc.Channel.Link,
	}

	entries := []skimmer.RemoteEntry{}
	for _, item := range doc.Channel.Items {
		entries = append(entries, skimmer.RemoteEntry{
			Title:       sanitize(item.Title),
			Description: sanitize(item.Description),
			GUID:        item.GUID,
			Link:        item.Link,
			PublishTime: parsePubDate(item.PubDate),
		})
	}

	return remote, entries, nil
}

// pubDate is the email-style date format, which allows both one- and
// two-digit days. A date that won't parse must not drop the item, so failure
// comes back as nil rather than an error.
func parsePubDate(s string) *time.Time {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a description.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 2048 {
		s = s[:2048]
	}

	return s
}
