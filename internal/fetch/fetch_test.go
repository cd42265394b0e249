package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/skimmer/internal/skimmer"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>apenwarr</title>
  <description>apenwarr - NITLog</description>
  <link>https://apenwarr.ca/log/</link>
  <language>en-ca</language>
  <item>
    <title>Systems design 3: LLMs and the semantic revolution</title>
    <pubDate>Thu, 20 Nov 2025 14:19:14 +0000</pubDate>
    <link>https://apenwarr.ca/log/20251120</link>
    <guid isPermaLink="true">https://apenwarr.ca/log/20251120</guid>
    <description>&lt;p&gt;LLMs interconnect things.&lt;/p&gt;</description>
  </item>
  <item>
    <title>Billionaire math</title>
    <pubDate>Fri, 11 Jul 2025 12:00:00 +0000</pubDate>
    <link>https://apenwarr.ca/log/20250711</link>
    <guid isPermaLink="true">https://apenwarr.ca/log/20250711</guid>
    <description>Software developers typically fall into the top 1-2% of earners globally.</description>
  </item>
</channel>
</rss>`

func serveBody(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestFetch(t *testing.T) {
	srv := serveBody(t, http.StatusOK, sampleRSS)

	remote, entries, err := New().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "apenwarr", remote.Title)
	assert.Equal(t, "apenwarr - NITLog", remote.Description)
	assert.Equal(t, "https://apenwarr.ca/log/", remote.Link)

	require.Len(t, entries, 2)

	assert.Equal(t, "Systems design 3: LLMs and the semantic revolution", entries[0].Title)
	assert.Equal(t, "https://apenwarr.ca/log/20251120", entries[0].Link)
	assert.Equal(t, "https://apenwarr.ca/log/20251120", entries[0].GUID)
	// Html tags in the description get stripped
	assert.Equal(t, "LLMs interconnect things.", entries[0].Description)
	require.NotNil(t, entries[0].PublishTime)
	assert.Equal(t, int64(1763648354), entries[0].PublishTime.Unix())

	assert.Equal(t, "Billionaire math", entries[1].Title)
	assert.Equal(t, "https://apenwarr.ca/log/20250711", entries[1].GUID)
	require.NotNil(t, entries[1].PublishTime)
	assert.Equal(t, int64(1752235200), entries[1].PublishTime.Unix())
}

func TestFetch_NotFoundOn4xx(t *testing.T) {
	srv := serveBody(t, http.StatusNotFound, "")

	_, _, err := New().Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, skimmer.ErrNotFound)
}

func TestFetch_RemoteErrorOn5xx(t *testing.T) {
	srv := serveBody(t, http.StatusInternalServerError, "")

	_, _, err := New().Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, skimmer.ErrRemote)
}

func TestFetch_RemoteErrorOnMalformedDocument(t *testing.T) {
	srv := serveBody(t, http.StatusOK, "<rss><channel><ite")

	_, _, err := New().Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, skimmer.ErrRemote)
}

func TestFetch_KeepsItemWithBadPubDate(t *testing.T) {
	const body = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Feed</title>
  <description>A test feed</description>
  <link>https://example.com</link>
  <item>
    <title>Undated Post</title>
    <pubDate>sometime last tuesday</pubDate>
    <link>https://example.com/post-1</link>
    <guid>guid-1</guid>
    <description>Still here</description>
  </item>
</channel>
</rss>`
	srv := serveBody(t, http.StatusOK, body)

	_, entries, err := New().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	// A date that won't parse never drops the item
	require.Len(t, entries, 1)
	assert.Equal(t, "Undated Post", entries[0].Title)
	assert.Equal(t, "guid-1", entries[0].GUID)
	assert.Equal(t, "https://example.com/post-1", entries[0].Link)
	assert.Nil(t, entries[0].PublishTime)
}

func TestParsePubDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
		ok    bool
	}{
		{
			name:  "rfc1123 with numeric zone",
			input: "Thu, 20 Nov 2025 14:19:14 +0000",
			want:  1763648354,
			ok:    true,
		},
		{
			name:  "rfc1123 with named zone",
			input: "Mon, 01 Jan 2024 12:00:00 GMT",
			want:  1704110400,
			ok:    true,
		},
		{
			name:  "single-digit day with numeric zone",
			input: "Wed, 2 Jul 2025 12:00:00 +0000",
			want:  1751457600,
			ok:    true,
		},
		{
			name:  "single-digit day with named zone",
			input: "Tue, 2 Jan 2024 12:00:00 GMT",
			want:  1704196800,
			ok:    true,
		},
		{
			name:  "garbage",
			input: "not a date",
			ok:    false,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePubDate(tt.input)
			if !tt.ok {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Unix())
		})
	}
}
