package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const channelBody = `[
	{
		"id": "111",
		"content": "Ticker: **MES**",
		"mention_everyone": true,
		"timestamp": "2024-03-14T09:31:00.000000+00:00",
		"embeds": [
			{"description": "Score: **7/10**"},
			{"description": "Price: **5851.50**"}
		]
	},
	{
		"id": "110",
		"content": "morning",
		"mention_everyone": false,
		"embeds": []
	}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("token-abc", zap.NewNop())
	c.SetBaseURL(srv.URL)
	return c
}

func TestFetchRecentParsesMessages(t *testing.T) {
	var gotPath, gotAuth, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(channelBody))
	})

	msgs, err := c.FetchRecent(context.Background(), "123", 2)
	require.NoError(t, err)
	require.Equal(t, "/channels/123/messages", gotPath)
	require.Equal(t, "limit=2", gotQuery)
	require.Equal(t, "token-abc", gotAuth)

	require.Len(t, msgs, 2)
	first := msgs[0]
	require.Equal(t, "111", first.ID)
	require.Equal(t, "Ticker: **MES**", first.Content)
	require.True(t, first.MentionEveryone)
	require.Equal(t, "2024-03-14T09:31:00.000000+00:00", first.Timestamp)
	require.Len(t, first.Embeds, 2)
	require.Equal(t, "Score: **7/10**", first.Embeds[0].Description)

	second := msgs[1]
	require.Equal(t, "110", second.ID)
	require.False(t, second.MentionEveryone)
	require.Empty(t, second.Embeds)
}

func TestFetchLatestReturnsFirstMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(channelBody))
	})

	msg, err := c.FetchLatest(context.Background(), "123")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "111", msg.ID)
}

func TestFetchLatestEmptyChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	msg, err := c.FetchLatest(context.Background(), "123")
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestFetchRecentNonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchRecent(context.Background(), "123", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=401")
}
