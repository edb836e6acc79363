package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type recordingLimiter struct {
	keys []string
	err  error
}

func (l *recordingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *recordingLimiter) Wait(_ context.Context, key string, limit int, window time.Duration) error {
	l.keys = append(l.keys, key)
	return l.err
}

func TestGetThrottlesAndAuthenticates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "b", r.URL.Query().Get("a"))
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	lim := &recordingLimiter{}
	c := New(Config{
		BaseURL:  srv.URL,
		APIKey:   "tok",
		Throttle: Throttle{Limiter: lim, Key: "upstream:kalshi", Limit: 10, Window: time.Second},
	})

	body, err := c.Get(context.Background(), "/x", url.Values{"a": {"b"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, []string{"upstream:kalshi"}, lim.keys)
}

func TestGetThrottleFailure(t *testing.T) {
	lim := &recordingLimiter{err: errors.New("limiter down")}
	c := New(Config{BaseURL: "http://127.0.0.1:1", Throttle: Throttle{Limiter: lim, Key: "k", Limit: 1, Window: time.Second}})

	_, err := c.Get(context.Background(), "/x", nil)
	assert.ErrorContains(t, err, "limiter down")
}

func TestGetTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus(204, nil))
	assert.ErrorIs(t, CheckStatus(404, nil), domain.ErrNotFound)
	assert.ErrorIs(t, CheckStatus(403, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, CheckStatus(429, nil), domain.ErrRateLimited)
	assert.ErrorIs(t, CheckStatus(503, []byte("down")), domain.ErrUpstreamUnavailable)
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
		D FlexFloat `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1.5,"b":"0.25","c":"","d":null}`), &v))
	assert.Equal(t, FlexFloat(1.5), v.A)
	assert.Equal(t, FlexFloat(0.25), v.B)
	assert.Equal(t, FlexFloat(0), v.C)
	assert.Equal(t, FlexFloat(0), v.D)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &v))
}
