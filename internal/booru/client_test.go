package booru

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, interval time.Duration, clock Clock, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	client, err := New(baseURL, interval, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestImageDecodesTagsAndDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/json/images/10":
			fmt.Fprint(w, `{"image":{"id":10,"tags":["safe","cute","safe"],"duplicate_of":null}}`)
		case "/api/v1/json/images/11":
			fmt.Fprint(w, `{"image":{"id":11,"duplicate_of":10}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/api/v1/json/", 0, newFakeClock())

	img, err := client.Image(context.Background(), 10)
	if err != nil {
		t.Fatalf("Image(10): %v", err)
	}
	if !slices.Equal(img.Tags, []string{"safe", "cute", "safe"}) {
		t.Fatalf("tags should pass through unchanged, got %v", img.Tags)
	}
	if img.DuplicateOf != nil {
		t.Fatalf("expected no duplicate, got %d", *img.DuplicateOf)
	}

	dup, err := client.Image(context.Background(), 11)
	if err != nil {
		t.Fatalf("Image(11): %v", err)
	}
	if dup.HasTags() {
		t.Fatalf("expected no tag list, got %v", dup.Tags)
	}
	if dup.DuplicateOf == nil || *dup.DuplicateOf != 10 {
		t.Fatalf("expected duplicate_of 10, got %v", dup.DuplicateOf)
	}
}

func TestImageRetriesUntilSuccess(t *testing.T) {
	statuses := []int{http.StatusServiceUnavailable, http.StatusNotImplemented, http.StatusInternalServerError}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		fmt.Fprint(w, `{"image":{"id":5,"tags":["safe"]}}`)
	}))
	defer srv.Close()

	clock := newFakeClock()
	start := clock.Now()
	interval := 1500 * time.Millisecond
	client := newTestClient(t, srv.URL, interval, clock)

	img, err := client.Image(context.Background(), 5)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if !slices.Equal(img.Tags, []string{"safe"}) {
		t.Fatalf("unexpected tags %v", img.Tags)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 requests, got %d", calls.Load())
	}

	// Each retry delay is followed by the limiter topping up to the interval.
	want := []time.Duration{
		time.Second, 500 * time.Millisecond, // 503
		6 * time.Second, // 501 is longer than the interval
		time.Second, 500 * time.Millisecond, // 500
	}
	if got := clock.Sleeps(); !slices.Equal(got, want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	if elapsed := clock.Now().Sub(start); elapsed < 3*interval {
		t.Fatalf("elapsed %v below rate limit floor %v", elapsed, 3*interval)
	}
	stats := client.Stats()
	if stats.Requests != 4 || stats.Retries != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestImageRateLimitsConsecutiveFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"image":{"tags":[]}}`)
	}))
	defer srv.Close()

	clock := newFakeClock()
	start := clock.Now()
	interval := time.Second * 10 / 9
	client := newTestClient(t, srv.URL, interval, clock)

	const n = 5
	for i := uint64(1); i <= n; i++ {
		if _, err := client.Image(context.Background(), i); err != nil {
			t.Fatalf("Image(%d): %v", i, err)
		}
	}
	if elapsed := clock.Now().Sub(start); elapsed < (n-1)*interval {
		t.Fatalf("elapsed %v, want at least %v", elapsed, (n-1)*interval)
	}
}

func TestImageMalformedBodyIsNotRetried(t *testing.T) {
	cases := map[string]string{
		"invalid json":  `{"image":`,
		"missing image": `{"images":[]}`,
		"wrong type":    `{"image":{"tags":"safe"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, time.Second, newFakeClock())
			_, err := client.Image(context.Background(), 1)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if calls.Load() != 1 {
				t.Fatalf("malformed response must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestImageTransportErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	clock := newFakeClock()
	client := newTestClient(t, baseURL, time.Second, clock)
	if _, err := client.Image(context.Background(), 1); err == nil {
		t.Fatal("expected transport error")
	}
	if client.Stats().Requests != 1 || len(clock.Sleeps()) != 0 {
		t.Fatalf("transport errors must not be retried: stats=%+v sleeps=%v", client.Stats(), clock.Sleeps())
	}
}

func TestImageRetryStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock()
	clock.onSleep = func(call int) {
		if call == 3 {
			cancel()
		}
	}
	client := newTestClient(t, srv.URL, 0, clock)
	if _, err := client.Image(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := client.Stats().Requests; got != 3 {
		t.Fatalf("expected 3 attempts before cancellation, got %d", got)
	}
}

func TestImageSendsCredentialsAndUserAgent(t *testing.T) {
	type seen struct{ key, filter, agent string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{
			key:    r.URL.Query().Get("key"),
			filter: r.URL.Query().Get("filter_id"),
			agent:  r.Header.Get("User-Agent"),
		}
		fmt.Fprint(w, `{"image":{"tags":["safe"]}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, newFakeClock(),
		WithAPIKey(" secret "), WithFilterID(56027), WithUserAgent("derpisync/test"))
	if _, err := client.Image(context.Background(), 3); err != nil {
		t.Fatalf("Image: %v", err)
	}
	s := <-got
	if s.key != "secret" || s.filter != "56027" || s.agent != "derpisync/test" {
		t.Fatalf("unexpected request details %+v", s)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("  ", time.Second); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := New("http://example.test", -time.Second); err == nil {
		t.Fatal("expected error for negative interval")
	}
}
