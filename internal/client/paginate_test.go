package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/HubViewer/internal/models"
)

type item struct {
	Name string `json:"name"`
}

// listingServer serves a listing of total items at /api/proxy/v2/repositories.
// countFor lets a test change the count reported for a given page.
type listingServer struct {
	total    int
	countFor func(page int) int
	hits     atomic.Int32

	mu      sync.Mutex
	queries []url.Values
	headers []http.Header
}

func (s *listingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	count := s.total
	if s.countFor != nil {
		count = s.countFor(page)
	}

	resp := map[string]any{"count": count, "next": nil}
	results := []item{}
	for i := (page - 1) * size; i < page*size && i < count; i++ {
		results = append(results, item{Name: fmt.Sprintf("item-%03d", i)})
	}
	resp["results"] = results
	if page*size < count {
		resp["next"] = fmt.Sprintf("https://hub.example/v2/repositories/acme?page=%d", page+1)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newListing(t *testing.T, total int) (*listingServer, *Client) {
	t.Helper()
	ls := &listingServer{total: total}
	srv := httptest.NewServer(ls)
	t.Cleanup(srv.Close)
	return ls, New(srv.URL, WithAccount("bundle"))
}

func TestListAll_Empty(t *testing.T) {
	ls, c := newListing(t, 0)

	got, err := ListAll[item](context.Background(), c, "v2/repositories", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, got.Count)
	assert.NotNil(t, got.Results)
	assert.Empty(t, got.Results)
	assert.EqualValues(t, 1, ls.hits.Load())
}

func TestListAll_MultiplePages(t *testing.T) {
	ls, c := newListing(t, 250)

	params := url.Values{"ordering": {"last_updated"}, "page": {"9"}}
	got, err := ListAll[item](context.Background(), c, "v2/repositories", params)
	require.NoError(t, err)

	assert.Equal(t, 250, got.Count)
	require.Len(t, got.Results, 250)
	for i, it := range got.Results {
		assert.Equal(t, fmt.Sprintf("item-%03d", i), it.Name)
	}
	assert.EqualValues(t, 3, ls.hits.Load())

	for i, q := range ls.queries {
		assert.Equal(t, strconv.Itoa(i+1), q.Get("page"))
		assert.Equal(t, "100", q.Get("page_size"))
		assert.Equal(t, "last_updated", q.Get("ordering"))
	}
	assert.Equal(t, []string{"9"}, params["page"], "caller params are not modified")
}

func TestListAll_RequestCountMatchesPages(t *testing.T) {
	for _, total := range []int{1, 99, 100, 101, 200, 1000} {
		t.Run(strconv.Itoa(total), func(t *testing.T) {
			ls, c := newListing(t, total)

			got, err := ListAll[item](context.Background(), c, "v2/repositories", nil)
			require.NoError(t, err)
			assert.Len(t, got.Results, total)
			assert.EqualValues(t, (total+99)/100, ls.hits.Load())
		})
	}
}

func TestListAll_ShrinkingListingTerminates(t *testing.T) {
	ls := &listingServer{countFor: func(page int) int {
		if page == 1 {
			return 250
		}
		return 120
	}}
	srv := httptest.NewServer(ls)
	defer srv.Close()

	got, err := ListAll[item](context.Background(), New(srv.URL), "v2/repositories", nil)
	require.NoError(t, err)

	assert.Equal(t, 250, got.Count, "first observed count is kept")
	assert.Len(t, got.Results, 120)
	assert.EqualValues(t, 3, ls.hits.Load())
}

func TestListAll_HugeCountDoesNotPreallocate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"count":4000000000000,"next":"https://hub.example/next","results":[{"name":"a"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":4000000000000,"next":null,"results":[]}`))
	}))
	defer srv.Close()

	var got models.Listing[item]
	var err error
	require.NotPanics(t, func() {
		got, err = ListAll[item](context.Background(), New(srv.URL), "v2/repositories", nil)
	})
	require.NoError(t, err)

	assert.Equal(t, 4000000000000, got.Count)
	assert.Equal(t, []item{{Name: "a"}}, got.Results)
	assert.EqualValues(t, 2, hits.Load())
}

// cancelAfterFirst buffers each response and cancels ctx once page 1 has
// been received.
type cancelAfterFirst struct {
	next   http.RoundTripper
	cancel context.CancelFunc
}

func (c cancelAfterFirst) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if r.URL.Query().Get("page") == "1" {
		c.cancel()
	}
	return resp, nil
}

func TestListAll_CancelledBetweenPages(t *testing.T) {
	ls := &listingServer{total: 250}
	srv := httptest.NewServer(ls)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(srv.URL, WithHTTPClient(&http.Client{
		Transport: cancelAfterFirst{next: http.DefaultTransport, cancel: cancel},
	}))

	got, err := ListAll[item](ctx, c, "v2/repositories", nil)
	require.NoError(t, err)
	assert.Equal(t, 250, got.Count)
	assert.Len(t, got.Results, 100)
	assert.EqualValues(t, 1, ls.hits.Load())
}

func TestListAll_CancelledDuringPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls := &listingServer{total: 250}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			cancel()
			<-r.Context().Done()
			return
		}
		ls.ServeHTTP(w, r)
	}))
	defer srv.Close()

	got, err := ListAll[item](ctx, New(srv.URL), "v2/repositories", nil)
	require.NoError(t, err)
	assert.Len(t, got.Results, 100)
}

func TestListAll_PageError(t *testing.T) {
	ls := &listingServer{total: 250}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		ls.ServeHTTP(w, r)
	}))
	defer srv.Close()

	got, err := ListAll[item](context.Background(), New(srv.URL), "v2/repositories", nil)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.Status)
	assert.Empty(t, got.Results)
}

func TestListPage(t *testing.T) {
	ls, c := newListing(t, 40)

	got, err := ListPage[item](context.Background(), c, "v2/repositories/app/tags", 0, 0, url.Values{"name": {"v1"}})
	require.NoError(t, err)

	assert.Equal(t, models.Page[item]{
		Count:   40,
		Results: got.Results,
		Next:    true,
		Page:    1,
	}, got)
	assert.Len(t, got.Results, 15)
	require.Len(t, ls.queries, 1)
	assert.Equal(t, "15", ls.queries[0].Get("page_size"))
	assert.Equal(t, "v1", ls.queries[0].Get("name"))

	last, err := ListPage[item](context.Background(), c, "v2/repositories/app/tags", 3, 15, nil)
	require.NoError(t, err)
	assert.False(t, last.Next)
	assert.Equal(t, 3, last.Page)
	assert.Len(t, last.Results, 10)
}

func TestListPage_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"results":null,"next":null}`))
	}))
	defer srv.Close()

	got, err := ListPage[item](context.Background(), New(srv.URL), "v2/repositories/app/tags", 1, 15, nil)
	require.NoError(t, err)
	assert.NotNil(t, got.Results)
	assert.False(t, got.Next)
}
