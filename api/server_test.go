package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/crawl"
	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/metrics"
	"github.com/pevans/lmdcrawl/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCrawler struct {
	lastQuery crawl.SearchQuery
	lastPages int

	search   lmdcrawl.SearchResult
	article  lmdcrawl.Article
	thread   lmdcrawl.CommentThread
	err      error
	articles int
}

func (f *fakeCrawler) Search(_ context.Context, q crawl.SearchQuery, maxPages int) (lmdcrawl.SearchResult, error) {
	f.lastQuery = q
	f.lastPages = maxPages
	return f.search, f.err
}

func (f *fakeCrawler) Article(_ context.Context, rawURL string) (lmdcrawl.Article, error) {
	f.articles++
	if f.err != nil {
		return lmdcrawl.Article{}, f.err
	}
	a := f.article
	a.URL = rawURL
	return a, nil
}

func (f *fakeCrawler) CommentsPaged(_ context.Context, _ lmdcrawl.Article, maxPages int) (lmdcrawl.CommentThread, error) {
	f.lastPages = maxPages
	return f.thread, nil
}

// Test helper: create a test store
func setupTestStore(t *testing.T) *store.Store {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArticle() lmdcrawl.Article {
	id := int64(6012345)
	return lmdcrawl.Article{
		Title:         "Une réforme contestée",
		Content:       "Premier paragraphe. Second paragraphe.",
		ArticleID:     &id,
		Date:          "2023-03-16T10:00:00+01:00",
		Keywords:      []string{"politique"},
		ArticleType:   "article",
		AllowComments: true,
	}
}

func do(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandleSearch_Success(t *testing.T) {
	fc := &fakeCrawler{search: lmdcrawl.SearchResult{
		Query:      "macron",
		HasResults: true,
		PageCount:  3,
		Hits:       []lmdcrawl.SearchHit{{URL: "https://www.lemonde.fr/politique/article/a.html", Title: "a"}},
	}}
	router := NewServer(fc).SetupRouter()

	w := do(t, router, "/api/v1/search?q=macron&start=2023-01-01&end=2023-03-31&sort=oldest&pages=2")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "macron", fc.lastQuery.Query)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), fc.lastQuery.Start)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), fc.lastQuery.End)
	assert.Equal(t, crawl.SortOldest, fc.lastQuery.Sort)
	assert.Equal(t, 2, fc.lastPages)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.SearchID, "No store, no search id")
	assert.Equal(t, 3, resp.PageCount)
	assert.Len(t, resp.Hits, 1)
}

func TestHandleSearch_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing query", "/api/v1/search"},
		{"blank query", "/api/v1/search?q=%20%20"},
		{"bad start", "/api/v1/search?q=x&start=01/01/2023"},
		{"bad end", "/api/v1/search?q=x&end=tomorrow"},
		{"end before start", "/api/v1/search?q=x&start=2023-02-01&end=2023-01-01"},
		{"bad sort", "/api/v1/search?q=x&sort=relevance"},
		{"bad pages", "/api/v1/search?q=x&pages=-1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCrawler{}
			w := do(t, NewServer(fc).SetupRouter(), tt.target)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "bad_request", errorCode(t, w))
			assert.Empty(t, fc.lastQuery.Query, "Crawler should not be called")
		})
	}
}

func TestHandleSearch_StoresResult(t *testing.T) {
	st := setupTestStore(t)
	fc := &fakeCrawler{search: lmdcrawl.SearchResult{
		Query:      "climat",
		HasResults: true,
		PageCount:  1,
		Hits:       []lmdcrawl.SearchHit{{URL: "https://www.lemonde.fr/planete/article/b.html", Title: "b"}},
	}}
	router := NewServer(fc, WithStore(st)).SetupRouter()

	w := do(t, router, "/api/v1/search?q=climat")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.SearchID)

	w = do(t, router, "/api/v1/searches/"+resp.SearchID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var record store.SearchRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "climat", record.Result.Query)
	assert.Equal(t, fc.search.Hits, record.Result.Hits)
}

func TestHandleArticle(t *testing.T) {
	st := setupTestStore(t)
	fc := &fakeCrawler{article: sampleArticle()}
	router := NewServer(fc, WithStore(st)).SetupRouter()

	w := do(t, router, "/api/v1/article?url=https://www.lemonde.fr/politique/article/2023/03/16/x_6012345_823448.html")
	require.Equal(t, http.StatusOK, w.Code)

	var got lmdcrawl.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Une réforme contestée", got.Title)

	w = do(t, router, "/api/v1/articles/6012345")
	require.Equal(t, http.StatusOK, w.Code, "Fetched article should be stored")
}

func TestHandleArticle_MissingURL(t *testing.T) {
	w := do(t, NewServer(&fakeCrawler{}).SetupRouter(), "/api/v1/article")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleArticle_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unsupported", crawl.ErrUnsupportedContent, http.StatusUnprocessableEntity, "unsupported_content"},
		{"incomplete", &crawl.IncompleteArticleError{URL: "u", Field: "title"}, http.StatusUnprocessableEntity, "incomplete_article"},
		{"upstream 404", &fetcher.FatalFetchError{URL: "u", StatusCode: 404, Attempts: 1}, http.StatusNotFound, "not_found"},
		{"upstream exhausted", &fetcher.FatalFetchError{URL: "u", StatusCode: 503, Attempts: 3}, http.StatusBadGateway, "upstream_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, NewServer(&fakeCrawler{err: tt.err}).SetupRouter(), "/api/v1/article?url=https://www.lemonde.fr/a")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestHandleComments(t *testing.T) {
	st := setupTestStore(t)
	a := sampleArticle()
	fc := &fakeCrawler{
		article: a,
		thread: lmdcrawl.CommentThread{
			ArticleID: a.ArticleID,
			Count:     2,
			Comments: []lmdcrawl.Comment{
				{Author: "Jeanne", Content: "Très juste."},
				{Author: "Paul", Content: "Je ne suis pas d'accord."},
			},
		},
	}
	router := NewServer(fc, WithStore(st)).SetupRouter()

	w := do(t, router, "/api/v1/comments?url=https://www.lemonde.fr/politique/article/x.html&pages=4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, fc.lastPages)

	var thread lmdcrawl.CommentThread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	assert.Equal(t, 2, thread.Count)

	w = do(t, router, "/api/v1/articles/6012345/comments")
	require.Equal(t, http.StatusOK, w.Code)

	var list ListCommentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "Jeanne", list.Comments[0].Author)
}

func TestDatasetRoutes_NotFound(t *testing.T) {
	router := NewServer(&fakeCrawler{}, WithStore(setupTestStore(t))).SetupRouter()

	w := do(t, router, "/api/v1/articles/42")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "/api/v1/searches/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "/api/v1/articles/42/comments")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"article_id":42,"comments":[],"total":0}`, w.Body.String())
}

func TestDatasetRoutes_InvalidID(t *testing.T) {
	router := NewServer(&fakeCrawler{}, WithStore(setupTestStore(t))).SetupRouter()

	assert.Equal(t, http.StatusBadRequest, do(t, router, "/api/v1/articles/abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, "/api/v1/searches/not-a-uuid").Code)
}

func TestDatasetRoutes_NoStore(t *testing.T) {
	w := do(t, NewServer(&fakeCrawler{}).SetupRouter(), "/api/v1/articles/1")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "no_store", errorCode(t, w))
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.NetworkFetch()

	router := NewServer(&fakeCrawler{}, WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))).SetupRouter()

	w := do(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lmdcrawl_network_fetches_total 1")
}

func TestCORSPreflight(t *testing.T) {
	router := NewServer(&fakeCrawler{}).SetupRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
