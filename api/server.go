// Package api serves crawl operations and the stored dataset over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/lmdcrawl"
	"github.com/pevans/lmdcrawl/crawl"
	"github.com/pevans/lmdcrawl/fetcher"
	"github.com/pevans/lmdcrawl/logger"
	"github.com/pevans/lmdcrawl/store"
)

// Crawler is the subset of *crawl.Crawler the server drives.
type Crawler interface {
	Search(ctx context.Context, q crawl.SearchQuery, maxPages int) (lmdcrawl.SearchResult, error)
	Article(ctx context.Context, rawURL string) (lmdcrawl.Article, error)
	CommentsPaged(ctx context.Context, a lmdcrawl.Article, maxPages int) (lmdcrawl.CommentThread, error)
}

// dateLayout is the format of the start and end query parameters.
const dateLayout = "2006-01-02"

// Server represents the HTTP API server.
type Server struct {
	crawler Crawler
	store   *store.Store
	metrics http.Handler
	log     logger.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithStore persists crawled records and enables the dataset routes.
func WithStore(s *store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithMetricsHandler exposes h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(srv *Server) { srv.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(srv *Server) { srv.log = l }
}

// NewServer creates a new API server over c.
func NewServer(c Crawler, opts ...Option) *Server {
	s := &Server{
		crawler: c,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	{
		api.GET("/search", s.HandleSearch)
		api.GET("/article", s.HandleArticle)
		api.GET("/comments", s.HandleComments)
		api.GET("/articles/:id", s.HandleGetArticle)
		api.GET("/articles/:id/comments", s.HandleListComments)
		api.GET("/searches/:id", s.HandleGetSearch)
	}

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	return router
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Info("request",
		logger.String("method", c.Request.Method),
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", c.Writer.Status()),
		logger.Duration("elapsed", time.Since(start)),
	)
}

// SearchResponse is the body of GET /api/v1/search. SearchID is set when the
// result was stored.
type SearchResponse struct {
	SearchID *uuid.UUID `json:"search_id,omitempty"`
	lmdcrawl.SearchResult
}

// HandleSearch handles GET /api/v1/search?q=&start=&end=&sort=&pages=.
func (s *Server) HandleSearch(c *gin.Context) {
	q := crawl.SearchQuery{Query: strings.TrimSpace(c.Query("q"))}
	if q.Query == "" {
		badRequest(c, "Query parameter q is required")
		return
	}

	var err error
	if q.Start, err = parseDate(c.Query("start")); err != nil {
		badRequest(c, "Invalid start date, expected YYYY-MM-DD")
		return
	}
	if q.End, err = parseDate(c.Query("end")); err != nil {
		badRequest(c, "Invalid end date, expected YYYY-MM-DD")
		return
	}
	switch c.DefaultQuery("sort", "newest") {
	case "newest":
		q.Sort = crawl.SortNewest
	case "oldest":
		q.Sort = crawl.SortOldest
	default:
		badRequest(c, "Invalid sort, expected newest or oldest")
		return
	}
	if err := q.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	pages, ok := pagesParam(c)
	if !ok {
		return
	}

	result, err := s.crawler.Search(c.Request.Context(), q, pages)
	if err != nil {
		s.crawlError(c, err)
		return
	}

	resp := SearchResponse{SearchResult: result}
	if s.store != nil {
		id, err := s.store.SaveSearch(result)
		if err != nil {
			s.log.Error("failed to store search", logger.String("query", q.Query), logger.Err(err))
		} else {
			resp.SearchID = &id
		}
	}

	c.JSON(http.StatusOK, resp)
}

// HandleArticle handles GET /api/v1/article?url=.
func (s *Server) HandleArticle(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		badRequest(c, "Query parameter url is required")
		return
	}

	article, err := s.crawler.Article(c.Request.Context(), rawURL)
	if err != nil {
		s.crawlError(c, err)
		return
	}
	s.saveArticle(article)

	c.JSON(http.StatusOK, article)
}

// HandleComments handles GET /api/v1/comments?url=&pages=.
func (s *Server) HandleComments(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		badRequest(c, "Query parameter url is required")
		return
	}
	pages, ok := pagesParam(c)
	if !ok {
		return
	}

	article, err := s.crawler.Article(c.Request.Context(), rawURL)
	if err != nil {
		s.crawlError(c, err)
		return
	}
	thread, err := s.crawler.CommentsPaged(c.Request.Context(), article, pages)
	if err != nil {
		s.crawlError(c, err)
		return
	}

	s.saveArticle(article)
	if s.store != nil && thread.ArticleID != nil {
		if _, err := s.store.SaveComments(thread); err != nil {
			s.log.Error("failed to store comments", logger.String("url", rawURL), logger.Err(err))
		}
	}

	c.JSON(http.StatusOK, thread)
}

// HandleGetArticle handles GET /api/v1/articles/{id}.
func (s *Server) HandleGetArticle(c *gin.Context) {
	id, ok := s.articleID(c)
	if !ok {
		return
	}

	article, err := s.store.GetArticle(id)
	if err != nil {
		s.storeError(c, err, "Article not found")
		return
	}

	c.JSON(http.StatusOK, article)
}

// ListCommentsResponse is the body of GET /api/v1/articles/{id}/comments.
type ListCommentsResponse struct {
	ArticleID int64              `json:"article_id"`
	Comments  []lmdcrawl.Comment `json:"comments"`
	Total     int                `json:"total"`
}

// HandleListComments handles GET /api/v1/articles/{id}/comments.
func (s *Server) HandleListComments(c *gin.Context) {
	id, ok := s.articleID(c)
	if !ok {
		return
	}

	comments, err := s.store.ListComments(id)
	if err != nil {
		s.storeError(c, err, "Failed to list comments")
		return
	}
	if comments == nil {
		comments = []lmdcrawl.Comment{}
	}

	c.JSON(http.StatusOK, ListCommentsResponse{
		ArticleID: id,
		Comments:  comments,
		Total:     len(comments),
	})
}

// HandleGetSearch handles GET /api/v1/searches/{id}.
func (s *Server) HandleGetSearch(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	searchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid search ID")
		return
	}

	record, err := s.store.GetSearch(searchID)
	if err != nil {
		s.storeError(c, err, "Search not found")
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) saveArticle(a lmdcrawl.Article) {
	if s.store == nil || a.ArticleID == nil {
		return
	}
	if _, err := s.store.SaveArticle(a); err != nil {
		s.log.Error("failed to store article", logger.String("url", a.URL), logger.Err(err))
	}
}

func (s *Server) articleID(c *gin.Context) (int64, bool) {
	if !s.requireStore(c) {
		return 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid article ID")
		return 0, false
	}
	return id, true
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store != nil {
		return true
	}
	writeError(c, http.StatusNotImplemented, "no_store", "Server was started without a dataset")
	return false
}

// crawlError maps a crawl failure to a status code.
func (s *Server) crawlError(c *gin.Context, err error) {
	var incomplete *crawl.IncompleteArticleError
	var fatal *fetcher.FatalFetchError

	switch {
	case errors.Is(err, crawl.ErrUnsupportedContent):
		writeError(c, http.StatusUnprocessableEntity, "unsupported_content", err.Error())
	case errors.As(err, &incomplete):
		writeError(c, http.StatusUnprocessableEntity, "incomplete_article", err.Error())
	case errors.As(err, &fatal) && fatal.StatusCode == http.StatusNotFound:
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled):
		writeError(c, 499, "canceled", "Request canceled")
	default:
		s.log.Error("crawl failed", logger.String("path", c.Request.URL.Path), logger.Err(err))
		writeError(c, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func (s *Server) storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusNotFound, "not_found", notFound)
		return
	}
	s.log.Error("store failure", logger.String("path", c.Request.URL.Path), logger.Err(err))
	writeError(c, http.StatusInternalServerError, "internal_error", "Failed to read dataset")
}

func pagesParam(c *gin.Context) (int, bool) {
	raw := c.Query("pages")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "Invalid pages, expected a non-negative integer")
		return 0, false
	}
	return n, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "bad_request", message)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
