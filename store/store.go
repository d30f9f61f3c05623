// Package store persists crawled records in a SQLite dataset with one table
// per record type. Writes are idempotent: saving a record twice keeps the
// first copy.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pevans/lmdcrawl"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrNoArticleID is returned when a record lacks the key it is stored
	// under.
	ErrNoArticleID = errors.New("record has no article id")
)

// Store is a SQLite-backed dataset.
type Store struct {
	db *sql.DB
}

// SearchRecord is a stored search with its run identifier.
type SearchRecord struct {
	SearchID  uuid.UUID             `json:"search_id"`
	CreatedAt time.Time             `json:"created_at"`
	Result    lmdcrawl.SearchResult `json:"result"`
}

// Open opens or creates the dataset at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		article_id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		content TEXT NOT NULL,
		date TEXT,
		keywords TEXT NOT NULL,
		article_type TEXT,
		allow_comments INTEGER NOT NULL,
		premium INTEGER NOT NULL,
		subscription_tier TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS comments (
		article_id INTEGER NOT NULL,
		author TEXT NOT NULL,
		comment TEXT NOT NULL,
		UNIQUE (article_id, author, comment)
	);

	CREATE INDEX IF NOT EXISTS idx_comments_article ON comments (article_id);

	CREATE TABLE IF NOT EXISTS searches (
		search_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		url TEXT NOT NULL,
		has_results INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		retrieved INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_hits (
		search_id TEXT NOT NULL REFERENCES searches (search_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		PRIMARY KEY (search_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveArticle stores a. It reports false when an article with the same id
// was already stored.
func (s *Store) SaveArticle(a lmdcrawl.Article) (bool, error) {
	if a.ArticleID == nil {
		return false, ErrNoArticleID
	}

	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return false, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO articles (
			article_id, url, title, description, content, date, keywords,
			article_type, allow_comments, premium, subscription_tier, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		*a.ArticleID,
		a.URL,
		a.Title,
		a.Description,
		a.Content,
		nullIfEmpty(a.Date),
		string(keywordsJSON),
		nullIfEmpty(a.ArticleType),
		a.AllowComments,
		a.Premium,
		nullIfEmpty(a.SubscriptionTier),
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// GetArticle retrieves an article by id.
func (s *Store) GetArticle(articleID int64) (*lmdcrawl.Article, error) {
	query := `
		SELECT article_id, url, title, description, content, date, keywords,
		       article_type, allow_comments, premium, subscription_tier
		FROM articles
		WHERE article_id = ?
	`

	var a lmdcrawl.Article
	var id int64
	var description, date, articleType, tier sql.NullString
	var keywordsJSON string

	err := s.db.QueryRow(query, articleID).Scan(
		&id, &a.URL, &a.Title, &description, &a.Content, &date, &keywordsJSON,
		&articleType, &a.AllowComments, &a.Premium, &tier,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article %d: %w", articleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	a.ArticleID = &id
	if description.Valid {
		a.Description = &description.String
	}
	a.Date = date.String
	a.ArticleType = articleType.String
	a.SubscriptionTier = tier.String
	if err := json.Unmarshal([]byte(keywordsJSON), &a.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}

	return &a, nil
}

// CountArticles returns the number of stored articles.
func (s *Store) CountArticles() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// SaveComments stores the comments of a thread in one transaction and
// returns how many were new. An empty thread stores nothing.
func (s *Store) SaveComments(thread lmdcrawl.CommentThread) (int, error) {
	if thread.ArticleID == nil {
		return 0, ErrNoArticleID
	}
	if len(thread.Comments) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO comments (article_id, author, comment) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range thread.Comments {
		res, err := stmt.Exec(*thread.ArticleID, c.Author, c.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to insert comment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read insert result: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit comments: %w", err)
	}
	return inserted, nil
}

// ListComments returns the stored comments of an article in insertion order.
func (s *Store) ListComments(articleID int64) ([]lmdcrawl.Comment, error) {
	rows, err := s.db.Query("SELECT author, comment FROM comments WHERE article_id = ? ORDER BY rowid", articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []lmdcrawl.Comment{}
	for rows.Next() {
		var c lmdcrawl.Comment
		if err := rows.Scan(&c.Author, &c.Content); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// SaveSearch stores a search result and its hits under a new run id.
func (s *Store) SaveSearch(r lmdcrawl.SearchResult) (uuid.UUID, error) {
	id := uuid.New()

	tx, err := s.db.Begin()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO searches (search_id, query, url, has_results, pages, retrieved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), r.Query, r.URL, r.HasResults, r.PageCount, r.Retrieved(), formatTime(time.Now()))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert search: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO search_hits (search_id, position, url, title) VALUES (?, ?, ?, ?)")
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, hit := range r.Hits {
		if _, err := stmt.Exec(id.String(), i, hit.URL, hit.Title); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert search hit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit search: %w", err)
	}
	return id, nil
}

// GetSearch retrieves a stored search by run id.
func (s *Store) GetSearch(searchID uuid.UUID) (*SearchRecord, error) {
	rec := SearchRecord{SearchID: searchID}
	var createdAt string

	err := s.db.QueryRow(`
		SELECT query, url, has_results, pages, created_at
		FROM searches
		WHERE search_id = ?
	`, searchID.String()).Scan(
		&rec.Result.Query, &rec.Result.URL, &rec.Result.HasResults, &rec.Result.PageCount, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("search %s: %w", searchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query search: %w", err)
	}
	rec.CreatedAt = parseTime(createdAt)

	rows, err := s.db.Query("SELECT url, title FROM search_hits WHERE search_id = ? ORDER BY position", searchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query search hits: %w", err)
	}
	defer rows.Close()

	rec.Result.Hits = []lmdcrawl.SearchHit{}
	for rows.Next() {
		var hit lmdcrawl.SearchHit
		if err := rows.Scan(&hit.URL, &hit.Title); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		rec.Result.Hits = append(rec.Result.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}

	return &rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Stats holds row counts of the dataset.
type Stats struct {
	Articles int `json:"articles"`
	Comments int `json:"comments"`
	Searches int `json:"searches"`
}

// Stats counts stored articles, comments and searches.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM articles),
		       (SELECT COUNT(*) FROM comments),
		       (SELECT COUNT(*) FROM searches)`).Scan(&st.Articles, &st.Comments, &st.Searches)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count dataset: %w", err)
	}
	return st, nil
}
