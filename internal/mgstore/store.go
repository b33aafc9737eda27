// Package mgstore provides persistent storage for posts and site settings on
// a single SQLite database file.
package mgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// ErrPostNotFound is returned when a requested post doesn't exist.
var ErrPostNotFound = xerrors.New("post not found")

// ErrKeyNotFound is returned when a requested settings key doesn't exist.
var ErrKeyNotFound = xerrors.New("key not found")

// Well-known settings keys.
const (
	// KeyAbout is a short description of the site, rendered on the
	// homepage and used for Open Graph metadata.
	KeyAbout = "about"

	// KeyAuthorName is the site author's display name, used in article
	// metadata.
	KeyAuthorName = "author_name"

	// KeyBlogroll is a newline-separated list of feed URLs that seed the
	// blogroll cache.
	KeyBlogroll = "blogroll"

	// KeySalt is the persisted secret that signs session cookies.
	KeySalt = "salt"
)

// Post is a single piece of published writing. A zero ID means the post has
// never been saved, which is how unsaved previews are represented.
type Post struct {
	ID      int64
	Created time.Time
	Updated time.Time
	Content string
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the database connection. SQLite allows only one writer at a
// time, so the pool is capped at a single connection; callers are expected to
// serialize access through a guard on top of that.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
	path   string
}

// Open opens or creates the SQLite database at path and brings its schema up
// to date.
func Open(logger *logrus.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite",
		fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, xerrors.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, logger: logger, path: path}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("error migrating database: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs any embedded migrations not yet applied. It reuses the store's
// own connection so it works against every database the store can open,
// including ones that exist only for a single test.
func (s *Store) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return xerrors.Errorf("error reading embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return xerrors.Errorf("error preparing migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return xerrors.Errorf("error preparing migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return xerrors.Errorf("error running migrations: %w", err)
	}

	s.logger.WithField("database", s.path).Info("Database schema up to date")
	return nil
}

// ListPosts returns every post, newest first. Posts created in the same
// second keep insertion order, newest first.
func (s *Store) ListPosts(ctx context.Context) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created, updated, content FROM posts ORDER BY created DESC, id DESC")
	if err != nil {
		return nil, xerrors.Errorf("error listing posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("error listing posts: %w", err)
	}

	return posts, nil
}

// GetPost returns the post with the given ID, or ErrPostNotFound.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx,
		"SELECT id, created, updated, content FROM posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, xerrors.Errorf("error getting post %v: %w", id, err)
	}

	return post, nil
}

// InsertPost saves a new post and returns it with its assigned ID. Times are
// persisted in UTC at second precision, and the returned post reflects what
// was stored.
func (s *Store) InsertPost(ctx context.Context, created, updated time.Time, content string) (*Post, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (created, updated, content) VALUES (?, ?, ?)",
		formatTime(created), formatTime(updated), content)
	if err != nil {
		return nil, xerrors.Errorf("error inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, xerrors.Errorf("error getting inserted post ID: %w", err)
	}

	return s.GetPost(ctx, id)
}

// UpdatePost rewrites all fields of an existing post. Updating an ID that no
// longer exists is not an error.
func (s *Store) UpdatePost(ctx context.Context, post *Post) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE posts SET created = ?, updated = ?, content = ? WHERE id = ?",
		formatTime(post.Created), formatTime(post.Updated), post.Content, post.ID)
	if err != nil {
		return xerrors.Errorf("error updating post %v: %w", post.ID, err)
	}

	return nil
}

// DeletePost removes the post with the given ID. Deleting an ID that doesn't
// exist is not an error.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return xerrors.Errorf("error deleting post %v: %w", id, err)
	}

	return nil
}

// KVGet returns the value stored under key, or ErrKeyNotFound.
func (s *Store) KVGet(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, xerrors.Errorf("error getting key %q: %w", key, err)
	}

	return value, nil
}

// KVSet stores value under key, replacing any existing value.
func (s *Store) KVSet(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return xerrors.Errorf("error setting key %q: %w", key, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		post             Post
		created, updated string
	)
	if err := row.Scan(&post.ID, &created, &updated, &post.Content); err != nil {
		return nil, err
	}

	var err error
	if post.Created, err = parseTime(created); err != nil {
		return nil, xerrors.Errorf("error parsing created time: %w", err)
	}
	if post.Updated, err = parseTime(updated); err != nil {
		return nil, xerrors.Errorf("error parsing updated time: %w", err)
	}

	return &post, nil
}

// Times round-trip through the database as RFC 3339 strings in UTC, which
// pins them to the second precision the site renders anyway.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
