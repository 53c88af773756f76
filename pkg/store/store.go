// Package store is the durable local mirror: accounts, posts, media,
// locations, tags and daily history snapshots over SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"igmirror/pkg/models"
)

// Store wraps *sql.DB over modernc.org/sqlite (pure Go driver).
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path and runs the idempotent migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Single connection keeps the foreign_keys pragma in force and avoids
	// writer contention.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrate executes the schema statements, idempotently.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL DEFAULT '',
            cookies TEXT NOT NULL DEFAULT '',
            processing INTEGER NOT NULL DEFAULT 0,
            posts_count INTEGER NOT NULL DEFAULT 0,
            followers_count INTEGER NOT NULL DEFAULT 0,
            following_count INTEGER NOT NULL DEFAULT 0,
            bio TEXT NOT NULL DEFAULT '',
            website TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS locations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL DEFAULT '',
            minor TEXT NOT NULL DEFAULT '',
            major TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS posts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            code TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            count INTEGER,
            kind TEXT NOT NULL DEFAULT '',
            location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
            posted_at TIMESTAMP,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL,
            UNIQUE(account_id, code)
        );`,
		`CREATE TABLE IF NOT EXISTS media (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            kind TEXT NOT NULL,
            source TEXT NOT NULL,
            size INTEGER NOT NULL DEFAULT 0,
            poster TEXT NOT NULL DEFAULT '',
            mime TEXT NOT NULL DEFAULT '',
            UNIQUE(post_id, kind, source)
        );`,
		`CREATE TABLE IF NOT EXISTS tags (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            word TEXT NOT NULL UNIQUE
        );`,
		`CREATE TABLE IF NOT EXISTS post_tags (
            post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
            PRIMARY KEY (post_id, tag_id)
        );`,
		`CREATE TABLE IF NOT EXISTS account_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            date TEXT NOT NULL,
            posts_count INTEGER NOT NULL DEFAULT 0,
            followers_count INTEGER NOT NULL DEFAULT 0,
            following_count INTEGER NOT NULL DEFAULT 0,
            UNIQUE(account_id, date)
        );`,
		`CREATE TABLE IF NOT EXISTS post_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            date TEXT NOT NULL,
            count INTEGER NOT NULL DEFAULT 0,
            kind TEXT NOT NULL DEFAULT '',
            UNIQUE(post_id, date)
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

const accountColumns = `id, username, password, cookies, processing,
    posts_count, followers_count, following_count, bio, website,
    created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Password, &a.Cookies, &a.Processing,
		&a.PostsCount, &a.FollowersCount, &a.FollowingCount, &a.Bio, &a.Website,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account row and fills its id and timestamps.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.Username == "" {
		return errors.New("account.username required")
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx, `INSERT INTO accounts
        (username, password, cookies, processing, posts_count, followers_count, following_count, bio, website, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.Username, a.Password, a.Cookies, a.Processing,
		a.PostsCount, a.FollowersCount, a.FollowingCount, a.Bio, a.Website,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create account %s: %w", a.Username, err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetAccount returns the account with the given id, or nil when absent.
func (s *Store) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// GetAccountByUsername returns the account with the given username, or nil
// when absent.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", username, err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by username.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAccountAggregates writes the profile-level counts, bio and website.
func (s *Store) UpdateAccountAggregates(ctx context.Context, id int64, postsCount, followersCount, followingCount int, bio, website string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET
        posts_count=?, followers_count=?, following_count=?, bio=?, website=?, updated_at=?
        WHERE id=?`,
		postsCount, followersCount, followingCount, bio, website, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update account %d aggregates: %w", id, err)
	}
	return nil
}

// UpdateAccountCookies replaces the account's opaque cookie blob.
func (s *Store) UpdateAccountCookies(ctx context.Context, id int64, cookies string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET cookies=?, updated_at=? WHERE id=?`,
		cookies, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update account %d cookies: %w", id, err)
	}
	return nil
}

// SetProcessing flips the single-writer guard. Its read and write are
// separate statements by design: the guard is best effort, not a lock.
func (s *Store) SetProcessing(ctx context.Context, id int64, processing bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET processing=?, updated_at=? WHERE id=?`,
		processing, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set account %d processing: %w", id, err)
	}
	return nil
}

// DeleteAccount removes the account; posts, media and history rows cascade.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	return nil
}

const postColumns = `id, account_id, code, description, count, kind,
    location_id, posted_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var p models.Post
	var count sql.NullInt64
	var locationID sql.NullInt64
	var postedAt sql.NullTime
	err := row.Scan(&p.ID, &p.AccountID, &p.Code, &p.Description, &count, &p.Kind,
		&locationID, &postedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if count.Valid {
		n := int(count.Int64)
		p.Count = &n
	}
	if locationID.Valid {
		p.LocationID = &locationID.Int64
	}
	if postedAt.Valid {
		p.PostedAt = postedAt.Time
	}
	return &p, nil
}

// UpsertPost creates a stub post row for (account, code) if one does not
// exist, and reports whether it was created. The created flag drives the
// reconciler's early-stop policy.
func (s *Store) UpsertPost(ctx context.Context, accountID int64, code string) (post *models.Post, created bool, err error) {
	if code == "" {
		return nil, false, errors.New("post.code required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts (account_id, code, created_at, updated_at)
        VALUES (?,?,?,?) ON CONFLICT(account_id, code) DO NOTHING`,
		accountID, code, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("upsert post %s: %w", code, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	post, err = s.GetPost(ctx, accountID, code)
	if err != nil {
		return nil, false, err
	}
	return post, affected > 0, nil
}

// GetPost returns the post for (account, code), or nil when absent.
func (s *Store) GetPost(ctx context.Context, accountID int64, code string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE account_id=? AND code=?`, accountID, code)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", code, err)
	}
	return p, nil
}

// ListPosts returns all posts of the account, newest first.
func (s *Store) ListPosts(ctx context.Context, accountID int64) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE account_id=? ORDER BY posted_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	var out []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePostDetail writes the extracted detail fields of a refreshed post.
func (s *Store) UpdatePostDetail(ctx context.Context, p *models.Post) error {
	var count interface{}
	if p.Count != nil {
		count = *p.Count
	}
	var locationID interface{}
	if p.LocationID != nil {
		locationID = *p.LocationID
	}
	var postedAt interface{}
	if !p.PostedAt.IsZero() {
		postedAt = p.PostedAt
	}
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET
        description=?, count=?, kind=?, location_id=?, posted_at=?, updated_at=?
        WHERE id=?`,
		p.Description, count, p.Kind, locationID, postedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post %s: %w", p.Code, err)
	}
	return nil
}

// DeletePost removes the post; media, tags and history rows cascade.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

// ListMedia returns the post's media rows ordered by size ascending.
func (s *Store) ListMedia(ctx context.Context, postID int64) ([]models.Media, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, kind, source, size, poster, mime
         FROM media WHERE post_id=? ORDER BY size ASC, id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	var out []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.PostID, &m.Kind, &m.Source, &m.Size, &m.Poster, &m.Mime); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMedia adds a media row and fills its id.
func (s *Store) InsertMedia(ctx context.Context, m *models.Media) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO media (post_id, kind, source, size, poster, mime)
        VALUES (?,?,?,?,?,?)`,
		m.PostID, m.Kind, m.Source, m.Size, m.Poster, m.Mime)
	if err != nil {
		return fmt.Errorf("insert media %s: %w", m.Source, err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// DeleteMedia removes one media row.
func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}
	return nil
}

// UpsertLocation creates or refreshes a location by its platform code and
// returns its row id.
func (s *Store) UpsertLocation(ctx context.Context, loc *models.Location) (int64, error) {
	if loc.Code == "" {
		return 0, errors.New("location.code required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO locations (code, name, minor, major)
        VALUES (?,?,?,?)
        ON CONFLICT(code) DO UPDATE SET name=excluded.name, minor=excluded.minor, major=excluded.major`,
		loc.Code, loc.Name, loc.Minor, loc.Major)
	if err != nil {
		return 0, fmt.Errorf("upsert location %s: %w", loc.Code, err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT id FROM locations WHERE code=?`, loc.Code)
	if err := row.Scan(&loc.ID); err != nil {
		return 0, fmt.Errorf("get location %s: %w", loc.Code, err)
	}
	return loc.ID, nil
}

// DeleteLocation removes a location; referencing posts null out their
// location, they are not cascade-deleted.
func (s *Store) DeleteLocation(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete location %d: %w", id, err)
	}
	return nil
}

// SetPostTags replaces the post's tag set with the given words.
func (s *Store) SetPostTags(ctx context.Context, postID int64, words []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id=?`, postID); err != nil {
		return fmt.Errorf("clear post %d tags: %w", postID, err)
	}
	for _, word := range words {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO tags (word) VALUES (?) ON CONFLICT(word) DO NOTHING`, word); err != nil {
			return fmt.Errorf("upsert tag %s: %w", word, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO post_tags (post_id, tag_id)
            SELECT ?, id FROM tags WHERE word=?
            ON CONFLICT(post_id, tag_id) DO NOTHING`, postID, word); err != nil {
			return fmt.Errorf("link tag %s: %w", word, err)
		}
	}
	return nil
}

// GetPostTags returns the post's tag words in insertion order.
func (s *Store) GetPostTags(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.word FROM tags t
        JOIN post_tags pt ON pt.tag_id = t.id
        WHERE pt.post_id=? ORDER BY t.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("get post tags: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertAccountHistory writes the account's snapshot for a calendar date,
// idempotently.
func (s *Store) UpsertAccountHistory(ctx context.Context, h *models.AccountHistory) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO account_history
        (account_id, date, posts_count, followers_count, following_count)
        VALUES (?,?,?,?,?)
        ON CONFLICT(account_id, date) DO UPDATE SET
        posts_count=excluded.posts_count, followers_count=excluded.followers_count, following_count=excluded.following_count`,
		h.AccountID, h.Date, h.PostsCount, h.FollowersCount, h.FollowingCount)
	if err != nil {
		return fmt.Errorf("upsert account history: %w", err)
	}
	return nil
}

// UpsertPostHistory writes the post's snapshot for a calendar date,
// idempotently.
func (s *Store) UpsertPostHistory(ctx context.Context, h *models.PostHistory) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO post_history (post_id, date, count, kind)
        VALUES (?,?,?,?)
        ON CONFLICT(post_id, date) DO UPDATE SET count=excluded.count, kind=excluded.kind`,
		h.PostID, h.Date, h.Count, h.Kind)
	if err != nil {
		return fmt.Errorf("upsert post history: %w", err)
	}
	return nil
}

// CountAccountHistory returns how many snapshot rows the account has.
func (s *Store) CountAccountHistory(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_history WHERE account_id=?`, accountID).Scan(&n)
	return n, err
}

// CountPostHistory returns how many snapshot rows the post has.
func (s *Store) CountPostHistory(ctx context.Context, postID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post_history WHERE post_id=?`, postID).Scan(&n)
	return n, err
}

// CountPosts returns how many posts the account has locally.
func (s *Store) CountPosts(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE account_id=?`, accountID).Scan(&n)
	return n, err
}
