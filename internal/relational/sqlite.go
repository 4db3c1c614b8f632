package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSource implements Source over a sqlite database. Any store
// satisfying the Source interface works; this implementation keeps the
// repo self-contained and is what the CLI wires by default.
type SQLiteSource struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	s := &SQLiteSource{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS parent_categories (
			parent_category_id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS categories (
			category_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_category_id TEXT NOT NULL REFERENCES parent_categories(parent_category_id)
		);

		CREATE TABLE IF NOT EXISTS videos (
			video_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			creator_id TEXT NOT NULL REFERENCES users(user_id)
		);

		CREATE TABLE IF NOT EXISTS video_categories (
			video_id TEXT NOT NULL REFERENCES videos(video_id),
			category_id TEXT NOT NULL REFERENCES categories(category_id),
			PRIMARY KEY (video_id, category_id)
		);

		CREATE TABLE IF NOT EXISTS video_parent_categories (
			video_id TEXT NOT NULL REFERENCES videos(video_id),
			parent_category_id TEXT NOT NULL REFERENCES parent_categories(parent_category_id),
			PRIMARY KEY (video_id, parent_category_id)
		);

		-- Append-only event log: repeated (user_id, video_id) rows are the
		-- point, a rewatch is a new event.
		CREATE TABLE IF NOT EXISTS watches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			video_id TEXT NOT NULL REFERENCES videos(video_id),
			weight REAL NOT NULL DEFAULT 1.0,
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_watches_timestamp ON watches(timestamp DESC);

		CREATE TABLE IF NOT EXISTS likes (
			user_id TEXT NOT NULL REFERENCES users(user_id),
			video_id TEXT NOT NULL REFERENCES videos(video_id),
			timestamp TEXT NOT NULL,
			PRIMARY KEY (user_id, video_id)
		);

		CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(user_id),
			followee_id TEXT NOT NULL REFERENCES users(user_id),
			timestamp TEXT NOT NULL,
			PRIMARY KEY (follower_id, followee_id)
		);

		CREATE TABLE IF NOT EXISTS user_category_interest (
			user_id TEXT NOT NULL REFERENCES users(user_id),
			category_id TEXT NOT NULL REFERENCES categories(category_id),
			score REAL NOT NULL DEFAULT 0,
			interaction_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, category_id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating relational schema: %w", err)
	}
	return nil
}

func (s *SQLiteSource) ParentCategories(ctx context.Context) ([]ParentCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT parent_category_id, name FROM parent_categories ORDER BY parent_category_id`)
	if err != nil {
		return nil, fmt.Errorf("listing parent categories: %w", err)
	}
	defer rows.Close()

	var out []ParentCategory
	for rows.Next() {
		var pc ParentCategory
		if err := rows.Scan(&pc.ID, &pc.Name); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, name, parent_category_id FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentCategoryID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) Users(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) Videos(ctx context.Context) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT video_id, title, creator_id FROM videos ORDER BY video_id`)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer rows.Close()

	var out []Video
	byID := make(map[string]int)
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Title, &v.CreatorID); err != nil {
			return nil, err
		}
		byID[v.ID] = len(out)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.QueryContext(ctx, `SELECT video_id, category_id FROM video_categories ORDER BY video_id, category_id`)
	if err != nil {
		return nil, fmt.Errorf("listing video categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var videoID, categoryID string
		if err := catRows.Scan(&videoID, &categoryID); err != nil {
			return nil, err
		}
		if i, ok := byID[videoID]; ok {
			out[i].CategoryIDs = append(out[i].CategoryIDs, categoryID)
		}
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	parentRows, err := s.db.QueryContext(ctx, `SELECT video_id, parent_category_id FROM video_parent_categories ORDER BY video_id, parent_category_id`)
	if err != nil {
		return nil, fmt.Errorf("listing video parent categories: %w", err)
	}
	defer parentRows.Close()
	for parentRows.Next() {
		var videoID, parentID string
		if err := parentRows.Scan(&videoID, &parentID); err != nil {
			return nil, err
		}
		if i, ok := byID[videoID]; ok {
			out[i].ParentCategoryIDs = append(out[i].ParentCategoryIDs, parentID)
		}
	}
	return out, parentRows.Err()
}

func (s *SQLiteSource) RecentWatches(ctx context.Context, limit int) ([]Watch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, video_id, weight, timestamp
		FROM watches
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing watches: %w", err)
	}
	defer rows.Close()

	var out []Watch
	for rows.Next() {
		var w Watch
		var ts string
		if err := rows.Scan(&w.UserID, &w.VideoID, &w.Weight, &ts); err != nil {
			return nil, err
		}
		w.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) Likes(ctx context.Context) ([]Like, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, video_id, timestamp FROM likes ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("listing likes: %w", err)
	}
	defer rows.Close()

	var out []Like
	for rows.Next() {
		var l Like
		var ts string
		if err := rows.Scan(&l.UserID, &l.VideoID, &ts); err != nil {
			return nil, err
		}
		l.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) Follows(ctx context.Context) ([]Follow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT follower_id, followee_id, timestamp FROM follows ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("listing follows: %w", err)
	}
	defer rows.Close()

	var out []Follow
	for rows.Next() {
		var f Follow
		var ts string
		if err := rows.Scan(&f.FollowerID, &f.FolloweeID, &ts); err != nil {
			return nil, err
		}
		f.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) BumpInterest(ctx context.Context, userID, categoryID string, delta float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_category_interest (user_id, category_id, score, interaction_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (user_id, category_id) DO UPDATE SET
			score = score + excluded.score,
			interaction_count = interaction_count + 1
	`, userID, categoryID, delta)
	if err != nil {
		return fmt.Errorf("bumping interest for user %s category %s: %w", userID, categoryID, err)
	}
	return nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
