package relational

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSource(t *testing.T) *SQLiteSource {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBase(t *testing.T, s *SQLiteSource) {
	t.Helper()
	stmts := []string{
		`INSERT INTO users (user_id, username) VALUES ('u1', 'alice'), ('u2', 'bob')`,
		`INSERT INTO parent_categories (parent_category_id, name) VALUES ('pc1', 'Music')`,
		`INSERT INTO categories (category_id, name, parent_category_id) VALUES ('c1', 'Jazz', 'pc1'), ('c2', 'Rock', 'pc1')`,
		`INSERT INTO videos (video_id, title, creator_id) VALUES ('v1', 'First', 'u1'), ('v2', 'Second', 'u2')`,
		`INSERT INTO video_categories (video_id, category_id) VALUES ('v1', 'c1'), ('v1', 'c2'), ('v2', 'c2')`,
		`INSERT INTO video_parent_categories (video_id, parent_category_id) VALUES ('v1', 'pc1'), ('v2', 'pc1')`,
	}
	for _, stmt := range stmts {
		_, err := s.db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestListEntities(t *testing.T) {
	s := openTestSource(t)
	seedBase(t, s)
	ctx := context.Background()

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}}, users)

	parents, err := s.ParentCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ParentCategory{{ID: "pc1", Name: "Music"}}, parents)

	categories, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "pc1", categories[0].ParentCategoryID)
}

func TestVideosIncludeCategoryLinks(t *testing.T) {
	s := openTestSource(t)
	seedBase(t, s)

	videos, err := s.Videos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, "v1", videos[0].ID)
	assert.Equal(t, "u1", videos[0].CreatorID)
	assert.Equal(t, []string{"c1", "c2"}, videos[0].CategoryIDs)
	assert.Equal(t, []string{"pc1"}, videos[0].ParentCategoryIDs)
	assert.Equal(t, []string{"c2"}, videos[1].CategoryIDs)
}

func TestRecentWatchesOrderAndLimit(t *testing.T) {
	s := openTestSource(t)
	seedBase(t, s)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insert := func(user, video string, weight float64, ts time.Time) {
		_, err := s.db.Exec(
			`INSERT INTO watches (user_id, video_id, weight, timestamp) VALUES (?, ?, ?, ?)`,
			user, video, weight, ts.Format(time.RFC3339),
		)
		require.NoError(t, err)
	}
	insert("u1", "v1", 1.0, base)
	insert("u2", "v2", 0.5, base.Add(time.Hour))
	// Rewatch: same pair again, newest of all.
	insert("u1", "v1", 2.0, base.Add(2*time.Hour))

	watches, err := s.RecentWatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, watches, 2)

	assert.Equal(t, "u1", watches[0].UserID)
	assert.InDelta(t, 2.0, watches[0].Weight, 1e-9)
	assert.Equal(t, "u2", watches[1].UserID)
	assert.True(t, watches[0].Timestamp.After(watches[1].Timestamp))

	all, err := s.RecentWatches(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "repeated (user, video) events are separate rows")
}

func TestLikesAndFollows(t *testing.T) {
	s := openTestSource(t)
	seedBase(t, s)
	ctx := context.Background()

	ts := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO likes (user_id, video_id, timestamp) VALUES ('u1', 'v2', ?)`, ts)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO follows (follower_id, followee_id, timestamp) VALUES ('u1', 'u2', ?)`, ts)
	require.NoError(t, err)

	likes, err := s.Likes(ctx)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, "v2", likes[0].VideoID)

	follows, err := s.Follows(ctx)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, "u2", follows[0].FolloweeID)
}

func TestBumpInterestAccumulates(t *testing.T) {
	s := openTestSource(t)
	seedBase(t, s)
	ctx := context.Background()

	require.NoError(t, s.BumpInterest(ctx, "u1", "c1", 1.5))
	require.NoError(t, s.BumpInterest(ctx, "u1", "c1", 2.0))

	var score float64
	var count int
	err := s.db.QueryRow(
		`SELECT score, interaction_count FROM user_category_interest WHERE user_id = 'u1' AND category_id = 'c1'`,
	).Scan(&score, &count)
	require.NoError(t, err)

	assert.InDelta(t, 3.5, score, 1e-9)
	assert.Equal(t, 2, count)
}
