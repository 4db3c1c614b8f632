package engine

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/vecindex"
)

// seedIndex installs a 2-dimensional index of unit vectors for v1..v3:
// v1 aligned with the x axis, v2 at roughly 37 degrees, v3 orthogonal.
func seedIndex(e *Engine) {
	idx := vecindex.New(2)
	_ = idx.Add([]float32{1, 0})
	_ = idx.Add([]float32{0.8, 0.6})
	_ = idx.Add([]float32{0, 1})
	e.index = idx
	e.videoIDs = []string{"v1", "v2", "v3"}
	e.meta.HiddenDim = 2
}

func embeddingResponse(emb []any) func(string, map[string]interface{}) (neo4j.EagerResult, error) {
	return func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		switch query {
		case driver.UserEmbeddingQuery:
			return result([]string{"embedding"}, []any{emb}), nil
		case driver.WatchedVideosQuery:
			return result([]string{"video_id"}, []any{"v1"}), nil
		case driver.PopularVideosQuery:
			return result([]string{"video_id"}, []any{"v9"}, []any{"v8"}), nil
		}
		return neo4j.EagerResult{}, nil
	}
}

func TestGetRecommendationsFiltersWatchedPreservingRank(t *testing.T) {
	d := &mockDriver{respond: embeddingResponse([]any{1.0, 0.0})}
	e := newTestEngine(t, d, nil)
	seedIndex(e)

	recs, err := e.GetRecommendations(context.Background(), "u1", 2)
	require.NoError(t, err)

	// v1 scores highest but is watched; v2 then v3 remain in rank order.
	assert.Equal(t, []string{"v2", "v3"}, recs)
}

func TestGetRecommendationsLimitRespected(t *testing.T) {
	d := &mockDriver{respond: embeddingResponse([]any{1.0, 0.0})}
	e := newTestEngine(t, d, nil)
	seedIndex(e)

	recs, err := e.GetRecommendations(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, recs)

	recs, err = e.GetRecommendations(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGetRecommendationsFallsBackWithoutEmbedding(t *testing.T) {
	d := &mockDriver{respond: embeddingResponse(nil)}
	e := newTestEngine(t, d, nil)
	seedIndex(e)

	recs, err := e.GetRecommendations(context.Background(), "u-new", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v9", "v8"}, recs, "users without embeddings get the popularity fallback")
}

func TestGetRecommendationsFallsBackOnDimensionMismatch(t *testing.T) {
	d := &mockDriver{respond: embeddingResponse([]any{1.0, 0.0, 0.0})}
	e := newTestEngine(t, d, nil)
	seedIndex(e)

	recs, err := e.GetRecommendations(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v9", "v8"}, recs, "a stale embedding dimension must not reach the index")
}

func TestGetRecommendationsEmptyIndexEnqueuesTraining(t *testing.T) {
	d := &mockDriver{respond: embeddingResponse([]any{1.0, 0.0})}
	e := newTestEngine(t, d, nil)

	recs, err := e.GetRecommendations(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v9", "v8"}, recs)

	waitForTraining(e)
}

func TestGetRecommendationsFromFollowed(t *testing.T) {
	d := &mockDriver{
		respond: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			if query == driver.FollowedCreatorVideosQuery {
				return result([]string{"video_id"}, []any{"v5"}, []any{"v6"}), nil
			}
			return neo4j.EagerResult{}, nil
		},
	}
	e := newTestEngine(t, d, nil)

	recs, err := e.GetRecommendationsFromFollowed(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"v5", "v6"}, recs)

	calls := d.callsFor(driver.FollowedCreatorVideosQuery)
	require.Len(t, calls, 1)
	assert.Equal(t, "u1", calls[0].params["user_id"])
	assert.Equal(t, 5, calls[0].params["limit"])
}

func TestGetRecommendationsByCategory(t *testing.T) {
	d := &mockDriver{
		respond: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			return result([]string{"video_id"}, []any{"v7"}), nil
		},
	}
	e := newTestEngine(t, d, nil)
	ctx := context.Background()

	recs, err := e.GetRecommendationsByCategory(ctx, "", "pc1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"v7"}, recs)
	assert.Len(t, d.callsFor(driver.CategoryVideosQuery), 1, "anonymous browsing skips the watched filter")

	_, err = e.GetRecommendationsByCategory(ctx, "u1", "pc1", 3)
	require.NoError(t, err)
	excluding := d.callsFor(driver.CategoryVideosExcludingWatchedQuery)
	require.Len(t, excluding, 1)
	assert.Equal(t, "u1", excluding[0].params["user_id"])
}

func TestGetUserStats(t *testing.T) {
	d := &mockDriver{
		respond: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
			if query == driver.UserStatsQuery {
				return result(
					[]string{"follower_count", "following_count", "video_count"},
					[]any{int64(3), int64(2), int64(5)},
				), nil
			}
			return neo4j.EagerResult{}, nil
		},
	}
	e := newTestEngine(t, d, nil)

	stats, err := e.GetUserStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, UserStats{FollowerCount: 3, FollowingCount: 2, VideoCount: 5}, stats)
}

func TestGetUserStatsUnknownUser(t *testing.T) {
	d := &mockDriver{}
	e := newTestEngine(t, d, nil)

	stats, err := e.GetUserStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, UserStats{}, stats)
}
