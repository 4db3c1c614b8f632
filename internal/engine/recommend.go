package engine

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/vecindex"
)

// GetRecommendations returns up to limit personalized video ids for the
// user, most similar first. Users without a usable embedding, and an
// engine without a populated index, fall back to global popularity; an
// empty index additionally enqueues a background training run so the
// next requests improve.
func (e *Engine) GetRecommendations(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	e.mu.RLock()
	index := e.index
	videoIDs := e.videoIDs
	e.mu.RUnlock()

	if index == nil || index.Len() == 0 {
		e.log.Info("vector index empty, serving popularity fallback", "user_id", userID)
		e.RequestTraining(TrainOptions{})
		return e.PopularVideos(ctx, limit)
	}

	emb, err := e.userEmbedding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(emb) != index.Dim() {
		return e.PopularVideos(ctx, limit)
	}
	vecindex.Normalize(emb)

	// Over-fetch so filtering out watched videos still leaves enough.
	positions, _ := index.Search(emb, limit*2)

	watched, err := e.watchedVideos(ctx, userID)
	if err != nil {
		return nil, err
	}

	recs := make([]string, 0, limit)
	for _, pos := range positions {
		id := videoIDs[pos]
		if _, seen := watched[id]; seen {
			continue
		}
		recs = append(recs, id)
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

// GetRecommendationsFromFollowed returns unwatched videos by creators the
// user follows, most watched first.
func (e *Engine) GetRecommendationsFromFollowed(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	result, err := e.driver.ExecuteQuery(ctx, driver.FollowedCreatorVideosQuery, map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query followed-creator videos: %w", err)
	}
	return videoIDColumn(result), nil
}

// GetRecommendationsByCategory returns the most watched videos under a
// parent category. A non-empty userID excludes that user's watched
// videos; an empty userID browses anonymously.
func (e *Engine) GetRecommendationsByCategory(ctx context.Context, userID, parentCategoryID string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	query := driver.CategoryVideosQuery
	params := map[string]interface{}{
		"parent_category_id": parentCategoryID,
		"limit":              limit,
	}
	if userID != "" {
		query = driver.CategoryVideosExcludingWatchedQuery
		params["user_id"] = userID
	}

	result, err := e.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query category videos: %w", err)
	}
	return videoIDColumn(result), nil
}

// PopularVideos returns the globally most watched videos.
func (e *Engine) PopularVideos(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	result, err := e.driver.ExecuteQuery(ctx, driver.PopularVideosQuery, map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query popular videos: %w", err)
	}
	return videoIDColumn(result), nil
}

// UserStats are the social counts for one user.
type UserStats struct {
	FollowerCount  int `json:"follower_count"`
	FollowingCount int `json:"following_count"`
	VideoCount     int `json:"video_count"`
}

func (e *Engine) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.UserStatsQuery, map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		return UserStats{}, fmt.Errorf("failed to query user stats: %w", err)
	}
	if len(result.Records) == 0 {
		return UserStats{}, nil
	}

	rec := result.Records[0]
	return UserStats{
		FollowerCount:  int(recordInt(rec, "follower_count")),
		FollowingCount: int(recordInt(rec, "following_count")),
		VideoCount:     int(recordInt(rec, "video_count")),
	}, nil
}

// userEmbedding returns the stored embedding for a user, or nil when the
// user is unknown or was not part of the last training run.
func (e *Engine) userEmbedding(ctx context.Context, userID string) ([]float32, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.UserEmbeddingQuery, map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user embedding: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	emb, _ := result.Records[0].Get("embedding")
	return floatSlice(emb), nil
}

func (e *Engine) watchedVideos(ctx context.Context, userID string) (map[string]struct{}, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.WatchedVideosQuery, map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query watched videos: %w", err)
	}
	watched := make(map[string]struct{}, len(result.Records))
	for _, rec := range result.Records {
		if id, ok := recordString(rec, "video_id"); ok {
			watched[id] = struct{}{}
		}
	}
	return watched, nil
}

func videoIDColumn(result neo4j.EagerResult) []string {
	ids := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		if id, ok := recordString(rec, "video_id"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
