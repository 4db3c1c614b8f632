package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vidora/recgraph/internal/driver"
	"github.com/vidora/recgraph/internal/metrics"
	"github.com/vidora/recgraph/internal/relational"
)

// SimilarityThreshold is the minimum category Jaccard overlap for a
// SIMILAR_TO edge.
const SimilarityThreshold = 0.30

// likeInterestWeight is the interest-score delta contributed by a like.
const likeInterestWeight = 2.0

// Sync operations mirror relational entities and events into the graph
// store. All of them are idempotent create-or-update upserts. Nothing is
// ever deleted here: unwatch/unlike/unfollow keep their historical edges
// as collaborative signal (retained-signal policy); periodic retraining
// bounds the staleness this introduces.

func (e *Engine) SyncParentCategory(ctx context.Context, pc relational.ParentCategory) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeParentCategoryQuery, map[string]interface{}{
		"parent_category_id": pc.ID,
		"name":               pc.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to sync parent category %s: %w", pc.ID, err)
	}
	metrics.SyncOps.WithLabelValues("parent_category").Inc()
	return nil
}

func (e *Engine) SyncCategory(ctx context.Context, c relational.Category) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeCategoryQuery, map[string]interface{}{
		"category_id":        c.ID,
		"name":               c.Name,
		"parent_category_id": c.ParentCategoryID,
	})
	if err != nil {
		return fmt.Errorf("failed to sync category %s: %w", c.ID, err)
	}
	metrics.SyncOps.WithLabelValues("category").Inc()
	return nil
}

func (e *Engine) SyncUser(ctx context.Context, u relational.User) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeUserQuery, map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	})
	if err != nil {
		return fmt.Errorf("failed to sync user %s: %w", u.ID, err)
	}
	metrics.SyncOps.WithLabelValues("user").Inc()
	return nil
}

func (e *Engine) SyncVideo(ctx context.Context, v relational.Video) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeVideoQuery, map[string]interface{}{
		"video_id":          v.ID,
		"title":             v.Title,
		"creator_id":        v.CreatorID,
		"categories":        toAnySlice(v.CategoryIDs),
		"parent_categories": toAnySlice(v.ParentCategoryIDs),
	})
	if err != nil {
		return fmt.Errorf("failed to sync video %s: %w", v.ID, err)
	}
	metrics.SyncOps.WithLabelValues("video").Inc()
	return nil
}

// SyncWatch merges the WATCHES edge and updates the per-category interest
// aggregate on both stores. The two writes are not transactional: if the
// relational write fails after the graph write succeeded, the stores
// disagree until the next event; the failure is counted and logged rather
// than rolled back.
func (e *Engine) SyncWatch(ctx context.Context, w relational.Watch) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeWatchQuery, map[string]interface{}{
		"user_id":   w.UserID,
		"video_id":  w.VideoID,
		"weight":    w.Weight,
		"timestamp": w.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to sync watch %s->%s: %w", w.UserID, w.VideoID, err)
	}
	metrics.SyncOps.WithLabelValues("watch").Inc()

	e.bumpRelationalInterest(ctx, w.UserID, w.VideoID, w.Weight)
	return nil
}

// SyncLike merges the LIKES edge; likes contribute a fixed interest
// weight per event.
func (e *Engine) SyncLike(ctx context.Context, l relational.Like) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeLikeQuery, map[string]interface{}{
		"user_id":   l.UserID,
		"video_id":  l.VideoID,
		"timestamp": l.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to sync like %s->%s: %w", l.UserID, l.VideoID, err)
	}
	metrics.SyncOps.WithLabelValues("like").Inc()

	e.bumpRelationalInterest(ctx, l.UserID, l.VideoID, likeInterestWeight)
	return nil
}

func (e *Engine) SyncFollow(ctx context.Context, f relational.Follow) error {
	_, err := e.driver.ExecuteQuery(ctx, driver.MergeFollowQuery, map[string]interface{}{
		"follower_id": f.FollowerID,
		"followee_id": f.FolloweeID,
		"timestamp":   f.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to sync follow %s->%s: %w", f.FollowerID, f.FolloweeID, err)
	}
	metrics.SyncOps.WithLabelValues("follow").Inc()
	return nil
}

// bumpRelationalInterest is the relational half of the interest dual
// write: one increment per (user, category of the video) per event.
func (e *Engine) bumpRelationalInterest(ctx context.Context, userID, videoID string, delta float64) {
	if e.source == nil {
		return
	}

	result, err := e.driver.ExecuteQuery(ctx, driver.VideoCategoryIDsQuery, map[string]interface{}{
		"video_id": videoID,
	})
	if err != nil || len(result.Records) == 0 {
		metrics.InterestWriteFailures.Inc()
		e.log.Warn("interest aggregate skipped, video categories unavailable", "video_id", videoID, "error", err)
		return
	}

	cats, _ := result.Records[0].Get("categories")
	for _, categoryID := range stringSlice(cats) {
		if err := e.source.BumpInterest(ctx, userID, categoryID, delta); err != nil {
			metrics.InterestWriteFailures.Inc()
			e.log.Warn("interest aggregate write failed",
				"user_id", userID, "category_id", categoryID, "error", err)
		}
	}
}

// SyncCategories mirrors all parent categories and categories.
func (e *Engine) SyncCategories(ctx context.Context) error {
	parents, err := e.source.ParentCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parent categories: %w", err)
	}
	for _, pc := range parents {
		if err := e.SyncParentCategory(ctx, pc); err != nil {
			return err
		}
	}

	categories, err := e.source.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	for _, c := range categories {
		if err := e.SyncCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// BulkSync mirrors the full relational state: categories, users, videos,
// the most recent watch events (bounded by the configured limit), all
// likes and follows, then recomputes video similarities.
func (e *Engine) BulkSync(ctx context.Context) error {
	if err := e.SyncCategories(ctx); err != nil {
		return err
	}

	users, err := e.source.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if err := e.SyncUser(ctx, u); err != nil {
			return err
		}
	}

	videos, err := e.source.Videos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}
	for _, v := range videos {
		if err := e.SyncVideo(ctx, v); err != nil {
			return err
		}
	}

	watches, err := e.source.RecentWatches(ctx, e.cfg.Training.WatchSyncLimit)
	if err != nil {
		return fmt.Errorf("failed to list watches: %w", err)
	}
	for i, w := range watches {
		if err := e.SyncWatch(ctx, w); err != nil {
			return err
		}
		if (i+1)%1000 == 0 {
			e.log.Info("synced watches", "count", i+1)
		}
	}

	likes, err := e.source.Likes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list likes: %w", err)
	}
	for _, l := range likes {
		if err := e.SyncLike(ctx, l); err != nil {
			return err
		}
	}

	follows, err := e.source.Follows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list follows: %w", err)
	}
	for _, f := range follows {
		if err := e.SyncFollow(ctx, f); err != nil {
			return err
		}
	}

	created, err := e.ComputeVideoSimilarities(ctx)
	if err != nil {
		return err
	}

	e.log.Info("bulk sync complete",
		"users", len(users),
		"videos", len(videos),
		"watches", len(watches),
		"likes", len(likes),
		"follows", len(follows),
		"similarity_edges", created)
	return nil
}

// ComputeVideoSimilarities runs the O(V²) pairwise category-overlap scan
// and merges SIMILAR_TO edges for pairs at or above the threshold. It is
// an offline batch operation, invoked only from bulk sync or the
// similarities-only command, never from a query path.
func (e *Engine) ComputeVideoSimilarities(ctx context.Context) (int, error) {
	result, err := e.driver.ExecuteQuery(ctx, driver.VideoCategoriesQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read video categories: %w", err)
	}

	type videoCats struct {
		id   string
		cats []string
	}
	videos := make([]videoCats, 0, len(result.Records))
	for _, rec := range result.Records {
		id, ok := recordString(rec, "video_id")
		if !ok {
			continue
		}
		cats, _ := rec.Get("categories")
		videos = append(videos, videoCats{id: id, cats: stringSlice(cats)})
	}

	created := 0
	for i := 0; i < len(videos); i++ {
		for j := i + 1; j < len(videos); j++ {
			if err := ctx.Err(); err != nil {
				return created, err
			}

			sim := jaccard(videos[i].cats, videos[j].cats)
			if sim < SimilarityThreshold {
				continue
			}

			a, b := videos[i].id, videos[j].id
			if b < a {
				a, b = b, a
			}
			_, err := e.driver.ExecuteQuery(ctx, driver.MergeSimilarToQuery, map[string]interface{}{
				"video_id_1": a,
				"video_id_2": b,
				"similarity": sim,
			})
			if err != nil {
				return created, fmt.Errorf("failed to merge similarity %s~%s: %w", a, b, err)
			}
			created++
		}
	}

	metrics.SimilarityEdges.Add(float64(created))
	return created, nil
}

// jaccard is |a∩b| / |a∪b| over category id sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	intersection := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, x := range b {
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		if _, ok := set[x]; ok {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
