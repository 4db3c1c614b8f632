// Package relational is the narrow interface to the system-of-record for
// users, videos, categories and interaction events. The engine reads
// entity listings from it during bulk sync and writes back one aggregate:
// the per-(user, category) interest score.
package relational

import (
	"context"
	"time"
)

type User struct {
	ID       string
	Username string
}

type ParentCategory struct {
	ID   string
	Name string
}

type Category struct {
	ID               string
	Name             string
	ParentCategoryID string
}

type Video struct {
	ID                string
	Title             string
	CreatorID         string
	CategoryIDs       []string
	ParentCategoryIDs []string
}

type Watch struct {
	UserID    string
	VideoID   string
	Weight    float64
	Timestamp time.Time
}

type Like struct {
	UserID    string
	VideoID   string
	Timestamp time.Time
}

type Follow struct {
	FollowerID string
	FolloweeID string
	Timestamp  time.Time
}

type Source interface {
	ParentCategories(ctx context.Context) ([]ParentCategory, error)
	Categories(ctx context.Context) ([]Category, error)
	Users(ctx context.Context) ([]User, error)
	Videos(ctx context.Context) ([]Video, error)

	// RecentWatches returns the most recent limit watch events by
	// timestamp descending. Watch events are an append-only log: the
	// same (user, video) pair may repeat.
	RecentWatches(ctx context.Context, limit int) ([]Watch, error)
	Likes(ctx context.Context) ([]Like, error)
	Follows(ctx context.Context) ([]Follow, error)

	// BumpInterest adds delta to the (user, category) interest score and
	// increments its interaction count, creating the row if absent.
	BumpInterest(ctx context.Context, userID, categoryID string, delta float64) error

	Close() error
}
