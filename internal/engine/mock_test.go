package engine

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vidora/recgraph/internal/relational"
)

// mockDriver records every executed query and answers from a
// caller-supplied handler. Queries without a handler answer empty.
type mockDriver struct {
	mu      sync.Mutex
	calls   []queryCall
	respond func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
}

type queryCall struct {
	query  string
	params map[string]interface{}
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, queryCall{query: query, params: params})
	respond := m.respond
	m.mu.Unlock()

	if respond != nil {
		return respond(query, params)
	}
	return neo4j.EagerResult{}, nil
}

func (m *mockDriver) BuildSchema(ctx context.Context) error { return nil }
func (m *mockDriver) Close(ctx context.Context) error       { return nil }

func (m *mockDriver) callsFor(query string) []queryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []queryCall
	for _, c := range m.calls {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

// result builds an EagerResult with one record per values row.
func result(keys []string, rows ...[]any) neo4j.EagerResult {
	records := make([]*neo4j.Record, len(rows))
	for i, row := range rows {
		records[i] = &neo4j.Record{Keys: keys, Values: row}
	}
	return neo4j.EagerResult{Keys: keys, Records: records}
}

type interestBump struct {
	userID     string
	categoryID string
	delta      float64
}

// mockSource serves canned relational data and records interest writes.
type mockSource struct {
	mu      sync.Mutex
	parents []relational.ParentCategory
	cats    []relational.Category
	users   []relational.User
	videos  []relational.Video
	watches []relational.Watch
	likes   []relational.Like
	follows []relational.Follow

	bumps   []interestBump
	bumpErr error
}

func (m *mockSource) ParentCategories(ctx context.Context) ([]relational.ParentCategory, error) {
	return m.parents, nil
}

func (m *mockSource) Categories(ctx context.Context) ([]relational.Category, error) {
	return m.cats, nil
}

func (m *mockSource) Users(ctx context.Context) ([]relational.User, error) {
	return m.users, nil
}

func (m *mockSource) Videos(ctx context.Context) ([]relational.Video, error) {
	return m.videos, nil
}

func (m *mockSource) RecentWatches(ctx context.Context, limit int) ([]relational.Watch, error) {
	if limit < len(m.watches) {
		return m.watches[:limit], nil
	}
	return m.watches, nil
}

func (m *mockSource) Likes(ctx context.Context) ([]relational.Like, error) {
	return m.likes, nil
}

func (m *mockSource) Follows(ctx context.Context) ([]relational.Follow, error) {
	return m.follows, nil
}

func (m *mockSource) BumpInterest(ctx context.Context, userID, categoryID string, delta float64) error {
	if m.bumpErr != nil {
		return m.bumpErr
	}
	m.mu.Lock()
	m.bumps = append(m.bumps, interestBump{userID: userID, categoryID: categoryID, delta: delta})
	m.mu.Unlock()
	return nil
}

func (m *mockSource) Close() error { return nil }
