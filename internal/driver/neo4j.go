package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vidora/recgraph/internal/logger"
)

type Neo4jDriver struct {
	Driver neo4j.DriverWithContext
	log    *logger.Logger
}

func NewNeo4jDriver(uri, username, password string, log *logger.Logger) (*Neo4jDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = 50
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	log.Info("connected to graph store", "uri", uri)
	return &Neo4jDriver{Driver: d, log: log}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildSchema creates uniqueness constraints and secondary indexes. Setup
// is idempotent: individual statement failures (already-present
// constraints on older server versions) are logged and tolerated.
func (d *Neo4jDriver) BuildSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE",
		"CREATE CONSTRAINT video_id IF NOT EXISTS FOR (v:Video) REQUIRE v.video_id IS UNIQUE",
		"CREATE CONSTRAINT category_id IF NOT EXISTS FOR (c:Category) REQUIRE c.category_id IS UNIQUE",
		"CREATE CONSTRAINT parent_category_id IF NOT EXISTS FOR (pc:ParentCategory) REQUIRE pc.parent_category_id IS UNIQUE",

		"CREATE INDEX user_username IF NOT EXISTS FOR (u:User) ON (u.username)",
		"CREATE INDEX video_categories IF NOT EXISTS FOR (v:Video) ON (v.categories)",
		"CREATE INDEX video_parent_categories IF NOT EXISTS FOR (v:Video) ON (v.parent_categories)",
		"CREATE INDEX category_name IF NOT EXISTS FOR (c:Category) ON (c.name)",
		"CREATE INDEX watches_timestamp IF NOT EXISTS FOR ()-[r:WATCHES]-() ON (r.timestamp)",
	}

	for _, stmt := range statements {
		if _, err := d.ExecuteQuery(ctx, stmt, nil); err != nil {
			d.log.Warn("schema statement failed", "statement", stmt, "error", err)
		}
	}

	return nil
}
