package driver

import "fmt"

// Sync queries. All writes are MERGE-based so that replaying the same
// relational state produces no duplicate nodes or relationships.
const (
	MergeParentCategoryQuery = `
		MERGE (pc:ParentCategory {parent_category_id: $parent_category_id})
		SET pc.name = $name,
			pc.updated_at = datetime()
	`

	MergeCategoryQuery = `
		MERGE (c:Category {category_id: $category_id})
		SET c.name = $name,
			c.parent_category = $parent_category_id,
			c.updated_at = datetime()

		MERGE (pc:ParentCategory {parent_category_id: $parent_category_id})
		MERGE (c)-[:PARENT_OF]->(pc)
	`

	MergeUserQuery = `
		MERGE (u:User {user_id: $user_id})
		SET u.username = $username,
			u.updated_at = datetime()
	`

	MergeVideoQuery = `
		MERGE (v:Video {video_id: $video_id})
		SET v.title = $title,
			v.categories = $categories,
			v.parent_categories = $parent_categories,
			v.updated_at = datetime()

		MERGE (creator:User {user_id: $creator_id})
		MERGE (v)-[:CREATED_BY]->(creator)

		WITH v
		UNWIND $categories AS cat_id
		MERGE (c:Category {category_id: cat_id})
		MERGE (v)-[:BELONGS_TO]->(c)
	`

	MergeWatchQuery = `
		MATCH (u:User {user_id: $user_id})
		MATCH (v:Video {video_id: $video_id})

		MERGE (u)-[w:WATCHES]->(v)
		SET w.weight = $weight,
			w.timestamp = $timestamp

		WITH u, v
		UNWIND v.categories AS cat_id
		MATCH (c:Category {category_id: cat_id})
		MERGE (u)-[i:INTERESTED_IN]->(c)
		ON CREATE SET i.score = $weight, i.count = 1
		ON MATCH SET i.score = i.score + $weight,
			i.count = i.count + 1
	`

	MergeLikeQuery = `
		MATCH (u:User {user_id: $user_id})
		MATCH (v:Video {video_id: $video_id})

		MERGE (u)-[l:LIKES]->(v)
		SET l.timestamp = $timestamp

		WITH u, v
		UNWIND v.categories AS cat_id
		MATCH (c:Category {category_id: cat_id})
		MERGE (u)-[i:INTERESTED_IN]->(c)
		ON CREATE SET i.score = 2.0, i.count = 1
		ON MATCH SET i.score = i.score + 2.0, i.count = i.count + 1
	`

	MergeFollowQuery = `
		MATCH (u1:User {user_id: $follower_id})
		MATCH (u2:User {user_id: $followee_id})

		MERGE (u1)-[f:FOLLOWS]->(u2)
		SET f.timestamp = $timestamp
	`

	// Callers pass the unordered pair id-ordered so the undirected edge is
	// merged exactly once.
	MergeSimilarToQuery = `
		MATCH (v1:Video {video_id: $video_id_1})
		MATCH (v2:Video {video_id: $video_id_2})

		MERGE (v1)-[s:SIMILAR_TO]-(v2)
		SET s.similarity = $similarity,
			s.updated_at = datetime()
	`

	VideoCategoriesQuery = `
		MATCH (v:Video)
		WHERE v.categories IS NOT NULL
		RETURN v.video_id AS video_id, v.categories AS categories
		ORDER BY v.video_id
	`

	VideoCategoryIDsQuery = `
		MATCH (v:Video {video_id: $video_id})
		RETURN v.categories AS categories
	`
)

// Snapshot-load queries: edge lists per relation.
const (
	WatchesEdgesQuery = `
		MATCH (u:User)-[r:WATCHES]->(v:Video)
		RETURN u.user_id AS src, v.video_id AS dst, r.weight AS weight
	`

	LikesEdgesQuery = `
		MATCH (u:User)-[r:LIKES]->(v:Video)
		RETURN u.user_id AS src, v.video_id AS dst
	`

	BelongsToEdgesQuery = `
		MATCH (v:Video)-[r:BELONGS_TO]->(c:Category)
		RETURN v.video_id AS src, c.category_id AS dst
	`

	CreatedByEdgesQuery = `
		MATCH (v:Video)-[r:CREATED_BY]->(u:User)
		RETURN v.video_id AS src, u.user_id AS dst
	`

	FollowsEdgesQuery = `
		MATCH (u1:User)-[r:FOLLOWS]->(u2:User)
		RETURN u1.user_id AS src, u2.user_id AS dst
	`

	InterestedInEdgesQuery = `
		MATCH (u:User)-[r:INTERESTED_IN]->(c:Category)
		RETURN u.user_id AS src, c.category_id AS dst, r.score AS score
	`

	SimilarToEdgesQuery = `
		MATCH (v1:Video)-[r:SIMILAR_TO]-(v2:Video)
		WHERE v1.video_id < v2.video_id
		RETURN v1.video_id AS src, v2.video_id AS dst, r.similarity AS similarity
	`

	ParentOfEdgesQuery = `
		MATCH (c:Category)-[r:PARENT_OF]->(pc:ParentCategory)
		RETURN c.category_id AS src, pc.parent_category_id AS dst
	`
)

// Recommendation and status queries. Every ranking carries an explicit
// id-ascending secondary key so ties do not depend on store order.
const (
	UserEmbeddingQuery = `
		MATCH (u:User {user_id: $user_id})
		RETURN u.embedding AS embedding
	`

	VideoEmbeddingsQuery = `
		MATCH (v:Video)
		WHERE v.embedding IS NOT NULL
		RETURN v.video_id AS video_id, v.embedding AS embedding
		ORDER BY v.video_id
	`

	WatchedVideosQuery = `
		MATCH (u:User {user_id: $user_id})-[:WATCHES]->(v:Video)
		RETURN v.video_id AS video_id
	`

	PopularVideosQuery = `
		MATCH (v:Video)<-[w:WATCHES]-()
		WITH v, count(w) AS watch_count
		ORDER BY watch_count DESC, v.video_id ASC
		LIMIT $limit
		RETURN v.video_id AS video_id
	`

	FollowedCreatorVideosQuery = `
		MATCH (u:User {user_id: $user_id})-[:FOLLOWS]->(creator:User)<-[:CREATED_BY]-(v:Video)
		WHERE NOT exists((u)-[:WATCHES]->(v))
		OPTIONAL MATCH (v)<-[w:WATCHES]-()
		WITH v, count(w) AS watch_count
		ORDER BY watch_count DESC, v.video_id ASC
		LIMIT $limit
		RETURN v.video_id AS video_id
	`

	CategoryVideosQuery = `
		MATCH (v:Video)
		WHERE $parent_category_id IN v.parent_categories
		OPTIONAL MATCH (v)<-[w:WATCHES]-()
		WITH v, count(w) AS watch_count
		ORDER BY watch_count DESC, v.video_id ASC
		LIMIT $limit
		RETURN v.video_id AS video_id
	`

	CategoryVideosExcludingWatchedQuery = `
		MATCH (v:Video)
		WHERE $parent_category_id IN v.parent_categories
			AND NOT exists((:User {user_id: $user_id})-[:WATCHES]->(v))
		OPTIONAL MATCH (v)<-[w:WATCHES]-()
		WITH v, count(w) AS watch_count
		ORDER BY watch_count DESC, v.video_id ASC
		LIMIT $limit
		RETURN v.video_id AS video_id
	`

	UserStatsQuery = `
		MATCH (u:User {user_id: $user_id})

		OPTIONAL MATCH (u)<-[:FOLLOWS]-(follower:User)
		WITH u, count(DISTINCT follower) AS follower_count

		OPTIONAL MATCH (u)-[:FOLLOWS]->(followee:User)
		WITH u, follower_count, count(DISTINCT followee) AS following_count

		OPTIONAL MATCH (u)<-[:CREATED_BY]-(v:Video)

		RETURN follower_count, following_count, count(v) AS video_count
	`
)

// NodeIDsQuery returns the query listing every id of a node label, in
// store order. Labels cannot be parameterized in Cypher.
func NodeIDsQuery(label, idField string) string {
	return fmt.Sprintf("MATCH (n:%s) RETURN n.%s AS id", label, idField)
}

// CountNodesQuery returns the query counting nodes of a label.
func CountNodesQuery(label string) string {
	return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label)
}

// SetEmbeddingsQuery returns the batch embedding write for a node label.
func SetEmbeddingsQuery(label, idField string) string {
	return fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (n:%s {%s: row.id})
		SET n.embedding = row.embedding,
			n.embedding_updated = datetime()
	`, label, idField)
}
