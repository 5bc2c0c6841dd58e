package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// BlogRegistry declares a small blog covering every relation kind:
//
//	users      hasMany posts, hasOne profiles, belongsToMany roles (role_user),
//	           hasManyThrough comments (via posts)
//	posts      belongsTo users, morphMany comments, morphToMany tags (taggables)
//	videos     morphMany comments
//	comments   morphTo commentable
//	tags       morphedByMany posts (taggables)
//	nodes      hasManyBy clusters
func BlogRegistry(t testing.TB) *model.Registry {
	t.Helper()

	user := model.New("users")
	user.Field("id", model.Increment()).
		Field("name", model.String("")).
		Field("active", model.Boolean(true)).
		Field("posts", user.HasMany("posts", "user_id")).
		Field("profile", user.HasOne("profiles", "user_id")).
		Field("roles", user.BelongsToMany("roles", "role_user", "user_id", "role_id")).
		Field("postComments", user.HasManyThrough("comments", "posts", "user_id", "post_id"))

	profile := model.New("profiles")
	profile.Field("id", model.Attr(nil)).
		Field("user_id", model.Attr(nil)).
		Field("bio", model.String(""))

	post := model.New("posts")
	post.Field("id", model.Increment()).
		Field("user_id", model.Attr(nil)).
		Field("title", model.String("")).
		Field("votes", model.Number(0)).
		Field("author", post.BelongsTo("users", "user_id")).
		Field("comments", post.MorphMany("comments", "commentable_id", "commentable_type")).
		Field("tags", post.MorphToMany("tags", "taggables", "tag_id", "taggable_id", "taggable_type"))

	video := model.New("videos")
	video.Field("id", model.Attr(nil)).
		Field("url", model.String("")).
		Field("comments", video.MorphMany("comments", "commentable_id", "commentable_type"))

	comment := model.New("comments")
	comment.Field("id", model.Attr(nil)).
		Field("post_id", model.Attr(nil)).
		Field("body", model.String("")).
		Field("commentable_id", model.Attr(nil)).
		Field("commentable_type", model.Attr(nil)).
		Field("commentable", comment.MorphTo("commentable_id", "commentable_type"))

	role := model.New("roles")
	role.Field("id", model.Attr(nil)).Field("name", model.String(""))

	roleUser := model.New("role_user", model.WithPrimaryKey("user_id", "role_id"))
	roleUser.Field("user_id", model.Attr(nil)).Field("role_id", model.Attr(nil))

	tag := model.New("tags")
	tag.Field("id", model.Attr(nil)).
		Field("name", model.String("")).
		Field("posts", tag.MorphedByMany("posts", "taggables", "tag_id", "taggable_id", "taggable_type"))

	taggable := model.New("taggables")
	taggable.Field("id", model.Attr(nil)).
		Field("tag_id", model.Attr(nil)).
		Field("taggable_id", model.Attr(nil)).
		Field("taggable_type", model.Attr(nil))

	node := model.New("nodes")
	node.Field("id", model.Attr(nil)).
		Field("cluster_ids", model.Attr(value.Array{})).
		Field("clusters", node.HasManyBy("clusters", "cluster_ids", "ownerKey"))

	cluster := model.New("clusters")
	cluster.Field("id", model.Attr(nil)).Field("ownerKey", model.Attr(nil))

	reg := model.NewRegistry(store.DefaultConnection)
	require.NoError(t, reg.Register(
		user, profile, post, video, comment, role, roleUser, tag, taggable, node, cluster,
	))
	return reg
}

// BlogTables is the normalized content matching BlogRegistry.
func BlogTables(t testing.TB) store.Tables {
	t.Helper()
	v, err := value.UnmarshalObject([]byte(blogJSON))
	require.NoError(t, err)

	tables := store.Tables{}
	for entity, raw := range v {
		table := store.Table{}
		for key, rec := range raw.(value.Object) {
			table[key] = rec.(value.Object)
		}
		tables[entity] = table
	}
	return tables
}

// Seed writes tables into st.
func Seed(t testing.TB, st store.Store, connection string, tables store.Tables) {
	t.Helper()
	ctx := context.Background()
	for _, entity := range tables.Entities() {
		require.NoError(t, st.SetTable(ctx, connection, entity, tables[entity]))
	}
}

// SeededMemory returns a memory store holding BlogTables.
func SeededMemory(t testing.TB) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	Seed(t, st, store.DefaultConnection, BlogTables(t))
	return st
}

const blogJSON = `{
  "users": {
    "1": {"id": 1, "name": "ann", "active": true, "$id": "1"},
    "2": {"id": 2, "name": "bob", "active": false, "$id": "2"},
    "3": {"id": 3, "name": "cat", "active": true, "$id": "3"}
  },
  "profiles": {
    "5": {"id": 5, "user_id": 2, "bio": "hello", "$id": "5"}
  },
  "posts": {
    "10": {"id": 10, "user_id": 1, "title": "first", "votes": 3, "$id": "10"},
    "11": {"id": 11, "user_id": 1, "title": "second", "votes": 7, "$id": "11"},
    "12": {"id": 12, "user_id": 2, "title": "third", "votes": 1, "$id": "12"}
  },
  "videos": {
    "10": {"id": 10, "url": "v.mp4", "$id": "10"}
  },
  "comments": {
    "100": {"id": 100, "post_id": 10, "body": "nice", "commentable_id": 10, "commentable_type": "posts", "$id": "100"},
    "101": {"id": 101, "post_id": 11, "body": "wow", "commentable_id": 10, "commentable_type": "videos", "$id": "101"},
    "102": {"id": 102, "post_id": 12, "body": "meh", "commentable_id": 12, "commentable_type": "posts", "$id": "102"}
  },
  "roles": {
    "1": {"id": 1, "name": "admin", "$id": "1"},
    "2": {"id": 2, "name": "editor", "$id": "2"}
  },
  "role_user": {
    "1_1": {"user_id": 1, "role_id": 1, "$id": "1_1"},
    "1_2": {"user_id": 1, "role_id": 2, "$id": "1_2"},
    "2_2": {"user_id": 2, "role_id": 2, "$id": "2_2"}
  },
  "tags": {
    "7": {"id": 7, "name": "go", "$id": "7"}
  },
  "taggables": {
    "1": {"id": 1, "tag_id": 7, "taggable_id": 10, "taggable_type": "posts", "$id": "1"},
    "2": {"id": 2, "tag_id": 7, "taggable_id": 10, "taggable_type": "videos", "$id": "2"}
  },
  "nodes": {
    "1": {"id": 1, "cluster_ids": [10, 20], "$id": "1"},
    "2": {"id": 2, "cluster_ids": [20, 30], "$id": "2"}
  },
  "clusters": {
    "a": {"id": "a", "ownerKey": 10, "$id": "a"},
    "b": {"id": "b", "ownerKey": 20, "$id": "b"}
  }
}`
