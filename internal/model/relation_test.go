package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

func blogTables() store.Tables {
	return store.Tables{
		"users": {
			"1": obj("id", 1, "name", "ann"),
			"2": obj("id", 2, "name", "bob"),
		},
		"profiles": {
			"5": obj("id", 5, "user_id", 2),
		},
		"posts": {
			"10": obj("id", 10, "user_id", 1),
			"11": obj("id", 11, "user_id", 1),
			"12": obj("id", 12, "user_id", 2),
		},
		"videos": {
			"10": obj("id", 10),
		},
		"comments": {
			"100": obj("id", 100, "post_id", 10, "commentable_id", 10, "commentable_type", "posts"),
			"101": obj("id", 101, "post_id", 11, "commentable_id", 10, "commentable_type", "videos"),
			"102": obj("id", 102, "post_id", 12, "commentable_id", 12, "commentable_type", "posts"),
		},
		"roles": {
			"1": obj("id", 1, "name", "admin"),
			"2": obj("id", 2, "name", "editor"),
		},
		"role_user": {
			"1_1": obj("user_id", 1, "role_id", 1),
			"1_2": obj("user_id", 1, "role_id", 2),
			"2_2": obj("user_id", 2, "role_id", 2),
		},
		"tags": {
			"7": obj("id", 7, "name", "go"),
		},
		"taggables": {
			"1": obj("id", 1, "tag_id", 7, "taggable_id", 10, "taggable_type", "posts"),
			"2": obj("id", 2, "tag_id", 7, "taggable_id", 10, "taggable_type", "videos"),
		},
	}
}

// load runs one relation load over every row of entity.
func load(t *testing.T, reg *Registry, src *memSource, entity, field string, with ...string) []value.Object {
	t.Helper()
	ctx := context.Background()

	table, err := src.st.GetTable(ctx, store.DefaultConnection, entity)
	require.NoError(t, err)
	rows := table.Rows()

	rel, ok := mustModel(t, reg, entity).Relation(field)
	require.True(t, ok, "%s.%s is not a relation", entity, field)
	require.NoError(t, rel.Load(ctx, src, rows, field, with))
	return rows
}

func TestLoad(t *testing.T) {
	reg := blogRegistry(t)
	src := newSource(t, reg, blogTables())

	t.Run("has many", func(t *testing.T) {
		rows := load(t, reg, src, "users", "posts")
		assert.Equal(t, []string{"10", "11"}, ids(t, rows[0]["posts"]))
		assert.Equal(t, []string{"12"}, ids(t, rows[1]["posts"]))
	})

	t.Run("has one", func(t *testing.T) {
		rows := load(t, reg, src, "users", "profile")
		assert.Equal(t, value.Null{}, rows[0]["profile"])
		assert.Equal(t, value.Int(5), rows[1]["profile"].(value.Object)["id"])
	})

	t.Run("belongs to", func(t *testing.T) {
		rows := load(t, reg, src, "posts", "author")
		for _, row := range rows {
			assert.True(t, value.SameKey(row["user_id"], row["author"].(value.Object)["id"]))
		}
	})

	t.Run("morph many filters by type", func(t *testing.T) {
		rows := load(t, reg, src, "posts", "comments")
		assert.Equal(t, []string{"100"}, ids(t, rows[0]["comments"]))
		assert.Equal(t, []string{}, ids(t, rows[1]["comments"]))
		assert.Equal(t, []string{"102"}, ids(t, rows[2]["comments"]))

		rows = load(t, reg, src, "videos", "comments")
		assert.Equal(t, []string{"101"}, ids(t, rows[0]["comments"]))
	})

	t.Run("morph to", func(t *testing.T) {
		rows := load(t, reg, src, "comments", "commentable")
		require.Len(t, rows, 3)
		assert.Equal(t, obj("id", 10, "user_id", 1), rows[0]["commentable"])
		assert.Equal(t, obj("id", 10), rows[1]["commentable"])
		assert.Equal(t, obj("id", 12, "user_id", 2), rows[2]["commentable"])
	})

	t.Run("belongs to many", func(t *testing.T) {
		rows := load(t, reg, src, "users", "roles")
		assert.Equal(t, []string{"1", "2"}, ids(t, rows[0]["roles"]))
		assert.Equal(t, []string{"2"}, ids(t, rows[1]["roles"]))
	})

	t.Run("has many through", func(t *testing.T) {
		rows := load(t, reg, src, "users", "postComments")
		assert.Equal(t, []string{"100", "101"}, ids(t, rows[0]["postComments"]))
		assert.Equal(t, []string{"102"}, ids(t, rows[1]["postComments"]))
	})

	t.Run("morph to many", func(t *testing.T) {
		rows := load(t, reg, src, "posts", "tags")
		assert.Equal(t, []string{"7"}, ids(t, rows[0]["tags"]))
		assert.Equal(t, []string{}, ids(t, rows[1]["tags"]))
	})

	t.Run("morphed by many", func(t *testing.T) {
		rows := load(t, reg, src, "tags", "posts")
		assert.Equal(t, []string{"10"}, ids(t, rows[0]["posts"]))
	})

	t.Run("nested", func(t *testing.T) {
		rows := load(t, reg, src, "users", "posts", "comments")
		posts := rows[0]["posts"].(value.Array)
		require.Len(t, posts, 2)
		assert.Equal(t, []string{"100"}, ids(t, posts[0].(value.Object)["comments"]))
	})
}

func TestHasManyBy_Load(t *testing.T) {
	node := New("nodes")
	node.Field("id", Attr(nil)).
		Field("cluster_ids", Attr(value.Array{})).
		Field("clusters", node.HasManyBy("clusters", "cluster_ids", "ownerKey"))
	cluster := New("clusters")
	cluster.Field("id", Attr(nil)).Field("ownerKey", Attr(nil))

	reg := NewRegistry(store.DefaultConnection)
	require.NoError(t, reg.Register(node, cluster))

	src := newSource(t, reg, store.Tables{
		"nodes": {
			"1": obj("id", 1, "cluster_ids", []any{10, 20}),
			"2": obj("id", 2, "cluster_ids", []any{20, 30}),
		},
		"clusters": {
			"a": obj("id", "a", "ownerKey", 10),
			"b": obj("id", "b", "ownerKey", 20),
			"c": obj("id", "c", "ownerKey", 30),
			"d": obj("id", "d", "ownerKey", 30),
		},
	})

	rows := load(t, reg, src, "nodes", "clusters")

	assert.Equal(t, value.Array{obj("id", "a", "ownerKey", 10), obj("id", "b", "ownerKey", 20)}, rows[0]["clusters"])
	assert.Equal(t, value.Array{obj("id", "b", "ownerKey", 20), obj("id", "d", "ownerKey", 30)}, rows[1]["clusters"],
		"the last record sharing an owner key wins")
}

func TestLoad_UnknownRelated(t *testing.T) {
	post := New("posts")
	post.Field("id", Attr(nil)).Field("author", post.BelongsTo("ghosts", "ghost_id"))
	reg := NewRegistry(store.DefaultConnection)
	require.NoError(t, reg.Register(post))

	src := newSource(t, reg, store.Tables{"posts": {"1": obj("id", 1, "ghost_id", 1)}})
	rel, _ := post.Relation("author")
	err := rel.Load(context.Background(), src, []value.Object{obj("id", 1)}, "author", nil)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestAttach(t *testing.T) {
	reg := blogRegistry(t)
	rel := func(entity, field string) Relation {
		r, ok := mustModel(t, reg, entity).Relation(field)
		require.True(t, ok)
		return r
	}

	t.Run("has many sets missing foreign keys only", func(t *testing.T) {
		data := store.Tables{"posts": {
			"10": obj("id", 10),
			"11": obj("id", 11, "user_id", 5),
		}}
		record := obj("id", 1)
		keys := value.Array{value.Int(10), value.Int(11)}

		require.NoError(t, rel("users", "posts").Attach(keys, record, data))
		snapshot := data.Clone()
		require.NoError(t, rel("users", "posts").Attach(keys, record, data))

		assert.Equal(t, value.Int(1), data["posts"]["10"]["user_id"])
		assert.Equal(t, value.Int(5), data["posts"]["11"]["user_id"])
		assert.Equal(t, snapshot, data, "attach is idempotent")
	})

	t.Run("has one falls back to generated key", func(t *testing.T) {
		data := store.Tables{"profiles": {"5": obj("id", 5)}}
		record := value.Object{MetaID: value.String("gen-1")}

		require.NoError(t, rel("users", "profile").Attach(value.Int(5), record, data))
		assert.Equal(t, value.String("gen-1"), data["profiles"]["5"]["user_id"])
	})

	t.Run("belongs to", func(t *testing.T) {
		record := obj("id", 10)
		require.NoError(t, rel("posts", "author").Attach(value.Int(3), record, store.Tables{}))
		assert.Equal(t, value.Int(3), record["user_id"])

		require.NoError(t, rel("posts", "author").Attach(value.Int(4), record, store.Tables{}))
		assert.Equal(t, value.Int(3), record["user_id"], "existing foreign key kept")
	})

	t.Run("belongs to many writes pivots", func(t *testing.T) {
		data := store.Tables{"roles": {"2": obj("id", 2)}}
		record := obj("id", 1)

		require.NoError(t, rel("users", "roles").Attach(value.Array{value.Int(2), value.Int(3)}, record, data))

		require.Len(t, data["role_user"], 2)
		assert.Equal(t, value.Object{
			"user_id": value.Int(1),
			"role_id": value.Int(2),
			MetaID:    value.String("1_2"),
		}, data["role_user"]["1_2"])
		assert.Contains(t, data["role_user"], "1_3")
	})

	t.Run("morph many sets id and type", func(t *testing.T) {
		data := store.Tables{"comments": {"100": obj("id", 100)}}
		require.NoError(t, rel("posts", "comments").Attach(value.Array{value.Int(100)}, obj("id", 10), data))

		assert.Equal(t, value.Int(10), data["comments"]["100"]["commentable_id"])
		assert.Equal(t, value.String("posts"), data["comments"]["100"]["commentable_type"])
	})

	t.Run("morph to many writes typed pivots", func(t *testing.T) {
		data := store.Tables{"tags": {"7": obj("id", 7)}}
		require.NoError(t, rel("posts", "tags").Attach(value.Array{value.Int(7)}, obj("id", 10), data))

		assert.Equal(t, value.Object{
			"tag_id":        value.Int(7),
			"taggable_id":   value.Int(10),
			"taggable_type": value.String("posts"),
			MetaID:          value.String("10_7_posts"),
		}, data["taggables"]["10_7_posts"])
	})

	t.Run("morphed by many writes typed pivots", func(t *testing.T) {
		data := store.Tables{"posts": {"10": obj("id", 10)}}
		require.NoError(t, rel("tags", "posts").Attach(value.Array{value.Int(10)}, obj("id", 7), data))

		assert.Equal(t, value.Object{
			"tag_id":        value.Int(7),
			"taggable_id":   value.Int(10),
			"taggable_type": value.String("posts"),
			MetaID:          value.String("10_7_posts"),
		}, data["taggables"]["10_7_posts"])
	})

	t.Run("morph to", func(t *testing.T) {
		record := obj("id", 100, "commentable_type", "posts")
		require.NoError(t, rel("comments", "commentable").Attach(value.Int(10), record, store.Tables{}))
		assert.Equal(t, value.Int(10), record["commentable_id"])
	})

	t.Run("has many through is a no-op", func(t *testing.T) {
		data := store.Tables{}
		record := obj("id", 1)
		require.NoError(t, rel("users", "postComments").Attach(value.Array{value.Int(1)}, record, data))
		assert.Equal(t, obj("id", 1), record)
		assert.Empty(t, data)
	})
}

func TestHasManyBy_Attach(t *testing.T) {
	node := New("nodes")
	r := node.HasManyBy("clusters", "cluster_ids")

	record := value.Object{}
	require.NoError(t, r.Attach(value.Array{}, record, store.Tables{}))
	assert.NotContains(t, record, "cluster_ids")

	require.NoError(t, r.Attach(value.Array{value.Int(1), value.Int(2)}, record, store.Tables{}))
	assert.Equal(t, value.Array{value.Int(1), value.Int(2)}, record["cluster_ids"])
}

func TestTargets(t *testing.T) {
	reg := blogRegistry(t)
	user := mustModel(t, reg, "users")

	roles, _ := user.Relation("roles")
	assert.Equal(t, []string{"roles", "role_user"}, Targets(roles))

	through, _ := user.Relation("postComments")
	assert.Equal(t, []string{"comments", "posts"}, Targets(through))

	morph, _ := mustModel(t, reg, "comments").Relation("commentable")
	assert.Nil(t, Targets(morph))
}
