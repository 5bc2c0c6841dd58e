package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// memSource serves relation loads from a memory store.
type memSource struct {
	reg *Registry
	st  *store.Memory
}

func (s *memSource) Select(ctx context.Context, sel queryir.Select, with []string) ([]value.Object, error) {
	rows, err := s.st.Select(ctx, store.DefaultConnection, sel)
	if err != nil {
		return nil, err
	}
	m, err := s.reg.Model(sel.From)
	if err != nil {
		return nil, err
	}
	for _, path := range with {
		head, rest, _ := strings.Cut(path, ".")
		rel, ok := m.Relation(head)
		if !ok {
			continue
		}
		var nested []string
		if rest != "" {
			nested = []string{rest}
		}
		if err := rel.Load(ctx, s, rows, head, nested); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func newSource(t *testing.T, reg *Registry, tables store.Tables) *memSource {
	t.Helper()
	st := store.NewMemory()
	for entity, table := range tables {
		require.NoError(t, st.SetTable(context.Background(), store.DefaultConnection, entity, table))
	}
	return &memSource{reg: reg, st: st}
}

// blogRegistry declares users, posts, comments, tags and their links.
func blogRegistry(t *testing.T) *Registry {
	t.Helper()

	user := New("users")
	user.Field("id", Attr(nil)).
		Field("name", String("")).
		Field("posts", user.HasMany("posts", "user_id")).
		Field("profile", user.HasOne("profiles", "user_id")).
		Field("roles", user.BelongsToMany("roles", "role_user", "user_id", "role_id")).
		Field("postComments", user.HasManyThrough("comments", "posts", "user_id", "post_id"))

	profile := New("profiles")
	profile.Field("id", Attr(nil)).
		Field("user_id", Attr(nil)).
		Field("bio", String(""))

	post := New("posts")
	post.Field("id", Attr(nil)).
		Field("user_id", Attr(nil)).
		Field("title", String("")).
		Field("author", post.BelongsTo("users", "user_id")).
		Field("comments", post.MorphMany("comments", "commentable_id", "commentable_type")).
		Field("tags", post.MorphToMany("tags", "taggables", "tag_id", "taggable_id", "taggable_type"))

	video := New("videos")
	video.Field("id", Attr(nil)).
		Field("comments", video.MorphMany("comments", "commentable_id", "commentable_type"))

	comment := New("comments")
	comment.Field("id", Attr(nil)).
		Field("post_id", Attr(nil)).
		Field("body", String("")).
		Field("commentable_id", Attr(nil)).
		Field("commentable_type", Attr(nil)).
		Field("commentable", comment.MorphTo("commentable_id", "commentable_type"))

	role := New("roles")
	role.Field("id", Attr(nil)).Field("name", String(""))

	roleUser := New("role_user", WithPrimaryKey("user_id", "role_id"))
	roleUser.Field("user_id", Attr(nil)).Field("role_id", Attr(nil))

	tag := New("tags")
	tag.Field("id", Attr(nil)).
		Field("name", String("")).
		Field("posts", tag.MorphedByMany("posts", "taggables", "tag_id", "taggable_id", "taggable_type"))

	taggable := New("taggables")
	taggable.Field("id", Attr(nil)).
		Field("tag_id", Attr(nil)).
		Field("taggable_id", Attr(nil)).
		Field("taggable_type", Attr(nil))

	reg := NewRegistry(store.DefaultConnection)
	require.NoError(t, reg.Register(user, profile, post, video, comment, role, roleUser, tag, taggable))
	return reg
}

func mustModel(t *testing.T, reg *Registry, entity string) *Model {
	t.Helper()
	m, err := reg.Model(entity)
	require.NoError(t, err)
	return m
}

func obj(pairs ...any) value.Object {
	out := make(value.Object, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		v, err := value.FromGo(pairs[i+1])
		if err != nil {
			panic(err)
		}
		out[pairs[i].(string)] = v
	}
	return out
}

func ids(t *testing.T, v value.Value) []string {
	t.Helper()
	arr, ok := v.(value.Array)
	require.True(t, ok, "expected array, got %T", v)
	out := make([]string, len(arr))
	for i, elem := range arr {
		out[i] = value.MustKey(elem.(value.Object)["id"])
	}
	return out
}
