package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/normalize"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

const relationsSource = `
model: users: fields: {
	id:       "attr"
	profile:  {type: "hasOne", related: "profiles", foreignKey: "user_id"}
	posts:    {type: "hasMany", related: "posts", foreignKey: "user_id"}
	roles:    {type: "belongsToMany", related: "roles", pivot: "role_user", foreignPivotKey: "user_id", relatedPivotKey: "role_id"}
	comments: {type: "hasManyThrough", related: "comments", through: "posts", firstKey: "user_id", secondKey: "post_id"}
}
model: profiles: fields: {
	id:      "attr"
	user_id: "attr"
}
model: posts: fields: {
	id:       "attr"
	user_id:  "attr"
	author:   {type: "belongsTo", related: "users", foreignKey: "user_id"}
	notes:    {type: "morphMany", related: "notes", morphId: "noteable_id", morphType: "noteable_type"}
	cover:    {type: "morphOne", related: "images", morphId: "imageable_id", morphType: "imageable_type"}
	tags:     {type: "morphToMany", related: "tags", pivot: "taggables", relatedId: "tag_id", morphId: "taggable_id", morphType: "taggable_type"}
}
model: comments: fields: {
	id:      "attr"
	post_id: "attr"
}
model: roles: fields: id: "attr"
model: role_user: {
	primaryKey: ["user_id", "role_id"]
	fields: {
		user_id: "attr"
		role_id: "attr"
	}
}
model: notes: fields: {
	id:            "attr"
	noteable_id:   "attr"
	noteable_type: "attr"
	noteable:      {type: "morphTo", morphId: "noteable_id", morphType: "noteable_type"}
}
model: images: fields: {
	id:             "attr"
	imageable_id:   "attr"
	imageable_type: "attr"
}
model: tags: fields: {
	id:    "attr"
	posts: {type: "morphedByMany", related: "posts", pivot: "taggables", relatedId: "tag_id", morphId: "taggable_id", morphType: "taggable_type"}
}
model: taggables: fields: {
	id:            "attr"
	tag_id:        "attr"
	taggable_id:   "attr"
	taggable_type: "attr"
}
model: clusters: fields: {
	id:    "attr"
	nodes: {type: "hasManyBy", related: "nodes", foreignKey: "node_ids"}
}
model: nodes: fields: id: "attr"
`

func mustBuild(t *testing.T, src string) *model.Registry {
	t.Helper()
	specs, err := CompileSource("test.cue", src)
	require.NoError(t, err)
	reg, err := Build(specs, store.DefaultConnection)
	require.NoError(t, err)
	return reg
}

func TestBuild_AttributeDefaults(t *testing.T) {
	reg := mustBuild(t, blogSource)
	assert.Equal(t, store.DefaultConnection, reg.Connection())

	users, err := reg.Model("users")
	require.NoError(t, err)

	rec := users.Hydrate(value.Object{"id": value.Int(1)})
	assert.Equal(t, value.String("anon"), rec["name"])
	assert.Equal(t, value.Bool(true), rec["active"])
	assert.Equal(t, value.Array{}, rec["posts"])

	pivot, err := reg.Model("role_user")
	require.NoError(t, err)
	assert.True(t, pivot.Composite())
	key, ok := pivot.Key(value.Object{"user_id": value.Int(1), "role_id": value.Int(2)})
	require.True(t, ok)
	assert.Equal(t, "1_2", key)
}

func TestBuild_RelationVariants(t *testing.T) {
	reg := mustBuild(t, relationsSource)

	tests := []struct {
		entity, field string
		want          any
	}{
		{"users", "profile", &model.HasOne{}},
		{"users", "posts", &model.HasMany{}},
		{"users", "roles", &model.BelongsToMany{}},
		{"users", "comments", &model.HasManyThrough{}},
		{"posts", "author", &model.BelongsTo{}},
		{"posts", "notes", &model.MorphMany{}},
		{"posts", "cover", &model.MorphOne{}},
		{"posts", "tags", &model.MorphToMany{}},
		{"notes", "noteable", &model.MorphTo{}},
		{"tags", "posts", &model.MorphedByMany{}},
		{"clusters", "nodes", &model.HasManyBy{}},
	}
	for _, tt := range tests {
		t.Run(tt.entity+"."+tt.field, func(t *testing.T) {
			m, err := reg.Model(tt.entity)
			require.NoError(t, err)
			rel, ok := m.Relation(tt.field)
			require.True(t, ok)
			assert.IsType(t, tt.want, rel)
		})
	}
}

func TestBuild_Normalize(t *testing.T) {
	reg := mustBuild(t, relationsSource)
	users, err := reg.Model("users")
	require.NoError(t, err)

	data, err := value.Unmarshal([]byte(`{
		"id": 1,
		"profile": {"id": 5},
		"posts": [{"id": 10}, {"id": 11}],
		"roles": [{"id": 2}]
	}`))
	require.NoError(t, err)

	tables, err := normalize.New().Normalize(data, users)
	require.NoError(t, err)

	assert.Equal(t, []string{"posts", "profiles", "role_user", "roles", "users"}, tables.Entities())
	assert.Equal(t, value.Int(1), tables["profiles"]["5"]["user_id"])
	assert.Equal(t, value.Int(1), tables["posts"]["10"]["user_id"])
	assert.Contains(t, tables["role_user"], "1_2")
}

func TestBuild_InvalidSpecs(t *testing.T) {
	specs, err := CompileSource("bad.cue", `model: users: fields: {
		id:    "attr"
		posts: {type: "hasMany", related: "posts", foreignKey: "user_id"}
	}`)
	require.NoError(t, err)

	_, err = Build(specs, store.DefaultConnection)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrUnknownRelated, verrs[0].Code)
}
