// Package normalize flattens nested records into per-entity tables.
//
// A nested record such as
//
//	{"id": 1, "posts": [{"id": 10, "title": "a"}]}
//
// normalized against a users model becomes
//
//	users: {"1":  {"id": 1, "posts": [10], "$id": "1"}}
//	posts: {"10": {"id": 10, "title": "a", "user_id": 1, "$id": "10"}}
//
// Nested records are replaced by their keys, and every relation's Attach
// writes the foreign keys and pivot records that link the tables. Records
// without a primary key receive a generated key, stored in "$id".
package normalize
