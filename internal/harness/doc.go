// Package harness runs YAML scenarios against a fresh store: it compiles
// the scenario's CUE models, dispatches its steps in order and checks the
// resulting tables and queries.
//
// # Scenario Format
//
//	name: insert_user_with_posts
//	description: "Nested posts are split into their own table"
//	models:
//	  - ../models/blog.cue
//	steps:
//	  - op: insert
//	    entity: users
//	    data: {id: 1, name: ann, posts: [{id: 10, title: hello}]}
//	  - op: update
//	    entity: posts
//	    where: 10
//	    data: {title: edited}
//	    expect: {count: 1}
//	assertions:
//	  - type: record
//	    entity: posts
//	    key: "10"
//	    expect: {user_id: 1, title: edited}
//	  - type: query
//	    entity: users
//	    with: [posts]
//	    rows:
//	      - {name: ann, posts: [{id: 10}]}
//
// Model paths are relative to the scenario file.
//
// # Assertion Types
//
//   - record: the record under key matches expect (subset match)
//   - absent: no record is stored under key
//   - count: the entity table holds count records, optionally filtered by where
//   - query: a query with where/with/order_by returns rows (subset match per row)
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite store, a DeterministicClock for task
// sequence numbers and SequenceKeys for records without a primary key, so
// repeated runs produce identical traces and tables for golden comparison.
package harness
