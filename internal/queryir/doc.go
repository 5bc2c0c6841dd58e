// Package queryir provides the filter representation shared by the query
// layer and the Store backends.
//
// Relation loaders express every lookup ("rows of posts whose user_id is in
// this key set") as a Select over a single entity. The in-memory Store
// evaluates it with Apply; the SQLite Store compiles the portable part to SQL
// (see package querysql) and evaluates the rest in memory.
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern, so backends can use
// exhaustive type switches:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And, Or:
//	case Match:
//	}
//
// PORTABLE FRAGMENT:
//
// Equals, In, And and Or over scalar literals translate to SQL. Match wraps a
// Go function and never does; neither does a comparison against null, since
// SQL equality never matches NULL. Validate reports which case applies.
package queryir
