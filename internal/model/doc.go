// Package model declares entities: their primary keys, scalar attributes
// and relations to other entities.
//
// A Model is registered in a Registry, which plays the role of a
// connection: relations name their targets by entity and resolve them
// through the owner's registry only when normalizing or loading, so models
// can be declared in any order and may refer to each other cyclically.
//
// Records move through three shapes:
//   - raw input: nested objects, possibly irregular
//   - normalized records (Hydrate/Fix): every declared field present,
//     relation fields holding keys only
//   - made records (Make/MakePlain): relation fields replaced by the loaded
//     related records or instances
package model
