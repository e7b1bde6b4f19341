// Package aside is a cache-aside layer for expensive computations.
//
// Wrap a compute function with one of three strategies and its results are
// persisted in a pluggable backend and served from there on later calls.
// When only part of a requested dataset is cached, only the missing part is
// recomputed.
//
// Components:
//   - backend.Backend: byte store with scalar keys, hash fields and a bounded
//     atomic increment (local map, ristretto, Redis).
//   - codec.Codec[V]: (de)serializes V <-> []byte. JSON by default.
//   - Controller[V]: namespaces keys (prefix + separator + key), applies the
//     default TTL and per-action allow/log flags, and fails open: backend
//     errors are logged and turn into misses, never into caller errors.
//   - SingleValueCache, KeyedMapCache, FieldCollectionCache: the strategies.
//
// Keys:
//
//	<prefix><sep><id>   - scalar entries (KeyedMapCache, SingleValueCache uses id "")
//	<prefix><sep><key>  - hash entries (FieldCollectionCache)
//
// Only two errors are programmer errors and always surface: a key used as the
// wrong slot kind (*TypeMismatchError) and the reserved field "$" requested as
// data (*ReservedNameError). Errors from compute functions are returned
// unchanged.
//
// Usage:
//
//	ctrl, _ := aside.New[User](aside.Options[User]{Backend: local.New(local.Config{})})
//	users, _ := aside.NewKeyedMapCache(loadUsers, aside.KeyedMapConfig[[]string, User]{
//	    Cache:      aside.Fixed[[]string](ctrl.WithPrefix("user").WithDefaultTTL(time.Minute)),
//	    Keys:       func(ids []string) []string { return ids },
//	    UpdateKeys: func(_ []string, missing []string) []string { return missing },
//	})
//	byID, err := users.Get(ctx, []string{"1", "2", "3"})
package aside
