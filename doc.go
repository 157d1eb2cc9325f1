// Package auth implements an opaque-token session-authentication engine backed
// by a relational store with an optional look-aside cache.
//
// Session resolution:
//   - A Resolver turns a bearer token into a user/session record. It memoizes
//     the result for the lifetime of the instance, consults the cache (positive
//     and negative entries) before the store, and treats the store as the only
//     source of truth. Every Resolver owns its own in-process state, so create
//     one per request and never share instances across goroutines.
//
// Controllers:
//   - Controller covers the authenticated-user operations: Login, Logout,
//     ChangePassword and ChangeBio. Manager covers account administration:
//     Add, SelfAddPasswordless, Delete and List, gated by a pluggable
//     AuthorizationPolicy.
//
// Persistence:
//   - SchemaManager installs and upgrades the users/sessions relations plus the
//     user_sessions view, seeding a root administrator on first boot. DDL is
//     generated per bun dialect so the same layout works on sqlite and postgres.
package auth
