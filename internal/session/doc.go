// Package session stores conversations and tracks which document a
// conversation is focused on.
//
// A session's focus is the document that dominates its latest results. It
// is inherited by follow-up questions that name no filter of their own.
// Sessions live in a Store: MemoryStore for a single process, RedisStore
// when several processes serve the same users.
package session
