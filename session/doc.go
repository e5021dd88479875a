// Package session houses implementations of core.ConversationStore and the
// per-conversation Locker used to serialise load, run and save cycles on the
// same conversation id.
//
// The in-memory store suits tests and demo servers. Durable storage lives in
// the sqlite sub-package; further backends can be added as sub-packages
// without changing calling code, only the wiring layer decides which
// implementation to instantiate.
package session
