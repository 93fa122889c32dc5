// Package registry provides a generic thread-safe map for values indexed by key.
//
// The workflow engine keeps two registries: the compiled stage table, read
// concurrently by every running turn, and the per-conversation turn locks,
// created lazily on a conversation's first turn:
//
//	locks := registry.New[string, *turnLock]()
//	lock := locks.GetOrCreate(conversationID, newTurnLock)
//
// GetOrCreate is atomic: the factory runs at most once per key. DeleteIf
// checks and removes under one lock, so an entry can be dropped only while
// it is provably unused.
package registry
