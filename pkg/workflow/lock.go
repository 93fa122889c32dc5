package workflow

import (
	"context"
	"sync/atomic"
)

// turnLock serializes turns of one conversation. Acquisition honors
// context cancellation, which sync.Mutex cannot.
type turnLock struct {
	ch   chan struct{}
	refs atomic.Int32
}

func newTurnLock() *turnLock {
	return &turnLock{ch: make(chan struct{}, 1)}
}

func (l *turnLock) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *turnLock) release() {
	<-l.ch
}

// lockConversation blocks until the caller holds the turn lock for
// conversationID. The returned func releases it.
func (cg *CompiledGraph[S, U]) lockConversation(ctx context.Context, conversationID string) (func(), error) {
	for {
		l := cg.turnLocks.GetOrCreate(conversationID, newTurnLock)
		l.refs.Add(1)

		// The entry may have been pruned between GetOrCreate and Add.
		if cur, ok := cg.turnLocks.Get(conversationID); !ok || cur != l {
			cg.unref(conversationID, l)
			continue
		}

		if err := l.acquire(ctx); err != nil {
			cg.unref(conversationID, l)
			return nil, err
		}
		return func() {
			l.release()
			cg.unref(conversationID, l)
		}, nil
	}
}

// unref drops a reference and prunes the entry once nobody holds or waits on it.
func (cg *CompiledGraph[S, U]) unref(conversationID string, l *turnLock) {
	if l.refs.Add(-1) > 0 {
		return
	}
	cg.turnLocks.DeleteIf(conversationID, func(cur *turnLock) bool {
		return cur == l && cur.refs.Load() == 0
	})
}
