package fanout

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// lanes is a keyed mutex. Holding a room's lane puts that room in the
// applying state; an absent entry is idle. Entries are reference counted
// and removed when nobody holds or waits on them.
type lanes struct {
	mu sync.Mutex
	m  map[primitive.ObjectID]*lane
}

type lane struct {
	sem  chan struct{}
	refs int
}

func newLanes() *lanes {
	return &lanes{m: make(map[primitive.ObjectID]*lane)}
}

// enter blocks until the room's lane is free or ctx is done.
func (l *lanes) enter(ctx context.Context, roomID primitive.ObjectID) (func(), error) {
	l.mu.Lock()
	ln, ok := l.m[roomID]
	if !ok {
		ln = &lane{sem: make(chan struct{}, 1)}
		l.m[roomID] = ln
	}
	ln.refs++
	l.mu.Unlock()

	select {
	case ln.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(roomID, ln)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ln.sem
			l.drop(roomID, ln)
		})
	}, nil
}

func (l *lanes) drop(roomID primitive.ObjectID, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 {
		delete(l.m, roomID)
	}
}

// busy returns the number of rooms currently applying or queued.
func (l *lanes) busy() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
