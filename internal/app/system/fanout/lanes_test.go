package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLanes_SerializePerRoom(t *testing.T) {
	l := newLanes()
	room := primitive.NewObjectID()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.enter(context.Background(), room)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if l.busy() != 0 {
		t.Errorf("busy = %d after all released, want 0", l.busy())
	}
}

func TestLanes_RoomsAreIndependent(t *testing.T) {
	l := newLanes()
	releaseA, err := l.enter(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.enter(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("second room blocked: %v", err)
	}
	releaseB()
}

func TestLanes_EnterHonorsContext(t *testing.T) {
	l := newLanes()
	room := primitive.NewObjectID()
	release, err := l.enter(context.Background(), room)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.enter(ctx, room); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	release()
	release() // idempotent
	if l.busy() != 0 {
		t.Errorf("busy = %d, want 0", l.busy())
	}
}
