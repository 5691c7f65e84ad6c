package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatcherCoalescesWithoutLoss(t *testing.T) {
	var b Broadcaster
	w := b.Watch(context.Background(), "users", "transactions")
	defer w.Close()

	b.Publish("users")
	b.Publish("transactions")
	b.Publish("users", "rideRequests")

	select {
	case <-w.Ready():
	case <-time.After(time.Second):
		t.Fatal("watcher not ready")
	}
	assert.Equal(t, []string{"transactions", "users"}, w.Take())
	assert.Empty(t, w.Take())

	select {
	case <-w.Ready():
		t.Fatal("stale ready signal")
	default:
	}
}

func TestWatcherChangeAfterTakeSignalsAgain(t *testing.T) {
	var b Broadcaster
	w := b.Watch(context.Background(), "users")
	defer w.Close()

	b.Publish("users")
	<-w.Ready()
	w.Take()

	b.Publish("users")
	select {
	case <-w.Ready():
	case <-time.After(time.Second):
		t.Fatal("second change lost")
	}
	assert.Equal(t, []string{"users"}, w.Take())
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	var b Broadcaster
	w := b.Watch(context.Background(), "users")
	w.Close()
	w.Close()

	<-w.Done()
	b.Publish("users")
	assert.Empty(t, b.snapshot())
}

func TestPublishAll(t *testing.T) {
	var b Broadcaster
	w := b.Watch(context.Background(), "users", "rideRequests")
	defer w.Close()

	b.PublishAll()
	<-w.Ready()
	assert.Equal(t, []string{"rideRequests", "users"}, w.Take())
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		filters []Filter
		want    bool
	}{
		{"eq hit", `{"status":"pending"}`, []Filter{Eq("status", "pending")}, true},
		{"eq miss", `{"status":"accepted"}`, []Filter{Eq("status", "pending")}, false},
		{"neq hit", `{"riderId":"a"}`, []Filter{Neq("riderId", "b")}, true},
		{"neq miss", `{"riderId":"b"}`, []Filter{Neq("riderId", "b")}, false},
		{"missing is empty", `{}`, []Filter{Eq("driverId", "")}, true},
		{"null is empty", `{"driverId":null}`, []Filter{Neq("driverId", "")}, false},
		{"all must hold", `{"status":"pending","riderId":"a"}`, []Filter{Eq("status", "pending"), Neq("riderId", "a")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(decode(t, tt.json), tt.filters))
		})
	}
}
