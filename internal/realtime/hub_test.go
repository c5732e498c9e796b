package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestHubEmitReachesEveryConnectionOfUser(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	other := uuid.New()

	a := hub.Register(user, 4)
	b := hub.Register(user, 4)
	c := hub.Register(other, 4)

	if err := hub.Emit(context.Background(), user, "notification", "hello"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case evt := <-sub.Events():
			if evt.Type != "notification" || evt.Data != "hello" {
				t.Fatalf("%s: unexpected event %+v", name, evt)
			}
		default:
			t.Fatalf("%s: expected an event", name)
		}
	}

	select {
	case evt := <-c.Events():
		t.Fatalf("other user received %+v", evt)
	default:
	}
}

func TestHubEmitWithoutConnections(t *testing.T) {
	hub := NewHub()
	if err := hub.Emit(context.Background(), uuid.New(), "notification", nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	user := uuid.New()

	sub := hub.Register(user, 1)
	if got := hub.Connections(user); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	hub.Unregister(sub)
	hub.Unregister(sub)

	if got := hub.Connections(user); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}
	if err := hub.Emit(context.Background(), user, "notification", nil); err != nil {
		t.Fatalf("emit after unregister: %v", err)
	}
}

func TestHubSlowConsumerDoesNotBlock(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	slow := hub.Register(user, 1)
	fast := hub.Register(user, 8)

	ctx := context.Background()
	if err := hub.Emit(ctx, user, "first", nil); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	err := hub.Emit(ctx, user, "second", nil)
	if !errors.Is(err, ErrSlowConsumer) {
		t.Fatalf("expected ErrSlowConsumer, got %v", err)
	}

	if got := len(fast.Events()); got != 2 {
		t.Fatalf("fast connection should hold 2 events, got %d", got)
	}
	if got := len(slow.Events()); got != 1 {
		t.Fatalf("slow connection should hold 1 event, got %d", got)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	sub := hub.Register(user, 1)

	hub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after Close")
	}
	late := hub.Register(user, 1)
	if _, ok := <-late.Events(); ok {
		t.Fatal("registration after Close should be closed")
	}
	if got := hub.Connections(user); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}

func TestHubEmitCancelledContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Emit(ctx, uuid.New(), "notification", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
