package worker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestEnqueueGoesThroughRedis(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sender := &fakeSender{}
	worker := NewNotifyWorker(db, sender, client, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueCompletionCode(ctx, testBooking(), testContact(), "482913"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// With redis available the local queue stays empty.
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("expected empty local queue when redis push succeeds")
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	if sender.sendCalls != 1 {
		t.Fatalf("expected one send call, got %d", sender.sendCalls)
	}
	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
}
