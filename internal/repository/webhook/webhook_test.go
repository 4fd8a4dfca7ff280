package webhook

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"shopcore/internal/dbtest"
	"shopcore/internal/domain"
)

func TestPostgres_EnqueueClaimComplete(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t), nil)

	headers := http.Header{"Stripe-Signature": []string{"v1=abc"}}
	task, err := repo.Enqueue(ctx, domain.ProviderStripe, []byte(`{"id":"evt_1"}`), headers)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	claimed, err := repo.Claim(ctx, 10, time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != task.ID || claimed[0].Attempts != 1 {
		t.Fatalf("unexpected claim %+v", claimed)
	}
	if claimed[0].Headers.Get("Stripe-Signature") != "v1=abc" {
		t.Fatalf("headers not preserved: %v", claimed[0].Headers)
	}

	again, err := repo.Claim(ctx, 10, time.Minute)
	if err != nil || len(again) != 0 {
		t.Fatalf("leased task must not be claimed twice: %v %+v", err, again)
	}

	if err := repo.Complete(ctx, task.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestPostgres_RetryBuryRequeue(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgres(dbtest.Pool(t), nil)

	task, err := repo.Enqueue(ctx, domain.ProviderPayPal, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := repo.Claim(ctx, 1, time.Minute); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := repo.Retry(ctx, task.ID, time.Now().Add(time.Hour), "not yet"); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if due, _ := repo.Claim(ctx, 1, time.Minute); len(due) != 0 {
		t.Fatalf("task scheduled in the future must not be due")
	}

	if err := repo.Bury(ctx, task.ID, "gave up"); err != nil {
		t.Fatalf("Bury: %v", err)
	}
	dead, err := repo.ListDead(ctx, 10)
	if err != nil || len(dead) != 1 || dead[0].LastError != "gave up" {
		t.Fatalf("ListDead: %v %+v", err, dead)
	}

	if err := repo.Requeue(ctx, task.ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if err := repo.Requeue(ctx, task.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("requeue of a live task must report ErrNotFound, got %v", err)
	}
	due, err := repo.Claim(ctx, 1, time.Minute)
	if err != nil || len(due) != 1 || due[0].Attempts != 1 {
		t.Fatalf("requeued task must be due with a fresh budget: %v %+v", err, due)
	}
}
