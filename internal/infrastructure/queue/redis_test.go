package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
)

func TestNewRedisQueueRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisQueue(context.Background(), "", "snp-analysis-queue")

	var cfgErr *httpx.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *httpx.ConfigError, got %T: %v", err, err)
	}
}

func TestPopFIFO(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)

	q, err := NewRedisQueue(context.Background(), "redis://"+srv.Addr(), "snp-analysis-queue")
	if err != nil {
		t.Fatalf("NewRedisQueue error: %v", err)
	}
	defer q.Close()

	if _, err := srv.Lpush("snp-analysis-queue", "job-1"); err != nil {
		t.Fatalf("lpush: %v", err)
	}
	if _, err := srv.Lpush("snp-analysis-queue", "job-2"); err != nil {
		t.Fatalf("lpush: %v", err)
	}

	ctx := context.Background()

	first, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop error: %v", err)
	}
	if first != "job-1" {
		t.Fatalf("expected job-1 first, got %s", first)
	}

	second, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop error: %v", err)
	}
	if second != "job-2" {
		t.Fatalf("expected job-2 second, got %s", second)
	}
}

func TestPopEmptyQueue(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)

	q, err := NewRedisQueue(context.Background(), "redis://"+srv.Addr(), "snp-analysis-queue")
	if err != nil {
		t.Fatalf("NewRedisQueue error: %v", err)
	}
	defer q.Close()

	id, err := q.Pop(context.Background())
	if err != nil {
		t.Fatalf("expected nil error on empty queue, got %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %s", id)
	}
}
