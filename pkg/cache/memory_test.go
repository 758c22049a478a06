package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type item struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func TestMemoryServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryService()

	var got item
	if err := m.Get(ctx, "k", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := m.Set(ctx, "k", item{Name: "A1", Price: 10000}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := m.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "A1" || got.Price != 10000 {
		t.Errorf("got %+v", got)
	}
	if !m.Exists(ctx, "k") {
		t.Error("expected key to exist")
	}
}

func TestMemoryServiceExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryService()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "k", 1, time.Second)
	now = now.Add(2 * time.Second)

	var v int
	if err := m.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestMemoryServiceDeletePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryService()
	_ = m.Set(ctx, "topgun:seats:detail:no:1", 1, 0)
	_ = m.Set(ctx, "topgun:seats:list:all", 1, 0)
	_ = m.Set(ctx, "topgun:payments:list:user:alice", 1, 0)

	if err := m.DeletePattern(ctx, "topgun:seats:*"); err != nil {
		t.Fatal(err)
	}
	if m.Exists(ctx, "topgun:seats:detail:no:1") || m.Exists(ctx, "topgun:seats:list:all") {
		t.Error("seat keys should be gone")
	}
	if !m.Exists(ctx, "topgun:payments:list:user:alice") {
		t.Error("payment key should survive")
	}
}

func TestMemoryServiceGetOrSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryService()
	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return []item{{Name: "B2", Price: 15000}}, nil
	}

	for i := 0; i < 3; i++ {
		var got []item
		if err := m.GetOrSet(ctx, "list", time.Minute, fetch, &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "B2" {
			t.Fatalf("got %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("fetcher called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	var got []item
	err := m.GetOrSet(ctx, "other", time.Minute, func() (interface{}, error) { return nil, boom }, &got)
	if !errors.Is(err, boom) {
		t.Errorf("expected fetcher error, got %v", err)
	}
}
