package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweepPendingCancellations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	header, details := f.approve(t)

	f.ledger.applyErr = errors.New("connection reset")
	if _, err := f.svc.CancelItem(ctx, owner, details[1].PaymentDetailNo); err == nil {
		t.Fatal("expected apply failure")
	}
	f.ledger.applyErr = nil

	// still inside the grace window
	if n, err := f.svc.SweepPendingCancellations(ctx, time.Hour, 10); err != nil || n != 0 {
		t.Fatalf("sweep inside grace = %d, %v", n, err)
	}

	n, err := f.svc.SweepPendingCancellations(ctx, -time.Minute, 10)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	h := f.ledger.header(header.PaymentNo)
	if h.PaymentRemain != 10000 || h.Status != StatusPartiallyCancelled {
		t.Errorf("header after sweep = %+v", h)
	}
	if events := f.pub.types(); len(events) != 2 {
		t.Errorf("events = %v, want approved + item cancelled", events)
	}

	// nothing left
	if n, _ := f.svc.SweepPendingCancellations(ctx, -time.Minute, 10); n != 0 {
		t.Errorf("second sweep applied %d", n)
	}
	if _, _, cancels := f.gw.calls(); cancels != 1 {
		t.Errorf("gateway cancel called %d times, want 1", cancels)
	}
}

func TestJobProcessorReconciles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	header, _ := f.approve(t)

	f.ledger.applyErr = errors.New("connection reset")
	if _, err := f.svc.CancelAll(ctx, owner, header.PaymentNo); err == nil {
		t.Fatal("expected apply failure")
	}
	f.ledger.applyErr = nil

	jp := NewJobProcessor(f.svc, &JobConfig{
		ReconcileInterval: 10 * time.Millisecond,
		ReconcileGrace:    -time.Minute,
		BatchSize:         10,
	})
	jp.Start(ctx)
	defer jp.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for f.ledger.header(header.PaymentNo).PaymentRemain != 0 {
		if time.Now().After(deadline) {
			t.Fatal("job never applied the pending cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	jp.Stop()
	if got := jp.GetJobStatus()["status"]; got != "stopped" {
		t.Errorf("status = %v", got)
	}
}
