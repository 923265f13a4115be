package engine

import (
	"testing"

	"github.com/viralforge/procindex/internal/domain"
)

func TestNotifierDeliversToSubscribedKindOnly(t *testing.T) {
	t.Parallel()

	n := NewNotifier(4)
	procCh, cancelProc := n.Subscribe(domain.KindProcessInstance)
	defer cancelProc()
	jobCh, cancelJob := n.Subscribe(domain.KindJob)
	defer cancelJob()

	n.Publish(Notification{Kind: domain.KindProcessInstance, EntityID: "p-1"})

	select {
	case note := <-procCh:
		if note.EntityID != "p-1" {
			t.Fatalf("wrong entity id %q", note.EntityID)
		}
	default:
		t.Fatal("process subscriber received nothing")
	}
	select {
	case note := <-jobCh:
		t.Fatalf("job subscriber received foreign notification %+v", note)
	default:
	}
}

func TestNotifierDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	n := NewNotifier(2)
	ch, cancel := n.Subscribe(domain.KindJob)
	defer cancel()

	for i := 0; i < 5; i++ {
		n.Publish(Notification{Kind: domain.KindJob, EntityID: string(rune('a' + i))})
	}

	// Buffer of two keeps the newest two publications.
	first := <-ch
	second := <-ch
	if first.EntityID != "d" || second.EntityID != "e" {
		t.Fatalf("expected newest notifications d,e, got %q,%q", first.EntityID, second.EntityID)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra notification %+v", extra)
	default:
	}
}

func TestNotifierCancelIsIdempotentAndClosesStream(t *testing.T) {
	t.Parallel()

	n := NewNotifier(1)
	ch, cancel := n.Subscribe(domain.KindUserTaskInstance)
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic or deliver.
	n.Publish(Notification{Kind: domain.KindUserTaskInstance, EntityID: "t-1"})
}

func TestNotifierPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	n := NewNotifier(1)
	_, cancel := n.Subscribe(domain.KindProcessInstance)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			n.Publish(Notification{Kind: domain.KindProcessInstance, EntityID: "p"})
		}
		close(done)
	}()
	<-done
}
