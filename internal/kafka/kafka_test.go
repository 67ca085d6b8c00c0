package kafka

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "orders", 8)
	p.Start()

	env := NewEnvelope("OrderCancelled", "test", "order-1", map[string]int{"qty": 2})
	Emit(p, env)
	p.Publish([]byte("k"), []byte("v"))
	p.Close()
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 2 || !w.closed {
		t.Fatalf("msgs=%d closed=%v", len(w.msgs), w.closed)
	}
	if string(w.msgs[0].Key) != "order-1" {
		t.Fatalf("key = %q", w.msgs[0].Key)
	}
	got, err := UnmarshalEnvelope(w.msgs[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if got.EventType != "OrderCancelled" || got.EventID != env.EventID {
		t.Fatalf("envelope = %+v", got)
	}
	p2, err := UnwrapPayload[map[string]int](got.Payload)
	if err != nil || p2["qty"] != 2 {
		t.Fatalf("payload = %v, %v", p2, err)
	}
	if h := w.msgs[0].Headers; len(h) != 2 || string(h[0].Value) != "OrderCancelled" {
		t.Fatalf("headers = %v", h)
	}
}

func TestProducerDropsPublishAfterClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "orders", 1)
	p.Start()
	p.Publish([]byte("a"), []byte("1"))
	p.Close()

	// a late handler must not panic on the closed inbox
	p.Publish([]byte("b"), []byte("2"))
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "a" {
		t.Fatalf("msgs = %+v", w.msgs)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.committed))
	for i, m := range r.committed {
		out[i] = m.Offset
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func runConsumer(c *Consumer, ctx context.Context, h Handler) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return done
}

func TestConsumerRetriesFailedMessageInPlace(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 4)
	c.backoff = time.Millisecond

	var (
		mu      sync.Mutex
		handled []int64
		fails   int
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runConsumer(c, ctx, func(ctx context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, m.Offset)
		if m.Offset == 2 && fails < 2 {
			fails++
			return errors.New("redis down")
		}
		return nil
	})

	waitFor(t, func() bool { return len(r.committedOffsets()) == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := r.committedOffsets(); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Fatalf("committed = %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(handled, []int64{1, 2, 2, 2, 3}) {
		t.Fatalf("handled = %v", handled)
	}
}

func TestConsumerNeverCommitsPastAFailure(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Partition: 0, Offset: 1},
		{Partition: 0, Offset: 2},
		{Partition: 0, Offset: 3},
		{Partition: 1, Offset: 7},
	}}
	c := newConsumer(r, 2)
	c.backoff = time.Millisecond

	var (
		mu       sync.Mutex
		attempts int
		sawThree bool
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runConsumer(c, ctx, func(ctx context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case m.Partition == 0 && m.Offset == 2:
			attempts++
			return errors.New("boom")
		case m.Partition == 0 && m.Offset == 3:
			sawThree = true
		}
		return nil
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 3 && len(r.committedOffsets()) == 2
	})
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		t.Fatal("reader not closed")
	}
	for _, m := range r.committed {
		if m.Partition == 0 && m.Offset >= 2 {
			t.Fatalf("committed partition 0 offset %d behind a failure", m.Offset)
		}
	}
	if len(r.committed) != 2 {
		t.Fatalf("committed = %+v", r.committed)
	}
	mu.Lock()
	defer mu.Unlock()
	if sawThree {
		t.Fatal("offset 3 handled while offset 2 was still failing")
	}
}
