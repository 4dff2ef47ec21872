package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomcast/internal/router"
)

// fakeChannel records written frames. A non-nil gate blocks every write
// until the gate is fed or closed; entered is signaled when a write begins.
type fakeChannel struct {
	gate    chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closed   int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{}
}

func (f *fakeChannel) WriteFrame(data []byte) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeChannel) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeChannel) frame(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[i]
}

func (f *fakeChannel) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRegistry(t *testing.T, cfg RegistryConfig) (Registry, router.Router) {
	t.Helper()

	rtr := router.NewRouter(router.DefaultRouterConfig(), nil)
	reg := NewRegistry(cfg, rtr, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		reg.Close(ctx)
		rtr.Close()
	})
	return reg, rtr
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestConn_DeliversInOrder(t *testing.T) {
	reg, rtr := newTestRegistry(t, RegistryConfig{QueueDepth: 100})

	ch := newFakeChannel()
	if _, err := reg.Register("u1", "general", ch); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 10; i++ {
		rtr.Publish(router.Message{Sender: "u2", Body: fmt.Sprintf("m%d", i), Room: "general"})
	}

	// Welcome first, then the ten messages in publish order
	waitFor(t, time.Second, func() bool { return ch.count() == 11 })
	for i := 0; i < 10; i++ {
		var msg router.Message
		if err := json.Unmarshal(ch.frame(i+1), &msg); err != nil {
			t.Fatalf("frame %d: %v", i+1, err)
		}
		if want := fmt.Sprintf("m%d", i); msg.Body != want {
			t.Errorf("frame %d body = %q, want %q", i+1, msg.Body, want)
		}
	}
}

func TestConn_StaleRoomFramesDropped(t *testing.T) {
	reg, rtr := newTestRegistry(t, RegistryConfig{QueueDepth: 100})

	ch := newFakeChannel()
	ch.gate = make(chan struct{})
	ch.entered = make(chan struct{}, 16)

	c, err := reg.Register("u1", "alpha", ch)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	<-ch.entered // loop is parked writing the welcome

	// Queue a frame for alpha, move to beta, then release the writes. The
	// alpha frame must not reach the channel.
	rtr.Publish(router.Message{Sender: "u2", Body: "for alpha", Room: "alpha"})
	rtr.Subscribe(c, "beta")
	c.SwitchRoom("beta")
	rtr.Publish(router.Message{Sender: "u2", Body: "for beta", Room: "beta"})
	close(ch.gate)

	waitFor(t, time.Second, func() bool { return ch.count() == 2 })
	var msg router.Message
	if err := json.Unmarshal(ch.frame(1), &msg); err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if msg.Body != "for beta" {
		t.Errorf("frame 1 body = %q, want %q", msg.Body, "for beta")
	}
	if got := c.Stats().DroppedStale; got != 1 {
		t.Errorf("DroppedStale = %d, want 1", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := ch.count(); got != 2 {
		t.Errorf("frame count = %d, want 2", got)
	}
}

func TestConn_ReturnToRoomDropsEarlierFrames(t *testing.T) {
	reg, rtr := newTestRegistry(t, RegistryConfig{QueueDepth: 100})

	ch := newFakeChannel()
	ch.gate = make(chan struct{})
	ch.entered = make(chan struct{}, 16)

	c, err := reg.Register("u1", "alpha", ch)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	<-ch.entered // loop is parked writing the welcome

	// A frame queued for alpha stays dead across alpha -> beta -> alpha;
	// rejoining the room does not resurrect it.
	rtr.Publish(router.Message{Sender: "u2", Body: "before leaving", Room: "alpha"})
	c.SwitchRoom("beta")
	rtr.Subscribe(c, "beta")
	c.SwitchRoom("alpha")
	rtr.Subscribe(c, "alpha")
	rtr.Publish(router.Message{Sender: "u2", Body: "after returning", Room: "alpha"})
	close(ch.gate)

	waitFor(t, time.Second, func() bool { return ch.count() == 2 })
	var msg router.Message
	if err := json.Unmarshal(ch.frame(1), &msg); err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if msg.Body != "after returning" {
		t.Errorf("frame 1 body = %q, want %q", msg.Body, "after returning")
	}
	if got := c.Stats().DroppedStale; got != 1 {
		t.Errorf("DroppedStale = %d, want 1", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := ch.count(); got != 2 {
		t.Errorf("frame count = %d, want 2", got)
	}
}

func TestConn_ControlFramesSurviveRoomSwitch(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryConfig{QueueDepth: 100})

	ch := newFakeChannel()
	ch.gate = make(chan struct{})
	ch.entered = make(chan struct{}, 16)

	c, err := reg.Register("u1", "alpha", ch)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	<-ch.entered

	// A roomless frame queued before a switch still goes out
	c.Deliver(router.Frame{Data: []byte(`{"type":"ack"}`)})
	c.SwitchRoom("beta")
	close(ch.gate)

	waitFor(t, time.Second, func() bool { return ch.count() == 2 })
	if got := string(ch.frame(1)); got != `{"type":"ack"}` {
		t.Errorf("frame 1 = %s, want the ack", got)
	}
	if got := c.Stats().DroppedStale; got != 0 {
		t.Errorf("DroppedStale = %d, want 0", got)
	}
}

func TestConn_OverflowDropsOldest(t *testing.T) {
	reg, rtr := newTestRegistry(t, RegistryConfig{QueueDepth: 5})

	ch := newFakeChannel()
	ch.gate = make(chan struct{})
	ch.entered = make(chan struct{}, 16)

	c, err := reg.Register("u1", "general", ch)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	<-ch.entered // welcome is off the queue, the queue is all ours

	// Eight publishes into a depth-5 queue: the first three give way
	for i := 0; i < 8; i++ {
		rtr.Publish(router.Message{Sender: "u2", Body: fmt.Sprintf("m%d", i), Room: "general"})
	}
	close(ch.gate)

	waitFor(t, time.Second, func() bool { return ch.count() == 6 })
	for i := 0; i < 5; i++ {
		var msg router.Message
		if err := json.Unmarshal(ch.frame(i+1), &msg); err != nil {
			t.Fatalf("frame %d: %v", i+1, err)
		}
		if want := fmt.Sprintf("m%d", i+3); msg.Body != want {
			t.Errorf("frame %d body = %q, want %q", i+1, msg.Body, want)
		}
	}
	if got := c.Stats().Queue.Dropped; got != 3 {
		t.Errorf("Queue.Dropped = %d, want 3", got)
	}
}

func TestConn_WriteErrorTearsDown(t *testing.T) {
	reg, rtr := newTestRegistry(t, RegistryConfig{QueueDepth: 10})

	ch := newFakeChannel()
	ch.setWriteErr(errors.New("broken pipe"))

	c, err := reg.Register("u1", "general", ch)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	<-c.Done()
	if c.State() != StateClosed {
		t.Errorf("State() = %v, want %v", c.State(), StateClosed)
	}
	if _, ok := reg.Lookup("u1"); ok {
		t.Error("Lookup still returns the connection after a write failure")
	}
	if ch.closedCount() == 0 {
		t.Error("channel was not closed")
	}

	// The room is empty now; publishing reaches nobody and raises nothing
	if n := rtr.Publish(router.Message{Sender: "u2", Body: "hi", Room: "general"}); n != 0 {
		t.Errorf("Publish delivered to %d connections, want 0", n)
	}
}

func TestConn_PublishRateLimit(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryConfig{QueueDepth: 10, PublishRate: 1, PublishBurst: 2})

	c, err := reg.Register("u1", "", newFakeChannel())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !c.AllowPublish() || !c.AllowPublish() {
		t.Fatal("burst publishes were refused")
	}
	if c.AllowPublish() {
		t.Error("third immediate publish allowed, want refusal")
	}
}

func TestConn_PublishRateUnlimited(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryConfig{QueueDepth: 10})

	c, err := reg.Register("u1", "", newFakeChannel())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 100; i++ {
		if !c.AllowPublish() {
			t.Fatalf("publish %d refused with no rate configured", i)
		}
	}
}
