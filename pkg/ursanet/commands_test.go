package ursanet

import (
	"testing"
	"time"
)

func TestUnboundedQueuePushPop(t *testing.T) {
	q := newUnboundedQueue()
	q.push(1)
	q.push(2)
	q.push(3)

	for _, want := range []int{1, 2, 3} {
		v, ok := q.pop()
		if !ok {
			t.Fatalf("pop returned ok=false unexpectedly")
		}
		if v.(int) != want {
			t.Errorf("pop = %v, want %v", v, want)
		}
	}
}

func TestUnboundedQueuePopBlocksUntilPush(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan struct{})
	go func() {
		v, ok := q.pop()
		if !ok || v.(string) != "later" {
			t.Errorf("unexpected pop result: %v, %v", v, ok)
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.push("later")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock after push")
	}
}

func TestUnboundedQueueCloseUnblocksPop(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan struct{})
	go func() {
		_, ok := q.pop()
		if ok {
			t.Error("expected ok=false after close with empty queue")
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock after close")
	}
}

func TestUnboundedQueuePushAfterCloseIsDropped(t *testing.T) {
	q := newUnboundedQueue()
	q.close()
	q.push("dropped") // must not panic or block

	_, ok := q.pop()
	if ok {
		t.Error("expected ok=false, queue was closed before any push landed")
	}
}

func TestCommandPipeDeliversInOrder(t *testing.T) {
	commands, in, stop := newCommandPipe()
	defer stop()

	commands.Send(Command{Kind: CmdGetPeers})
	commands.Send(Command{Kind: CmdPublish, Topic: "t"})

	first := <-in
	if first.Kind != CmdGetPeers {
		t.Errorf("first command kind = %v, want CmdGetPeers", first.Kind)
	}
	second := <-in
	if second.Kind != CmdPublish || second.Topic != "t" {
		t.Errorf("second command = %+v", second)
	}
}

func TestCommandPipeStopClosesChannel(t *testing.T) {
	commands, in, stop := newCommandPipe()
	_ = commands
	stop()

	select {
	case _, ok := <-in:
		if ok {
			t.Error("expected channel closed after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after stop")
	}
}

func TestEventPipeDelivers(t *testing.T) {
	ch, events := newEventPipe()
	ch <- Event{Kind: EvtPeerConnected}

	evt := <-events.Out
	if evt.Kind != EvtPeerConnected {
		t.Errorf("event kind = %v, want EvtPeerConnected", evt.Kind)
	}
}
