package ursanet

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestRequestResponseRoundTrip(t *testing.T) {
	server := newTestHost(t)
	client := newTestHost(t)
	connectTestHosts(t, server, client)

	events := make(chan swarmEvent, 1)
	newRequestResponseHub(server, func(e swarmEvent) { events <- e })

	clientRR := newRequestResponseHub(client, func(swarmEvent) {})

	go func() {
		evt := <-events
		if evt.kind != swarmRequestMessage {
			t.Errorf("event kind = %v, want swarmRequestMessage", evt.kind)
			return
		}
		evt.request.ResponseChannel <- append([]byte("echo: "), evt.request.Request...)
	}()

	resp, err := clientRR.SendRequest(context.Background(), server.ID(), []byte("hello"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if !bytes.Equal(resp, []byte("echo: hello")) {
		t.Errorf("response = %q, want %q", resp, "echo: hello")
	}
}

func TestRequestResponseTimesOutWithoutReply(t *testing.T) {
	server := newTestHost(t)
	client := newTestHost(t)
	connectTestHosts(t, server, client)

	newRequestResponseHub(server, func(swarmEvent) {}) // never replies
	clientRR := newRequestResponseHub(client, func(swarmEvent) {})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := clientRR.SendRequest(ctx, server.ID(), []byte("hello"))
	if err == nil {
		t.Error("expected error when server never replies before deadline")
	}
}
