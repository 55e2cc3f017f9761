package hub

import "testing"

func TestEnqueueAfterCloseIsSafe(t *testing.T) {
	client := NewClient("c1", nil, DefaultConfig())

	if !client.Enqueue([]byte("frame")) {
		t.Fatal("expected enqueue to succeed on open client")
	}

	client.Close()

	if client.Enqueue([]byte("late frame")) {
		t.Error("expected enqueue to report false after close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client := NewClient("c1", nil, DefaultConfig())
	client.Close()
	client.Close()

	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestEnqueueReportsFullBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	client := NewClient("c1", nil, cfg)

	if !client.Enqueue([]byte("first")) {
		t.Fatal("expected first enqueue to succeed")
	}
	if client.Enqueue([]byte("second")) {
		t.Error("expected enqueue to report false on full buffer")
	}
}
