package notify

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestSenderDisabled(t *testing.T) {
	t.Parallel()

	var nilSender *Sender
	if nilSender.Enabled() {
		t.Error("nil sender reports enabled")
	}
	s := NewSender("")
	if s.Enabled() {
		t.Error("empty addr reports enabled")
	}
	// Must be safe to call with no target.
	s.SendHandID(1)
	s.Close()
}

func TestSenderDeliversIDs(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	lines := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	s := NewSender(ln.Addr().String())
	defer s.Close()
	if !s.Enabled() {
		t.Fatal("sender with addr not enabled")
	}

	s.SendHandID(42)
	s.SendHandID(1001)

	for _, want := range []string{"42", "1001"} {
		select {
		case got := <-lines:
			if got != want {
				t.Errorf("received %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSenderRedialsAfterWriteFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	conns := make(chan net.Conn, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- conn
		}
	}()

	s := NewSender(ln.Addr().String())
	defer s.Close()

	s.SendHandID(1)
	first := <-conns
	first.Close()

	// Write failure detection on a torn-down connection is asynchronous, so
	// keep writing until the sender drops it.
	deadline := time.Now().Add(5 * time.Second)
	for s.conn != nil && time.Now().Before(deadline) {
		s.SendHandID(2)
		time.Sleep(10 * time.Millisecond)
	}
	if s.conn != nil {
		t.Fatal("sender never dropped the dead connection")
	}

	s.SendHandID(3)
	select {
	case second := <-conns:
		second.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not redial")
	}
}
