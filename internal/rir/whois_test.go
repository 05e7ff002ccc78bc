package rir

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// startWhoisFixture runs a TCP server that calls handle once per
// connection, counting accepted connections.
func startWhoisFixture(t *testing.T, handle func(conn net.Conn)) (*Backend, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var conns atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns.Add(1)
			go handle(conn)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return &Backend{Code: RIPE, WhoisHost: host, WhoisPort: port, Enabled: true}, &conns
}

func TestQueryRawSingleShot(t *testing.T) {
	const response = "as-set:  AS-EXAMPLE\nmembers: AS64496\n"
	b, _ := startWhoisFixture(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		if got := string(buf[:n]); got != "AS-EXAMPLE\r\n" {
			t.Errorf("server received %q; want query line with CRLF", got)
		}
		conn.Write([]byte(response))
	})

	c := NewWhoisClient(time.Second, time.Second)
	got, err := c.QueryRaw(context.Background(), b, "AS-EXAMPLE")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if got != response {
		t.Fatalf("QueryRaw = %q; want %q", got, response)
	}
}

func TestQueryRawReadTimeoutNoRetry(t *testing.T) {
	b, conns := startWhoisFixture(t, func(conn net.Conn) {
		// Never respond, never close: the client's read deadline fires.
		buf := make([]byte, 256)
		conn.Read(buf)
		time.Sleep(3 * time.Second)
		conn.Close()
	})

	c := NewWhoisClient(time.Second, 100*time.Millisecond)
	start := time.Now()
	_, err := c.QueryRaw(context.Background(), b, "AS64496")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v; want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took %v; deadline not enforced", elapsed)
	}
	if got := conns.Load(); got != 1 {
		t.Fatalf("%d connections; want exactly 1 (no retry)", got)
	}
}

func TestQueryRawConnectionRefused(t *testing.T) {
	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()

	b := &Backend{Code: RIPE, WhoisHost: host, WhoisPort: port, Enabled: true}
	c := NewWhoisClient(time.Second, time.Second)
	_, err = c.QueryRaw(context.Background(), b, "AS64496")
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("err = %v; want ErrBackend", err)
	}
	if err != nil && !strings.Contains(err.Error(), "RIPE") {
		t.Fatalf("error %q does not name the registry", err)
	}
}

func TestDeadlinePerPhase(t *testing.T) {
	// Writes are bounded by the connect timeout, reads by the read
	// timeout; a long read timeout must not govern the write deadline.
	c := NewWhoisClient(time.Second, time.Hour)
	now := time.Now()

	write := c.deadline(context.Background(), c.ConnectTimeout)
	if d := write.Sub(now); d < 500*time.Millisecond || d > 2*time.Second {
		t.Fatalf("write deadline %v from now; want about the connect timeout", d)
	}
	read := c.deadline(context.Background(), c.ReadTimeout)
	if d := read.Sub(now); d < 59*time.Minute {
		t.Fatalf("read deadline %v from now; want about the read timeout", d)
	}

	// A sooner context deadline caps both phases.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	capped := c.deadline(ctx, c.ReadTimeout)
	if d := capped.Sub(now); d > time.Second {
		t.Fatalf("context deadline not applied; got %v from now", d)
	}
}

func TestQueryRawHonorsContextDeadline(t *testing.T) {
	b, _ := startWhoisFixture(t, func(conn net.Conn) {
		buf := make([]byte, 256)
		conn.Read(buf)
		time.Sleep(3 * time.Second)
		conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Generous per-read timeout; the context deadline must win.
	c := NewWhoisClient(time.Second, 10*time.Second)
	start := time.Now()
	_, err := c.QueryRaw(ctx, b, "AS64496")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v; want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("context deadline not honored; took %v", elapsed)
	}
}
