package transport

import (
	"net"
	"testing"
	"time"
)

func TestTCPTransportRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	tr, err := New(Config{Type: "tcp", Address: ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	if _, err := tr.Write([]byte("ATZ\r")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := tr.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "ATZ\r" {
		t.Errorf("got %q, want echoed command", buf[:n])
	}
	<-serverDone
}

func TestNewRejectsUnsupportedType(t *testing.T) {
	if _, err := New(Config{Type: "bogus"}); err == nil {
		t.Error("expected error for unsupported transport type")
	}
}
