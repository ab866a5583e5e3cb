package httpx

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/giongto35/touchcoop/pkg/logger"
)

func TestListenerCreation(t *testing.T) {
	tests := []struct {
		addr   string
		port   string
		random bool
		error  bool
	}{
		{addr: ":", random: true},
		{addr: ":0", random: true},
		{addr: "127.0.0.1:0", random: true},
		{addr: "https://garbage.com:99a9a", error: true},
		{addr: "localhost:abc1", error: true},
	}

	for _, test := range tests {
		ls, err := NewListener(test.addr, false, logger.Nop())

		if test.error {
			if err == nil {
				t.Errorf("expected error, but got none")
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error %v", err)
			continue
		}

		port := ls.GetPort()
		_ = ls.Close()
		if test.random && port <= 0 {
			t.Errorf("expected a random port, got %v", port)
		}
	}
}

func TestListenerPortRoll(t *testing.T) {
	a, err := NewListener("127.0.0.1:0", false, logger.Nop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = a.Close() }()
	busy := net.JoinHostPort("127.0.0.1", strconv.Itoa(a.GetPort()))

	if _, err = NewListener(busy, false, logger.Nop()); err == nil {
		t.Errorf("expected busy port error, but got none")
	}
	b, err := NewListener(busy, true, logger.Nop())
	if err != nil {
		t.Fatalf("expected no port error, but got %v", err)
	}
	defer func() { _ = b.Close() }()
	if b.GetPort() == a.GetPort() {
		t.Errorf("port wasn't rolled")
	}
}

func TestServer(t *testing.T) {
	s, err := NewServer("127.0.0.1:0", func(*Server) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	}, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	s.Run()
	defer func() { _ = s.Shutdown(context.Background()) }()

	if strings.HasSuffix(s.Addr, ":0") {
		t.Fatalf("address has no real port: %v", s.Addr)
	}
	resp, err := http.Get("http://" + s.Addr)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("got %s", body)
	}
}
