package http

import (
	"context"
	"io"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/auth"
	"github.com/rhuss/chatbridge/pkg/stream"
)

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	backend := &fakeBackend{parts: []api.ResponsePart{api.TextResponsePart{Value: "hello"}}}
	srv := NewServer(backend, WithAddr("127.0.0.1:0"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(ln)
	time.Sleep(50 * time.Millisecond)

	resp, err := gohttp.Post("http://"+addr+"/v1/chat", "application/json", strings.NewReader(`{"model":"m"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"value":"hello"`) {
		t.Errorf("body missing text part:\n%s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func TestServerGracefulShutdown(t *testing.T) {
	backend := &fakeBackend{chatFunc: func(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return sink.Emit(api.TextResponsePart{Value: "slow"})
		case <-ctx.Done():
			return ctx.Err()
		}
	}}

	srv := NewServer(backend,
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(5*time.Second),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	addr := ln.Addr().String()

	go srv.ServeOn(ln)
	time.Sleep(50 * time.Millisecond)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post("http://"+addr+"/v1/chat", "application/json", strings.NewReader(`{"model":"m"}`))
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	status := <-responseCh
	if status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerRunStopsOnContext(t *testing.T) {
	srv := NewServer(&fakeBackend{}, WithAddr("127.0.0.1:0"), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	chain := &auth.Chain{AllowAnonymous: true}
	limiter := auth.NewInProcessLimiter(auth.Limits{PerMinute: 10})
	srv := NewServer(&fakeBackend{},
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithAuth(chain, limiter),
		WithMetrics("/metrics"),
		WithHealthCheck(func(context.Context) error { return nil }),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.config.Auth != chain || srv.config.RateLimiter != limiter {
		t.Error("auth options not applied")
	}
	if srv.config.MetricsPath != "/metrics" || srv.config.HealthCheck == nil {
		t.Error("metrics or health check option not applied")
	}
	if srv.adapter.config.MaxBodySize != 1024 {
		t.Errorf("adapter max body size = %d, want 1024", srv.adapter.config.MaxBodySize)
	}
}
