package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"log/slog"
	"testing"
	"time"

	"github.com/NERVsystems/tripmcp/pkg/attribution"
	"github.com/NERVsystems/tripmcp/pkg/country"
	"github.com/NERVsystems/tripmcp/pkg/emissions"
	"github.com/NERVsystems/tripmcp/pkg/engine"
	"github.com/NERVsystems/tripmcp/pkg/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	tables, err := emissions.DefaultTables()
	if err != nil {
		t.Fatalf("loading tables: %v", err)
	}
	locator := country.LocatorFunc(func(context.Context, float64, float64) (string, bool) {
		return "FR", true
	})
	eng := engine.New(attribution.New(locator, discardLogger()), emissions.NewModel(tables))
	return tools.NewRegistry(discardLogger(), eng)
}

func TestNewServer(t *testing.T) {
	s := NewServer(newTestRegistry(t), discardLogger())
	if s.GetMCPServer() == nil {
		t.Fatal("NewServer() returned no MCP server")
	}
	if got := len(s.ToolNames()); got != 12 {
		t.Errorf("expected 12 tools, got %d", got)
	}
}

// stdioHarness runs a Server on pipes and collects responses by ID.
type stdioHarness struct {
	in        *io.PipeWriter
	responses chan map[string]any
	errCh     chan error
}

func startStdio(ctx context.Context, t *testing.T, s *Server) *stdioHarness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	s.stdin = inR
	s.stdout = outW

	h := &stdioHarness{
		in:        inW,
		responses: make(chan map[string]any, 16),
		errCh:     make(chan error, 1),
	}
	go func() {
		h.errCh <- s.RunWithContext(ctx)
		outW.Close()
	}()
	go func() {
		scanner := bufio.NewScanner(outR)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			var msg map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &msg); err == nil {
				h.responses <- msg
			}
		}
		close(h.responses)
	}()
	t.Cleanup(func() { inW.Close() })
	return h
}

func (h *stdioHarness) send(t *testing.T, msg string) {
	t.Helper()
	if _, err := io.WriteString(h.in, msg+"\n"); err != nil {
		t.Fatalf("writing request: %v", err)
	}
}

func (h *stdioHarness) await(t *testing.T, id float64) map[string]any {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-h.responses:
			if !ok {
				t.Fatalf("stdout closed before response %v", id)
			}
			if got, _ := msg["id"].(float64); got == id {
				return msg
			}
		case <-timeout:
			t.Fatalf("no response with id %v", id)
		}
	}
}

func TestStdioCalculateCarbon(t *testing.T) {
	s := NewServer(newTestRegistry(t), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startStdio(ctx, t, s)

	h.send(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	init := h.await(t, 1)
	if init["error"] != nil {
		t.Fatalf("initialize failed: %v", init["error"])
	}
	h.send(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	h.send(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"calculate_carbon","arguments":{"trip":{"type":"train","trip_length":50000}}}}`)
	resp := h.await(t, 2)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected a result, got %v", resp)
	}
	if isErr, _ := result["isError"].(bool); isErr {
		t.Fatalf("tool returned an error: %v", result)
	}
	content, _ := result["content"].([]any)
	if len(content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, _ := content[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, `"trip_type":"train"`) {
		t.Errorf("unexpected tool output: %s", text)
	}

	cancel()
	select {
	case err := <-h.errCh:
		if err != nil {
			t.Errorf("RunWithContext() = %v, expected nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestStdioStopsOnEOF(t *testing.T) {
	s := NewServer(newTestRegistry(t), discardLogger())
	h := startStdio(context.Background(), t, s)

	h.in.Close()
	select {
	case err := <-h.errCh:
		if err != nil {
			t.Errorf("RunWithContext() = %v, expected nil on EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on EOF")
	}
	s.WaitForShutdown()
}

func TestServerShutdownIsIdempotent(t *testing.T) {
	s := NewServer(newTestRegistry(t), discardLogger())

	// not running yet
	s.Shutdown()

	h := startStdio(context.Background(), t, s)
	h.send(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	h.await(t, 7)

	if err := s.Run(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, expected ErrAlreadyRunning", err)
	}

	s.Shutdown()
	s.Shutdown()

	select {
	case err := <-h.errCh:
		if err != nil {
			t.Errorf("RunWithContext() = %v after Shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after Shutdown")
	}
}
