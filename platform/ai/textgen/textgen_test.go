package textgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadchat_backend/platform/logger"
)

type scriptedBackend struct {
	calls   int
	results []func() (string, error)
}

func (b *scriptedBackend) Generate(_ context.Context, _ Request) (string, error) {
	i := b.calls
	b.calls++
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i]()
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(msg string) func() (string, error) {
	return func() (string, error) { return "", errors.New(msg) }
}

func newTestService(backend Backend, retries int) *Service {
	return NewService(backend, Options{
		Timeout:   time.Second,
		Retries:   retries,
		BaseDelay: time.Millisecond,
	}, logger.New("test"))
}

func TestGenerateReturnsTrimmedText(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){ok("  hello  \n")}}
	svc := newTestService(backend, 2)

	text, err := svc.Generate(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
	if backend.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", backend.calls)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){
		fail("transport down"),
		fail("transport down"),
		ok("recovered"),
	}}
	svc := newTestService(backend, 2)

	text, err := svc.Generate(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("unexpected text: %q", text)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls)
	}
}

func TestGenerateExhaustedRetriesIsUnavailable(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){fail("down")}}
	svc := newTestService(backend, 2)

	_, err := svc.Generate(context.Background(), Request{User: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls)
	}
}

func TestGenerateEmptyResponseIsFailure(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){ok("   \n\t ")}}
	svc := newTestService(backend, 0)

	if _, err := svc.Generate(context.Background(), Request{User: "hi"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for blank output, got %v", err)
	}
}

func TestGenerateCancelledContextIsUnavailable(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){ok("never reached")}}
	svc := newTestService(backend, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Generate(ctx, Request{User: "hi"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if backend.calls != 0 {
		t.Fatalf("expected no attempts after cancellation, got %d", backend.calls)
	}
}

func TestGenerateNoRetryAfterSuccessMidSequence(t *testing.T) {
	backend := &scriptedBackend{results: []func() (string, error){
		fail("once"),
		ok("fine"),
	}}
	svc := newTestService(backend, 2)

	text, err := svc.Generate(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "fine" || backend.calls != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", text, backend.calls)
	}
}
