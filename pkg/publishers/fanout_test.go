package publishers

import (
	"context"
	"errors"
	"testing"
)

type stubPublisher struct {
	id    string
	typ   string
	err   error
	calls int
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

type closingPublisher struct {
	stubPublisher
	closed bool
}

func (c *closingPublisher) Close() error {
	c.closed = true
	return nil
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "ok", typ: TypeHTTP},
		&stubPublisher{id: "bad", typ: TypeHTTP, err: errors.New("failed")},
	})

	count, err := fanout.Publish(context.Background(), dispatchEvent())
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestFanoutRoutesByOutcome(t *testing.T) {
	all := &stubPublisher{id: "audit", typ: TypeHTTP}
	onSuccess := &stubPublisher{id: "done", typ: TypePubSub}
	onFailure := &stubPublisher{id: "ops", typ: TypeSNS}

	f := &Fanout{}
	f.Route(all, OutcomeAny)
	f.Route(onSuccess, OutcomeSuccess)
	f.Route(onFailure, OutcomeFailure)

	failed := dispatchEvent()
	failed.Error = "POST /send-qr-email-all: status 500"
	if n, err := f.Publish(context.Background(), failed); err != nil || n != 2 {
		t.Fatalf("failure event: delivered=%d err=%v", n, err)
	}

	ok := dispatchEvent()
	ok.Succeeded = true
	if n, err := f.Publish(context.Background(), ok); err != nil || n != 2 {
		t.Fatalf("success event: delivered=%d err=%v", n, err)
	}

	if all.calls != 2 || onSuccess.calls != 1 || onFailure.calls != 1 {
		t.Fatalf("unexpected routing all=%d success=%d failure=%d", all.calls, onSuccess.calls, onFailure.calls)
	}
}

func TestRegistryFanoutBuildsRoutes(t *testing.T) {
	f, err := DefaultRegistry().Fanout(context.Background(), []PublisherConfig{
		{ID: "hook", Type: TypeHTTP, On: "failure", HTTP: &HTTPPublisherConfig{URL: "https://example.com", TimeoutSeconds: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	if f.Size() != 1 || f.routes[0].on != OutcomeFailure {
		t.Fatalf("unexpected routes %#v", f.routes)
	}
}

func TestRegistryFanoutClosesBuiltPublishersOnError(t *testing.T) {
	built := &closingPublisher{stubPublisher: stubPublisher{id: "g", typ: TypePubSub}}
	reg := Registry{
		TypePubSub: func(context.Context, PublisherConfig, Logger) (Publisher, error) { return built, nil },
		TypeHTTP:   func(context.Context, PublisherConfig, Logger) (Publisher, error) { return nil, errors.New("bad url") },
	}

	_, err := reg.Fanout(context.Background(), []PublisherConfig{
		{ID: "g", Type: TypePubSub},
		{ID: "h", Type: TypeHTTP},
		{ID: "never", Type: TypeSQS},
	}, nil)
	if err == nil {
		t.Fatalf("expected build error")
	}
	if !built.closed {
		t.Fatalf("expected already built publisher to be closed")
	}
	if _, err := reg.Build(context.Background(), PublisherConfig{ID: "x", Type: TypeSQS}, nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}

func TestFanoutCloseReleasesClosers(t *testing.T) {
	closer := &closingPublisher{stubPublisher: stubPublisher{id: "g", typ: TypePubSub}}
	fanout := NewFanout([]Publisher{&stubPublisher{id: "h", typ: TypeHTTP}, closer, nil})
	if fanout.Size() != 2 {
		t.Fatalf("expected nil publishers skipped, size=%d", fanout.Size())
	}
	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closer.closed {
		t.Fatalf("expected closer to be closed")
	}
}
