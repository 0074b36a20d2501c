package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

type route struct {
	pub Publisher
	on  Outcome
}

// Fanout delivers each event to the publishers whose outcome filter matches it.
type Fanout struct {
	routes []route
}

// NewFanout routes every event to each non-nil publisher.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		f.Route(p, OutcomeAny)
	}
	return f
}

// Route adds pub for events matching on. Nil publishers are ignored.
func (f *Fanout) Route(pub Publisher, on Outcome) {
	if pub == nil {
		return
	}
	f.routes = append(f.routes, route{pub: pub, on: on})
}

// Publish returns how many publishers accepted evt. Publishers filtered out
// by outcome count neither as delivered nor as failed.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, r := range f.routes {
		if !r.on.Matches(evt) {
			continue
		}
		if err := r.pub.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", r.pub.Type(), r.pub.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of routed publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.routes)
}

// Close releases publishers holding client connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, r := range f.routes {
		if c, ok := r.pub.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", r.pub.Type(), r.pub.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
