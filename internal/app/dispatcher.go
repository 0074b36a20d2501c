package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"

	"github.com/kintai-hq/kintai-client/internal/config"
	"github.com/kintai-hq/kintai-client/internal/logger"
	"github.com/kintai-hq/kintai-client/internal/storage"
	"github.com/kintai-hq/kintai-client/pkg/api"
	"github.com/kintai-hq/kintai-client/pkg/httpclient"
	"github.com/kintai-hq/kintai-client/pkg/publishers"
)

const dispatchOperation = "qr.send_email_all"

// QRMailer is the slice of the facade the dispatcher drives.
type QRMailer interface {
	SendEmailAll(ctx context.Context) (api.Response, error)
}

// EventPublisher receives the outcome of each dispatch.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
}

// Dispatcher mails the day's QR code to every user on a cron schedule and
// reports each run to the configured publishers. A day is dispatched at most
// once, even across restarts, as long as the store persists.
type Dispatcher struct {
	schedule cron.Schedule
	spec     string
	mailer   QRMailer
	store    storage.Store
	events   EventPublisher
	log      logger.Logger
	now      func() time.Time
}

// NewDispatcher wires a dispatcher from already-built parts.
func NewDispatcher(spec string, mailer QRMailer, store storage.Store, events EventPublisher, log logger.Logger) (*Dispatcher, error) {
	if mailer == nil {
		return nil, errors.New("qr mailer must not be nil")
	}
	schedule, err := cron.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse dispatch schedule %q: %w", spec, err)
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if store == nil {
		store, _ = storage.NewStore("none", "", storage.Options{})
	}
	if events == nil {
		events = publishers.NewFanout(nil)
	}
	return &Dispatcher{
		schedule: schedule,
		spec:     spec,
		mailer:   mailer,
		store:    store,
		events:   events,
		log:      log,
		now:      time.Now,
	}, nil
}

// Runtime owns everything a dispatcher built from config holds open.
type Runtime struct {
	*Dispatcher
	session *Session
	fanout  *publishers.Fanout
}

// NewRuntime builds a dispatcher from config: session store, transport,
// facade and the optional publishers file.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	session, err := OpenSession(cfg, log)
	if err != nil {
		_ = fanout.Close()
		return nil, err
	}

	d, err := NewDispatcher(cfg.DispatchSchedule, session.Client.QR, session.Store, fanout, log)
	if err != nil {
		_ = fanout.Close()
		_ = session.Close()
		return nil, err
	}
	return &Runtime{Dispatcher: d, session: session, fanout: fanout}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; dispatch events are logged only", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}

	cfgs, err := publishers.LoadConfigs(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers file: %w", err)
	}
	fanout, err := publishers.DefaultRegistry().Fanout(ctx, cfgs, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(cfgs))
	for _, pubCfg := range cfgs {
		on := pubCfg.On
		if on == "" {
			on = string(publishers.OutcomeAny)
		}
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
			"on":   on,
		})
	}
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return fanout, nil
}

// Close releases publishers and the session store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.fanout.Close(), r.session.Close())
}

// Run fires on every schedule tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d == nil || d.mailer == nil {
		return fmt.Errorf("dispatcher is not initialized")
	}

	d.log.InfoObj("dispatcher loop starting", "dispatcher_state", map[string]any{
		"schedule":         d.spec,
		"publishers_count": d.events.Size(),
		"next_run":         d.schedule.Next(d.now()).Format(time.RFC3339),
	})

	for {
		now := d.now()
		next := d.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.InfoObj("dispatcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-timer.C:
			if _, err := d.RunOnce(ctx, next); err != nil {
				d.log.ErrorObj("scheduled dispatch failed", "error", err.Error())
			}
		}
	}
}

// RunOnce dispatches for the calendar day of at. It reports false when the
// day was already dispatched or another process holds the day's claim. A
// failed send releases the claim so a later run retries.
func (d *Dispatcher) RunOnce(ctx context.Context, at time.Time) (bool, error) {
	date := at.Format(time.DateOnly)
	key := "qr-email-all:" + date

	claimed, err := d.store.Claim(key)
	if err != nil {
		return false, fmt.Errorf("claim dispatch date: %w", err)
	}
	if !claimed {
		d.log.InfoObj("dispatch already claimed for date", "dispatch_date", date)
		return false, nil
	}

	start := d.now()
	evt := publishers.NewEvent(publishers.EventTypeQRDispatch, dispatchOperation, date)

	resp, callErr := d.mailer.SendEmailAll(ctx)
	if resp != nil {
		evt.StatusCode = resp.StatusCode()
	}
	var httpErr *httpclient.HTTPError
	if errors.As(callErr, &httpErr) {
		evt.StatusCode = httpErr.StatusCode
	}
	evt.Succeeded = callErr == nil
	if callErr != nil {
		evt.Error = callErr.Error()
	}

	delivered, pubErr := d.events.Publish(ctx, evt)
	if pubErr != nil {
		d.log.WarnObj("dispatch event publish failed", "publish_error", map[string]any{
			"delivered": delivered,
			"error":     pubErr.Error(),
		})
	}

	if callErr != nil {
		callErr = fmt.Errorf("send qr email to all users: %w", callErr)
		if err := d.store.Release(key); err != nil {
			return false, errors.Join(callErr, fmt.Errorf("release dispatch claim: %w", err))
		}
		return false, callErr
	}

	d.log.InfoObj("dispatch completed", "dispatch_meta", map[string]any{
		"date":        date,
		"status_code": evt.StatusCode,
		"delivered":   delivered,
		"elapsed_ms":  d.now().Sub(start).Milliseconds(),
	})
	return true, nil
}
