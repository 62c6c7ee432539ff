package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/analytics"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/memory"
	"github.com/osama1998H/lume-sub000/internal/reconcile"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

type options struct {
	file  string
	start string
	end   string
	now   string
}

// session wires the in-memory collaborators for one command invocation.
type session struct {
	store      *memory.Store
	loc        *time.Location
	now        time.Time
	window     interval.Interval
	normalizer *activity.Normalizer
	validator  *validation.Validator
	engine     *reconcile.Engine
	analytics  *analytics.Service
}

func (o *options) open() (*session, error) {
	store, loc, err := memory.LoadSnapshotFile(o.file)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(loc)
	if o.now != "" {
		if now, err = parseInstant(o.now, loc); err != nil {
			return nil, fmt.Errorf("--now: %w", err)
		}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	start, end := today.AddDate(0, 0, -7), today.AddDate(0, 0, 1)
	if o.start != "" {
		if start, err = parseInstant(o.start, loc); err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
	}
	if o.end != "" {
		if end, err = parseInstant(o.end, loc); err != nil {
			return nil, fmt.Errorf("--end: %w", err)
		}
	}
	window, err := interval.New(start, end)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}

	agg := analytics.NewAggregator(loc)
	agg.Now = func() time.Time { return now }

	normalizer := activity.NewNormalizer(store.Sources(), store)
	validator := validation.NewValidator(store)
	return &session{
		store:      store,
		loc:        loc,
		now:        now,
		window:     window,
		normalizer: normalizer,
		validator:  validator,
		engine:     reconcile.NewEngine(validator),
		analytics:  analytics.NewService(normalizer, store, store, agg),
	}, nil
}

func (s *session) commander() *reconcile.Commander {
	return reconcile.NewCommander(s.normalizer, s.engine, s.validator, s.store,
		reconcile.WithClock(func() time.Time { return s.now }))
}

func parseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", value)
	}
	return ts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
