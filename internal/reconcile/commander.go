package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/osama1998H/lume-sub000/internal/activity"
	"github.com/osama1998H/lume-sub000/internal/conflict"
	"github.com/osama1998H/lume-sub000/internal/interval"
	"github.com/osama1998H/lume-sub000/internal/observability"
	"github.com/osama1998H/lume-sub000/internal/validation"
)

// CommandKind names a mutating reconciliation command.
type CommandKind string

const (
	CommandMerge     CommandKind = "merge"
	CommandSplit     CommandKind = "split"
	CommandResolve   CommandKind = "resolve"
	CommandAutoMerge CommandKind = "auto_merge"
)

// CommandRecord is the unit handed to the write-back collaborator. Every change
// in it must be applied atomically.
type CommandRecord struct {
	ID         uuid.UUID
	Kind       CommandKind
	Resolution Resolution
	Window     interval.Interval
	Changes    []Resolved
	IssuedAt   time.Time
}

// Writer persists command output into the owning source tables.
type Writer interface {
	Apply(ctx context.Context, record CommandRecord) error
}

// Snapshotter supplies a point-in-time activity set. *activity.Normalizer implements it.
type Snapshotter interface {
	Normalize(ctx context.Context, start, end time.Time) ([]activity.UnifiedActivity, error)
}

// Result reports the outcome of a command.
type Result struct {
	CommandID uuid.UUID                  `json:"command_id"`
	Applied   bool                       `json:"applied"`
	Changes   []Resolved                 `json:"changes"`
	Output    []activity.UnifiedActivity `json:"output"`
}

// MergeCommand merges the referenced activities.
type MergeCommand struct {
	Window   interval.Interval
	Refs     []activity.Key
	Strategy Strategy
}

// SplitCommand splits one activity.
type SplitCommand struct {
	Window interval.Interval
	Ref    activity.Key
	Points []time.Time
}

// ResolveCommand resolves a detected conflict by id. Detection is re-run on a
// fresh snapshot with Options so stale conflicts are rejected.
type ResolveCommand struct {
	Window     interval.Interval
	ConflictID string
	Resolution Resolution
	Options    conflict.Options
}

// AutoMergeCommand merges every run of activities within ThresholdSeconds.
type AutoMergeCommand struct {
	Window           interval.Interval
	ThresholdSeconds int64
}

// Option configures a Commander.
type Option func(*Commander)

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Commander) {
		c.logger = logger
	}
}

// WithClock overrides the time source used for IssuedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Commander) {
		c.now = now
	}
}

// Commander runs mutating commands one range at a time: lock, snapshot,
// validate, compute, write back.
type Commander struct {
	snapshots Snapshotter
	engine    *Engine
	validator *validation.Validator
	detector  *conflict.Detector
	writer    Writer
	locks     *RangeLocker
	logger    *log.Logger
	now       func() time.Time
}

// NewCommander constructs a Commander.
func NewCommander(snapshots Snapshotter, engine *Engine, validator *validation.Validator, writer Writer, opts ...Option) *Commander {
	if validator == nil {
		validator = validation.NewValidator(nil)
	}
	c := &Commander{
		snapshots: snapshots,
		engine:    engine,
		validator: validator,
		detector:  conflict.NewDetector(),
		writer:    writer,
		locks:     NewRangeLocker(),
		logger:    log.New(log.Writer(), "[reconcile] ", log.LstdFlags|log.Lshortfile),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Merge merges cmd.Refs with cmd.Strategy. The merged activity replaces the base record;
// the other inputs are deleted.
func (c *Commander) Merge(ctx context.Context, cmd MergeCommand) (*Result, error) {
	strategy := cmd.Strategy
	if strategy == "" {
		strategy = StrategyLongest
	}
	return c.run(ctx, CommandMerge, "", cmd.Window, func(ctx context.Context, snapshot []activity.UnifiedActivity) ([]Resolved, error) {
		if len(cmd.Refs) == 0 {
			return nil, ErrEmptyInput
		}
		inputs, err := pick(snapshot, cmd.Refs)
		if err != nil {
			return nil, err
		}
		if err := c.checkAll(ctx, inputs); err != nil {
			return nil, err
		}
		merged, err := c.engine.Merge(ctx, inputs, strategy)
		if err != nil {
			return nil, err
		}
		if len(inputs) == 1 {
			return []Resolved{{Action: ActionKeep, Activity: merged}}, nil
		}
		changes := make([]Resolved, 0, len(inputs))
		for _, in := range inputs {
			if in.Key() != merged.Key() {
				changes = append(changes, Resolved{Action: ActionDelete, Activity: in})
			}
		}
		return append(changes, Resolved{Action: ActionUpdate, Activity: merged}), nil
	})
}

// Split cuts one activity at cmd.Points. The original is deleted and the parts created.
func (c *Commander) Split(ctx context.Context, cmd SplitCommand) (*Result, error) {
	return c.run(ctx, CommandSplit, "", cmd.Window, func(ctx context.Context, snapshot []activity.UnifiedActivity) ([]Resolved, error) {
		inputs, err := pick(snapshot, []activity.Key{cmd.Ref})
		if err != nil {
			return nil, err
		}
		if err := c.checkAll(ctx, inputs); err != nil {
			return nil, err
		}
		parts, err := c.engine.Split(inputs[0], cmd.Points)
		if err != nil {
			return nil, err
		}
		if len(parts) == 1 {
			return []Resolved{{Action: ActionKeep, Activity: parts[0]}}, nil
		}
		changes := []Resolved{{Action: ActionDelete, Activity: inputs[0]}}
		for _, p := range parts {
			changes = append(changes, Resolved{Action: ActionCreate, Activity: p})
		}
		return changes, nil
	})
}

// Resolve applies cmd.Resolution to the conflict identified by cmd.ConflictID.
func (c *Commander) Resolve(ctx context.Context, cmd ResolveCommand) (*Result, error) {
	return c.run(ctx, CommandResolve, cmd.Resolution, cmd.Window, func(ctx context.Context, snapshot []activity.UnifiedActivity) ([]Resolved, error) {
		found, ok := conflict.Find(c.detector.Detect(snapshot, cmd.Options), cmd.ConflictID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrConflictNotFound, cmd.ConflictID)
		}
		if found.Type != conflict.TypeGap {
			if err := c.checkAll(ctx, found.Activities); err != nil {
				return nil, err
			}
		}
		if found.Type == conflict.TypeDuplicate && (cmd.Resolution == ResolutionAdjustTime || cmd.Resolution == ResolutionSplit) {
			c.logger.Printf("resolution %s is not applied to duplicates; keeping all members of %s", cmd.Resolution, found.ID)
		}
		return c.engine.ResolveConflict(ctx, found, cmd.Resolution)
	})
}

// AutoMerge merges every same-source run in the window separated by at most cmd.ThresholdSeconds.
func (c *Commander) AutoMerge(ctx context.Context, cmd AutoMergeCommand) (*Result, error) {
	return c.run(ctx, CommandAutoMerge, "", cmd.Window, func(ctx context.Context, snapshot []activity.UnifiedActivity) ([]Resolved, error) {
		changes := make([]Resolved, 0)
		for _, group := range chains(snapshot, cmd.ThresholdSeconds, false) {
			if len(group) < 2 {
				continue
			}
			if err := c.checkAll(ctx, group); err != nil {
				return nil, err
			}
			merged, err := c.engine.Merge(ctx, group, StrategyLongest)
			if err != nil {
				return nil, err
			}
			for _, in := range group {
				if in.Key() != merged.Key() {
					changes = append(changes, Resolved{Action: ActionDelete, Activity: in})
				}
			}
			changes = append(changes, Resolved{Action: ActionUpdate, Activity: merged})
		}
		return changes, nil
	})
}

type computeFunc func(ctx context.Context, snapshot []activity.UnifiedActivity) ([]Resolved, error)

func (c *Commander) run(ctx context.Context, kind CommandKind, resolution Resolution, window interval.Interval, compute computeFunc) (res *Result, err error) {
	start := time.Now()
	defer func() {
		observability.RecordCommand(string(kind), outcome(err), time.Since(start))
	}()

	if !window.Valid() {
		return nil, fmt.Errorf("%s: %w", kind, interval.ErrMalformed)
	}

	unlock, snapshot, err := c.lockSnapshot(ctx, window)
	if err != nil {
		return nil, err
	}
	defer unlock()

	changes, err := compute(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	for _, ch := range changes {
		if ch.Action != ActionUpdate && ch.Action != ActionCreate {
			continue
		}
		if err := c.validator.Check(ctx, ch.Activity); err != nil {
			return nil, err
		}
	}

	record := CommandRecord{
		ID:         uuid.New(),
		Kind:       kind,
		Resolution: resolution,
		Window:     window,
		Changes:    changes,
		IssuedAt:   c.now(),
	}
	result := &Result{CommandID: record.ID, Changes: changes, Output: survivors(changes)}

	if !mutates(changes) {
		return result, nil
	}
	if err := c.writer.Apply(ctx, record); err != nil {
		c.logger.Printf("write-back failed (command=%s, id=%s): %v", kind, record.ID, err)
		return nil, err
	}
	result.Applied = true
	observability.RecordWriteBack(record.IssuedAt)
	return result, nil
}

// lockSnapshot holds a range covering window and every activity in the snapshot
// taken under it. Activities overlapping the window may extend past it, so the
// lock is widened and the snapshot retaken until the held range spans it.
// Command output never leaves the extent of its inputs.
func (c *Commander) lockSnapshot(ctx context.Context, window interval.Interval) (func(), []activity.UnifiedActivity, error) {
	held := window
	for {
		unlock, err := c.locks.Lock(ctx, held)
		if err != nil {
			return nil, nil, err
		}
		snapshot, err := c.snapshots.Normalize(ctx, window.Start, window.End)
		if err != nil {
			unlock()
			return nil, nil, fmt.Errorf("snapshot: %w", err)
		}
		need := extent(window, snapshot)
		if held.ContainsInterval(need) {
			return unlock, snapshot, nil
		}
		unlock()
		held, _ = interval.Union(held, need)
	}
}

func extent(window interval.Interval, snapshot []activity.UnifiedActivity) interval.Interval {
	out := window
	for _, a := range snapshot {
		out, _ = interval.Union(out, a.Interval())
	}
	return out
}

func (c *Commander) checkAll(ctx context.Context, activities []activity.UnifiedActivity) error {
	var errs []error
	for _, a := range activities {
		if err := c.validator.Check(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func pick(snapshot []activity.UnifiedActivity, refs []activity.Key) ([]activity.UnifiedActivity, error) {
	index := make(map[activity.Key]activity.UnifiedActivity, len(snapshot))
	for _, a := range snapshot {
		index[a.Key()] = a
	}
	out := make([]activity.UnifiedActivity, 0, len(refs))
	seen := make(map[activity.Key]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		a, ok := index[ref]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, ref)
		}
		out = append(out, a)
	}
	return out, nil
}

func mutates(changes []Resolved) bool {
	for _, ch := range changes {
		if ch.Action != ActionKeep {
			return true
		}
	}
	return false
}

func survivors(changes []Resolved) []activity.UnifiedActivity {
	out := make([]activity.UnifiedActivity, 0, len(changes))
	for _, ch := range changes {
		if ch.Action != ActionDelete {
			out = append(out, ch.Activity)
		}
	}
	activity.Sort(out)
	return out
}

func outcome(err error) string {
	var verr *validation.Error
	switch {
	case err == nil:
		return "applied"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrMixedSources), errors.Is(err, ErrUnsupportedResolution), errors.Is(err, ErrEmptyInput):
		return "rejected"
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrConflictNotFound):
		return "not_found"
	}
	return "failed"
}
