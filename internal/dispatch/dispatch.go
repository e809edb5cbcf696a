// Package dispatch implements the Execution Dispatcher (C6): the single
// choke point every write/execute request passes through — variant
// extraction, Update-record lifecycle, spawn+watcher task pairing so a
// panicking or erroring handler still finalizes its Update, and batch
// fan-out over pattern-matched targets. The init/spawn/watch/finalize
// shape is grounded on the teacher's internal/engine update-task runner,
// which wraps every policy-triggered container update in exactly this
// pattern (create record, run in a goroutine, recover+log on panic,
// finalize on return).
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/komodore/core/internal/actionstate"
	"github.com/komodore/core/internal/clock"
	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/metrics"
	"github.com/komodore/core/internal/model"
	"github.com/komodore/core/internal/store"
)

// Handler performs the actual work for one Update, pushing Log entries
// onto it as stages complete. A returned error is recorded as a final
// failing log by the watcher; Handler does not need to call
// update.Finalize itself.
type Handler func(ctx context.Context, update *model.Update) error

// Request describes one dispatched operation.
type Request struct {
	Operation string
	Target    model.ResourceTarget
	Operator  string
	Batch     bool // batch variants have Operation == "" and create no Update of their own
}

// Dispatcher is the Execution Dispatcher.
type Dispatcher struct {
	store   *store.Store
	actions *actionstate.Registry
	clock   clock.Clock
	log     *logging.Logger

	mu      sync.Mutex
	cancels map[string]chan struct{}
}

// New constructs a Dispatcher.
func New(s *store.Store, actions *actionstate.Registry, c clock.Clock, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:   s,
		actions: actions,
		clock:   c,
		log:     log.Component("dispatch"),
		cancels: make(map[string]chan struct{}),
	}
}

// flagAcquirer selects which actionstate flag an operation name
// contends on, grounded on spec §4.3's named busy flags
// (deploying/building/syncing/running).
func (d *Dispatcher) flagAcquirer(operation string) func(model.ResourceTarget) (*actionstate.Guard, error) {
	lower := strings.ToLower(operation)
	switch {
	case strings.Contains(lower, "build"):
		return d.actions.AcquireBuilding
	case strings.Contains(lower, "sync"):
		return d.actions.AcquireSyncing
	case strings.Contains(lower, "deploy") || strings.Contains(lower, "stack") || strings.Contains(lower, "pull"):
		return d.actions.AcquireDeploying
	default:
		return d.actions.AcquireRunning
	}
}

// Execute runs step 1-5 of spec §4.6 for a single, non-batch request:
// acquires the resource's busy flag, initializes and persists the
// Update, spawns handler under a panic-safe watcher, finalizes on
// completion, and returns the finalized Update.
func (d *Dispatcher) Execute(ctx context.Context, req Request, handler Handler) (*model.Update, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultWatchTimeout)
		defer cancel()
	}

	acquire := d.flagAcquirer(req.Operation)
	guard, err := acquire(req.Target)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	now := d.clock.Now()
	update := &model.Update{
		Id:        uuid.NewString(),
		Operation: req.Operation,
		Target:    req.Target,
		Operator:  req.Operator,
		Status:    model.UpdateInProgress,
		Start:     now,
	}
	if err := d.store.PutUpdate(update); err != nil {
		return nil, fmt.Errorf("init execution update: %w", err)
	}
	metrics.QueuedUpdates.Inc()
	defer metrics.QueuedUpdates.Dec()

	d.runWatched(ctx, update, handler)

	return update, nil
}

// runWatched is the spawn+watcher task pair: handler runs to completion
// or panics; either way the watcher appends a failing log (on error or
// panic) and calls Finalize, then best-effort persists (spec §4.6 steps
// 4-5, §4.7 "failure to persist is warn-logged but does not crash").
func (d *Dispatcher) runWatched(ctx context.Context, update *model.Update, handler Handler) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				now := d.clock.Now()
				update.PushLog(model.Log{
					Stage:   "panic",
					Stderr:  fmt.Sprintf("handler panicked: %v", r),
					Success: false,
					Start:   now,
					End:     now,
				})
			}
		}()
		if err := handler(ctx, update); err != nil {
			now := d.clock.Now()
			update.PushLog(model.Log{
				Stage:   "error",
				Stderr:  err.Error(),
				Success: false,
				Start:   now,
				End:     now,
			})
		}
	}()
	<-done

	update.Finalize(d.clock.Now())
	metrics.UpdateDuration.Observe(update.End.Sub(update.Start).Seconds())
	metrics.UpdatesTotal.WithLabelValues(update.Operation, outcomeLabel(update.Success)).Inc()
	if err := d.store.PutUpdate(update); err != nil {
		d.log.Warn("failed to persist finalized update", "update", update.Id, "error", err)
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// CancelPreValidate implements spec §4.6 step 2: a repeated Cancel*
// against an id with no active cancellable task, or one already
// signalled, is rejected before an Update is created, avoiding duplicate
// Cancel Updates for the same in-flight task.
func (d *Dispatcher) CancelPreValidate(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.cancels[id]
	if !ok {
		return fmt.Errorf("%w: no cancellable task for %s", model.ErrBadRequest, id)
	}
	select {
	case <-ch:
		return fmt.Errorf("%w: %s was already cancelled", model.ErrBadRequest, id)
	default:
		return nil
	}
}

// RegisterCancellable opens a per-id cancel signal a long-running
// build/repo-build task polls between steps (spec §4.6 "Cancellation").
// The returned func must be called when the task completes, to release
// the signal regardless of outcome.
func (d *Dispatcher) RegisterCancellable(id string) (signal <-chan struct{}, release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.cancels[id] = ch
	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if cur, ok := d.cancels[id]; ok && cur == ch {
			delete(d.cancels, id)
		}
	}
}

// Cancel signals the cancellable task registered under id, if any.
func (d *Dispatcher) Cancel(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.cancels[id]
	if !ok {
		return fmt.Errorf("%w: no cancellable task for %s", model.ErrBadRequest, id)
	}
	select {
	case <-ch:
		return fmt.Errorf("%w: %s was already cancelled", model.ErrBadRequest, id)
	default:
		close(ch)
	}
	return nil
}

// BatchTarget names one resolved target in a batch execution.
type BatchTarget struct {
	Id   string
	Name string
}

// BatchResult is one entry of a BatchExecutionResponse.
type BatchResult struct {
	Name   string        `json:"name"`
	Update *model.Update `json:"update,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// ResolvePattern matches a batch pattern (comma/newline-separated
// combination of exact names, globs, or regexes) against the candidate
// set, per spec §4.6 "accepts a pattern string (name, wildcard, regex, or
// comma/newline-separated combinations)".
func ResolvePattern(pattern string, candidates []BatchTarget) []BatchTarget {
	tokens := splitPattern(pattern)
	seen := make(map[string]struct{})
	var out []BatchTarget
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		re, isRegex := compileIfRegex(tok)
		for _, c := range candidates {
			if _, already := seen[c.Id]; already {
				continue
			}
			matched := c.Name == tok || globMatch(tok, c.Name) || (isRegex && re.MatchString(c.Name))
			if matched {
				seen[c.Id] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

func splitPattern(pattern string) []string {
	pattern = strings.ReplaceAll(pattern, "\n", ",")
	return strings.Split(pattern, ",")
}

func globMatch(pattern, name string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return false
	}
	re := "^" + regexp.QuoteMeta(pattern)
	re = strings.ReplaceAll(re, `\*`, ".*")
	re = strings.ReplaceAll(re, `\?`, ".")
	re += "$"
	matched, err := regexp.MatchString(re, name)
	return err == nil && matched
}

func compileIfRegex(token string) (*regexp.Regexp, bool) {
	if !strings.ContainsAny(token, "^$()[]{}|+\\") {
		return nil, false
	}
	re, err := regexp.Compile(token)
	if err != nil {
		return nil, false
	}
	return re, true
}

// ExecuteBatch resolves pattern against candidates and runs handlerFor's
// inner_handler concurrently for each match, per spec §4.6 "recurses into
// inner_handler for each resource in parallel ... ordering of
// sub-updates is not guaranteed".
func (d *Dispatcher) ExecuteBatch(ctx context.Context, pattern string, kind model.ResourceKind, operation string, operator string, candidates []BatchTarget, handlerFor func(target BatchTarget) Handler) []BatchResult {
	matches := ResolvePattern(pattern, candidates)
	results := make([]BatchResult, len(matches))

	var wg sync.WaitGroup
	for i, m := range matches {
		i, m := i, m
		wg.Add(1)
		go func() {
			defer wg.Done()
			update, err := d.Execute(ctx, Request{
				Operation: operation,
				Target:    model.ResourceTarget{Kind: kind, Id: m.Id},
				Operator:  operator,
			}, handlerFor(m))
			if err != nil {
				results[i] = BatchResult{Name: m.Name, Error: err.Error()}
				return
			}
			results[i] = BatchResult{Name: m.Name, Update: update}
		}()
	}
	wg.Wait()

	return results
}

// DefaultWatchTimeout bounds how long a handler is allowed to run when
// the caller's context carries no deadline of its own — Execute applies
// it as a fallback so a hung Periphery call or runaway script doesn't
// pin an Update InProgress forever (spec §5 leaves tighter per-operation
// timeouts to the caller, via a context.WithDeadline it supplies itself).
const DefaultWatchTimeout = 30 * time.Minute
