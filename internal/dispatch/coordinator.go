package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snipq/snipq/internal/cache"
	"github.com/snipq/snipq/internal/config"
	"github.com/snipq/snipq/internal/events"
	"github.com/snipq/snipq/internal/history"
	"github.com/snipq/snipq/internal/log"
	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/retry"
)

// errorPrefix marks a delivered payload as a failure. Destinations render the
// string as-is; the prefix is the only disambiguation they need.
const errorPrefix = "Error: "

// Options wires a Coordinator.
type Options struct {
	Config   config.DispatchConfig
	Resolver ConfigResolver
	Sink     Sink
	Cache    *cache.Cache
	Hub      *events.Hub  // optional
	History  *history.Log // optional

	// BaseURLs overrides provider endpoints, keyed by provider id.
	BaseURLs map[provider.ID]string

	// HTTPClient is shared by all adapters. Nil means a default client; its
	// timeout is left open because the coordinator applies its own per-attempt
	// timeout from Config.RequestTimeout.
	HTTPClient *http.Client
}

// Coordinator is the query dispatch engine: it debounces triggers, resolves
// the active provider, consults the answer cache, runs the fetch under the
// retry policy, and pushes the outcome to the delivery sink. One instance
// exists per process; all mutable dispatch state lives here, not in globals.
type Coordinator struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	pending *request
	gen     uint64
	closed  bool

	inflight sync.WaitGroup
}

type request struct {
	id          string
	query       string
	destination string
}

// New creates a Coordinator. Close must be called to release the debounce
// timer and stop accepting work.
func New(opts Options) *Coordinator {
	if opts.Cache == nil {
		opts.Cache = cache.New(opts.Config.CacheTTL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:   opts,
		logger: log.WithComponent("dispatch"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels pending debounce and in-flight retry sleeps, then waits for
// running dispatches to wind down. Later Dispatch calls fail.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()
}

// Dispatch accepts one trigger. Calls landing inside the debounce window
// collapse into a single execution carrying the most recent arguments; the
// window is process-wide, so a rapid second selection supersedes the first
// even for a different destination.
func (c *Coordinator) Dispatch(queryText, destination string) error {
	if queryText == "" {
		return fmt.Errorf("query text is empty")
	}
	if destination == "" {
		return fmt.Errorf("destination is empty")
	}

	req := &request{
		id:          uuid.NewString(),
		query:       queryText,
		destination: destination,
	}
	c.publish(events.TypeDispatchReceived, req, nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("dispatcher is closed")
	}
	if c.pending != nil {
		// Superseded before its timer fired.
		c.publish(events.TypeDispatchDebounced, c.pending, nil)
	}
	c.pending = req

	// One generation per accepted trigger. A timer that already fired and is
	// blocked on the mutex observes a newer generation and backs off, so the
	// superseding request always waits out a full window. Stop keeps an
	// unfired old timer from firing as a second no-op.
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Config.DebounceWindow, func() { c.fire(gen) })
	return nil
}

// fire runs at the trailing edge of a debounce window. Stale generations are
// timers superseded between firing and acquiring the mutex.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.pending == nil {
		c.mu.Unlock()
		return
	}
	req := c.pending
	c.pending = nil
	c.timer = nil
	// Registered under the mutex so Close, which flips closed before waiting,
	// can never miss this dispatch.
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		c.run(req)
	}()
}

// run executes one logical dispatch end to end.
func (c *Coordinator) run(req *request) {
	ctx := c.ctx
	logger := log.WithDispatch(req.id).With("destination", req.destination)

	prov, provCfg, err := c.opts.Resolver.Resolve(ctx)
	if err != nil {
		logger.Warn("config resolution failed", "error", err)
		c.publish(events.TypeConfigError, req, map[string]any{"error": err.Error()})
		c.recordBegin(ctx, req, "", "")
		c.finish(ctx, logger, req, false, 0, errorPrefix+err.Error(), err)
		return
	}
	logger = logger.With("provider", string(prov), "model", provCfg.Model)

	c.recordBegin(ctx, req, prov, provCfg.Model)

	key := cache.Key(req.query, prov, provCfg.Model)
	if answer, ok := c.opts.Cache.Get(key); ok {
		logger.Info("cache hit")
		c.publish(events.TypeCacheHit, req, nil)
		c.deliverOutcome(ctx, logger, req, answer, true, 0)
		return
	}

	// A loading notice lets the destination show progress. One shot only; a
	// destination that misses it still gets the final message.
	c.send(ctx, req, Message{DispatchID: req.id, Kind: KindLoading, Payload: ""})

	c.publish(events.TypeFetching, req, map[string]any{"provider": string(prov)})

	if base := c.opts.BaseURLs[prov]; base != "" {
		provCfg.BaseURL = base
	}

	adapter, err := provider.ForID(prov, c.opts.HTTPClient)
	if err != nil {
		c.finish(ctx, logger, req, false, 0, errorPrefix+err.Error(), err)
		return
	}

	attempts := 0
	answer, err := retry.DoValue(ctx, c.fetchPolicy(), func(ctx context.Context) (string, error) {
		attempts++
		attemptCtx := ctx
		if t := c.opts.Config.RequestTimeout; t > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}
		a, ferr := adapter.FetchAnswer(attemptCtx, req.query, provCfg)
		if ferr != nil {
			logger.Warn("fetch attempt failed", "attempt", attempts, "kind", string(provider.KindOf(ferr)), "error", ferr)
			c.publish(events.TypeFetchRetry, req, map[string]any{"attempt": attempts, "error": ferr.Error()})
		}
		return a, ferr
	})
	if err != nil {
		logger.Error("fetch failed after retries", "attempts", attempts, "kind", string(provider.KindOf(err)), "error", err)
		c.publish(events.TypeFetchError, req, map[string]any{"kind": string(provider.KindOf(err)), "error": err.Error()})
		c.finish(ctx, logger, req, false, attempts, errorPrefix+err.Error(), err)
		return
	}

	c.opts.Cache.Put(key, answer)
	c.deliverOutcome(ctx, logger, req, answer, false, attempts)
}

// deliverOutcome pushes a successful answer.
func (c *Coordinator) deliverOutcome(ctx context.Context, logger *slog.Logger, req *request, answer string, cacheHit bool, attempts int) {
	msg := Message{DispatchID: req.id, Kind: KindAnswer, Payload: answer}
	delivered := c.deliver(ctx, logger, req, msg)

	status := history.StatusDelivered
	if !delivered {
		status = history.StatusDropped
	} else {
		c.publish(events.TypeAnswer, req, map[string]any{"cache_hit": cacheHit})
	}
	c.recordComplete(ctx, req, status, cacheHit, attempts, nil)
}

// finish pushes a terminal error string.
func (c *Coordinator) finish(ctx context.Context, logger *slog.Logger, req *request, cacheHit bool, attempts int, payload string, cause error) {
	msg := Message{DispatchID: req.id, Kind: KindError, Payload: payload}
	delivered := c.deliver(ctx, logger, req, msg)

	status := history.StatusFailed
	if !delivered {
		status = history.StatusDropped
	}
	errText := cause.Error()
	c.recordComplete(ctx, req, status, cacheHit, attempts, &errText)
}

// deliver retries the sink with its own budget, independent of the fetch
// retry. Exhaustion is logged and swallowed: the destination (a browser tab,
// a window) may simply be gone.
func (c *Coordinator) deliver(ctx context.Context, logger *slog.Logger, req *request, msg Message) bool {
	attempt := 0
	ok := retry.BestEffort(ctx, c.deliveryPolicy(), func(ctx context.Context) error {
		attempt++
		err := c.opts.Sink.Send(ctx, req.destination, msg)
		if err != nil {
			logger.Debug("delivery attempt failed", "attempt", attempt, "error", err)
			c.publish(events.TypeDeliveryRetry, req, map[string]any{"attempt": attempt})
		}
		return err
	})
	if !ok {
		logger.Warn("delivery abandoned, destination unreachable", "attempts", attempt)
		c.publish(events.TypeDeliveryDropped, req, map[string]any{"attempts": attempt})
	}
	return ok
}

// send is a single best-effort sink call with no retry (used for loading).
func (c *Coordinator) send(ctx context.Context, req *request, msg Message) {
	if err := c.opts.Sink.Send(ctx, req.destination, msg); err != nil {
		c.logger.Debug("loading notice not delivered", "dispatch_id", req.id, "error", err)
	}
}

func (c *Coordinator) fetchPolicy() retry.Policy {
	p := retry.Policy{
		MaxRetries:   c.opts.Config.Retry.Retries(3),
		InitialDelay: c.opts.Config.Retry.InitialDelay,
		Multiplier:   2,
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	return p
}

func (c *Coordinator) deliveryPolicy() retry.Policy {
	p := retry.Policy{
		MaxRetries:   c.opts.Config.Delivery.Retries(3),
		InitialDelay: c.opts.Config.Delivery.InitialDelay,
		Multiplier:   2,
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	return p
}

func (c *Coordinator) publish(eventType string, req *request, extra map[string]any) {
	if c.opts.Hub == nil {
		return
	}
	data := map[string]any{
		"dispatch_id": req.id,
		"destination": req.destination,
	}
	for k, v := range extra {
		data[k] = v
	}
	c.opts.Hub.Publish(eventType, data)
}

func (c *Coordinator) recordBegin(ctx context.Context, req *request, prov provider.ID, model string) {
	if c.opts.History == nil {
		return
	}
	if err := c.opts.History.Begin(ctx, req.id, req.destination, prov, model); err != nil {
		c.logger.Error("failed to record dispatch", "dispatch_id", req.id, "error", err)
	}
}

func (c *Coordinator) recordComplete(ctx context.Context, req *request, status history.Status, cacheHit bool, attempts int, lastError *string) {
	if c.opts.History == nil {
		return
	}
	if err := c.opts.History.Complete(ctx, req.id, status, cacheHit, attempts, lastError); err != nil {
		c.logger.Error("failed to complete dispatch record", "dispatch_id", req.id, "error", err)
	}
}
