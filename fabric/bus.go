package fabric

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/meta"
)

// Handler processes a Message and optionally returns a response (for
// queries).
type Handler interface {
	Handle(ctx context.Context, message Message) (any, error)
}

// HandlerFunc adapts a bare function to Handler.
type HandlerFunc func(ctx context.Context, message Message) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, message Message) (any, error) { return f(ctx, message) }

// Middleware intercepts messages before/after handling, for cross-cutting
// concerns such as logging or circuit breaking.
type Middleware interface {
	Before(ctx context.Context, message Message) (Message, error)
	After(ctx context.Context, message Message, result any, err error) (any, error)
}

// NoHandlerError is returned when a query or command addresses a topic with
// no registered handler.
type NoHandlerError struct {
	Topic string
}

func (e *NoHandlerError) Error() string { return fmt.Sprintf("fabric: no handler for %s", e.Topic) }

// QueryTimeoutError is returned when QuerySync exceeds the bus' configured
// query timeout.
type QueryTimeoutError struct {
	Topic   string
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("fabric: query %s timed out after %s", e.Topic, e.Timeout)
}

type subscriberEntry struct {
	id      string
	pattern meta.Name
	handler HandlerFunc
}

// Bus is the in-memory device message broker (spec.md §4.9), generalizing
// the teacher's InMemoryCommBus: Publish fans an event out to every
// subscriber whose pattern matches the message's Topic via meta.Name.Match
// (so "**" and "*" wildcards work the same way hub address patterns do);
// Send/QuerySync route to single topic-exact handlers.
type Bus struct {
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	subscribers  map[string][]subscriberEntry
	middleware   []Middleware
	queryTimeout time.Duration
	nextSubID    uint64
	log          corelog.Logger
}

// NewBus constructs a Bus with the given default query timeout.
func NewBus(queryTimeout time.Duration, log corelog.Logger) *Bus {
	if log == nil {
		log = corelog.NewNoop()
	}
	return &Bus{
		handlers:     make(map[string]HandlerFunc),
		subscribers:  make(map[string][]subscriberEntry),
		queryTimeout: queryTimeout,
		log:          log,
	}
}

// Publish fans event out, concurrently, to every subscriber whose pattern
// matches event.Topic(). Subscriber errors are logged, not propagated;
// Publish itself only fails if middleware rejects the message.
func (b *Bus) Publish(ctx context.Context, event Message) error {
	topic := event.Topic()

	processed, err := b.runBefore(ctx, event)
	if err != nil {
		return err
	}
	if processed == nil {
		b.log.Debug("event aborted by middleware", "topic", topic.String())
		return nil
	}

	b.mu.RLock()
	var matched []subscriberEntry
	for _, entries := range b.subscribers {
		for _, e := range entries {
			if topic.Match(e.pattern) {
				matched = append(matched, e)
			}
		}
	}
	b.mu.RUnlock()

	if len(matched) == 0 {
		b.log.Debug("no subscribers for event", "topic", topic.String())
		_, _ = b.runAfter(ctx, event, nil, nil)
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(matched))
	for i, e := range matched {
		wg.Add(1)
		go func(idx int, h HandlerFunc) {
			defer wg.Done()
			if _, err := h(ctx, processed); err != nil {
				errs[idx] = err
				b.log.Warn("fabric subscriber failed", "topic", topic.String(), "error", err.Error())
			}
		}(i, e.handler)
	}
	wg.Wait()

	var first error
	for _, e := range errs {
		if e != nil {
			first = e
			break
		}
	}
	_, _ = b.runAfter(ctx, event, nil, first)
	return nil
}

// Send routes command to the one handler registered for its exact topic,
// fire-and-forget.
func (b *Bus) Send(ctx context.Context, command Message) error {
	topic := command.Topic().String()

	processed, err := b.runBefore(ctx, command)
	if err != nil {
		return err
	}
	if processed == nil {
		return nil
	}

	b.mu.RLock()
	handler, ok := b.handlers[topic]
	b.mu.RUnlock()
	if !ok {
		b.log.Debug("no handler for command", "topic", topic)
		return nil
	}

	_, herr := handler(ctx, processed)
	if herr != nil {
		b.log.Warn("fabric command handler failed", "topic", topic, "error", herr.Error())
	}
	_, _ = b.runAfter(ctx, command, nil, herr)
	return herr
}

// QuerySync routes query to its registered handler and waits for a result,
// bounded by the bus' query timeout.
func (b *Bus) QuerySync(ctx context.Context, query Query) (any, error) {
	topic := query.Topic().String()

	processed, err := b.runBefore(ctx, query)
	if err != nil {
		return nil, err
	}
	if processed == nil {
		return nil, &NoHandlerError{Topic: topic}
	}

	b.mu.RLock()
	handler, ok := b.handlers[topic]
	b.mu.RUnlock()
	if !ok {
		return nil, &NoHandlerError{Topic: topic}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, e := handler(timeoutCtx, processed)
		resultCh <- result{value: v, err: e}
	}()

	select {
	case <-timeoutCtx.Done():
		qerr := &QueryTimeoutError{Topic: topic, Timeout: b.queryTimeout}
		_, _ = b.runAfter(ctx, query, nil, qerr)
		return nil, qerr
	case res := <-resultCh:
		finalResult, mwErr := b.runAfter(ctx, query, res.value, res.err)
		if mwErr != nil {
			return finalResult, mwErr
		}
		return finalResult, res.err
	}
}

// Subscribe registers handler for every message whose Topic matches
// pattern (per meta.Name.Match semantics: "*" for one token, trailing
// "**" for the remainder). Returns an idempotent unsubscribe function.
func (b *Bus) Subscribe(pattern meta.Name, handler HandlerFunc) func() {
	id := fmt.Sprintf("sub_%d", atomic.AddUint64(&b.nextSubID, 1))
	key := pattern.String()

	b.mu.Lock()
	b.subscribers[key] = append(b.subscribers[key], subscriberEntry{id: id, pattern: pattern, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.subscribers[key]
		for i, e := range entries {
			if e.id == id {
				b.subscribers[key] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// RegisterHandler installs the single handler for exact topic, used by
// Send and QuerySync. Re-registering the same topic is an error.
func (b *Bus) RegisterHandler(topic meta.Name, handler HandlerFunc) error {
	key := topic.String()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[key]; exists {
		return fmt.Errorf("fabric: handler already registered for %s", key)
	}
	b.handlers[key] = handler
	return nil
}

// AddMiddleware appends middleware to the chain, executed in registration
// order on Before and reverse order on After.
func (b *Bus) AddMiddleware(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

func (b *Bus) runBefore(ctx context.Context, msg Message) (Message, error) {
	b.mu.RLock()
	chain := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	current := msg
	for _, mw := range chain {
		result, err := mw.Before(ctx, current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		current = result
	}
	return current, nil
}

func (b *Bus) runAfter(ctx context.Context, msg Message, result any, err error) (any, error) {
	b.mu.RLock()
	chain := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	current := result
	for i := len(chain) - 1; i >= 0; i-- {
		afterResult, afterErr := chain[i].After(ctx, msg, current, err)
		if afterErr != nil {
			err = afterErr
		}
		if afterResult != nil {
			current = afterResult
		}
	}
	return current, err
}
