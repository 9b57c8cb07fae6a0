package fabric

import (
	"context"
	"sync"
	"time"

	"github.com/halcyon-automation/meridian/corelog"
)

// LoggingMiddleware logs every message's arrival and completion, adapted
// from commbus' LoggingMiddleware onto corelog.Logger.
type LoggingMiddleware struct {
	log corelog.Logger
}

// NewLoggingMiddleware builds a LoggingMiddleware bound to log.
func NewLoggingMiddleware(log corelog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{log: log}
}

// Before logs message receipt.
func (m *LoggingMiddleware) Before(_ context.Context, message Message) (Message, error) {
	m.log.Debug("fabric message", "category", message.Category(), "topic", message.Topic().String())
	return message, nil
}

// After logs message completion or failure.
func (m *LoggingMiddleware) After(_ context.Context, message Message, result any, err error) (any, error) {
	if err != nil {
		m.log.Warn("fabric message failed", "topic", message.Topic().String(), "error", err.Error())
	} else {
		m.log.Debug("fabric message completed", "topic", message.Topic().String())
	}
	return result, nil
}

type breakerState struct {
	failures    int
	lastFailure time.Time
	state       string // "closed", "open", "half-open"
}

// CircuitBreakerMiddleware protects a fabric.Bus against a wedged handler
// for one topic cascading into every caller, the same three-state
// (closed/open/half-open) pattern as commbus' CircuitBreakerMiddleware,
// keyed per message topic rather than per message type name.
type CircuitBreakerMiddleware struct {
	failureThreshold int
	resetTimeout     time.Duration
	excluded         map[string]struct{}
	states           map[string]*breakerState
	mu               sync.Mutex
}

// NewCircuitBreakerMiddleware builds a breaker that opens a topic's circuit
// after failureThreshold consecutive failures and probes again after
// resetTimeout. Topics named in excluded always bypass the breaker.
func NewCircuitBreakerMiddleware(failureThreshold int, resetTimeout time.Duration, excluded []string) *CircuitBreakerMiddleware {
	ex := make(map[string]struct{}, len(excluded))
	for _, t := range excluded {
		ex[t] = struct{}{}
	}
	return &CircuitBreakerMiddleware{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		excluded:         ex,
		states:           make(map[string]*breakerState),
	}
}

func (m *CircuitBreakerMiddleware) stateFor(topic string) *breakerState {
	if _, ok := m.states[topic]; !ok {
		m.states[topic] = &breakerState{state: "closed"}
	}
	return m.states[topic]
}

// Before blocks the message while its topic's circuit is open.
func (m *CircuitBreakerMiddleware) Before(_ context.Context, message Message) (Message, error) {
	topic := message.Topic().String()
	if _, skip := m.excluded[topic]; skip {
		return message, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(topic)
	now := time.Now()

	if st.state == "open" {
		if now.Sub(st.lastFailure) >= m.resetTimeout {
			st.state = "half-open"
		} else {
			return nil, nil
		}
	}
	return message, nil
}

// After records the outcome and updates circuit state.
func (m *CircuitBreakerMiddleware) After(_ context.Context, message Message, result any, err error) (any, error) {
	topic := message.Topic().String()
	if _, skip := m.excluded[topic]; skip {
		return result, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(topic)

	if err != nil {
		st.failures++
		st.lastFailure = time.Now()
		if st.state == "half-open" || (m.failureThreshold > 0 && st.failures >= m.failureThreshold) {
			st.state = "open"
		}
	} else {
		if st.state == "half-open" {
			st.state = "closed"
		}
		st.failures = 0
	}
	return result, nil
}

// States snapshots every tracked topic's circuit state, for diagnostics.
func (m *CircuitBreakerMiddleware) States() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.states))
	for k, v := range m.states {
		out[k] = v.state
	}
	return out
}
