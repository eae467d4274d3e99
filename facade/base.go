package facade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/memtypes"
)

// Base is the shared envelope-processing path every concrete facade
// embeds: timeout handling, stats bookkeeping, metrics, and the
// configuration guard. Composition, not inheritance — each concrete
// facade type embeds *Base and supplies its own validation and
// dispatch (§9 design notes: "never inheritance").
type Base struct {
	Name    string
	Kind    memtypes.MemoryKind
	Engine  *engine.MemoryEngine
	AgentID string

	metrics *Metrics
	stats   AgentStats
	logger  *zap.Logger
}

// NewBase builds the shared facade state. eng may be nil; Execute then
// always returns a ConfigurationError rather than silently no-op'ing.
func NewBase(name string, kind memtypes.MemoryKind, eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		Name:    name,
		Kind:    kind,
		Engine:  eng,
		AgentID: agentID,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "facade"), zap.String("facade", name)),
	}
}

// Stats returns a snapshot of this facade's running counters.
func (b *Base) Stats() StatsSnapshot { return b.stats.Snapshot() }

// run validates req via validate, then dispatches via op under req's
// timeout (if any), recording stats and metrics around both outcomes.
func (b *Base) run(ctx context.Context, req TaskRequest, validate func(TaskRequest) error, op func(ctx context.Context) (any, error)) TaskResponse {
	b.stats.begin()

	if b.Engine == nil {
		return b.fail(req, 0, &ConfigurationError{Reason: b.Name + " facade has no engine configured"})
	}
	if validate != nil {
		if err := validate(req); err != nil {
			return b.fail(req, 0, err)
		}
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := op(runCtx)
	dur := time.Since(start)
	if err != nil {
		return b.fail(req, dur, &TaskExecutionError{Op: string(req.Operation), Cause: err})
	}

	b.stats.finish(true, dur)
	b.observe(req.Operation, true, dur)
	return TaskResponse{TaskID: req.TaskID, Success: true, Data: data, ExecutionTime: dur, AgentID: b.AgentID}
}

// fail records a failed attempt (stats + metrics) and builds the
// corresponding TaskResponse. Every return path out of run other than
// the success path goes through here, so Total/Failed always balance.
func (b *Base) fail(req TaskRequest, dur time.Duration, err error) TaskResponse {
	b.stats.finish(false, dur)
	b.observe(req.Operation, false, dur)
	return TaskResponse{TaskID: req.TaskID, Success: false, Error: err.Error(), ExecutionTime: dur, AgentID: b.AgentID}
}

func (b *Base) observe(op Operation, success bool, dur time.Duration) {
	if b.metrics == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	b.metrics.requestsTotal.WithLabelValues(b.Name, string(op), outcome).Inc()
	b.metrics.executionSeconds.WithLabelValues(b.Name, string(op)).Observe(dur.Seconds())
}

// scopeFromParams derives the narrowest memtypes.Scope implied by the
// agent_id/user_id/session_id parameters present, falling back to
// GlobalScope when none are given.
func scopeFromParams(params map[string]any) memtypes.Scope {
	agentID, _ := params["agent_id"].(string)
	userID, _ := params["user_id"].(string)
	sessionID, _ := params["session_id"].(string)

	switch {
	case sessionID != "":
		return memtypes.SessionScope(agentID, userID, sessionID)
	case userID != "":
		return memtypes.UserScope(agentID, userID)
	case agentID != "":
		return memtypes.AgentScope(agentID)
	default:
		return memtypes.GlobalScope()
	}
}

func requireNonEmptyStrings(params map[string]any, keys ...string) error {
	for _, key := range keys {
		v, ok := params[key]
		if !ok {
			return &ValidationError{Field: key, Reason: "required parameter is missing"}
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return &ValidationError{Field: key, Reason: "must be a non-empty string"}
		}
	}
	return nil
}
