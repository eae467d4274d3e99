package facade

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentmem/agentmem/engine"
	"github.com/agentmem/agentmem/memtypes"
)

// CoreFacade dispatches core-memory tasks (agent identity and
// always-in-context facts).
type CoreFacade struct {
	*Base
	required requiredParams
}

// NewCoreFacade builds the core-memory facade.
func NewCoreFacade(eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *CoreFacade {
	return &CoreFacade{
		Base: NewBase("core", memtypes.KindCore, eng, agentID, metrics, logger),
		required: requiredParams{
			OpInsert: {"agent_id", "content"},
			OpGet:    {"memory_id"},
			OpSearch: {"query"},
			OpUpdate: {"memory_id"},
			OpDelete: {"memory_id"},
		},
	}
}

// Execute validates and dispatches req.
func (f *CoreFacade) Execute(ctx context.Context, req TaskRequest) TaskResponse {
	return f.Base.run(ctx, req, func(r TaskRequest) error { return validateParams(r, f.required) },
		func(ctx context.Context) (any, error) { return dispatch(ctx, f.Base, req) })
}

// EpisodicFacade dispatches episodic-event tasks: time-stamped,
// session-scoped occurrences.
type EpisodicFacade struct {
	*Base
	required requiredParams
}

// NewEpisodicFacade builds the episodic-memory facade.
func NewEpisodicFacade(eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *EpisodicFacade {
	return &EpisodicFacade{
		Base: NewBase("episodic", memtypes.KindEpisodic, eng, agentID, metrics, logger),
		required: requiredParams{
			OpInsert: {"agent_id", "user_id", "session_id", "content"},
			OpGet:    {"memory_id"},
			OpSearch: {"query"},
			OpUpdate: {"memory_id"},
			OpDelete: {"memory_id"},
		},
	}
}

// Execute validates and dispatches req.
func (f *EpisodicFacade) Execute(ctx context.Context, req TaskRequest) TaskResponse {
	return f.Base.run(ctx, req, func(r TaskRequest) error { return validateParams(r, f.required) },
		func(ctx context.Context) (any, error) { return dispatch(ctx, f.Base, req) })
}

// SemanticFacade dispatches semantic-fact tasks: agent-scoped general
// knowledge independent of any one session.
type SemanticFacade struct {
	*Base
	required requiredParams
}

// NewSemanticFacade builds the semantic-memory facade.
func NewSemanticFacade(eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *SemanticFacade {
	return &SemanticFacade{
		Base: NewBase("semantic", memtypes.KindSemantic, eng, agentID, metrics, logger),
		required: requiredParams{
			OpInsert: {"agent_id", "content"},
			OpGet:    {"memory_id"},
			OpSearch: {"query"},
			OpUpdate: {"memory_id"},
			OpDelete: {"memory_id"},
		},
	}
}

// Execute validates and dispatches req.
func (f *SemanticFacade) Execute(ctx context.Context, req TaskRequest) TaskResponse {
	return f.Base.run(ctx, req, func(r TaskRequest) error { return validateParams(r, f.required) },
		func(ctx context.Context) (any, error) { return dispatch(ctx, f.Base, req) })
}

// ProceduralFacade dispatches how-to/procedure tasks.
type ProceduralFacade struct {
	*Base
	required requiredParams
}

// NewProceduralFacade builds the procedural-memory facade.
func NewProceduralFacade(eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *ProceduralFacade {
	return &ProceduralFacade{
		Base: NewBase("procedural", memtypes.KindProcedural, eng, agentID, metrics, logger),
		required: requiredParams{
			OpInsert: {"agent_id", "content"},
			OpGet:    {"memory_id"},
			OpSearch: {"query"},
			OpUpdate: {"memory_id"},
			OpDelete: {"memory_id"},
		},
	}
}

// Execute validates and dispatches req.
func (f *ProceduralFacade) Execute(ctx context.Context, req TaskRequest) TaskResponse {
	return f.Base.run(ctx, req, func(r TaskRequest) error { return validateParams(r, f.required) },
		func(ctx context.Context) (any, error) { return dispatch(ctx, f.Base, req) })
}

// WorkingFacade dispatches short-lived, session-scoped scratch-memory
// tasks.
type WorkingFacade struct {
	*Base
	required requiredParams
}

// NewWorkingFacade builds the working-memory facade.
func NewWorkingFacade(eng *engine.MemoryEngine, agentID string, metrics *Metrics, logger *zap.Logger) *WorkingFacade {
	return &WorkingFacade{
		Base: NewBase("working", memtypes.KindWorking, eng, agentID, metrics, logger),
		required: requiredParams{
			OpInsert: {"agent_id", "session_id", "content"},
			OpGet:    {"memory_id"},
			OpSearch: {"query"},
			OpUpdate: {"memory_id"},
			OpDelete: {"memory_id"},
		},
	}
}

// Execute validates and dispatches req.
func (f *WorkingFacade) Execute(ctx context.Context, req TaskRequest) TaskResponse {
	return f.Base.run(ctx, req, func(r TaskRequest) error { return validateParams(r, f.required) },
		func(ctx context.Context) (any, error) { return dispatch(ctx, f.Base, req) })
}
