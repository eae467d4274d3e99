package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmem/agentmem/memtypes"
)

// requiredParams lists the mandatory parameter keys for each operation
// a concrete facade supports. A kind that never supports an operation
// simply omits it, and dispatch rejects it as unsupported.
type requiredParams map[Operation][]string

func validateParams(req TaskRequest, required requiredParams) error {
	keys, ok := required[req.Operation]
	if !ok {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("unsupported operation %q", req.Operation)}
	}
	return requireNonEmptyStrings(req.Parameters, keys...)
}

// dispatch routes a validated TaskRequest to the matching engine call
// for kind, building the typed memory item from req.Parameters.
func dispatch(ctx context.Context, b *Base, req TaskRequest) (any, error) {
	switch req.Operation {
	case OpInsert:
		return dispatchInsert(ctx, b, req)
	case OpGet:
		return dispatchGet(ctx, b, req)
	case OpSearch:
		return dispatchSearch(ctx, b, req)
	case OpUpdate:
		return dispatchUpdate(ctx, b, req)
	case OpDelete:
		return nil, dispatchDelete(ctx, b, req)
	default:
		return nil, fmt.Errorf("unsupported operation %q", req.Operation)
	}
}

func dispatchInsert(ctx context.Context, b *Base, req TaskRequest) (*memtypes.Memory, error) {
	content := memtypes.NewTextContent(fmt.Sprint(req.Parameters["content"]))
	builder := memtypes.NewBuilder(taskMemoryID(req), b.Kind, content, time.Now())

	if agentID, _ := req.Parameters["agent_id"].(string); agentID != "" {
		builder = builder.WithAgent(agentID)
	}
	if userID, _ := req.Parameters["user_id"].(string); userID != "" {
		builder = builder.WithUser(userID)
	}
	if sessionID, _ := req.Parameters["session_id"].(string); sessionID != "" {
		builder = builder.WithSession(sessionID)
	}
	if imp, ok := req.Parameters["importance"].(float64); ok {
		builder = builder.WithImportance(imp)
	}

	return b.Engine.Add(ctx, builder.Build())
}

func dispatchGet(ctx context.Context, b *Base, req TaskRequest) (*memtypes.Memory, error) {
	id, _ := req.Parameters["memory_id"].(string)
	return b.Engine.Get(ctx, id, scopeFromParams(req.Parameters))
}

func dispatchSearch(ctx context.Context, b *Base, req TaskRequest) ([]interface{}, error) {
	query, _ := req.Parameters["query"].(string)
	limit := 10
	if l, ok := req.Parameters["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	scope := scopeFromParams(req.Parameters)
	results, _, err := b.Engine.Search(ctx, query, &scope, limit)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(results))
	for i, r := range results {
		out[i] = r
	}
	return out, nil
}

func dispatchUpdate(ctx context.Context, b *Base, req TaskRequest) (*memtypes.Memory, error) {
	id, _ := req.Parameters["memory_id"].(string)
	newContent, hasContent := req.Parameters["content"].(string)
	newImportance, hasImportance := req.Parameters["importance"].(float64)

	m, _, _, err := b.Engine.Update(ctx, id, func(mm *memtypes.Memory) {
		if hasContent {
			mm.Content = memtypes.NewTextContent(newContent)
		}
		if hasImportance {
			mm.Importance = newImportance
		}
	})
	return m, err
}

func dispatchDelete(ctx context.Context, b *Base, req TaskRequest) error {
	id, _ := req.Parameters["memory_id"].(string)
	return b.Engine.Remove(ctx, id)
}

func taskMemoryID(req TaskRequest) string {
	if id, ok := req.Parameters["memory_id"].(string); ok && id != "" {
		return id
	}
	return req.TaskID
}
