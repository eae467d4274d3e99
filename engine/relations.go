package engine

import (
	"context"

	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/memtypes"
)

// maxTraversalDepth bounds relation traversal so a relation cycle can
// never cause unbounded recursion.
const maxTraversalDepth = 3

// Path is one relation chain discovered between two memories, the
// memory ids visited in order starting at the traversal root.
type Path []string

// TraverseRelations finds every relation path from fromID to toID up
// to maxTraversalDepth hops, depth-first with a visited set so a cycle
// never causes infinite recursion, the way
// agent/memory/knowledge_graph.go's InMemoryKnowledgeGraph.FindPath
// does, generalised from entity/relation records to memtypes.Memory's
// own Relations field.
func (e *MemoryEngine) TraverseRelations(ctx context.Context, fromID, toID string) ([]Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fromID == toID {
		return []Path{{fromID}}, nil
	}

	var paths []Path
	visited := map[string]bool{fromID: true}
	if err := e.dfs(ctx, fromID, toID, maxTraversalDepth, visited, []string{fromID}, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func (e *MemoryEngine) dfs(ctx context.Context, current, target string, depth int, visited map[string]bool, path []string, paths *[]Path) error {
	if depth <= 0 {
		return nil
	}
	m, err := e.store.Load(ctx, current)
	if err != nil {
		return errs.New(errs.CodeStorage, "failed to load memory during traversal").WithCause(err).WithOperation("TraverseRelations")
	}
	if m == nil {
		return nil
	}

	for _, rel := range m.RelationTargets() {
		if rel.TargetID == target {
			found := make(Path, len(path)+1)
			copy(found, path)
			found[len(path)] = target
			*paths = append(*paths, found)
			continue
		}
		if visited[rel.TargetID] {
			continue
		}
		visited[rel.TargetID] = true
		if err := e.dfs(ctx, rel.TargetID, target, depth-1, visited, append(path, rel.TargetID), paths); err != nil {
			return err
		}
		visited[rel.TargetID] = false
	}
	return nil
}

// AddRelation records a directed, typed relation from fromID to toID
// and persists the owning memory.
func (e *MemoryEngine) AddRelation(ctx context.Context, fromID, toID string, relType memtypes.RelationType) error {
	m, err := e.store.Load(ctx, fromID)
	if err != nil {
		return errs.New(errs.CodeStorage, "failed to load memory").WithCause(err).WithOperation("AddRelation")
	}
	if m == nil {
		return errs.New(errs.CodeNotFound, "memory not found").WithOperation("AddRelation").WithDetail("memory_id", fromID)
	}
	m.AddRelation(toID, relType)
	if err := e.store.Save(ctx, m); err != nil {
		return errs.New(errs.CodeStorage, "failed to persist relation").WithCause(err).WithOperation("AddRelation")
	}
	return nil
}
