package memtypes

import (
	"sync"
	"time"
)

// MemoryKind is the typed classification of a Memory entry.
type MemoryKind string

const (
	KindEpisodic   MemoryKind = "episodic"
	KindSemantic   MemoryKind = "semantic"
	KindProcedural MemoryKind = "procedural"
	KindWorking    MemoryKind = "working"
	KindCore       MemoryKind = "core"
	KindResource   MemoryKind = "resource"
	KindKnowledge  MemoryKind = "knowledge"
	KindContextual MemoryKind = "contextual"
	KindFactual    MemoryKind = "factual"
)

// ProtectionLevel scales (or forbids) automatic forgetting.
type ProtectionLevel int

const (
	ProtectionNone ProtectionLevel = iota
	ProtectionLow
	ProtectionMedium
	ProtectionHigh
	ProtectionCritical
)

// ForgettingMultiplier returns the multiplier applied to the base
// forgetting time for this protection level. Critical entries are
// represented by math.Inf(1), meaning they are never eligible.
func (p ProtectionLevel) ForgettingMultiplier() float64 {
	switch p {
	case ProtectionNone:
		return 1
	case ProtectionLow:
		return 2
	case ProtectionMedium:
		return 5
	case ProtectionHigh:
		return 10
	case ProtectionCritical:
		return protectionCriticalMultiplier
	default:
		return 1
	}
}

// RelationType labels a directed edge between two memories.
type RelationType string

const (
	RelationReferences RelationType = "references"
	RelationFollows     RelationType = "follows"
	RelationContradicts RelationType = "contradicts"
	RelationSupports     RelationType = "supports"
	RelationDerivedFrom  RelationType = "derived_from"
)

// Relation is a directed, typed edge to another memory id.
type Relation struct {
	TargetID string
	Type     RelationType
}

// Metadata carries the bookkeeping fields every memory accrues.
type Metadata struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AccessedAt  time.Time
	Version     int
	AccessCount int
	Hash        string
}

// Memory is the central entity of the engine: a typed, scoped, versioned
// record of something an agent should remember.
type Memory struct {
	mu sync.RWMutex

	ID              string
	Content         Content
	Kind            MemoryKind
	Attributes      *AttributeSet
	Importance      float64
	Embedding       []float32
	Relations       []Relation
	Metadata        Metadata
	ExpiresAt       *time.Time
	ProtectionLevel ProtectionLevel
	IsDeleted       bool
}

// NewMemory constructs a Memory with sane defaults: version 1, an empty
// attribute set (the builder's WithAgent/WithUser/WithSession add the
// scope-deriving system attributes), and created/updated/accessed
// timestamps set to now.
func NewMemory(id string, kind MemoryKind, content Content, now time.Time) *Memory {
	return &Memory{
		ID:         id,
		Content:    content,
		Kind:       kind,
		Attributes: NewAttributeSet(),
		Importance: 0,
		Metadata: Metadata{
			CreatedAt:  now,
			UpdatedAt:  now,
			AccessedAt: now,
			Version:    1,
		},
	}
}

// Builder provides a fluent constructor for Memory values.
type Builder struct {
	m *Memory
}

// NewBuilder starts a Memory builder.
func NewBuilder(id string, kind MemoryKind, content Content, now time.Time) *Builder {
	return &Builder{m: NewMemory(id, kind, content, now)}
}

func (b *Builder) WithAgent(agentID string) *Builder {
	b.m.Attributes.Set(NamespaceSystem, AttrAgentID, StringValue(agentID))
	return b
}

func (b *Builder) WithUser(userID string) *Builder {
	b.m.Attributes.Set(NamespaceSystem, AttrUserID, StringValue(userID))
	return b
}

func (b *Builder) WithSession(sessionID string) *Builder {
	b.m.Attributes.Set(NamespaceSystem, AttrSessionID, StringValue(sessionID))
	return b
}

func (b *Builder) WithImportance(v float64) *Builder {
	b.m.Importance = clamp01(v)
	return b
}

func (b *Builder) WithEmbedding(v []float32) *Builder {
	b.m.Embedding = v
	return b
}

func (b *Builder) WithProtection(p ProtectionLevel) *Builder {
	b.m.ProtectionLevel = p
	return b
}

func (b *Builder) WithExpiresAt(t time.Time) *Builder {
	b.m.ExpiresAt = &t
	return b
}

func (b *Builder) WithAttribute(ns Namespace, name string, v AttributeValue) *Builder {
	b.m.Attributes.Set(ns, name, v)
	return b
}

func (b *Builder) Build() *Memory { return b.m }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Scope derives this memory's scope from its attributes (§3.1/§4.1).
func (m *Memory) Scope() Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return InferScopeLevel(*m.Attributes)
}

// CanAccess reports whether a subject scoped at subjectScope may read m,
// implementing invariant 1 (scope monotonicity, §3.2).
func (m *Memory) CanAccess(subjectScope Scope) bool {
	return subjectScope.CanAccess(m.Scope())
}

// Touch records an access: increments AccessCount and bumps AccessedAt.
func (m *Memory) Touch(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metadata.AccessCount++
	m.Metadata.AccessedAt = now
}

// ApplyUpdate mutates the memory via fn and enforces invariant 2 (version
// monotonicity): Version increments by exactly 1 and UpdatedAt advances
// to now. fn must not itself touch Metadata.Version/UpdatedAt.
func (m *Memory) ApplyUpdate(now time.Time, fn func(*Memory)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
	m.Metadata.Version++
	m.Metadata.UpdatedAt = now
}

// SoftDelete marks the memory deleted in place (invariant 4).
func (m *Memory) SoftDelete(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsDeleted = true
	m.Metadata.UpdatedAt = now
}

// AddRelation appends a directed edge to another memory id.
func (m *Memory) AddRelation(targetID string, relType RelationType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Relations = append(m.Relations, Relation{TargetID: targetID, Type: relType})
}

// RelationTargets returns a snapshot of related memory ids.
func (m *Memory) RelationTargets() []Relation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Relation, len(m.Relations))
	copy(out, m.Relations)
	return out
}

// Snapshot returns a value copy of the memory's plain fields, safe to
// hand to callers outside the lock. Attributes are not copied (callers
// read them from the Memory itself); only the Scope derived from them
// is carried.
type Snapshot struct {
	ID              string
	Content         Content
	Kind            MemoryKind
	Importance      float64
	Embedding       []float32
	Relations       []Relation
	Metadata        Metadata
	ExpiresAt       *time.Time
	ProtectionLevel ProtectionLevel
	IsDeleted       bool
	Scope           Scope
}

// Snapshot takes a consistent point-in-time copy of the memory.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		ID:              m.ID,
		Content:         m.Content,
		Kind:            m.Kind,
		Importance:      m.Importance,
		Embedding:       append([]float32(nil), m.Embedding...),
		Relations:       append([]Relation(nil), m.Relations...),
		Metadata:        m.Metadata,
		ExpiresAt:       m.ExpiresAt,
		ProtectionLevel: m.ProtectionLevel,
		IsDeleted:       m.IsDeleted,
		Scope:           InferScopeLevel(*m.Attributes),
	}
}
