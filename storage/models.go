package storage

import "time"

// The following GORM models back the repositories named in §4.2. Each
// carries `gorm` struct tags the way llm/types.go's models do, and a
// GetID so they satisfy Identifiable.

// User is a minimal account record; UserRepo operates on it.
type User struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	OrganizationID string    `gorm:"size:64;index" json:"organization_id"`
	Email          string    `gorm:"size:320;uniqueIndex" json:"email"`
	DisplayName    string    `gorm:"size:200" json:"display_name"`
	IsDeleted      bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u User) GetID() string { return u.ID }

// Organization is the top-level tenant record.
type Organization struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:200" json:"name"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o Organization) GetID() string { return o.ID }

// Agent is a configured agent identity memories can be scoped under.
type Agent struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	OrganizationID string    `gorm:"size:64;index" json:"organization_id"`
	Name           string    `gorm:"size:200" json:"name"`
	IsDeleted      bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a Agent) GetID() string { return a.ID }

// Message is a single conversational turn, the raw material episodic
// and semantic extraction draws from.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	AgentID   string    `gorm:"size:64;index" json:"agent_id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	SessionID string    `gorm:"size:64;index" json:"session_id"`
	Role      string    `gorm:"size:32" json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m Message) GetID() string { return m.ID }

// Tool is a registered tool an agent may invoke; tracked here only so
// procedural memories can reference tool ids by foreign key.
type Tool struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:200;uniqueIndex" json:"name"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Tool) GetID() string { return t.ID }

// ApiKey is an opaque credential record; auth enforcement itself is an
// external collaborator (Non-goal), this repo only persists the row.
type ApiKey struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	OwnerID   string    `gorm:"size:64;index" json:"owner_id"`
	KeyHash   string    `gorm:"size:128" json:"key_hash"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (k ApiKey) GetID() string { return k.ID }

// Block is an addressable chunk of content (e.g. a document section)
// memories can attach to.
type Block struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	AgentID   string    `gorm:"size:64;index" json:"agent_id"`
	Label     string    `gorm:"size:200" json:"label"`
	Content   string    `gorm:"type:text" json:"content"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b Block) GetID() string { return b.ID }

// Association is a generic typed edge between two arbitrary entity ids,
// exposed as Bundle.Associations. Memory Relations (§3.1) are not stored
// here: RepoStore keeps them in the memory row's Metadata blob.
type Association struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	SourceID  string    `gorm:"size:64;index:idx_assoc_source" json:"source_id"`
	TargetID  string    `gorm:"size:64;index:idx_assoc_target" json:"target_id"`
	Type      string    `gorm:"size:64" json:"type"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Association) GetID() string { return a.ID }

// memoryCommon holds the columns §4.2 says every memory-type table
// carries: id, organization_id, user_id, agent_id, metadata, embedding,
// version, created_at, updated_at.
type memoryCommon struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	OrganizationID string    `gorm:"size:64;index" json:"organization_id"`
	UserID         string    `gorm:"size:64;index" json:"user_id"`
	AgentID        string    `gorm:"size:64;index" json:"agent_id"`
	SessionID      string    `gorm:"size:64;index" json:"session_id,omitempty"`
	Content        string    `gorm:"type:text" json:"content"`
	ContentKind    string    `gorm:"size:32" json:"content_kind"`
	Metadata       string    `gorm:"type:text" json:"metadata"`
	Embedding      []byte    `gorm:"type:blob" json:"-"`
	Importance     float64   `gorm:"default:0" json:"importance"`
	Protection     int       `gorm:"default:0" json:"protection"`
	Version        int       `gorm:"default:1" json:"version"`
	AccessCount    int       `gorm:"default:0" json:"access_count"`
	IsDeleted      bool      `gorm:"default:false;index" json:"is_deleted"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	AccessedAt     time.Time `json:"accessed_at"`
}

// MemoryRow is the generic backing row for MemoryRepo, covering any
// MemoryKind not given its own specialised table.
type MemoryRow struct {
	memoryCommon
	Kind string `gorm:"size:32;index" json:"kind"`
}

func (r MemoryRow) GetID() string { return r.ID }

func (MemoryRow) TableName() string { return "memories" }

// EpisodicEventRow backs episodic_events: event-based experiences.
type EpisodicEventRow struct {
	memoryCommon
	OccurredAt time.Time `json:"occurred_at"`
	EventType  string    `gorm:"size:64" json:"event_type"`
	Actor      string    `gorm:"size:128" json:"actor"`
}

func (r EpisodicEventRow) GetID() string   { return r.ID }
func (EpisodicEventRow) TableName() string { return "episodic_events" }

// SemanticMemoryRow backs semantic_memory: factual knowledge, with a
// materialised hierarchical tree_path for subject/predicate traversal.
type SemanticMemoryRow struct {
	memoryCommon
	TreePath string `gorm:"type:text" json:"tree_path"`
}

func (r SemanticMemoryRow) GetID() string   { return r.ID }
func (SemanticMemoryRow) TableName() string { return "semantic_memory" }

// ProceduralMemoryRow backs procedural_memory: how-to knowledge.
type ProceduralMemoryRow struct {
	memoryCommon
	Steps          string  `gorm:"type:text" json:"steps"`
	SuccessRate    float64 `gorm:"default:0" json:"success_rate"`
	ExecutionCount int     `gorm:"default:0" json:"execution_count"`
}

func (r ProceduralMemoryRow) GetID() string   { return r.ID }
func (ProceduralMemoryRow) TableName() string { return "procedural_memory" }

// CoreMemoryRow backs core_memory: mutable key/value facts unique per
// (user_id, agent_id, key).
type CoreMemoryRow struct {
	memoryCommon
	Key        string `gorm:"size:200;uniqueIndex:idx_core_uak" json:"key"`
	Value      string `gorm:"type:text" json:"value"`
	Category   string `gorm:"size:64" json:"category"`
	IsMutable  bool   `gorm:"default:true" json:"is_mutable"`
}

func (r CoreMemoryRow) GetID() string   { return r.ID }
func (CoreMemoryRow) TableName() string { return "core_memory" }

// WorkingMemoryRow backs working_memory: short-term, TTL-bound context.
type WorkingMemoryRow struct {
	memoryCommon
	Priority int `gorm:"default:0" json:"priority"`
}

func (r WorkingMemoryRow) GetID() string   { return r.ID }
func (WorkingMemoryRow) TableName() string { return "working_memory" }

// MergeHistoryRow is the append-only merge-history record (§3.3).
type MergeHistoryRow struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	PrimaryID        string    `gorm:"size:64;index" json:"primary_id"`
	SecondaryIDs     string    `gorm:"type:text" json:"secondary_ids"`
	Reason           string    `gorm:"size:200" json:"reason"`
	Strategy         string    `gorm:"size:64" json:"strategy"`
	SimilarityScores string    `gorm:"type:text" json:"similarity_scores"`
	UserID           string    `gorm:"size:64;index" json:"user_id,omitempty"`
	Metadata         string    `gorm:"type:text" json:"metadata"`
	CreatedAt        time.Time `json:"timestamp"`
}

func (r MergeHistoryRow) GetID() string   { return r.ID }
func (MergeHistoryRow) TableName() string { return "merge_history" }

// RouterArmRow persists one Beta-arm state (§3.4) for the adaptive router.
type RouterArmRow struct {
	Strategy    string    `gorm:"primaryKey;size:32" json:"strategy"`
	Alpha       float64   `gorm:"default:1" json:"alpha"`
	Beta        float64   `gorm:"default:1" json:"beta"`
	Tries       int64     `gorm:"default:0" json:"tries"`
	LastUpdated time.Time `json:"last_updated"`
}

func (r RouterArmRow) GetID() string   { return r.Strategy }
func (RouterArmRow) TableName() string { return "router_arms" }

// RouterPerformanceRow is one bounded-history performance record.
type RouterPerformanceRow struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Strategy   string    `gorm:"size:32;index" json:"strategy"`
	Query      string    `gorm:"type:text" json:"query"`
	Accuracy   float64   `json:"accuracy"`
	LatencyMs  float64   `json:"latency_ms"`
	Reward     float64   `json:"reward"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (r RouterPerformanceRow) GetID() string   { return r.ID }
func (RouterPerformanceRow) TableName() string { return "router_performance" }

// LearningFeedbackRow persists one FeedbackRecord (§3.4/§4.8).
type LearningFeedbackRow struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Pattern       string    `gorm:"size:200;index" json:"pattern"`
	Features      string    `gorm:"type:text" json:"features"`
	VectorWeight  float64   `json:"vector_weight"`
	FulltextWeight float64  `json:"fulltext_weight"`
	Effectiveness float64   `json:"effectiveness"`
	UserID        string    `gorm:"size:64;index" json:"user_id,omitempty"`
	RecordedAt    time.Time `json:"timestamp"`
}

func (r LearningFeedbackRow) GetID() string   { return r.ID }
func (LearningFeedbackRow) TableName() string { return "learning_feedback" }
