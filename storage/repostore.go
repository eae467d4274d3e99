package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/agentmem/agentmem/errs"
	"github.com/agentmem/agentmem/memtypes"
)

// RepoStore adapts a Repository[MemoryRow] into the engine package's
// Store seam (engine.Store is satisfied structurally: RepoStore never
// imports engine, the same narrow-dependency shape DuplicateChecker
// uses elsewhere in this repo). It is the production persistence path;
// engine.MemStore remains the in-process development/test default.
type RepoStore struct {
	repo Repository[MemoryRow]
}

// NewRepoStore wraps repo (typically a *GormRepository[MemoryRow]) as a
// durable engine.Store.
func NewRepoStore(repo Repository[MemoryRow]) *RepoStore {
	return &RepoStore{repo: repo}
}

// Save upserts m: an existing row is updated in place (preserving
// CreatedAt), a new id is inserted fresh.
func (s *RepoStore) Save(ctx context.Context, m *memtypes.Memory) error {
	row, err := memoryToRow(m)
	if err != nil {
		return errs.New(errs.CodeInternal, "failed to encode memory").WithCause(err).WithOperation("Save")
	}

	if existing, findErr := s.repo.FindByID(ctx, m.ID); findErr == nil {
		row.CreatedAt = existing.CreatedAt
		_, err = s.repo.Update(ctx, row)
		return err
	}
	_, err = s.repo.Create(ctx, row)
	return err
}

// Load fetches and decodes the row for id, returning (nil, nil) when
// absent rather than a NotFound error — Store.Load's contract leaves
// "not found" to the caller (engine.MemoryEngine translates a nil result
// into its own NotFound error).
func (s *RepoStore) Load(ctx context.Context, id string) (*memtypes.Memory, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errs.GetCode(err) == errs.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	m, err := rowToMemory(row)
	if err != nil {
		return nil, errs.New(errs.CodeInternal, "failed to decode memory").WithCause(err).WithOperation("Load")
	}
	return m, nil
}

// List returns every live (or, with includeDeleted, every) memory row,
// decoded back to Memory values.
func (s *RepoStore) List(ctx context.Context, includeDeleted bool) ([]*memtypes.Memory, error) {
	rows, err := s.repo.List(ctx, ListOptions{IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, err
	}
	out := make([]*memtypes.Memory, 0, len(rows))
	for _, row := range rows {
		m, decErr := rowToMemory(row)
		if decErr != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Delete hard-deletes the row by id. Soft-delete (IsDeleted=true) goes
// through Save, per §4.2's "delete is a hard delete by primary key;
// soft-delete semantics are implemented by callers".
func (s *RepoStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// attrValueBlob, attrEntryBlob and metadataBlob are the JSON-serialisable
// shadow of memtypes.AttributeSet/Relation, since MemoryRow's Metadata column
// carries both as one opaque blob (§4.2: "metadata" is a single column).
type attrValueBlob struct {
	Kind string          `json:"kind"`
	Str  string          `json:"str,omitempty"`
	Num  float64         `json:"num,omitempty"`
	Bool bool            `json:"bool,omitempty"`
	List []attrValueBlob `json:"list,omitempty"`
}

type attrEntryBlob struct {
	Namespace string        `json:"ns"`
	Name      string        `json:"name"`
	Value     attrValueBlob `json:"value"`
}

type metadataBlob struct {
	Attributes  []attrEntryBlob      `json:"attributes"`
	Relations   []memtypes.Relation  `json:"relations,omitempty"`
	AccessCount int                  `json:"access_count"`
}

func encodeAttrValue(v memtypes.AttributeValue) attrValueBlob {
	out := attrValueBlob{Kind: string(v.Kind), Str: v.Str, Num: v.Num, Bool: v.Bool}
	for _, item := range v.List {
		out.List = append(out.List, encodeAttrValue(item))
	}
	return out
}

func decodeAttrValue(b attrValueBlob) memtypes.AttributeValue {
	out := memtypes.AttributeValue{Kind: memtypes.AttrKind(b.Kind), Str: b.Str, Num: b.Num, Bool: b.Bool}
	for _, item := range b.List {
		out.List = append(out.List, decodeAttrValue(item))
	}
	return out
}

// memoryToRow flattens a live Memory into its durable row, per §4.2's
// common columns plus the JSON metadata blob.
func memoryToRow(m *memtypes.Memory) (MemoryRow, error) {
	snap := m.Snapshot()

	contentBytes, err := memtypes.Encode(snap.Content)
	if err != nil {
		return MemoryRow{}, err
	}

	blob := metadataBlob{Relations: snap.Relations, AccessCount: snap.Metadata.AccessCount}
	for key, val := range m.Attributes.Each() {
		blob.Attributes = append(blob.Attributes, attrEntryBlob{
			Namespace: string(key.Namespace),
			Name:      key.Name,
			Value:     encodeAttrValue(val),
		})
	}
	metaBytes, err := json.Marshal(blob)
	if err != nil {
		return MemoryRow{}, err
	}

	row := MemoryRow{
		memoryCommon: memoryCommon{
			ID:             m.ID,
			OrganizationID: "",
			UserID:         snap.Scope.UserID,
			AgentID:        snap.Scope.AgentID,
			SessionID:      snap.Scope.SessionID,
			Content:        string(contentBytes),
			ContentKind:    string(snap.Content.Kind),
			Metadata:       string(metaBytes),
			Embedding:      encodeEmbedding(snap.Embedding),
			Importance:     snap.Importance,
			Protection:     int(snap.ProtectionLevel),
			Version:        snap.Metadata.Version,
			AccessCount:    snap.Metadata.AccessCount,
			IsDeleted:      snap.IsDeleted,
			ExpiresAt:      snap.ExpiresAt,
			CreatedAt:      snap.Metadata.CreatedAt,
			UpdatedAt:      snap.Metadata.UpdatedAt,
			AccessedAt:     snap.Metadata.AccessedAt,
		},
		Kind: string(snap.Kind),
	}
	return row, nil
}

// rowToMemory rebuilds a Memory from its durable row: attributes are
// restored from the metadata blob (which is how scope is re-derived),
// falling back to the dedicated agent/user/session columns if the blob
// predates those attribute entries.
func rowToMemory(row MemoryRow) (*memtypes.Memory, error) {
	content, err := memtypes.Decode([]byte(row.Content))
	if err != nil {
		return nil, err
	}

	attrs := memtypes.NewAttributeSet()
	var blob metadataBlob
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &blob); err != nil {
			return nil, err
		}
	}
	for _, entry := range blob.Attributes {
		attrs.Set(memtypes.Namespace(entry.Namespace), entry.Name, decodeAttrValue(entry.Value))
	}
	if _, ok := attrs.GetString(memtypes.NamespaceSystem, memtypes.AttrAgentID); !ok && row.AgentID != "" {
		attrs.Set(memtypes.NamespaceSystem, memtypes.AttrAgentID, memtypes.StringValue(row.AgentID))
	}
	if _, ok := attrs.GetString(memtypes.NamespaceSystem, memtypes.AttrUserID); !ok && row.UserID != "" {
		attrs.Set(memtypes.NamespaceSystem, memtypes.AttrUserID, memtypes.StringValue(row.UserID))
	}
	if _, ok := attrs.GetString(memtypes.NamespaceSystem, memtypes.AttrSessionID); !ok && row.SessionID != "" {
		attrs.Set(memtypes.NamespaceSystem, memtypes.AttrSessionID, memtypes.StringValue(row.SessionID))
	}

	m := memtypes.NewMemory(row.ID, memtypes.MemoryKind(row.Kind), content, row.CreatedAt)
	m.Attributes = attrs
	m.Importance = row.Importance
	m.Embedding = decodeEmbedding(row.Embedding)
	m.Relations = blob.Relations
	m.ExpiresAt = row.ExpiresAt
	m.ProtectionLevel = memtypes.ProtectionLevel(row.Protection)
	m.IsDeleted = row.IsDeleted
	m.Metadata = memtypes.Metadata{
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		AccessedAt:  row.AccessedAt,
		Version:     row.Version,
		AccessCount: row.AccessCount,
	}
	return m, nil
}

// encodeEmbedding packs a float32 vector into little-endian bytes for
// the blob embedding column; decodeEmbedding reverses it.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
