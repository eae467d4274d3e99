package memtypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMemory_VersionMonotonicity(t *testing.T) {
	now := time.Now().UTC()
	m := NewBuilder("m1", KindSemantic, NewTextContent("hello"), now).Build()
	require.Equal(t, 1, m.Metadata.Version)

	later := now.Add(time.Second)
	m.ApplyUpdate(later, func(m *Memory) {
		m.Importance = 0.5
	})

	assert.Equal(t, 2, m.Metadata.Version)
	assert.True(t, !m.Metadata.UpdatedAt.Before(now))
	assert.Equal(t, later, m.Metadata.UpdatedAt)
}

func TestMemory_VersionMonotonicity_PropertyBased(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		now := time.Now().UTC()
		m := NewBuilder("m1", KindSemantic, NewTextContent("x"), now).Build()

		updates := rapid.IntRange(1, 20).Draw(rt, "updates")
		prevVersion := m.Metadata.Version
		prevUpdated := m.Metadata.UpdatedAt
		for i := 0; i < updates; i++ {
			next := prevUpdated.Add(time.Duration(i+1) * time.Millisecond)
			m.ApplyUpdate(next, func(m *Memory) {})
			require.Equal(rt, prevVersion+1, m.Metadata.Version)
			require.False(rt, m.Metadata.UpdatedAt.Before(prevUpdated))
			prevVersion = m.Metadata.Version
			prevUpdated = m.Metadata.UpdatedAt
		}
	})
}

func TestMemory_SoftDelete(t *testing.T) {
	now := time.Now().UTC()
	m := NewBuilder("m1", KindEpisodic, NewTextContent("x"), now).Build()
	require.False(t, m.IsDeleted)
	m.SoftDelete(now.Add(time.Minute))
	assert.True(t, m.IsDeleted)
}

func TestMemory_CanAccess(t *testing.T) {
	now := time.Now().UTC()
	m := NewBuilder("m1", KindSemantic, NewTextContent("x"), now).
		WithAgent("a1").WithUser("u1").Build()

	assert.True(t, m.CanAccess(GlobalScope()))
	assert.True(t, m.CanAccess(AgentScope("a1")))
	assert.True(t, m.CanAccess(UserScope("a1", "u1")))
	assert.False(t, m.CanAccess(UserScope("a1", "u2")))
	assert.False(t, m.CanAccess(SessionScope("a1", "u1", "s1")))
}

func TestProtectionLevel_ForgettingMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, ProtectionNone.ForgettingMultiplier())
	assert.Equal(t, 2.0, ProtectionLow.ForgettingMultiplier())
	assert.Equal(t, 5.0, ProtectionMedium.ForgettingMultiplier())
	assert.Equal(t, 10.0, ProtectionHigh.ForgettingMultiplier())
	assert.True(t, ProtectionCritical.ForgettingMultiplier() > 1e300)
}
