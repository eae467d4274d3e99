package memtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScope_CanAccess_Monotonicity(t *testing.T) {
	g := GlobalScope()
	a := AgentScope("a1")
	u := UserScope("a1", "u1")
	s := SessionScope("a1", "u1", "s1")

	assert.True(t, g.CanAccess(a))
	assert.True(t, g.CanAccess(u))
	assert.True(t, g.CanAccess(s))
	assert.True(t, a.CanAccess(u))
	assert.True(t, a.CanAccess(s))
	assert.True(t, u.CanAccess(s))
	assert.True(t, s.CanAccess(s))

	assert.False(t, s.CanAccess(u))
	assert.False(t, u.CanAccess(a))
	assert.False(t, a.CanAccess(g))

	// Different agent at a narrower level must not see across the chain.
	other := UserScope("a2", "u1")
	assert.False(t, a.CanAccess(other))
}

func TestScope_CanAccess_PropertyBased(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		agent := rapid.SampledFrom([]string{"a1", "a2"}).Draw(rt, "agent")
		user := rapid.SampledFrom([]string{"u1", "u2"}).Draw(rt, "user")
		session := rapid.SampledFrom([]string{"s1", "s2"}).Draw(rt, "session")

		scopes := []Scope{
			GlobalScope(),
			AgentScope(agent),
			UserScope(agent, user),
			SessionScope(agent, user, session),
		}

		for _, subj := range scopes {
			for _, target := range scopes {
				got := subj.CanAccess(target)
				want := subj.Level <= target.Level && subj.isPrefixOf(target)
				require.Equal(rt, want, got, "subject=%+v target=%+v", subj, target)
			}
		}
	})
}

func TestInferScopeLevel(t *testing.T) {
	attrs := NewAttributeSet()
	assert.Equal(t, ScopeLevelGlobal, InferScopeLevel(*attrs).Level)

	attrs.Set(NamespaceSystem, AttrAgentID, StringValue("a1"))
	assert.Equal(t, ScopeLevelAgent, InferScopeLevel(*attrs).Level)

	attrs.Set(NamespaceSystem, AttrUserID, StringValue("u1"))
	assert.Equal(t, ScopeLevelUser, InferScopeLevel(*attrs).Level)

	attrs.Set(NamespaceSystem, AttrSessionID, StringValue("s1"))
	scope := InferScopeLevel(*attrs)
	assert.Equal(t, ScopeLevelSession, scope.Level)
	assert.Equal(t, "a1", scope.AgentID)
	assert.Equal(t, "u1", scope.UserID)
	assert.Equal(t, "s1", scope.SessionID)
}
