package memtypes

// ScopeLevel is the ordinal rank of a scope in the four-level hierarchy.
// Lower ranks are broader: Global < Agent < User < Session.
type ScopeLevel int

const (
	ScopeLevelGlobal ScopeLevel = iota
	ScopeLevelAgent
	ScopeLevelUser
	ScopeLevelSession
)

func (l ScopeLevel) String() string {
	switch l {
	case ScopeLevelGlobal:
		return "global"
	case ScopeLevelAgent:
		return "agent"
	case ScopeLevelUser:
		return "user"
	case ScopeLevelSession:
		return "session"
	default:
		return "unknown"
	}
}

// Scope identifies the visibility/lifetime boundary a Memory belongs to.
// Fields beyond Level are populated cumulatively: a Session scope carries
// AgentID, UserID and SessionID; a User scope carries AgentID and UserID
// only; an Agent scope carries AgentID only; Global carries none.
type Scope struct {
	Level     ScopeLevel
	AgentID   string
	UserID    string
	SessionID string
}

// GlobalScope returns the scope shared by every subject.
func GlobalScope() Scope {
	return Scope{Level: ScopeLevelGlobal}
}

// AgentScope returns a scope bound to a single agent.
func AgentScope(agentID string) Scope {
	return Scope{Level: ScopeLevelAgent, AgentID: agentID}
}

// UserScope returns a scope bound to a single user of a single agent.
func UserScope(agentID, userID string) Scope {
	return Scope{Level: ScopeLevelUser, AgentID: agentID, UserID: userID}
}

// SessionScope returns a scope bound to a single session.
func SessionScope(agentID, userID, sessionID string) Scope {
	return Scope{Level: ScopeLevelSession, AgentID: agentID, UserID: userID, SessionID: sessionID}
}

// isPrefixOf reports whether s's identifying chain is a prefix of other's
// identifying chain, i.e. every id field s defines matches other's.
func (s Scope) isPrefixOf(other Scope) bool {
	if s.AgentID != "" && s.AgentID != other.AgentID {
		return false
	}
	if s.UserID != "" && s.UserID != other.UserID {
		return false
	}
	if s.SessionID != "" && s.SessionID != other.SessionID {
		return false
	}
	return true
}

// CanAccess implements invariant 1 (scope monotonicity): a subject scoped
// at s may access a memory scoped at other iff s.Level <= other.Level and
// s's id chain is a prefix of other's id chain (the subject's narrower
// identifying fields must agree with the memory's).
func (s Scope) CanAccess(other Scope) bool {
	if s.Level > other.Level {
		return false
	}
	return s.isPrefixOf(other)
}

// SystemAttributeKeys used to infer scope from an attribute set.
const (
	AttrAgentID   = "agent_id"
	AttrUserID    = "user_id"
	AttrSessionID = "session_id"
)

// InferScopeLevel derives a Scope from the presence of agent_id, user_id
// and session_id system attributes.
func InferScopeLevel(attrs AttributeSet) Scope {
	agentID, hasAgent := attrs.GetString(NamespaceSystem, AttrAgentID)
	userID, hasUser := attrs.GetString(NamespaceSystem, AttrUserID)
	sessionID, hasSession := attrs.GetString(NamespaceSystem, AttrSessionID)

	switch {
	case hasSession && sessionID != "":
		return SessionScope(agentID, userID, sessionID)
	case hasUser && userID != "":
		return UserScope(agentID, userID)
	case hasAgent && agentID != "":
		return AgentScope(agentID)
	default:
		return GlobalScope()
	}
}
