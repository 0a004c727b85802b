// Package scope resolves a session identifier and a sharing tier into the
// (user, agent) storage coordinates that every other component keys its
// rows by. This is C1 in the design (§4 of SPEC_FULL.md / spec.md §3).
package scope

// Tier selects which storage coordinates a slot, entity, or memory point
// is written to and searched under.
type Tier string

const (
	// Private scopes to the exact (user, agent) pair.
	Private Tier = "private"

	// Team scopes to all agents acting for the same user.
	Team Tier = "team"

	// Public scopes to a single shared coordinate visible to every user
	// and agent.
	Public Tier = "public"
)

// Reserved coordinate markers. A session-derived user id is normalised to
// CanonicalUser unless it collides with one of these.
const (
	teamAgentMarker    = "__team__"
	publicUserMarker   = "__public__"
	publicAgentMarker  = "__public__"
	// CanonicalUser is the single value every ephemeral session collapses
	// to, so unrelated sessions from the same logical user still share
	// state instead of fragmenting slots per session id.
	CanonicalUser = "default"
)

// Key is the resolved (user, agent) storage coordinate pair.
type Key struct {
	User  string
	Agent string
}

// Resolve derives the private-scope coordinate pair for a session id and
// agent id. The user component is normalised to CanonicalUser unless it
// already equals one of the reserved markers, so that per-session
// identifiers (e.g. a UUID minted per conversation) don't fragment a
// single logical user's state across many private scopes.
func Resolve(sessionUserID, agentID string) Key {
	user := sessionUserID
	if user != publicUserMarker && user != teamAgentMarker {
		user = CanonicalUser
	}
	return Key{User: user, Agent: agentID}
}

// ForTier maps a private-scope Key and a sharing Tier to the storage
// coordinates that tier actually reads and writes.
func ForTier(private Key, tier Tier) Key {
	switch tier {
	case Team:
		return Key{User: private.User, Agent: teamAgentMarker}
	case Public:
		return Key{User: publicUserMarker, Agent: publicAgentMarker}
	default:
		return private
	}
}

// Tiers is the fixed query order AutoRecall's scope merge uses: private,
// then team, then public (spec §4.10 — freshness, not scope priority,
// decides which value wins).
var Tiers = []Tier{Private, Team, Public}
