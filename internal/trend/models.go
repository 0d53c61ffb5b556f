// Package trend models inbound trend events and the audience they are routed to.
package trend

// Fallback text applied to events that omit the human-readable fields.
const (
	DefaultTitle   = "Trending Content"
	DefaultMessage = "Check out what's trending!"
)

// Event is a validated trend event.
// ContentType and ContentID are always non-empty once an Event leaves Validate.
type Event struct {
	ContentType string `json:"contentType" validate:"required"`
	ContentID   string `json:"contentId" validate:"required"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message,omitempty"`
	Team        string `json:"team,omitempty"`
}

// AudienceKind distinguishes global and team-scoped audiences.
type AudienceKind string

const (
	AudienceGlobal AudienceKind = "global"
	AudienceTeam   AudienceKind = "team"
)

// Topic names understood by the push backend.
const (
	GlobalTopic     = "trending"
	TeamTopicPrefix = "team_"
)

// Audience is the routing target of a single event.
type Audience struct {
	Kind AudienceKind
	Team string
}

// Global returns the audience of every subscriber.
func Global() Audience {
	return Audience{Kind: AudienceGlobal}
}

// TeamAudience returns the audience subscribed to the given team.
func TeamAudience(team string) Audience {
	return Audience{Kind: AudienceTeam, Team: team}
}

// Topic returns the push backend topic for the audience.
func (a Audience) Topic() string {
	if a.Kind == AudienceTeam {
		return TeamTopicPrefix + a.Team
	}
	return GlobalTopic
}

// String implements fmt.Stringer.
func (a Audience) String() string {
	if a.Kind == AudienceTeam {
		return "team(" + a.Team + ")"
	}
	return "global"
}
