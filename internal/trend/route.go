package trend

// Route derives the audience of an event. Exactly one audience is returned:
// a non-empty team scopes the event to that team, anything else is global.
func Route(e *Event) Audience {
	if e == nil || e.Team == "" {
		return Global()
	}
	return TeamAudience(e.Team)
}
