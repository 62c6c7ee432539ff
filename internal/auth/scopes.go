package auth

// Scopes understood by the timeline API.
const (
	ScopeTimelineRead  = "timeline:read"
	ScopeTimelineWrite = "timeline:write"
)
