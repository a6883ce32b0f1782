package game_client

const (
	// API Endpoints, relative to the configured base URL (e.g. http://host/api)
	GameEndpoint               = "/games/%s/"
	AdvanceEndpoint            = "/games/%s/advance/"
	ActiveNegotiationEndpoint  = "/games/%s/negotiations/active/"
	StartIrrigationEndpoint    = "/games/%s/negotiations/start-irrigation/"
	NegotiationChatEndpoint    = "/games/%s/negotiations/%s/chat/"
	NeighborPrecomputeEndpoint = "/games/%s/neighbors/precompute/"

	// Headers
	SessionCookieHeader = "Cookie"
)
