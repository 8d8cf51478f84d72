package common

// AuthorizationHeaderName carries the JWT bearer token on API requests.
const AuthorizationHeaderName = "Authorization"

// APIKeyHeaderName carries an "<id>.<secret>" API key credential, used by
// agent and MCP callers that have no browser session.
const APIKeyHeaderName = "X-Api-Key"
