package auth

// Scopes accepted by the activity endpoints.
const (
	ScopeAttivitaWrite = "attivita:write"
	ScopeAttivitaRead  = "attivita:read"
)

// CanRead reports whether claims allow listing activities and clients.
func CanRead(c *Claims) bool {
	return c.HasScope(ScopeAttivitaRead) || c.HasScope(ScopeAttivitaWrite)
}
