package domain

// Member represents a connection's participation meta.
// No transport or lifecycle logic here.
type Member struct {
	// ClientToken is the browser-scoped cookie token. It is informational only:
	// a reconnect is always a new User.
	ClientToken string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(clientToken string) *Member {
	return &Member{ClientToken: clientToken}
}
