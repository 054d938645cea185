package models

type SessionStatus string

const (
	SessionDisconnected SessionStatus = "disconnected"
	SessionSelecting    SessionStatus = "selecting"
	SessionConnected    SessionStatus = "connected"
	SessionSigning      SessionStatus = "signing"
)

// WalletSession is the one active signing capability. PublicAddress is set
// exactly while the session is connected or signing; it never outlives the
// session and is never persisted server-side.
type WalletSession struct {
	ProviderID    string        `json:"provider_id"`
	PublicAddress string        `json:"public_address"`
	Status        SessionStatus `json:"status"`
	BalanceXLM    string        `json:"balance_xlm,omitempty"`
}

func (s SessionStatus) Active() bool {
	return s == SessionConnected || s == SessionSigning
}

// ProviderInfo describes one wallet provider to the UI.
type ProviderInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}
