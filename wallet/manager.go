package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stellar/go/clients/horizonclient"
	"golang.org/x/sync/singleflight"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// SessionManager owns the single wallet session. It normalizes the
// provider zoo into one contract so nothing else branches on provider
// identity, and single-flights connect so two concurrent calls share one
// provider handshake.
type SessionManager struct {
	registry *Registry
	network  config.Network
	horizon  *horizonclient.Client
	log      zerolog.Logger

	mu      sync.Mutex
	session models.WalletSession

	connectGroup singleflight.Group
}

func NewSessionManager(registry *Registry, network config.Network, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		registry: registry,
		network:  network,
		horizon:  &horizonclient.Client{HorizonURL: network.HorizonURL},
		log:      log.With().Str("component", "wallet").Logger(),
	}
}

// ListAvailableProviders probes every registered provider. Unreachable
// providers are simply absent from the result.
func (m *SessionManager) ListAvailableProviders(ctx context.Context) []models.ProviderInfo {
	var out []models.ProviderInfo
	for _, p := range m.registry.All() {
		out = append(out, models.ProviderInfo{
			ID:        p.ID(),
			Name:      p.Name(),
			Available: p.Detect(ctx),
		})
	}
	return out
}

// Connect establishes a session with the chosen provider. A nil session
// with nil error means the user cancelled the selection; callers must not
// surface that as a failure. A second Connect while one is in flight
// awaits the in-flight handshake instead of starting a duplicate.
func (m *SessionManager) Connect(ctx context.Context, providerID string) (*models.WalletSession, error) {
	result, err, _ := m.connectGroup.Do("connect", func() (interface{}, error) {
		return m.connect(ctx, providerID)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*models.WalletSession), nil
}

func (m *SessionManager) connect(ctx context.Context, providerID string) (*models.WalletSession, error) {
	provider, ok := m.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("unknown wallet provider %q", providerID)
	}

	// switching providers tears down the prior session first
	m.mu.Lock()
	if m.session.Status.Active() && m.session.ProviderID != providerID {
		m.teardownLocked(ctx)
	}
	m.session = models.WalletSession{ProviderID: providerID, Status: models.SessionSelecting}
	m.mu.Unlock()

	address, err := provider.Connect(ctx)
	if errors.Is(err, ErrSelectionCancelled) {
		m.log.Info().Str("provider", providerID).Msg("wallet selection cancelled by user")
		m.resetSession()
		return nil, nil
	}
	if err != nil {
		m.resetSession()
		return nil, err
	}

	if !utils.IsValidAccountAddress(address) {
		m.resetSession()
		return nil, fmt.Errorf("provider %s returned malformed address %q", providerID, address)
	}

	session := models.WalletSession{
		ProviderID:    providerID,
		PublicAddress: address,
		Status:        models.SessionConnected,
		BalanceXLM:    m.fetchBalance(address),
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.log.Info().Str("provider", providerID).Str("address", address).Msg("wallet connected")
	return &session, nil
}

// fetchBalance is advisory display data; any failure degrades to empty.
func (m *SessionManager) fetchBalance(address string) string {
	account, err := m.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		m.log.Warn().Err(err).Msg("could not fetch account balance")
		return ""
	}
	for _, b := range account.Balances {
		if b.Type == "native" {
			return b.Balance
		}
	}
	return "0"
}

// Disconnect tears down the session. Provider-side failures are logged and
// swallowed; client-side state is authoritative.
func (m *SessionManager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(ctx)
}

func (m *SessionManager) teardownLocked(ctx context.Context) {
	if m.session.ProviderID != "" {
		if provider, ok := m.registry.Get(m.session.ProviderID); ok {
			if err := provider.Disconnect(ctx); err != nil {
				m.log.Warn().Err(err).Str("provider", m.session.ProviderID).Msg("provider disconnect failed, dropping session anyway")
			}
		}
	}
	m.session = models.WalletSession{Status: models.SessionDisconnected}
}

func (m *SessionManager) resetSession() {
	m.mu.Lock()
	m.session = models.WalletSession{Status: models.SessionDisconnected}
	m.mu.Unlock()
}

// Session returns a copy of the current session state.
func (m *SessionManager) Session() models.WalletSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Sign delegates envelope signing to the connected provider. The session
// always returns to Connected afterward, win or lose.
func (m *SessionManager) Sign(ctx context.Context, envelopeXDR string) (string, error) {
	m.mu.Lock()
	if m.session.Status != models.SessionConnected {
		m.mu.Unlock()
		return "", fmt.Errorf("wallet not connected")
	}
	providerID := m.session.ProviderID
	address := m.session.PublicAddress
	m.session.Status = models.SessionSigning
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.session.Status == models.SessionSigning {
			m.session.Status = models.SessionConnected
		}
		m.mu.Unlock()
	}()

	provider, ok := m.registry.Get(providerID)
	if !ok {
		return "", fmt.Errorf("unknown wallet provider %q", providerID)
	}
	return provider.Sign(ctx, envelopeXDR, address, m.network.Passphrase)
}
