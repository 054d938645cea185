package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
)

const testAddress = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

type fakeProvider struct {
	id        string
	detected  bool
	connectFn func(ctx context.Context) (string, error)
	signFn    func(ctx context.Context, xdr string) (string, error)

	connects    int32
	disconnects int32
}

func (p *fakeProvider) ID() string   { return p.id }
func (p *fakeProvider) Name() string { return p.id }

func (p *fakeProvider) Detect(ctx context.Context) bool { return p.detected }

func (p *fakeProvider) Connect(ctx context.Context) (string, error) {
	atomic.AddInt32(&p.connects, 1)
	if p.connectFn != nil {
		return p.connectFn(ctx)
	}
	return testAddress, nil
}

func (p *fakeProvider) Sign(ctx context.Context, envelopeXDR, address, passphrase string) (string, error) {
	if p.signFn != nil {
		return p.signFn(ctx, envelopeXDR)
	}
	return envelopeXDR, nil
}

func (p *fakeProvider) Disconnect(ctx context.Context) error {
	atomic.AddInt32(&p.disconnects, 1)
	return nil
}

func newManager(t *testing.T, providers ...Provider) (*SessionManager, func()) {
	t.Helper()
	// horizon stub: balance lookups degrade gracefully on 404
	horizon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	registry := NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	m := NewSessionManager(registry, config.Network{HorizonURL: horizon.URL, Passphrase: "Test SDF Network ; September 2015"}, zerolog.Nop())
	return m, horizon.Close
}

func TestListAvailableProviders(t *testing.T) {
	installed := &fakeProvider{id: "freighter", detected: true}
	missing := &fakeProvider{id: "rabet", detected: false}
	m, closeFn := newManager(t, installed, missing)
	defer closeFn()

	infos := m.ListAvailableProviders(context.Background())
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Available)
	assert.False(t, infos[1].Available)
}

func TestConnectEstablishesSession(t *testing.T) {
	p := &fakeProvider{id: "freighter", detected: true}
	m, closeFn := newManager(t, p)
	defer closeFn()

	session, err := m.Connect(context.Background(), "freighter")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionConnected, session.Status)
	assert.Equal(t, testAddress, session.PublicAddress)
	assert.Equal(t, models.SessionConnected, m.Session().Status)
}

func TestConnectCancelIsNotAnError(t *testing.T) {
	p := &fakeProvider{id: "freighter", connectFn: func(ctx context.Context) (string, error) {
		return "", ErrSelectionCancelled
	}}
	m, closeFn := newManager(t, p)
	defer closeFn()

	session, err := m.Connect(context.Background(), "freighter")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, models.SessionDisconnected, m.Session().Status)
}

func TestConnectRejectsMalformedAddress(t *testing.T) {
	p := &fakeProvider{id: "freighter", connectFn: func(ctx context.Context) (string, error) {
		return "0xdeadbeef", nil
	}}
	m, closeFn := newManager(t, p)
	defer closeFn()

	_, err := m.Connect(context.Background(), "freighter")
	require.Error(t, err)
	assert.Equal(t, models.SessionDisconnected, m.Session().Status)
}

func TestConnectSingleFlights(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{id: "freighter", connectFn: func(ctx context.Context) (string, error) {
		<-release
		return testAddress, nil
	}}
	m, closeFn := newManager(t, p)
	defer closeFn()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := m.Connect(context.Background(), "freighter")
			assert.NoError(t, err)
			assert.NotNil(t, session)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.connects))
}

func TestSwitchingProvidersTearsDownPriorSession(t *testing.T) {
	first := &fakeProvider{id: "freighter"}
	second := &fakeProvider{id: "xbull"}
	m, closeFn := newManager(t, first, second)
	defer closeFn()

	_, err := m.Connect(context.Background(), "freighter")
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), "xbull")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&first.disconnects))
	assert.Equal(t, "xbull", m.Session().ProviderID)
}

func TestSignRequiresConnection(t *testing.T) {
	m, closeFn := newManager(t, &fakeProvider{id: "freighter"})
	defer closeFn()

	_, err := m.Sign(context.Background(), "AAAA")
	assert.Error(t, err)
}

func TestSignReturnsToConnectedAfterRejection(t *testing.T) {
	p := &fakeProvider{id: "freighter", signFn: func(ctx context.Context, xdr string) (string, error) {
		return "", &models.SignatureRejectedError{}
	}}
	m, closeFn := newManager(t, p)
	defer closeFn()

	_, err := m.Connect(context.Background(), "freighter")
	require.NoError(t, err)

	_, err = m.Sign(context.Background(), "AAAA")
	require.Error(t, err)
	assert.True(t, models.IsSignatureRejected(err))
	assert.Equal(t, models.SessionConnected, m.Session().Status)
}

func TestDisconnectSwallowsProviderFailure(t *testing.T) {
	p := &fakeProvider{id: "freighter"}
	m, closeFn := newManager(t, p)
	defer closeFn()

	_, err := m.Connect(context.Background(), "freighter")
	require.NoError(t, err)

	m.Disconnect(context.Background())
	assert.Equal(t, models.SessionDisconnected, m.Session().Status)
	assert.Empty(t, m.Session().PublicAddress)
}
