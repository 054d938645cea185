package wallet

// Registry holds the supported providers keyed by id, in presentation
// order. Provider differences are data here, not branching inheritance.
type Registry struct {
	order     []string
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(p Provider) {
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// supportedProviders is the fixed provider set of the platform.
var supportedProviders = []struct{ id, name string }{
	{"xbull", "xBull"},
	{"freighter", "Freighter"},
	{"albedo", "Albedo"},
	{"rabet", "Rabet"},
	{"lobstr", "LOBSTR"},
	{"hana", "Hana"},
	{"hot-wallet", "HOT Wallet"},
	{"klever", "Klever"},
}

// DefaultRegistry builds the registry of bridge-backed providers against
// the host wallet bridge URL.
func DefaultRegistry(bridgeURL string) *Registry {
	r := NewRegistry()
	for _, p := range supportedProviders {
		r.Register(NewBridgeProvider(p.id, p.name, bridgeURL))
	}
	return r
}
