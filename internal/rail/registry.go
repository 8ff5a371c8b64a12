package rail

import (
	pkgerrors "github.com/freightline/settlement-engine/pkg/errors"
	"github.com/freightline/settlement-engine/pkg/enums"
)

// Registry maps providers to rail implementations. Stripe, ACH and wire are
// extension points: registering an implementation is all it takes to route a
// provider, the processor never branches on provider names.
type Registry struct {
	rails map[enums.RailProvider]Rail
}

// NewRegistry builds a registry preloaded with the provided rails.
func NewRegistry(rails ...Rail) *Registry {
	registry := &Registry{rails: make(map[enums.RailProvider]Rail)}
	for _, r := range rails {
		if r == nil {
			continue
		}
		registry.rails[r.Provider()] = r
	}
	return registry
}

// Register adds a rail, replacing any existing rail for the same provider.
func (r *Registry) Register(rail Rail) {
	if rail == nil {
		return
	}
	r.rails[rail.Provider()] = rail
}

// Resolve returns the rail for the requested provider.
func (r *Registry) Resolve(provider enums.RailProvider) (Rail, error) {
	if !provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid rail provider").
			WithDetails(map[string]any{"provider": string(provider)})
	}
	rail, ok := r.rails[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no rail registered for provider").
			WithDetails(map[string]any{"provider": string(provider)})
	}
	return rail, nil
}
