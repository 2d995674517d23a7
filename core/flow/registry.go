package flow

import (
	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
)

// Registry holds the constructed flow per provider name.
type Registry map[string]*Flow

// NewRegistry builds a flow for every descriptor with shared dependencies.
func NewRegistry(descs []Descriptor, backend ProviderAPI, sessions *session.Store, handshakeScope kv.Scope, opts ...Option) Registry {
	reg := make(Registry, len(descs))
	for _, desc := range descs {
		reg[desc.Name] = New(desc, backend, sessions, handshakeScope, opts...)
	}
	return reg
}

// Get returns the flow for a provider name.
func (r Registry) Get(name string) (*Flow, bool) {
	f, ok := r[name]
	return f, ok
}
