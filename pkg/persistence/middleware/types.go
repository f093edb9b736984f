// Package middleware wraps a ports.GraphStore to transform documents on
// their way to and from storage.
package middleware

import "github.com/aretw0/cvflow/pkg/ports"

// Middleware allows wrapping a GraphStore to add behavior.
type Middleware func(ports.GraphStore) ports.GraphStore

// Chain wraps store with mws. The first middleware is the outermost, so it
// sees documents first on Save and last on Load.
func Chain(store ports.GraphStore, mws ...Middleware) ports.GraphStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
