package middleware

import "github.com/autonoma-fleet/autonoma/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies middlewares so that the first one is outermost.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
