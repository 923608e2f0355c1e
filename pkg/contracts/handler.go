// Package contracts holds the interfaces the service binaries wire together.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts one module's routes. Routes that need a caller identity wrap
// themselves in middleware.RequirePermission.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
