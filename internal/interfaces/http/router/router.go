package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIPrefix is where operator endpoints live. Customer-facing pages
// (payment redirects, the Stripe webhook) stay at the root because their URLs
// are baked into checkout sessions and the Stripe dashboard.
const APIPrefix = "/api/v1"

// Area is one operator area under APIPrefix, e.g. /recurrence.
type Area struct {
	prefix string
	guards []gin.HandlerFunc
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewArea creates an area; guards run before every route in it.
func NewArea(prefix string, guards ...gin.HandlerFunc) *Area {
	return &Area{prefix: prefix, guards: guards}
}

// GET adds a read-only route
func (a *Area) GET(p string, h ...gin.HandlerFunc) *Area {
	return a.add(http.MethodGet, p, h)
}

// POST adds a state-changing route
func (a *Area) POST(p string, h ...gin.HandlerFunc) *Area {
	return a.add(http.MethodPost, p, h)
}

func (a *Area) add(method, p string, h []gin.HandlerFunc) *Area {
	a.routes = append(a.routes, route{method: method, path: p, handlers: h})
	return a
}

// Endpoints lists "METHOD /full/path" for each route, in registration order.
func (a *Area) Endpoints() []string {
	out := make([]string, 0, len(a.routes))
	for _, r := range a.routes {
		out = append(out, r.method+" "+path.Join(APIPrefix, a.prefix, r.path))
	}
	return out
}

// Mount registers every area under APIPrefix. Nil areas are skipped so
// optional handlers can be passed unconditionally.
func Mount(engine *gin.Engine, areas ...*Area) {
	api := engine.Group(APIPrefix)
	for _, a := range areas {
		if a == nil {
			continue
		}
		group := api.Group(a.prefix, a.guards...)
		for _, r := range a.routes {
			group.Handle(r.method, r.path, r.handlers...)
		}
	}
}
