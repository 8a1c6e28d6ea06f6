package backend

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/access"
	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

// Backend is the REST backend for one document
type Backend struct {
	service      *service.Service
	router       *mux.Router
	prefix       string
	returnObject bool
	auth         *access.Authenticator
	delay        Delay
	staticDirs   []string
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Service is the document service. This is mandatory.
	Service *service.Service
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Prefix is the path prefix for all resource routes, e.g. "/api". This is optional.
	Prefix string
	// ReturnObject wraps every response into an object with code, message and data.
	ReturnObject bool
	// AuthenticationEnabled requires a token for every request but the index page and
	// the login route. If false, the _token query parameter is ignored.
	AuthenticationEnabled bool
	// TokenSecret is the secret for tokens issued by the login route. If empty, a random
	// secret is used.
	TokenSecret []byte
	// TokenTTL is the lifetime of tokens issued by the login route. Defaults to 24 hours.
	TokenTTL time.Duration
	// Delay delays every response
	Delay Delay
	// StaticDirs are directories served as static files, in order of precedence
	StaticDirs []string
	// AccessLog receives an access log in Apache Combined Log Format. This is optional.
	AccessLog io.Writer
}

// New realizes the actual backend. It adds all middlewares and routes to the router.
func New(bb *Builder) *Backend {
	if bb.Service == nil {
		panic("Service is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}

	b := &Backend{
		service:      bb.Service,
		router:       bb.Router,
		prefix:       strings.TrimSuffix(bb.Prefix, "/"),
		returnObject: bb.ReturnObject,
		delay:        bb.Delay,
		staticDirs:   bb.StaticDirs,
	}

	if bb.AuthenticationEnabled {
		auth, err := access.New(&access.Builder{
			Users:    bb.Service,
			Secret:   bb.TokenSecret,
			TokenTTL: bb.TokenTTL,
			Prefix:   b.prefix,
		})
		if err != nil {
			panic(err)
		}
		b.auth = auth
	}

	logger.AddRequestID(b.router)
	if bb.AccessLog != nil {
		accessLog := bb.AccessLog
		b.router.Use(func(h http.Handler) http.Handler {
			return handlers.CombinedLoggingHandler(accessLog, h)
		})
	}
	b.handleCORS()
	b.handleDelay()
	if b.auth != nil {
		b.router.Use(b.auth.Middleware())
	} else {
		b.router.Use(access.StripTokenMiddleware)
	}
	b.handleCompression()

	b.handleRoutes(b.router)
	return b
}

// Prefix returns the path prefix of the resource routes
func (b *Backend) Prefix() string {
	return b.prefix
}

// handleRoutes adds all routes. Static files take precedence over everything else,
// fixed routes take precedence over resource routes.
func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)
	nillog.Debugln("backend: handle routes")

	b.handleStatic(router)
	b.handleIndex(router)
	b.handleVersion(router)
	b.handleStatistics(router)
	if b.auth != nil {
		b.auth.HandleLoginRoute(router)
	}
	b.handleResources(router)
}

// Endpoints returns the paths of all resource routes, one per resource
func (b *Backend) Endpoints() []string {
	resources := b.service.Resources()
	endpoints := make([]string, len(resources))
	for i, resource := range resources {
		endpoints[i] = b.prefix + "/" + resource
	}
	return endpoints
}
