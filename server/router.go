// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

// NewRouter returns the public router and a subrouter of it that is CSRF
// protected.
func NewRouter(reqBodySizeLimit int64, csrfKey []byte, csrfMaxAge int) (*mux.Router, *mux.Router) {
	// Setup the public router
	public := mux.NewRouter()
	public.StrictSlash(true) // Ignore trailing slashes
	public.NotFoundHandler = http.HandlerFunc(handleNotFound)

	// Add router middleware. Middleware is executed
	// in the same order that they are registered in.
	m := middleware{
		reqBodySizeLimit: reqBodySizeLimit,
	}
	public.Use(closeBodyMiddleware) // MUST be registered first
	public.Use(m.reqBodySizeLimitMiddleware)
	public.Use(loggingMiddleware)
	public.Use(recoverMiddleware)

	// The write routes are CSRF protected using the double submit cookie
	// method. The cookie token is set by the protected subrouter on every
	// protected route. The header token is only set by the version route.
	// Requests to a protected route that do not provide both tokens are
	// rejected with a 403.
	protected := public.NewRoute().Subrouter()
	csrfMiddleware := csrf.Protect(
		csrfKey,
		csrf.Path("/"),
		csrf.MaxAge(csrfMaxAge),
	)
	protected.Use(csrfMiddleware)

	return public, protected
}
