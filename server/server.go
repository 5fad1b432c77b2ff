// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package server provides the HTTPS server of the votepanel v1 API.
package server

import (
	"context"
	"crypto/elliptic"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/panel"
	"github.com/decred/votepanel/util"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the votepanel server.
type Server struct {
	cfg       *Config
	server    *http.Server
	router    *mux.Router // Parent router
	protected *mux.Router // CSRF protected subrouter
	panel     *panel.Panel
	metrics   prometheus.Gatherer
}

// New returns a new Server. The HTTPS cert pair and the CSRF key are created
// when they do not exist yet. The metrics route is only served when a
// gatherer is provided.
func New(cfg *Config, p *panel.Panel, g prometheus.Gatherer) (*Server, error) {
	err := verifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	err = generateHTTPSCertPair(cfg.HTTPSCert, cfg.HTTPSKey)
	if err != nil {
		return nil, err
	}
	csrfKey, err := loadCSRFKey(cfg.CSRFKey)
	if err != nil {
		return nil, err
	}

	return newServer(cfg, p, g, csrfKey), nil
}

// newServer returns a Server with its routes setup. The config must have
// been verified.
func newServer(cfg *Config, p *panel.Panel, g prometheus.Gatherer, csrfKey []byte) *Server {
	router, protected := NewRouter(cfg.ReqBodySizeLimit, csrfKey,
		int(cfg.CSRFMaxAge))

	s := Server{
		cfg:       cfg,
		router:    router,
		protected: protected,
		panel:     p,
		metrics:   g,
	}

	s.setupRoutes()

	return &s
}

// ListenAndServeTLS starts the server. The error that stopped the server is
// sent on the listen channel.
func (s *Server) ListenAndServeTLS(listenC chan error) {
	go func() {
		s.server = &http.Server{
			Handler:      s.router,
			Addr:         s.cfg.Listen,
			ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CurvePreferences: []tls.CurveID{
					tls.CurveP256,
					tls.CurveP521,
					tls.X25519},
				CipherSuites: []uint16{
					tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
					tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
				},
			},
			TLSNextProto: make(map[string]func(*http.Server,
				*tls.Conn, http.Handler)),
		}
		log.Infof("Listen: %v", s.cfg.Listen)
		listenC <- s.server.ListenAndServeTLS(s.cfg.HTTPSCert, s.cfg.HTTPSKey)
	}()
}

// Shutdown gracefully shuts down the server without interrupting any
// active connections.
func (s *Server) Shutdown() {
	if s.server == nil {
		return
	}
	err := s.server.Shutdown(context.Background())
	if err != nil {
		log.Errorf("Shutdown: %v", err)
	}
}

// setupRoutes set ups the v1 API routes.
func (s *Server) setupRoutes() {
	// The version route sets the CSRF header token and thus needs to be
	// part of the CSRF protected router so that the CSRF cookie is set
	// too.
	addRoute(s.protected, http.MethodGet, v1.APIVersionPrefix,
		v1.RouteVersion, s.handleVersion)

	// Unprotected routes
	addRoute(s.router, http.MethodGet, v1.APIVersionPrefix,
		v1.RoutePolicy, s.handlePolicy)
	addRoute(s.router, http.MethodGet, v1.APIVersionPrefix,
		v1.RoutePanel, s.handlePanel)
	addRoute(s.router, http.MethodPost, v1.APIVersionPrefix,
		v1.RoutePlan, s.handlePlan)
	if s.metrics != nil {
		s.router.Handle(v1.RouteMetrics,
			promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	// CSRF protected routes
	addRoute(s.protected, http.MethodPost, v1.APIVersionPrefix,
		v1.RouteProposals, s.handlePutProposals)
	addRoute(s.protected, http.MethodPost, v1.APIVersionPrefix,
		v1.RouteRecords, s.handlePutRecords)
	addRoute(s.protected, http.MethodPost, v1.APIVersionPrefix,
		v1.RouteVotes, s.handlePutVotes)
}

// addRoute adds a route to the provided router.
func addRoute(router *mux.Router, method string, routePrefix, route string, handler http.HandlerFunc) {
	router.HandleFunc(routePrefix+route, handler).Methods(method)
}

// generateHTTPSCertPair generates an HTTPS cert and key if they don't already
// exist.
func generateHTTPSCertPair(httpsCert, httpsKey string) error {
	switch {
	case util.FileExists(httpsCert) && util.FileExists(httpsKey):
		// The cert and key already exist. Nothing to do.
		return nil

	case !util.FileExists(httpsCert) && util.FileExists(httpsKey):
		return fmt.Errorf("https key exists (%v) but the cert doesn't (%v)",
			httpsKey, httpsCert)

	case util.FileExists(httpsCert) && !util.FileExists(httpsKey):
		return fmt.Errorf("https cert exists (%v) but the key doesn't (%v)",
			httpsCert, httpsKey)
	}

	log.Infof("Generating HTTPS keypair...")

	err := util.GenCertPair(elliptic.P256(), "votepanel", httpsCert, httpsKey)
	if err != nil {
		return fmt.Errorf("gen cert pair failed: %v", err)
	}

	log.Infof("HTTPS keypair created...")

	return nil
}

// csrfKeyLength is the length of the CSRF key in bytes.
const csrfKeyLength = 32

// loadCSRFKey loads the CSRF key from disk. If a CSRF key does not exist, a
// new one is created and saved to disk.
func loadCSRFKey(csrfKeyFile string) ([]byte, error) {
	csrfKey, err := os.ReadFile(csrfKeyFile)
	if err != nil {
		log.Infof("CSRF key not found; generating one")
		csrfKey, err = util.Random(csrfKeyLength)
		if err != nil {
			return nil, err
		}
		err = os.WriteFile(csrfKeyFile, csrfKey, 0400)
		if err != nil {
			return nil, err
		}
		log.Infof("CSRF key saved to %v", csrfKeyFile)
	}

	if len(csrfKey) != csrfKeyLength {
		return nil, errors.Errorf("csrf key is corrupt")
	}

	return csrfKey, nil
}
