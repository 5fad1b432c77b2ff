// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/util"
)

type middleware struct {
	reqBodySizeLimit int64 // In bytes
}

// reqBodySizeLimitMiddleware applies a maximum request body size limit to
// the request.
func (m *middleware) reqBodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, m.reqBodySizeLimit)
		next.ServeHTTP(w, r)
	})
}

// closeBodyMiddleware closes the request body.
func closeBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		r.Body.Close()
	})
}

// loggingMiddleware logs all incoming requests before calling the next
// handler.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Trace incoming request
		log.Tracef("%v", logger.NewLogClosure(func() string {
			trace, err := httputil.DumpRequest(r, true)
			if err != nil {
				trace = []byte(fmt.Sprintf("logging: DumpRequest %v", err))
			}
			return string(trace)
		}))

		// Log incoming connection
		log.Infof("%v %v %v %v", util.RemoteAddr(r), r.Method, r.URL, r.Proto)

		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware recovers from any panics by logging the panic and
// returning a 500 response.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				errorCode := time.Now().Unix()
				log.Criticalf("%v %v %v %v Internal error %v: %v",
					util.RemoteAddr(r), r.Method, r.URL, r.Proto, errorCode, err)
				log.Criticalf("Stacktrace (THIS IS AN ACTUAL PANIC): %s",
					debug.Stack())

				util.RespondWithJSON(w, http.StatusInternalServerError,
					v1.InternalError{
						ErrorCode: errorCode,
					})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
