// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/logger"
	"github.com/decred/votepanel/panel"
	"github.com/decred/votepanel/util"
	"github.com/decred/votepanel/voter"
	"github.com/gorilla/csrf"
)

// handleNotFound handles all invalid routes and returns a 404 to the client.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	// Log incoming connection
	log.Debugf("Invalid route: %v %v %v %v",
		util.RemoteAddr(r), r.Method, r.URL, r.Proto)

	// Trace incoming request
	log.Tracef("%v", logger.NewLogClosure(func() string {
		trace, err := httputil.DumpRequest(r, true)
		if err != nil {
			trace = []byte(fmt.Sprintf("handleNotFound: DumpRequest %v", err))
		}
		return string(trace)
	}))

	util.RespondWithJSON(w, http.StatusNotFound, nil)
}

// handleVersion is the request handler for the http v1 RouteVersion.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleVersion")

	// Set the CSRF header. This is the only route
	// that sets the CSRF header.
	w.Header().Set(v1.CSRFTokenHeader, csrf.Token(r))

	respondWithOK(w, v1.VersionReply{
		BuildVersion: s.cfg.BuildVersion,
		APIVersion:   v1.APIVersion,
	})
}

// handlePolicy is the request handler for the http v1 RoutePolicy.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePolicy")

	respondWithOK(w, v1.PolicyReply{
		PutBatchLimit: s.cfg.PutBatchLimit,
	})
}

// handlePanel is the request handler for the http v1 RoutePanel.
func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePanel")

	var p v1.Panel
	err := util.ParseGetParams(r, &p)
	if err != nil {
		respondWithUserError(w, r, v1.ErrCodeInvalidInput, "")
		return
	}

	e, err := s.panel.Evaluate(r.Context(), panel.EvaluateArgs{
		Realm:    p.Realm,
		Proposal: p.Proposal,
		Wallet:   p.Wallet,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithOK(w, convertPanelReplyToV1(*e))
}

// handlePlan is the request handler for the http v1 RoutePlan.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePlan")

	var p v1.Plan
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&p); err != nil {
		respondWithUserError(w, r, v1.ErrCodeInvalidInput, "")
		return
	}

	pr, err := s.panel.Plan(r.Context(), panel.PlanArgs{
		EvaluateArgs: panel.EvaluateArgs{
			Realm:    p.Realm,
			Proposal: p.Proposal,
			Wallet:   p.Wallet,
		},
		Action: voter.Action(p.Action),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	log.Infof("%v Plan %v %v on %v: %v cast, %v relinquished",
		util.RemoteAddr(r), pr.ID, pr.Plan.Action, p.Proposal,
		len(pr.Plan.Cast), len(pr.Plan.Relinquish))

	respondWithOK(w, convertPlanReplyToV1(*pr))
}

// handlePutProposals is the request handler for the http v1 RouteProposals.
func (s *Server) handlePutProposals(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePutProposals")

	var pp v1.PutProposals
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&pp); err != nil {
		respondWithUserError(w, r, v1.ErrCodeInvalidInput, "")
		return
	}
	if !s.verifyBatch(w, r, len(pp.Proposals)) {
		return
	}

	props, err := convertProposalsToStore(pp.Proposals)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	err = s.panel.PutProposals(r.Context(), props)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithOK(w, v1.PutReply{Count: len(props)})
}

// handlePutRecords is the request handler for the http v1 RouteRecords.
func (s *Server) handlePutRecords(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePutRecords")

	var pr v1.PutRecords
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&pr); err != nil {
		respondWithUserError(w, r, v1.ErrCodeInvalidInput, "")
		return
	}
	if !s.verifyBatch(w, r, len(pr.Records)) {
		return
	}

	records := convertRecordsToStore(pr.Records)
	err := s.panel.PutRecords(r.Context(), records)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithOK(w, v1.PutReply{Count: len(records)})
}

// handlePutVotes is the request handler for the http v1 RouteVotes.
func (s *Server) handlePutVotes(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handlePutVotes")

	var pv v1.PutVotes
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&pv); err != nil {
		respondWithUserError(w, r, v1.ErrCodeInvalidInput, "")
		return
	}
	if !s.verifyBatch(w, r, len(pv.Votes)) {
		return
	}

	votes, err := convertVotesToStore(pv.Votes)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	err = s.panel.PutVotes(r.Context(), votes)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithOK(w, v1.PutReply{Count: len(votes)})
}

// verifyBatch verifies that a put request does not exceed the batch limit.
// A user error is sent to the client when it does.
func (s *Server) verifyBatch(w http.ResponseWriter, r *http.Request, n int) bool {
	if n <= int(s.cfg.PutBatchLimit) {
		return true
	}
	respondWithUserError(w, r, v1.ErrCodeBatchLimit,
		fmt.Sprintf("max number of entries is %v", s.cfg.PutBatchLimit))
	return false
}

// respondWithOK responses to the client request with a 200 http status code
// and the JSON encoded body.
func respondWithOK(w http.ResponseWriter, body interface{}) {
	util.RespondWithJSON(w, http.StatusOK, body)
}

// respondWithError responds to the client request with a user error if the
// error is a v1 UserError. All other errors are treated as internal errors.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var ue v1.UserError
	if errors.As(err, &ue) {
		respondWithUserError(w, r, ue.ErrorCode, ue.ErrorContext)
		return
	}
	respondWithInternalError(w, r, err)
}

// respondWithUserError responds to the client request with a 400 http status
// code and a JSON encoded v1 UserError in the response body. A 404 is used
// when the requested proposal does not exist.
func respondWithUserError(w http.ResponseWriter, r *http.Request, errCode v1.ErrCode, errContext string) {
	m := fmt.Sprintf("%v User error: %v %v",
		util.RemoteAddr(r), errCode, v1.ErrCodes[errCode])
	if errContext != "" {
		m += fmt.Sprintf(" - %v", errContext)
	}
	log.Info(m)

	statusCode := http.StatusBadRequest
	if errCode == v1.ErrCodeProposalNotFound {
		statusCode = http.StatusNotFound
	}

	util.RespondWithJSON(w, statusCode,
		v1.UserError{
			ErrorCode:    errCode,
			ErrorContext: errContext,
		})
}

// respondWithInternalError responds to the client request with a 500 http
// status code and a JSON encoded v1 InternalError in the response body.
func respondWithInternalError(w http.ResponseWriter, r *http.Request, err error) {
	// Check if the client dropped the connection. There
	// is no need to send a response if the client dropped
	// the connection.
	if err := r.Context().Err(); err == context.Canceled {
		log.Infof("%v %v %v %v client aborted connection",
			util.RemoteAddr(r), r.Method, r.URL, r.Proto)
		return
	}

	// Log an internal server error
	t := time.Now().Unix()
	e := fmt.Sprintf("%v %v %v %v Internal error %v: %v",
		util.RemoteAddr(r), r.Method, r.URL, r.Proto, t, err)

	// If this is a pkg/errors error then we can pull the
	// stack trace out of the error.
	stack, ok := util.StackTrace(err)
	if ok {
		e += fmt.Sprintf("\nInternal error stacktrace (NOT A PANIC): %v", stack)
	}

	log.Error(e)

	util.RespondWithJSON(w, http.StatusInternalServerError,
		v1.InternalError{
			ErrorCode: t,
		})
}
