// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/logger"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// httpc provides a http client for interacting with the votepaneld API. The
// CSRF session of the host is persisted in the session db.
type httpc struct {
	host     *url.URL
	http     *http.Client
	sessions *sessionDB
}

// httpcOpts contains the optional httpc settings.
type httpcOpts struct {
	CertPool *x509.CertPool
	Timeout  time.Duration
}

// newHttpc returns a new httpc.
func newHttpc(host *url.URL, sessions *sessionDB, opts *httpcOpts) (*httpc, error) {
	if opts == nil {
		opts = &httpcOpts{}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}

	tlsConfig := &tls.Config{
		RootCAs: opts.CertPool,
	}
	h := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			IdleConnTimeout:       opts.Timeout,
			ResponseHeaderTimeout: opts.Timeout,
			TLSClientConfig:       tlsConfig,
		},
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, err
	}
	h.Jar = jar

	return &httpc{
		host:     host,
		http:     h,
		sessions: sessions,
	}, nil
}

// serverReply represents a reply from the server.
type serverReply struct {
	HTTPCode   int
	Body       []byte
	Header     http.Header
	SetCookies []*http.Cookie
}

// sendReq prepares and sends a http request.
//
// The req data is encoded as query params if the request is a GET request. The
// req data is included as a JSON encoded request body for all other request
// types.
func (c *httpc) sendReq(method string, route string, reqData interface{}, headers map[string]string) (*serverReply, error) {
	reqURL, err := url.Parse(route)
	if err != nil {
		return nil, err
	}
	var reqBody []byte
	if reqData != nil {
		switch method {
		case http.MethodGet:
			form := url.Values{}
			err := schema.NewEncoder().Encode(reqData, form)
			if err != nil {
				return nil, err
			}
			reqURL.RawQuery = form.Encode()

		case http.MethodPost, http.MethodPut:
			reqBody, err = json.Marshal(reqData)
			if err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("unknown http method '%v'", method)
		}
	}

	req, err := http.NewRequest(method, reqURL.String(),
		bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Add(k, v)
	}

	log.Debugf("%v", logger.NewLogClosure(func() string {
		return reqStr(req, c.http.Jar.Cookies(c.host), reqBody)
	}))

	r, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	respBody, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	log.Debugf("%v", logger.NewLogClosure(func() string {
		return respStr(r, respBody)
	}))

	return &serverReply{
		HTTPCode:   r.StatusCode,
		Body:       respBody,
		Header:     r.Header,
		SetCookies: r.Cookies(),
	}, nil
}

// sendReqV1 sends a request to the v1 votepaneld API and returns the response
// body of a successful request. Non 200 replies are converted to errors.
func (c *httpc) sendReqV1(method string, route string, reqData interface{}) ([]byte, error) {
	route = fmt.Sprintf("%v%v%v", c.host.String(), v1.APIVersionPrefix, route)

	// Setup the session
	hostKey := c.host.String()
	sess, err := c.sessions.Get(hostKey)
	if err != nil {
		return nil, err
	}
	c.http.Jar.SetCookies(c.host, sess.Cookies)
	var headers map[string]string
	if sess.CSRF != "" {
		headers = map[string]string{
			v1.CSRFTokenHeader: sess.CSRF,
		}
	}

	r, err := c.sendReq(method, route, reqData, headers)
	if err != nil {
		return nil, err
	}
	switch r.HTTPCode {
	case http.StatusOK:
		// Expected reply; continue

	case http.StatusBadRequest, http.StatusNotFound:
		var ue v1.UserError
		err = json.Unmarshal(r.Body, &ue)
		if err != nil {
			return nil, errors.Errorf("%v %s", r.HTTPCode, r.Body)
		}
		return nil, userErr{ue}

	case http.StatusForbidden:
		// The session is missing or stale
		err = c.sessions.Clear(hostKey)
		if err != nil {
			return nil, err
		}
		return nil, errors.Errorf("%v %sRun the 'version' command to "+
			"get a new CSRF token from the server", r.HTTPCode, r.Body)

	case http.StatusInternalServerError:
		var ie v1.InternalError
		err = json.Unmarshal(r.Body, &ie)
		if err != nil {
			return nil, errors.Errorf("%v %s", r.HTTPCode, r.Body)
		}
		return nil, errors.Errorf("internal server error: %v", ie.ErrorCode)

	default:
		return nil, errors.Errorf("unexpected server response: %v %s",
			r.HTTPCode, r.Body)
	}

	// Update the session with the tokens that the server handed out
	var updated bool
	if csrf := r.Header.Get(v1.CSRFTokenHeader); csrf != "" {
		sess.CSRF = csrf
		updated = true
	}
	if len(r.SetCookies) > 0 {
		c.http.Jar.SetCookies(c.host, r.SetCookies)
		sess.Cookies = c.http.Jar.Cookies(c.host)
		updated = true
	}
	if updated {
		err = c.sessions.Save(hostKey, *sess)
		if err != nil {
			return nil, err
		}
	}

	return r.Body, nil
}

// userErr wraps a v1 UserError for printing.
type userErr struct {
	v1.UserError
}

// Error satisfies the error interface.
func (e userErr) Error() string {
	errStr := v1.ErrCodes[e.ErrorCode]
	if e.ErrorContext == "" {
		return fmt.Sprintf("user error: %v", errStr)
	}
	return fmt.Sprintf("user error: %v - %v", errStr, e.ErrorContext)
}

// Version sends a GET request to the v1 RouteVersion. The reply sets the
// CSRF header token that the put routes require.
func (c *httpc) Version() (*v1.VersionReply, error) {
	var r v1.VersionReply
	err := c.doV1(http.MethodGet, v1.RouteVersion, nil, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Policy sends a GET request to the v1 RoutePolicy.
func (c *httpc) Policy() (*v1.PolicyReply, error) {
	var r v1.PolicyReply
	err := c.doV1(http.MethodGet, v1.RoutePolicy, nil, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Panel sends a GET request to the v1 RoutePanel.
func (c *httpc) Panel(p v1.Panel) (*v1.PanelReply, error) {
	var r v1.PanelReply
	err := c.doV1(http.MethodGet, v1.RoutePanel, &p, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Plan sends a POST request to the v1 RoutePlan.
func (c *httpc) Plan(p v1.Plan) (*v1.PlanReply, error) {
	var r v1.PlanReply
	err := c.doV1(http.MethodPost, v1.RoutePlan, p, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PutProposals sends a POST request to the v1 RouteProposals.
func (c *httpc) PutProposals(p v1.PutProposals) (*v1.PutReply, error) {
	var r v1.PutReply
	err := c.doV1(http.MethodPost, v1.RouteProposals, p, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PutRecords sends a POST request to the v1 RouteRecords.
func (c *httpc) PutRecords(p v1.PutRecords) (*v1.PutReply, error) {
	var r v1.PutReply
	err := c.doV1(http.MethodPost, v1.RouteRecords, p, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PutVotes sends a POST request to the v1 RouteVotes.
func (c *httpc) PutVotes(p v1.PutVotes) (*v1.PutReply, error) {
	var r v1.PutReply
	err := c.doV1(http.MethodPost, v1.RouteVotes, p, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// doV1 sends a v1 request and decodes the reply into reply.
func (c *httpc) doV1(method, route string, reqData, reply interface{}) error {
	b, err := c.sendReqV1(method, route, reqData)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, reply)
}

// reqStr returns a multi line string that contains request details that are
// useful for debugging.
//
// HTTP request
//   URL       : GET https://localhost:4443/v1/version
//   Body      :
//   Header    : X-Csrf-Token 9kx8fS2MGuTa27xN41rlXhCUwob2+O/Hxx4GdzWgCWd46r3B
//   Cookie    : _gorilla_csrf=MTY1ODcwMTY2MHxJbXB4WWtKMlVGTlZPVk14UzFGUmFsTmt
func reqStr(r *http.Request, cookies []*http.Cookie, body []byte) string {
	var b strings.Builder
	b.WriteString("HTTP request\n")
	fmt.Fprintf(&b, "  URL       : %v %v\n", r.Method, r.URL.String())
	fmt.Fprintf(&b, "  Body      : %s\n", body)
	for k, v := range r.Header {
		if !strings.HasPrefix(k, "X-") {
			continue
		}
		fmt.Fprintf(&b, "  Header    : %v %v\n", k, strings.Join(v, ","))
	}
	for _, ck := range cookies {
		fmt.Fprintf(&b, "  Cookie    : %v\n", ck.String())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// respStr returns a multi line string that contains response details that
// are useful for debugging.
func respStr(r *http.Response, body []byte) string {
	var b strings.Builder
	b.WriteString("HTTP response\n")
	fmt.Fprintf(&b, "  Status    : %v\n", r.StatusCode)
	fmt.Fprintf(&b, "  Body      : %s\n", body)
	for k, v := range r.Header {
		if !strings.HasPrefix(k, "X-") {
			continue
		}
		fmt.Fprintf(&b, "  Header    : %v %v\n", k, strings.Join(v, ","))
	}
	for _, ck := range r.Cookies() {
		fmt.Fprintf(&b, "  Set-Cookie: %v\n", ck.String())
	}
	return strings.TrimSuffix(b.String(), "\n")
}
