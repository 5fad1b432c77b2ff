// Copyright (c) 2021-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"errors"
	"fmt"

	errs "github.com/pkg/errors"
)

// stackTracer represents the stack trace functionality for an error from
// pkg/errors.
type stackTracer interface {
	StackTrace() errs.StackTrace
}

// StackTrace returns the stack trace of the first pkg/errors error in the
// error chain. The returned bool indicates whether a stack trace was found.
// Stack traces are not available for stdlib errors.
func StackTrace(err error) (string, bool) {
	var st stackTracer
	if !errors.As(err, &st) {
		return "", false
	}
	return fmt.Sprintf("%+v\n", st.StackTrace()), true
}
