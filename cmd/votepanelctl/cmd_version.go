// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

// cmdVersion retrieves the server version information. The server returns a
// new CSRF header token that is saved for the put commands.
type cmdVersion struct{}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdVersion) Execute(args []string) error {
	r, err := client.Version()
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}

// cmdPolicy retrieves the server policy.
type cmdPolicy struct{}

// Execute executes the command.
//
// This function satisfies the go-flags Commander interface.
func (c *cmdPolicy) Execute(args []string) error {
	r, err := client.Policy()
	if err != nil {
		return err
	}
	printReply(r)
	return nil
}
