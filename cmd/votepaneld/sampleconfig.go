// Copyright (c) 2022-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

// sampleConfig is a string containing the sample config for votepaneld.
const sampleConfig = `[Application Options]

; ------------------------------------------------------------------------------
; General Application Settings
; ------------------------------------------------------------------------------
; appdata=~/.votepaneld
; configfile=~/.votepaneld/votepaneld.conf
; datadir=~/.votepaneld/data
; logdir=~/.votepaneld/logs
; debuglevel=info

; ------------------------------------------------------------------------------
; HTTP server settings
; ------------------------------------------------------------------------------
; listen=4443
; httpscert=~/.votepaneld/https.cert
; httpskey=~/.votepaneld/https.key
; readtimeout=5
; writetimeout=60
; reqbodysizelimit=3145728
; putbatchlimit=500
; metrics=false

; ------------------------------------------------------------------------------
; Database settings
; ------------------------------------------------------------------------------
; The mysql database password is provided in the DBPASS env variable.
; db=leveldb
; dbhost=localhost:3306

; ------------------------------------------------------------------------------
; Panel settings
; ------------------------------------------------------------------------------
; voterecordretention=720h
`
