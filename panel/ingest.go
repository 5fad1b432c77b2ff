// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package panel

import (
	"context"
	"fmt"
	"strings"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
)

// PutProposals inserts or updates proposals.
func (p *Panel) PutProposals(ctx context.Context, props []store.Proposal) error {
	log.Tracef("PutProposals: %v", len(props))

	for i, v := range props {
		switch {
		case v.Key == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("proposal %v: key missing", i))
		case v.Realm == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("proposal %v: realm missing", i))
		case v.State == store.ProposalStateInvalid ||
			v.State >= store.ProposalStateLast:
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("proposal %v: invalid state %v", i, v.State))
		case v.VotingEndsAt < 0:
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("proposal %v: invalid voting end", i))
		case hasNUL(v.Key, v.Realm):
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("proposal %v: NUL byte in identifier", i))
		}
	}
	for _, v := range props {
		err := p.db.ProposalSave(ctx, v)
		if err != nil {
			return err
		}
	}

	return nil
}

// PutRecords inserts or updates token-owner records.
func (p *Panel) PutRecords(ctx context.Context, records []store.TokenOwnerRecord) error {
	log.Tracef("PutRecords: %v", len(records))

	for i, v := range records {
		switch {
		case v.Key == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("record %v: key missing", i))
		case v.Realm == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("record %v: realm missing", i))
		case v.Owner == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("record %v: owner missing", i))
		case hasNUL(v.Key, v.Realm, v.Owner, v.Delegate):
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("record %v: NUL byte in identifier", i))
		}
	}
	if len(records) == 0 {
		return nil
	}

	return p.db.RecordsSave(ctx, records)
}

// PutVotes inserts or updates vote records. A vote record with an unknown
// choice is accepted since the chain may contain votes that cannot be
// decoded into a yes or no choice.
func (p *Panel) PutVotes(ctx context.Context, votes []store.VoteRecord) error {
	log.Tracef("PutVotes: %v", len(votes))

	for i, v := range votes {
		switch {
		case v.Proposal == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("vote %v: proposal missing", i))
		case v.TokenOwnerRecord == "":
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("vote %v: record missing", i))
		case hasNUL(v.Proposal, v.TokenOwnerRecord):
			return userErr(v1.ErrCodeInvalidInput,
				fmt.Sprintf("vote %v: NUL byte in identifier", i))
		case v.Choice >= voter.VoteChoiceLast:
			return userErr(v1.ErrCodeInvalidVoteChoice,
				fmt.Sprintf("vote %v: %d", i, v.Choice))
		}
	}
	if len(votes) == 0 {
		return nil
	}

	return p.db.VotesSave(ctx, votes)
}

// hasNUL returns whether any of the identifiers contains a NUL byte. The
// leveldb store uses NUL to separate the components of its keys.
func hasNUL(ids ...string) bool {
	for _, v := range ids {
		if strings.IndexByte(v, 0) >= 0 {
			return true
		}
	}
	return false
}
