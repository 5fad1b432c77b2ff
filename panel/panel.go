// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package panel evaluates the proposal vote panel of a wallet. It resolves
// the token-owner records that the wallet can vote with, classifies them, and
// derives the vote actions that the governance console should offer.
package panel

import (
	"context"
	"strings"
	"time"

	v1 "github.com/decred/votepanel/api/v1"
	"github.com/decred/votepanel/store"
	"github.com/decred/votepanel/voter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
)

const (
	// sweepSchedule is the cron schedule of the expired vote record sweep.
	sweepSchedule = "0 17 * * * *" // At minute 17 of every hour
)

// Config contains the panel settings.
type Config struct {
	// VoteRecordRetention is how long the vote records of a proposal are
	// kept after its voting window closed. Expired vote records are not
	// swept when this is zero.
	VoteRecordRetention time.Duration

	// Registerer is used to register the panel metrics. Metrics are not
	// collected when this is nil.
	Registerer prometheus.Registerer
}

// Panel is the vote panel service. It is safe for concurrent use.
type Panel struct {
	cfg     Config
	db      store.DB
	metrics *metrics
	cron    *cron.Cron

	// now returns the current time. It is replaced in tests.
	now func() time.Time
}

// New returns a new Panel. The expired vote record sweep is started when a
// retention has been configured. Close must be called to stop it.
func New(cfg Config, db store.DB) (*Panel, error) {
	p := Panel{
		cfg:     cfg,
		db:      db,
		metrics: newMetrics(cfg.Registerer),
		now:     time.Now,
	}
	if cfg.VoteRecordRetention > 0 {
		log.Infof("Launch expired vote record sweep; retention %v",
			cfg.VoteRecordRetention)
		p.cron = cron.New()
		err := p.cron.AddFunc(sweepSchedule, func() {
			_, err := p.Sweep(context.Background())
			if err != nil {
				log.Errorf("Sweep: %v", err)
			}
		})
		if err != nil {
			return nil, err
		}
		p.cron.Start()
	}

	return &p, nil
}

// Close stops the background jobs of the panel. The database is not closed.
func (p *Panel) Close() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// EvaluateArgs contains the arguments of Evaluate.
type EvaluateArgs struct {
	Realm    string
	Proposal string
	Wallet   string
}

// Evaluation is the vote panel of a wallet on a proposal.
type Evaluation struct {
	Realm      string
	Proposal   string
	Wallet     string
	VotingOpen bool

	// Accounts contains the accounts that were classified, the wallet's
	// own record first followed by the delegated records.
	Accounts []voter.VoterAccount

	Classification voter.ClassificationResult
	Actions        voter.ActionSet
	State          voter.PanelState
	AggregateSide  voter.AggregateVoteSide
	Tally          voter.PowerTally
}

// Evaluate returns the vote panel of a wallet on a proposal.
func (p *Panel) Evaluate(ctx context.Context, a EvaluateArgs) (*Evaluation, error) {
	log.Tracef("Evaluate: %v %v %v", a.Realm, a.Proposal, a.Wallet)

	// Verify input
	switch {
	case strings.TrimSpace(a.Realm) == "":
		return nil, userErr(v1.ErrCodeInvalidInput, "realm missing")
	case strings.TrimSpace(a.Proposal) == "":
		return nil, userErr(v1.ErrCodeInvalidInput, "proposal missing")
	case strings.TrimSpace(a.Wallet) == "":
		return nil, userErr(v1.ErrCodeInvalidInput, "wallet missing")
	}

	// Get the proposal
	prop, err := p.db.ProposalGet(ctx, a.Proposal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, userErr(v1.ErrCodeProposalNotFound, a.Proposal)
		}
		return nil, err
	}
	if prop.Realm != a.Realm {
		return nil, userErr(v1.ErrCodeRealmMismatch,
			"proposal belongs to realm "+prop.Realm)
	}

	// Resolve the accounts that the wallet can vote with
	accounts, err := p.loadAccounts(ctx, a.Realm, a.Proposal, a.Wallet)
	if err != nil {
		return nil, err
	}

	// Classify them
	var (
		open = prop.VotingOpen(p.now())
		r    = voter.Classify(accounts)
		e    = Evaluation{
			Realm:          a.Realm,
			Proposal:       a.Proposal,
			Wallet:         a.Wallet,
			VotingOpen:     open,
			Accounts:       accounts,
			Classification: r,
			Actions:        voter.PanelActions(r, open),
			State:          voter.DerivePanelState(r),
			AggregateSide:  voter.DeriveAggregateVoteSide(r.AlreadyVoted),
			Tally:          voter.Tally(r),
		}
	)

	log.Debugf("Evaluated %v on %v: %v accounts, state %v, side %v",
		a.Wallet, a.Proposal, len(accounts), e.State, e.AggregateSide)

	p.metrics.evaluated(e.State)

	return &e, nil
}

// loadAccounts returns the voter accounts of the wallet on a proposal. The
// wallet's own record is first, followed by the records that have been
// delegated to the wallet sorted by key.
func (p *Panel) loadAccounts(ctx context.Context, realm, proposal, wallet string) ([]voter.VoterAccount, error) {
	var (
		own       *store.TokenOwnerRecord
		delegated []store.TokenOwnerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := p.db.RecordGetByOwner(gctx, realm, wallet)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// The wallet has not deposited any tokens
			return nil
		case err != nil:
			return errors.Wrap(err, "own record")
		}
		own = r
		return nil
	})
	g.Go(func() error {
		var err error
		delegated, err = p.db.RecordsGetByDelegate(gctx, realm, wallet)
		return errors.Wrap(err, "delegated records")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Put together the records. A record that is delegated to its own
	// owner is only included once.
	var (
		records = make([]store.TokenOwnerRecord, 0, len(delegated)+1)
		keys    = make([]string, 0, len(delegated)+1)
		isOwn   = make(map[string]bool, len(delegated)+1)
	)
	if own != nil {
		records = append(records, *own)
		keys = append(keys, own.Key)
		isOwn[own.Key] = true
	}
	for _, r := range delegated {
		if isOwn[r.Key] {
			continue
		}
		records = append(records, r)
		keys = append(keys, r.Key)
	}
	if len(records) == 0 {
		return []voter.VoterAccount{}, nil
	}

	votes, err := p.db.VotesGet(ctx, proposal, keys)
	if err != nil {
		return nil, errors.Wrap(err, "votes")
	}

	accounts := make([]voter.VoterAccount, 0, len(records))
	for _, r := range records {
		var vr *store.VoteRecord
		if v, ok := votes[r.Key]; ok {
			vr = &v
		}
		accounts = append(accounts, convertAccount(r, vr, !isOwn[r.Key]))
	}

	return accounts, nil
}

// convertAccount converts a token-owner record and its optional vote record
// into a voter account.
func convertAccount(r store.TokenOwnerRecord, v *store.VoteRecord, delegated bool) voter.VoterAccount {
	a := voter.VoterAccount{
		TokenOwnerRecord: r.Key,
		VotingPower:      r.VotingPower,
		Status:           voter.VoteStatusNotVoted,
		Delegated:        delegated,
	}
	switch {
	case v == nil:
		// Not voted
	case v.Relinquished:
		a.Status = voter.VoteStatusRelinquished
	default:
		a.Status = voter.VoteStatusCommitted
		a.Choice = v.Choice
	}
	return a
}

// PlanArgs contains the arguments of Plan.
type PlanArgs struct {
	EvaluateArgs
	Action voter.Action
}

// PlanResult is a plan that carries out a vote action.
type PlanResult struct {
	ID   string
	Plan voter.Plan
}

// Plan returns the votes that must be cast and relinquished to carry out a
// vote action. The action must be offered by the wallet's vote panel.
func (p *Panel) Plan(ctx context.Context, a PlanArgs) (*PlanResult, error) {
	log.Tracef("Plan: %v %v %v %v", a.Realm, a.Proposal, a.Wallet, a.Action)

	switch a.Action {
	case voter.ActionVoteYes, voter.ActionVoteNo, voter.ActionSync,
		voter.ActionWithdraw:
	default:
		return nil, userErr(v1.ErrCodeInvalidInput,
			"invalid action "+string(a.Action))
	}

	e, err := p.Evaluate(ctx, a.EvaluateArgs)
	if err != nil {
		return nil, err
	}
	if e.Actions.None() {
		return nil, userErr(v1.ErrCodeActionNotOffered,
			"the panel offers no vote actions")
	}
	plan, err := voter.PlanAction(e.Classification, e.Actions, a.Action)
	switch {
	case errors.Is(err, voter.ErrActionNotOffered):
		return nil, userErr(v1.ErrCodeActionNotOffered, string(a.Action))
	case errors.Is(err, voter.ErrNothingToDo):
		return nil, userErr(v1.ErrCodeNothingToDo, "")
	case err != nil:
		return nil, err
	}

	if plan.Conflicted {
		log.Infof("Committed votes of %v on %v are conflicted; "+
			"relinquishing all of them", a.Wallet, a.Proposal)
	}

	p.metrics.planned(a.Action)

	return &PlanResult{
		ID:   uuid.New().String(),
		Plan: *plan,
	}, nil
}

// Sweep deletes the vote records of the proposals whose voting window closed
// longer than the vote record retention ago. It returns the number of vote
// records that were deleted.
func (p *Panel) Sweep(ctx context.Context) (int, error) {
	if p.cfg.VoteRecordRetention <= 0 {
		return 0, nil
	}
	before := p.now().Add(-p.cfg.VoteRecordRetention).Unix()
	n, err := p.db.VotesDelExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("Swept %v expired vote records", n)
	}
	p.metrics.swept(n)
	return n, nil
}

// userErr returns a v1 user error.
func userErr(c v1.ErrCode, context string) v1.UserError {
	return v1.UserError{
		ErrorCode:    c,
		ErrorContext: context,
	}
}
