package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/couchcryptid/capyquest-claim/internal/contract"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// State is the position of an attempt in the claim workflow.
type State int

const (
	Idle State = iota
	LocationCheck
	NetworkCheck
	IdentityCheck
	Submitting
	Confirming
	Done
)

var stateNames = [...]string{"idle", "location-check", "network-check", "identity-check", "submitting", "confirming", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Effect is the side effect the orchestrator must run to advance an attempt.
type Effect int

const (
	EffectNone Effect = iota
	EffectLocate
	EffectReadNetwork
	EffectEnsureNetwork
	EffectReadAccounts
	EffectSubmit
	EffectAwaitReceipt
	EffectRefreshWallet
)

var effectNames = [...]string{"none", "locate", "read-network", "ensure-network", "read-accounts", "submit", "await-receipt", "refresh-wallet"}

func (e Effect) String() string {
	if e < 0 || int(e) >= len(effectNames) {
		return fmt.Sprintf("effect(%d)", int(e))
	}
	return effectNames[e]
}

// MarshalText renders the effect name in JSON.
func (e Effect) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Kind distinguishes NFT claims from token purchases.
type Kind string

const (
	KindClaim    Kind = "claim"
	KindPurchase Kind = "purchase"
)

// Attempt is an immutable snapshot of one run of the workflow. Transition
// methods return a new snapshot and never perform I/O.
type Attempt struct {
	ID              string
	Kind            Kind
	State           State
	Address         string
	RequiredChainID string

	Target        domain.ClaimTarget // claims
	Amount        string             // purchases, display units
	ValueDecimals int                // purchases, decimals of the native currency
	Value         *big.Int           // purchases, base units once computed

	Distance *float64
	TxHash   string
	Result   *domain.ClaimResult
}

// NewClaimAttempt creates an Idle claim for target by address.
func NewClaimAttempt(id string, target domain.ClaimTarget, address, requiredChainID string) Attempt {
	return Attempt{ID: id, Kind: KindClaim, State: Idle, Target: target, Address: address, RequiredChainID: requiredChainID}
}

// NewPurchaseAttempt creates an Idle purchase paying amount of the native
// currency (decimals places) from address.
func NewPurchaseAttempt(id, amount string, decimals int, address, requiredChainID string) Attempt {
	return Attempt{
		ID:              id,
		Kind:            KindPurchase,
		State:           Idle,
		Amount:          amount,
		ValueDecimals:   decimals,
		Address:         address,
		RequiredChainID: requiredChainID,
	}
}

// Start leaves Idle. Claims begin with the location check, purchases with
// the network check.
func (a Attempt) Start() (Attempt, Effect) {
	if a.Kind == KindPurchase {
		a.State = NetworkCheck
		return a, EffectReadNetwork
	}
	a.State = LocationCheck
	return a, EffectLocate
}

// OnLocation gates the claim on the session's coordinate. acqErr is the
// error of the acquisition made for this attempt, if one was needed.
func (a Attempt) OnLocation(current *domain.Coordinate, acqErr *domain.LocationError, thresholdMeters float64) (Attempt, Effect) {
	e := domain.EvaluateEligibility(current, a.Target.Location, thresholdMeters)
	a.Distance = e.Distance

	switch e.Reason {
	case domain.ReasonOK:
		a.State = NetworkCheck
		return a, EffectReadNetwork
	case domain.ReasonTooFar:
		return a.fail(&domain.ClaimError{
			Kind:     domain.KindIneligible,
			Reason:   domain.ClaimTooFar,
			Message:  fmt.Sprintf("you are %.2f m away; get within %g m to claim this Capy", *e.Distance, thresholdMeters),
			Distance: e.Distance,
		})
	}

	if acqErr != nil && acqErr.Kind == domain.LocationUnsupported {
		return a.fail(&domain.ClaimError{
			Kind:    domain.KindUnsupported,
			Reason:  domain.ClaimUnsupported,
			Message: "this device cannot report its location",
			Err:     acqErr,
		})
	}
	msg := "enable location to claim this Capy"
	if acqErr != nil {
		msg += ": " + acqErr.Message
		return a.fail(&domain.ClaimError{Kind: domain.KindLocationUnavailable, Reason: domain.ClaimNoLocation, Message: msg, Err: acqErr})
	}
	return a.fail(&domain.ClaimError{Kind: domain.KindLocationUnavailable, Reason: domain.ClaimNoLocation, Message: msg})
}

// OnNetwork compares the wallet's active chain with the required one. An
// unreadable chain id goes through the guard like a mismatch.
func (a Attempt) OnNetwork(activeChainID string, err error) (Attempt, Effect) {
	if err == nil && domain.SameChain(activeChainID, a.RequiredChainID) {
		a.State = IdentityCheck
		return a, EffectReadAccounts
	}
	return a, EffectEnsureNetwork
}

// OnGuard records the network guard's verdict.
func (a Attempt) OnGuard(ok bool) (Attempt, Effect) {
	if !ok {
		return a.fail(&domain.ClaimError{
			Kind:    domain.KindWrongNetwork,
			Reason:  domain.ClaimWrongNetwork,
			Message: "switch your wallet to network " + a.RequiredChainID + " to continue",
		})
	}
	a.State = IdentityCheck
	return a, EffectReadAccounts
}

// OnAccounts checks that the wallet's active account is the signed-in one.
// Purchases also compute their value here.
func (a Attempt) OnAccounts(accounts []common.Address, err error) (Attempt, Effect) {
	if err != nil || len(accounts) == 0 {
		ce := &domain.ClaimError{Kind: domain.KindAddressMismatch, Reason: domain.ClaimNoAccount, Message: "no account found in the wallet", Err: err}
		return a.fail(ce)
	}
	if !domain.SameAddress(accounts[0].Hex(), a.Address) {
		return a.fail(&domain.ClaimError{
			Kind:    domain.KindAddressMismatch,
			Reason:  domain.ClaimAddressMismatch,
			Message: "wallet account differs from your signed-in address; use " + domain.TruncateAddress(a.Address),
		})
	}

	if a.Kind == KindPurchase {
		value, err := domain.ParseUnits(a.Amount, a.ValueDecimals)
		if err != nil {
			return a.fail(&domain.ClaimError{Kind: domain.KindSubmissionFailed, Reason: domain.ClaimInvalidAmount, Message: err.Error(), Err: err})
		}
		a.Value = value
	}
	a.State = Submitting
	return a, EffectSubmit
}

// OnSubmitted records the wallet's answer to the submission.
func (a Attempt) OnSubmitted(hash common.Hash, err error) (Attempt, Effect) {
	if err != nil {
		msg := "transaction could not be submitted"
		if errors.Is(err, domain.ErrUserRejected) {
			msg = "transaction was rejected in the wallet"
		}
		return a.fail(&domain.ClaimError{Kind: domain.KindSubmissionFailed, Reason: domain.ClaimSubmissionFailed, Message: msg, Err: err})
	}
	a.TxHash = hash.Hex()
	a.State = Confirming
	return a, EffectAwaitReceipt
}

// OnReceipt finishes the attempt from the confirmation outcome.
func (a Attempt) OnReceipt(receipt domain.Receipt, err error) (Attempt, Effect) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return a.failConfirmed(&domain.ClaimError{
			Kind:    domain.KindConfirmationTimeout,
			Reason:  domain.ClaimConfirmationTimeout,
			Message: "transaction was not confirmed in time; it may still be mined",
			Err:     err,
		})
	case err != nil:
		return a.failConfirmed(&domain.ClaimError{Kind: domain.KindConfirmationFailed, Reason: domain.ClaimConfirmationFailed, Message: "could not confirm the transaction", Err: err})
	case !receipt.Succeeded:
		return a.failConfirmed(&domain.ClaimError{Kind: domain.KindConfirmationFailed, Reason: domain.ClaimConfirmationFailed, Message: "transaction reverted on chain"})
	}

	a.State = Done
	a.Result = &domain.ClaimResult{AttemptID: a.ID, Success: true, TransactionHash: a.TxHash}
	return a, EffectRefreshWallet
}

func (a Attempt) failConfirmed(ce *domain.ClaimError) (Attempt, Effect) {
	next, eff := a.fail(ce)
	next.Result.TransactionHash = a.TxHash
	return next, eff
}

func (a Attempt) fail(ce *domain.ClaimError) (Attempt, Effect) {
	a.State = Done
	a.Result = &domain.ClaimResult{AttemptID: a.ID, Error: ce}
	return a, EffectNone
}

// TxRequest builds the contract write for a Submitting attempt.
func (a Attempt) TxRequest(claimContract, tokenContract common.Address) (domain.TxRequest, error) {
	from := common.HexToAddress(a.Address)
	if a.Kind == KindPurchase {
		data, err := contract.PackBuy()
		if err != nil {
			return domain.TxRequest{}, err
		}
		return domain.TxRequest{From: from, To: tokenContract, Data: data, Value: a.Value}, nil
	}

	id, err := a.Target.TokenIDInt()
	if err != nil {
		return domain.TxRequest{}, err
	}
	data, err := contract.PackClaim(id)
	if err != nil {
		return domain.TxRequest{}, err
	}
	return domain.TxRequest{From: from, To: claimContract, Data: data, Value: new(big.Int)}, nil
}
