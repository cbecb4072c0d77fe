package economy

import (
	"fmt"

	"github.com/vovakirdan/quaternion/internal/core"
)

// ExecuteAllocationDecision resolves a puzzle with the chosen option on
// behalf of player. The cost is debited before anything else, so an
// unaffordable choice leaves both the balance and the puzzle untouched.
func (e *Economy) ExecuteAllocationDecision(player core.PlayerID, puzzleID, optionID string) (Result, error) {
	if !e.initialized {
		return Result{}, ErrNotInitialized
	}
	var pz *AllocationPuzzle
	for _, p := range e.puzzles {
		if p.ID == puzzleID {
			pz = p
			break
		}
	}
	if pz == nil {
		return Result{}, fmt.Errorf("%w: puzzle %s", ErrUnknown, puzzleID)
	}
	if err := check(pz.PlayerID, pz.Status, player, puzzleID); err != nil {
		return Result{}, err
	}
	if !e.now.Before(pz.ExpiresAt) {
		return Result{}, fmt.Errorf("%w: puzzle %s", ErrExpired, puzzleID)
	}
	opt, ok := pz.Option(optionID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q on puzzle %s", ErrUnknownOption, optionID, puzzleID)
	}

	if err := e.ledger.Debit(player, opt.Cost); err != nil {
		return Result{}, err
	}
	if err := e.ledger.Credit(player, opt.Reward); err != nil {
		return Result{}, err
	}
	if opt.Moral != 0 || opt.Ethical {
		if err := e.ledger.ShiftMoral(player, opt.Moral, opt.Ethical); err != nil {
			return Result{}, err
		}
	}
	pz.Status = StatusResolved
	pz.Chosen = optionID
	e.log.Info("puzzle resolved", "id", puzzleID, "player", player, "option", optionID)

	return Result{
		ID:       puzzleID,
		PlayerID: player,
		OptionID: optionID,
		Paid:     opt.Cost,
		Received: opt.Reward,
		Moral:    opt.Moral,
	}, nil
}

// AcceptMarketOffer takes a black-market deal. The hidden risk is rolled
// exactly once; when it triggers, the reward is confiscated and the player
// takes the moral penalty instead.
func (e *Economy) AcceptMarketOffer(player core.PlayerID, offerID string) (Result, error) {
	if !e.initialized {
		return Result{}, ErrNotInitialized
	}
	var o *MarketOffer
	for _, c := range e.offers {
		if c.ID == offerID {
			o = c
			break
		}
	}
	if o == nil {
		return Result{}, fmt.Errorf("%w: offer %s", ErrUnknown, offerID)
	}
	if err := check(o.PlayerID, o.Status, player, offerID); err != nil {
		return Result{}, err
	}
	if !e.now.Before(o.ExpiresAt) {
		return Result{}, fmt.Errorf("%w: offer %s", ErrExpired, offerID)
	}

	if err := e.ledger.Debit(player, o.Cost); err != nil {
		return Result{}, err
	}
	res := Result{ID: offerID, PlayerID: player, Paid: o.Cost}
	if e.rng.Float64() < o.Risk {
		res.Penalty = true
		res.Moral = -o.Penalty
		if err := e.ledger.ShiftMoral(player, res.Moral, false); err != nil {
			return Result{}, err
		}
	} else {
		res.Received = o.Reward
		if err := e.ledger.Credit(player, o.Reward); err != nil {
			return Result{}, err
		}
	}
	o.Status = StatusResolved
	e.log.Info("market deal", "id", offerID, "player", player, "penalty", res.Penalty)
	return res, nil
}

// check validates ownership and status of a record.
func check(owner core.PlayerID, status Status, player core.PlayerID, id string) error {
	switch {
	case owner != player:
		return fmt.Errorf("%w: %s", ErrNotOwner, id)
	case status == StatusResolved:
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	case status == StatusExpired:
		return fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return nil
}
