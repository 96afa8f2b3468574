package app

import (
	"fmt"
	"math"

	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

func (a *App) execToken(ec *execCtx, act types.Action) error {
	switch act.Name {
	case types.NameCreate:
		return a.createToken(ec, act)
	case types.NameTransfer:
		return a.transferToken(ec, act)
	case types.NameMint:
		return a.mintToken(ec, act)
	case types.NameSplit:
		return a.splitBalance(ec, act)
	case types.NameMerge:
		return a.mergeBalances(ec, act)
	default:
		return fmt.Errorf("unknown token function %s", act.Name)
	}
}

func (a *App) createToken(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 0 {
		return fmt.Errorf("create takes no inputs, got %d", len(act.Inputs))
	}
	p, err := types.DecodeCreateTokenParams(act.Params)
	if err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("token name required")
	}
	if p.Symbol == "" {
		return fmt.Errorf("token symbol required")
	}
	to := p.To
	if to.IsZero() {
		to = ec.sender
	}

	tokenID := ec.newObjectID()
	tokenAddr := types.Address(tokenID)
	tok := TokenRecord{
		Name:        p.Name,
		Symbol:      p.Symbol,
		TotalSupply: p.TotalSupply,
		Mintable:    p.Mintable,
		Creator:     ec.sender,
		Address:     tokenAddr,
	}
	obj, err := newObject(tokenID, KindToken, ec.sender, tok)
	if err != nil {
		return err
	}
	if err := ec.view.saveObject(obj); err != nil {
		return err
	}
	ec.fx.markCreated(tokenID.String())

	balanceID, err := a.newBalance(ec, to, tokenAddr, p.TotalSupply)
	if err != nil {
		return err
	}

	ec.emit(events.TokenCreatedEvent{
		TokenID:      tokenID,
		TokenAddress: tokenAddr,
		Name:         p.Name,
		Symbol:       p.Symbol,
		TotalSupply:  p.TotalSupply,
		Creator:      ec.sender,
		Mintable:     p.Mintable,
		To:           to,
		BalanceID:    balanceID,
	}.Envelope())
	return nil
}

// transferToken consumes the source balance: the moved amount becomes
// a fresh balance object for the recipient, and any remainder becomes
// a fresh balance object for the sender.
func (a *App) transferToken(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 1 {
		return fmt.Errorf("transfer takes one balance input, got %d", len(act.Inputs))
	}
	p, err := types.DecodeTransferParams(act.Params)
	if err != nil {
		return err
	}
	if p.Amount == 0 {
		return fmt.Errorf("transfer amount required")
	}
	srcID := act.Inputs[0]
	_, src, err := a.loadOwnedBalance(ec, srcID, ec.sender)
	if err != nil {
		return err
	}
	if src.Amount < p.Amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", src.Amount, p.Amount)
	}

	ec.view.deleteObject(srcID)
	ec.fx.markDeleted(srcID.String())
	acct, err := ec.view.loadAccount(ec.sender)
	if err != nil {
		return err
	}
	acct.removeBalance(srcID)
	if err := ec.view.saveAccount(acct); err != nil {
		return err
	}

	remainder := src.Amount - p.Amount
	var remainderID *types.ObjectID
	if remainder > 0 {
		id, err := a.newBalance(ec, ec.sender, src.Token, remainder)
		if err != nil {
			return err
		}
		remainderID = &id
	}
	toBalanceID, err := a.newBalance(ec, p.To, src.Token, p.Amount)
	if err != nil {
		return err
	}

	ec.emit(events.TransferEvent{
		From:          ec.sender,
		To:            p.To,
		Amount:        p.Amount,
		FromBalanceID: srcID,
		ToBalanceID:   toBalanceID,
		RemainderID:   remainderID,
		Remainder:     remainder,
	}.Envelope())
	return nil
}

func (a *App) mintToken(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 1 {
		return fmt.Errorf("mint takes one token input, got %d", len(act.Inputs))
	}
	p, err := types.DecodeMintParams(act.Params)
	if err != nil {
		return err
	}
	if p.Amount == 0 {
		return fmt.Errorf("mint amount required")
	}
	tokenID := act.Inputs[0]
	obj, err := ec.view.loadObject(tokenID)
	if err != nil {
		return err
	}
	var tok TokenRecord
	if err := obj.decode(KindToken, &tok); err != nil {
		return err
	}
	if !tok.Mintable {
		return fmt.Errorf("token %s is not mintable", tok.Symbol)
	}
	if tok.Creator != ec.sender {
		return fmt.Errorf("only the token creator can mint")
	}
	if math.MaxUint64-tok.TotalSupply < p.Amount {
		return fmt.Errorf("total supply overflow")
	}
	tok.TotalSupply += p.Amount

	updated, err := newObject(tokenID, KindToken, obj.Owner, tok)
	if err != nil {
		return err
	}
	if err := ec.view.saveObject(updated); err != nil {
		return err
	}
	ec.fx.markMutated(tokenID.String())

	to := p.To
	if to.IsZero() {
		to = ec.sender
	}
	balanceID, err := a.newBalance(ec, to, tok.Address, p.Amount)
	if err != nil {
		return err
	}

	ec.emit(events.TransferEvent{
		From:          types.ZeroAddress,
		To:            to,
		Amount:        p.Amount,
		FromBalanceID: types.ObjectID{},
		ToBalanceID:   balanceID,
	}.Envelope())
	return nil
}

func (a *App) splitBalance(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 1 {
		return fmt.Errorf("split takes one balance input, got %d", len(act.Inputs))
	}
	p, err := types.DecodeSplitParams(act.Params)
	if err != nil {
		return err
	}
	if p.Amount == 0 {
		return fmt.Errorf("split amount required")
	}
	srcID := act.Inputs[0]
	obj, src, err := a.loadOwnedBalance(ec, srcID, ec.sender)
	if err != nil {
		return err
	}
	if p.Amount >= src.Amount {
		return fmt.Errorf("split amount %d must be less than the balance %d", p.Amount, src.Amount)
	}

	src.Amount -= p.Amount
	if err := a.putBalance(ec, srcID, obj.Owner, src); err != nil {
		return err
	}
	ec.fx.markMutated(srcID.String())

	newID, err := a.newBalance(ec, ec.sender, src.Token, p.Amount)
	if err != nil {
		return err
	}

	ec.emit(events.TransferEvent{
		From:          ec.sender,
		To:            ec.sender,
		Amount:        p.Amount,
		FromBalanceID: srcID,
		ToBalanceID:   newID,
		RemainderID:   &srcID,
		Remainder:     src.Amount,
	}.Envelope())
	return nil
}

func (a *App) mergeBalances(ec *execCtx, act types.Action) error {
	if len(act.Inputs) < 2 {
		return fmt.Errorf("merge takes a destination and at least one source balance, got %d inputs", len(act.Inputs))
	}
	dstID := act.Inputs[0]
	dstObj, dst, err := a.loadOwnedBalance(ec, dstID, ec.sender)
	if err != nil {
		return err
	}

	acct, err := ec.view.loadAccount(ec.sender)
	if err != nil {
		return err
	}
	seen := map[types.ObjectID]struct{}{dstID: {}}
	for _, srcID := range act.Inputs[1:] {
		if _, dup := seen[srcID]; dup {
			return fmt.Errorf("duplicate merge input %s", srcID)
		}
		seen[srcID] = struct{}{}

		_, src, err := a.loadOwnedBalance(ec, srcID, ec.sender)
		if err != nil {
			return err
		}
		if src.Token != dst.Token {
			return fmt.Errorf("cannot merge different tokens")
		}
		if math.MaxUint64-dst.Amount < src.Amount {
			return fmt.Errorf("merged balance overflow")
		}
		dst.Amount += src.Amount

		ec.view.deleteObject(srcID)
		acct.removeBalance(srcID)
		ec.fx.markDeleted(srcID.String())

		ec.emit(events.TransferEvent{
			From:          ec.sender,
			To:            ec.sender,
			Amount:        src.Amount,
			FromBalanceID: srcID,
			ToBalanceID:   dstID,
		}.Envelope())
	}

	if err := a.putBalance(ec, dstID, dstObj.Owner, dst); err != nil {
		return err
	}
	ec.fx.markMutated(dstID.String())
	return ec.view.saveAccount(acct)
}

func (a *App) loadOwnedBalance(ec *execCtx, id types.ObjectID, owner types.Address) (Object, BalanceRecord, error) {
	obj, err := ec.view.loadObject(id)
	if err != nil {
		return Object{}, BalanceRecord{}, err
	}
	var rec BalanceRecord
	if err := obj.decode(KindBalance, &rec); err != nil {
		return Object{}, BalanceRecord{}, err
	}
	if obj.Owner != owner {
		return Object{}, BalanceRecord{}, fmt.Errorf("balance %s is not owned by %s", id, owner)
	}
	return obj, rec, nil
}

func (a *App) putBalance(ec *execCtx, id types.ObjectID, owner types.Address, rec BalanceRecord) error {
	obj, err := newObject(id, KindBalance, owner, rec)
	if err != nil {
		return err
	}
	return ec.view.saveObject(obj)
}

// newBalance creates a balance object and registers it on the owner's
// account.
func (a *App) newBalance(ec *execCtx, owner, token types.Address, amount uint64) (types.ObjectID, error) {
	id := ec.newObjectID()
	if err := a.putBalance(ec, id, owner, BalanceRecord{Token: token, Amount: amount}); err != nil {
		return types.ObjectID{}, err
	}
	ec.fx.markCreated(id.String())

	acct, err := ec.view.loadAccount(owner)
	if err != nil {
		return types.ObjectID{}, err
	}
	acct.addBalance(id)
	if err := ec.view.saveAccount(acct); err != nil {
		return types.ObjectID{}, err
	}
	return id, nil
}

// creditToken adds amount to the owner's first balance of the token,
// creating one if none exists. Settlement goes through here so fills
// do not spray new objects.
func (a *App) creditToken(ec *execCtx, owner, token types.Address, amount uint64) (types.ObjectID, error) {
	if amount == 0 {
		return types.ObjectID{}, nil
	}
	acct, err := ec.view.loadAccount(owner)
	if err != nil {
		return types.ObjectID{}, err
	}
	for _, id := range acct.Balances {
		obj, err := ec.view.loadObject(id)
		if err != nil {
			return types.ObjectID{}, err
		}
		var rec BalanceRecord
		if err := obj.decode(KindBalance, &rec); err != nil {
			return types.ObjectID{}, err
		}
		if rec.Token != token {
			continue
		}
		if math.MaxUint64-rec.Amount < amount {
			return types.ObjectID{}, fmt.Errorf("balance overflow crediting %s", owner)
		}
		rec.Amount += amount
		if err := a.putBalance(ec, id, owner, rec); err != nil {
			return types.ObjectID{}, err
		}
		ec.fx.markMutated(id.String())
		return id, nil
	}
	return a.newBalance(ec, owner, token, amount)
}
