package market

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

const (
	opCreateQuestion    = "create_question"
	opProposeAnswer     = "propose_answer"
	opBuy               = "buy"
	opSell              = "sell"
	opClaimCreatorFees  = "claim_creator_fees"
	opClaimKingFees     = "claim_king_fees"
	opTransferOwnership = "transfer_ownership"
	opDeposit           = "deposit"
	opWithdraw          = "withdraw"
	opSetParam          = "set_param"
	opSetTreasury       = "set_treasury"
	opPause             = "pause"
	opUnpause           = "unpause"
	opGrantRole         = "grant_role"
	opRevokeRole        = "revoke_role"
)

// permission is the access rule of one operation. An empty role means any
// caller; pausable operations fail while the market is paused.
type permission struct {
	op       string
	role     domain.Role
	pausable bool
}

var permissions = map[string]permission{
	opCreateQuestion:    {op: opCreateQuestion, pausable: true},
	opProposeAnswer:     {op: opProposeAnswer, pausable: true},
	opBuy:               {op: opBuy, pausable: true},
	opSell:              {op: opSell, pausable: true},
	opClaimCreatorFees:  {op: opClaimCreatorFees, pausable: true},
	opClaimKingFees:     {op: opClaimKingFees, pausable: true},
	opTransferOwnership: {op: opTransferOwnership, pausable: true},
	opDeposit:           {op: opDeposit, role: domain.RoleOperator, pausable: true},
	opWithdraw:          {op: opWithdraw, pausable: true},
	opSetTreasury:       {op: opSetTreasury, role: domain.RoleAdmin},
	opPause:             {op: opPause, role: domain.RolePauser},
	opUnpause:           {op: opUnpause, role: domain.RolePauser},
	opGrantRole:         {op: opGrantRole, role: domain.RoleAdmin},
	opRevokeRole:        {op: opRevokeRole, role: domain.RoleAdmin},
}

// paramKind tells how a parameter value is written.
type paramKind int

const (
	kindAmount paramKind = iota // currency, decimal dollars
	kindInt                     // plain integer (bps, counts, multiplier)
)

type paramSetter struct {
	role  domain.Role
	kind  paramKind
	apply func(p *domain.Params, v int64)
}

var paramSetters = map[string]paramSetter{
	"question_creation_fee": {domain.RoleFeeManager, kindAmount, func(p *domain.Params, v int64) { p.QuestionCreationFee = domain.Amount(v) }},
	"answer_proposal_stake": {domain.RoleFeeManager, kindAmount, func(p *domain.Params, v int64) { p.AnswerProposalStake = domain.Amount(v) }},
	"platform_fee_bps":      {domain.RoleFeeManager, kindInt, func(p *domain.Params, v int64) { p.PlatformFeeBps = v }},
	"creator_fee_bps":       {domain.RoleFeeManager, kindInt, func(p *domain.Params, v int64) { p.CreatorFeeBps = v }},
	"king_fee_bps":          {domain.RoleFeeManager, kindInt, func(p *domain.Params, v int64) { p.KingFeeBps = v }},

	"bootstrap_threshold":     {domain.RoleMarketManager, kindAmount, func(p *domain.Params, v int64) { p.BootstrapThreshold = domain.Amount(v) }},
	"max_multiplier":          {domain.RoleMarketManager, kindInt, func(p *domain.Params, v int64) { p.MaxMultiplier = v }},
	"graduation_threshold":    {domain.RoleMarketManager, kindAmount, func(p *domain.Params, v int64) { p.GraduationThreshold = domain.Amount(v) }},
	"king_flip_threshold_bps": {domain.RoleMarketManager, kindInt, func(p *domain.Params, v int64) { p.KingFlipThresholdBps = v }},
	"base_answer_limit":       {domain.RoleMarketManager, kindInt, func(p *domain.Params, v int64) { p.BaseAnswerLimit = int(v) }},
	"volume_per_slot":         {domain.RoleMarketManager, kindAmount, func(p *domain.Params, v int64) { p.VolumePerSlot = domain.Amount(v) }},
	"max_answer_limit":        {domain.RoleMarketManager, kindInt, func(p *domain.Params, v int64) { p.MaxAnswerLimit = int(v) }},
}

// ParamNames lists the settable parameters in name order.
func ParamNames() []string {
	names := make([]string, 0, len(paramSetters))
	for n := range paramSetters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseParamValue parses s as the raw value of the named parameter.
// Currency parameters are decimal dollars ("1.50"), the rest integers.
func ParseParamValue(name, s string) (int64, error) {
	setter, ok := paramSetters[name]
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q: %w", name, domain.ErrInvalidParam)
	}
	if setter.kind == kindAmount {
		amt, err := domain.ParseAmount(s)
		return int64(amt), err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, domain.ErrInvalidParam)
	}
	return v, nil
}

// SetParam changes one parameter. The role required depends on the
// parameter; the resulting configuration must validate and must keep every
// question within its answer limit.
func (e *Engine) SetParam(call Call, name string, value int64) (domain.ChangeSet, error) {
	setter, ok := paramSetters[name]
	if !ok {
		return domain.ChangeSet{}, fmt.Errorf("market: %s: unknown parameter %q: %w", opSetParam, name, domain.ErrInvalidParam)
	}
	perm := permission{op: opSetParam + ":" + name, role: setter.role}
	return e.execute(call, perm, func(t *tx) error {
		next := t.s.params
		setter.apply(&next, value)
		if err := next.Validate(); err != nil {
			return err
		}
		for _, q := range t.s.questions {
			if limit := MaxAnswers(next, q.TotalVolume); q.AnswerCount > limit {
				return fmt.Errorf("question %d would hold %d of %d answers: %w", q.ID, q.AnswerCount, limit, domain.ErrInvalidParam)
			}
		}
		t.setParams(next)
		t.emit(domain.Event{Type: domain.EventParamsUpdated, Actor: call.Actor, Amount: domain.Amount(value), Detail: name})
		return nil
	})
}

// SetTreasury changes the address receiving platform fees.
func (e *Engine) SetTreasury(call Call, treasury common.Address) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opSetTreasury], func(t *tx) error {
		if err := checkAccount(treasury); err != nil {
			return err
		}
		next := t.s.params
		next.Treasury = treasury
		t.setParams(next)
		t.emit(domain.Event{Type: domain.EventParamsUpdated, Actor: call.Actor, Counterparty: treasury, Detail: "treasury"})
		return nil
	})
}

// Pause blocks every user operation until Unpause.
func (e *Engine) Pause(call Call) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opPause], func(t *tx) error {
		if t.s.paused {
			return domain.ErrEnforcedPause
		}
		t.setPaused(true)
		t.emit(domain.Event{Type: domain.EventPaused, Actor: call.Actor})
		return nil
	})
}

// Unpause lifts a pause.
func (e *Engine) Unpause(call Call) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opUnpause], func(t *tx) error {
		if !t.s.paused {
			return domain.ErrNotPaused
		}
		t.setPaused(false)
		t.emit(domain.Event{Type: domain.EventUnpaused, Actor: call.Actor})
		return nil
	})
}

// GrantRole adds role to account. Granting a held role is a no-op.
func (e *Engine) GrantRole(call Call, role domain.Role, account common.Address) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opGrantRole], func(t *tx) error {
		if !domain.ValidRole(role) {
			return fmt.Errorf("role %q: %w", role, domain.ErrInvalidParam)
		}
		if err := checkAccount(account); err != nil {
			return err
		}
		if t.grantRole(role, account) {
			t.emit(domain.Event{Type: domain.EventRoleGranted, Actor: call.Actor, Counterparty: account, Detail: string(role)})
		}
		return nil
	})
}

// RevokeRole removes role from account. The last admin cannot be revoked.
func (e *Engine) RevokeRole(call Call, role domain.Role, account common.Address) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opRevokeRole], func(t *tx) error {
		if !domain.ValidRole(role) {
			return fmt.Errorf("role %q: %w", role, domain.ErrInvalidParam)
		}
		if role == domain.RoleAdmin && t.s.hasRole(role, account) && len(t.s.roles[role]) == 1 {
			return fmt.Errorf("cannot revoke the last admin: %w", domain.ErrInvalidParam)
		}
		if t.revokeRole(role, account) {
			t.emit(domain.Event{Type: domain.EventRoleRevoked, Actor: call.Actor, Counterparty: account, Detail: string(role)})
		}
		return nil
	})
}
