package market

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// AnswerInput is the content of a proposed answer.
type AnswerInput struct {
	Text         string `json:"text"`
	Description  string `json:"description"`
	ExternalLink string `json:"external_link"`
}

// CreateQuestion posts a question owned by the caller and charges the
// creation fee to the treasury.
func (e *Engine) CreateQuestion(call Call, text, category string) (uint64, domain.ChangeSet, error) {
	var id uint64
	cs, err := e.execute(call, permissions[opCreateQuestion], func(t *tx) error {
		q, err := t.createQuestion(text, category)
		id = q.ID
		return err
	})
	return id, cs, err
}

// CreateQuestionWithAnswer posts a question and its first answer in one
// operation. The caller pays the creation fee and the proposal stake.
func (e *Engine) CreateQuestionWithAnswer(call Call, text, category string, answer AnswerInput) (uint64, uint64, domain.ChangeSet, error) {
	var qid, aid uint64
	cs, err := e.execute(call, permissions[opCreateQuestion], func(t *tx) error {
		q, err := t.createQuestion(text, category)
		if err != nil {
			return err
		}
		qid = q.ID
		aid, err = t.proposeAnswer(q.ID, answer)
		return err
	})
	return qid, aid, cs, err
}

// ProposeAnswer adds an answer to a question. The caller stakes the
// proposal stake into the new pool and receives bootstrap shares for it.
func (e *Engine) ProposeAnswer(call Call, questionID uint64, answer AnswerInput) (uint64, domain.ChangeSet, error) {
	var id uint64
	cs, err := e.execute(call, permissions[opProposeAnswer], func(t *tx) error {
		var err error
		id, err = t.proposeAnswer(questionID, answer)
		return err
	})
	return id, cs, err
}

// TransferQuestionOwnership hands the creator-fee rights of a question to
// newOwner. Fees already accumulated stay with the previous owner.
func (e *Engine) TransferQuestionOwnership(call Call, questionID uint64, newOwner common.Address) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opTransferOwnership], func(t *tx) error {
		q, err := t.lookupQuestion(questionID)
		if err != nil {
			return err
		}
		if q.Creator != call.Actor {
			return fmt.Errorf("question %d is owned by %s: %w", q.ID, q.Creator.Hex(), domain.ErrUnauthorized)
		}
		if err := checkAccount(newOwner); err != nil {
			return err
		}
		q.Creator = newOwner
		t.setQuestion(q)
		t.emit(domain.Event{
			Type:         domain.EventOwnershipTransferred,
			QuestionID:   q.ID,
			Actor:        call.Actor,
			Counterparty: newOwner,
		})
		return nil
	})
}

func (t *tx) createQuestion(text, category string) (domain.Question, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Question{}, fmt.Errorf("question text: %w", domain.ErrEmptyText)
	}
	if err := t.transfer(t.call.Actor, t.s.params.Treasury, t.s.params.QuestionCreationFee); err != nil {
		return domain.Question{}, err
	}
	q := domain.Question{
		ID:        t.nextQuestionID(),
		Text:      text,
		Category:  category,
		Creator:   t.call.Actor,
		CreatedAt: t.now(),
		Active:    true,
	}
	t.setQuestion(q)
	t.emit(domain.Event{
		Type:       domain.EventQuestionCreated,
		QuestionID: q.ID,
		Actor:      t.call.Actor,
		Amount:     t.s.params.QuestionCreationFee,
		Detail:     q.Text,
	})
	return q, nil
}

func (t *tx) proposeAnswer(questionID uint64, in AnswerInput) (uint64, error) {
	q, err := t.lookupQuestion(questionID)
	if err != nil {
		return 0, err
	}
	if !q.Active {
		return 0, fmt.Errorf("question %d: %w", q.ID, domain.ErrInactiveQuestion)
	}
	if strings.TrimSpace(in.Text) == "" {
		return 0, fmt.Errorf("answer text: %w", domain.ErrEmptyText)
	}
	if _, dup := t.s.answerTexts[q.ID][in.Text]; dup {
		return 0, fmt.Errorf("question %d already has %q: %w", q.ID, in.Text, domain.ErrDuplicateAnswer)
	}
	if limit := MaxAnswers(t.s.params, q.TotalVolume); q.AnswerCount >= limit {
		return 0, fmt.Errorf("question %d holds %d of %d answers: %w", q.ID, q.AnswerCount, limit, domain.ErrAnswerLimitReached)
	}

	a := domain.Answer{
		ID:           t.nextAnswerID(),
		QuestionID:   q.ID,
		Text:         in.Text,
		Description:  in.Description,
		ExternalLink: in.ExternalLink,
		Proposer:     t.call.Actor,
		CreatedAt:    t.now(),
	}
	t.setAnswer(a)
	t.indexAnswer(a)
	q.AnswerCount++
	t.setQuestion(q)

	stake := t.s.params.AnswerProposalStake
	t.emit(domain.Event{
		Type:       domain.EventAnswerProposed,
		QuestionID: q.ID,
		AnswerID:   a.ID,
		Actor:      t.call.Actor,
		Amount:     stake,
		Detail:     a.Text,
	})
	if stake == 0 {
		t.electKing(q.ID, a.ID)
		return a.ID, nil
	}

	// The stake is fee-free and priced at an empty pool.
	minted, err := QuoteBuy(t.s.params, Pool{}, stake)
	if err != nil {
		return 0, err
	}
	if minted == 0 {
		return 0, domain.ErrZeroShares
	}
	if err := t.transfer(t.call.Actor, domain.EscrowAccount, stake); err != nil {
		return 0, err
	}
	split := domain.FeeSplit{Gross: stake, Net: stake}
	if _, err := t.mint(a, t.call.Actor, split, minted, domain.TradeSideStake); err != nil {
		return 0, err
	}
	return a.ID, nil
}
