package market

import "github.com/alanyoungcy/answermarket/internal/domain"

// Flips reports whether a challenger pool displaces a leader pool under a
// hysteresis margin of bps: challenger > leader * (1 + bps/10000), strictly.
func Flips(challenger, leader domain.Amount, bps int64) bool {
	return exceedsBy(int64(challenger), int64(leader), bps)
}

// afterPoolChange re-evaluates the question's king and the answer's
// graduation once an answer's pool has moved.
func (t *tx) afterPoolChange(questionID, answerID uint64) error {
	t.electKing(questionID, answerID)
	t.checkGraduation(answerID)
	return nil
}

// electKing lets the traded answer challenge the current leader. A
// question without a leader takes the answer unconditionally.
func (t *tx) electKing(questionID, answerID uint64) {
	q := t.s.questions[questionID]
	if q.LeadingAnswerID == answerID {
		return
	}
	challenger := t.s.answers[answerID]
	prev := q.LeadingAnswerID
	if q.HasLeader() {
		leader := t.s.answers[prev]
		if !Flips(challenger.PoolValue, leader.PoolValue, t.s.params.KingFlipThresholdBps) {
			return
		}
	}

	q.LeadingAnswerID = answerID
	t.setQuestion(q)
	t.emit(domain.Event{
		Type:             domain.EventKingChanged,
		QuestionID:       questionID,
		AnswerID:         answerID,
		PreviousAnswerID: prev,
		Actor:            t.call.Actor,
		Counterparty:     challenger.Proposer,
		Amount:           challenger.PoolValue,
	})
}

// checkGraduation marks an answer graduated the first time its pool reaches
// the graduation threshold. A zero threshold disables graduation.
func (t *tx) checkGraduation(answerID uint64) {
	a := t.s.answers[answerID]
	g := t.s.params.GraduationThreshold
	if a.Graduated || g <= 0 || a.PoolValue < g {
		return
	}
	a.Graduated = true
	t.setAnswer(a)
	t.emit(domain.Event{
		Type:       domain.EventAnswerGraduated,
		QuestionID: a.QuestionID,
		AnswerID:   a.ID,
		Actor:      t.call.Actor,
		Amount:     a.PoolValue,
	})
}
