package market

import "github.com/alanyoungcy/answermarket/internal/domain"

// MaxAnswers returns how many answers a question with totalVolume may hold:
// one slot per volumePerSlot of volume on top of the base limit, capped at
// the maximum.
func MaxAnswers(p domain.Params, totalVolume domain.Amount) int {
	if p.VolumePerSlot <= 0 || totalVolume <= 0 {
		return min(p.BaseAnswerLimit, p.MaxAnswerLimit)
	}
	extra := int64(totalVolume / p.VolumePerSlot)
	if extra >= int64(p.MaxAnswerLimit) {
		return p.MaxAnswerLimit
	}
	return min(p.BaseAnswerLimit+int(extra), p.MaxAnswerLimit)
}
