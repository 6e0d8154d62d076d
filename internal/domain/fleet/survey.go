package fleet

import "time"

// SurveyDeposit is one good present in a survey's deposit list. Goods repeat
// proportionally to their expected share of extraction yield.
type SurveyDeposit struct {
	Symbol string `json:"symbol"`
}

// Survey is a mining survey of an asteroid. Signature is the API handle the
// extraction endpoint expects; surveys expire and become invalid once the
// deposit is exhausted.
type Survey struct {
	Signature  string          `json:"signature"`
	Symbol     string          `json:"symbol"`
	Deposits   []SurveyDeposit `json:"deposits"`
	Expiration time.Time       `json:"expiration"`
	Size       string          `json:"size"`
}

// YieldFraction is the share of the survey's deposits matching the good.
func (s *Survey) YieldFraction(good string) float64 {
	if len(s.Deposits) == 0 {
		return 0
	}
	var matching int
	for _, d := range s.Deposits {
		if d.Symbol == good {
			matching++
		}
	}
	return float64(matching) / float64(len(s.Deposits))
}

// IsExpired reports whether the survey is past its expiration at t.
func (s *Survey) IsExpired(t time.Time) bool {
	return !t.Before(s.Expiration)
}
