package notify

import (
	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/pkg/dueldto"
)

func PlayerViews(s *duel.Session) []dueldto.PlayerView {
	out := make([]dueldto.PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, dueldto.PlayerView{UserID: p.UserID, DisplayName: p.DisplayName, Score: p.Score})
	}
	return out
}

// RoundViewOf strips the correct answer.
func RoundViewOf(r *duel.Round) dueldto.RoundView {
	opts := make([]string, len(r.Options))
	copy(opts, r.Options)
	return dueldto.RoundView{Index: r.Index, Prompt: r.Prompt, Options: opts, TimeLimit: r.TimeLimit}
}

func SessionFormedView(s *duel.Session) dueldto.SessionFormed {
	return dueldto.SessionFormed{
		SessionID:    s.ID,
		Players:      PlayerViews(s),
		MaxRounds:    s.MaxRounds,
		CurrentRound: s.CurrentRound,
	}
}

func SessionFinishedView(res *duel.Results) dueldto.SessionFinished {
	standings := make([]dueldto.Standing, 0, len(res.Standings))
	for _, st := range res.Standings {
		standings = append(standings, dueldto.Standing{
			UserID:         st.UserID,
			DisplayName:    st.DisplayName,
			Score:          st.Score,
			CorrectAnswers: st.CorrectAnswers,
			TotalAnswers:   st.TotalAnswers,
		})
	}
	return dueldto.SessionFinished{
		SessionID:       res.SessionID,
		Standings:       standings,
		Winner:          res.Winner,
		IsTie:           res.IsTie,
		TotalRounds:     res.TotalRounds,
		CompletedRounds: res.CompletedRounds,
	}
}
