package quiz

import "github.com/pavelanni/ytlearner/internal/model"

// ToPublic projects a stored quiz onto its client-facing form. This is the
// only way quiz content leaves the engine.
func ToPublic(q *model.Quiz) model.PublicQuiz {
	pub := model.PublicQuiz{
		ID:          q.ID,
		SourceRef:   q.SourceRef,
		Questions:   make([]model.PublicQuestion, 0, len(q.Questions)),
		TotalPoints: q.TotalPoints,
	}
	for _, qs := range q.Questions {
		pq := model.PublicQuestion{
			ID:        qs.ID,
			Type:      qs.Type,
			Prompt:    qs.Prompt,
			Topic:     qs.Topic,
			MaxPoints: qs.MaxPoints,
		}
		if qs.Type == model.QuestionMCQ && qs.MCQ != nil {
			pq.Options = append([]string(nil), qs.MCQ.Options...)
		}
		pub.Questions = append(pub.Questions, pq)
	}
	return pub
}
