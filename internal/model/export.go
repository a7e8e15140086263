package model

import "time"

// AttemptExport is the top-level JSON structure for attempt export.
type AttemptExport struct {
	ExportedAt  time.Time       `json:"exported_at"`
	NumAttempts int             `json:"num_attempts"`
	Results     []AttemptResult `json:"results"`
}

// AttemptResult flattens one attempt for export.
type AttemptResult struct {
	AttemptID      string           `json:"attempt_id"`
	QuizID         string           `json:"quiz_id"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	PointsEarned   float64          `json:"points_earned"`
	PointsPossible int              `json:"points_possible"`
	ScorePercent   float64          `json:"score_percent"`
	Tier           Tier             `json:"tier"`
	Questions      []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID    int          `json:"question_id"`
	Type          QuestionType `json:"type"`
	StudentAnswer string       `json:"student_answer"`
	PointsEarned  float64      `json:"points_earned"`
	MaxPoints     int          `json:"max_points"`
	Feedback      string       `json:"feedback"`
}

// NewAttemptResult converts a stored attempt into its export form.
func NewAttemptResult(a Attempt) AttemptResult {
	res := AttemptResult{
		AttemptID:      a.ID,
		QuizID:         a.QuizID,
		SubmittedAt:    a.SubmittedAt,
		PointsEarned:   a.PointsEarned,
		PointsPossible: a.PointsPossible,
		ScorePercent:   a.ScorePercent,
		Tier:           a.Report.Tier,
		Questions:      make([]QuestionResult, 0, len(a.QuestionFeedbacks)),
	}
	for _, fb := range a.QuestionFeedbacks {
		res.Questions = append(res.Questions, QuestionResult{
			QuestionID:    fb.QuestionID,
			Type:          fb.Type,
			StudentAnswer: fb.StudentAnswer,
			PointsEarned:  fb.PointsEarned,
			MaxPoints:     fb.MaxPoints,
			Feedback:      fb.Feedback,
		})
	}
	return res
}
