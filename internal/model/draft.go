package model

// Material is the learning content a quiz is generated from.
type Material struct {
	Ref        string   `json:"ref"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Takeaways  []string `json:"takeaways"`
	Focus      string   `json:"focus"`
	Transcript string   `json:"transcript"`
}

// QuestionRequest asks the generative capability for question drafts.
type QuestionRequest struct {
	Material Material
	NumMCQ   int
	NumShort int
}

// QuestionDraft is an unvalidated question proposed by the generative capability.
type QuestionDraft struct {
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Topic          string       `json:"topic"`
	Options        []string     `json:"options"`
	CorrectAnswer  string       `json:"correct_answer"`
	RubricKeywords []string     `json:"rubric_keywords"`
}

// ReportRequest carries the graded attempt context for report drafting.
type ReportRequest struct {
	SourceRef    string
	ScorePercent float64
	Tier         Tier
	Items        []ReportItem
}

// ReportItem is one graded question as seen by the report drafter.
type ReportItem struct {
	QuestionID    int
	Type          QuestionType
	Prompt        string
	Topic         string
	StudentAnswer string
	PointsEarned  float64
	MaxPoints     int
	Feedback      string
}

// ReportDraft is an unvalidated report proposed by the generative capability.
type ReportDraft struct {
	Summary          string             `json:"summary"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	DetailedFeedback []DetailedFeedback `json:"detailed_feedback"`
	MicroExercises   []MicroExercise    `json:"micro_exercises"`
}
