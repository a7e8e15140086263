package model

import "time"

// QuestionType discriminates the question variants.
type QuestionType string

const (
	// QuestionMCQ is a multiple-choice question.
	QuestionMCQ QuestionType = "mcq"
	// QuestionShort is a free-text short-answer question.
	QuestionShort QuestionType = "short"
)

// Question is a quiz question. Exactly one of MCQ or Short is set, matching Type.
type Question struct {
	ID        int          `json:"id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	MaxPoints int          `json:"max_points"`
	Topic     string       `json:"topic,omitempty"`
	MCQ       *MCQ         `json:"mcq,omitempty"`
	Short     *ShortAnswer `json:"short,omitempty"`
}

// MCQ holds the multiple-choice variant. CorrectAnswer is secret.
type MCQ struct {
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// ShortAnswer holds the short-answer variant. All fields are secret.
type ShortAnswer struct {
	CorrectAnswer   string    `json:"correct_answer"`
	AnswerEmbedding []float64 `json:"answer_embedding"`
	RubricKeywords  []string  `json:"rubric_keywords"`
}

// Generation paths recorded on quizzes and reports.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Quiz is the full stored quiz, secrets included. It never leaves the process
// except through the store.
type Quiz struct {
	ID          string     `json:"quiz_id"`
	SourceRef   string     `json:"source_ref"`
	NumMCQ      int        `json:"num_mcq"`
	NumShort    int        `json:"num_short"`
	Questions   []Question `json:"questions"`
	TotalPoints int        `json:"total_points"`
	Generator   string     `json:"generator"`
	// EmbeddingModel names the embedder that produced the reference
	// answer embeddings.
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Question returns the question with the given id, or nil.
func (q *Quiz) Question(id int) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// PublicQuiz is the client-facing projection of a quiz.
type PublicQuiz struct {
	ID          string           `json:"quiz_id"`
	SourceRef   string           `json:"source_ref"`
	Questions   []PublicQuestion `json:"questions"`
	TotalPoints int              `json:"total_points"`
}

// PublicQuestion carries no secret fields.
type PublicQuestion struct {
	ID        int          `json:"id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Topic     string       `json:"topic,omitempty"`
	Options   []string     `json:"options,omitempty"`
	MaxPoints int          `json:"max_points"`
}

// Answer is a student's answer to one question.
type Answer struct {
	QuestionID int    `json:"question_id" validate:"min=0"`
	Answer     string `json:"answer" validate:"max=10000"`
}

// QuestionFeedback is the graded result for one question.
type QuestionFeedback struct {
	QuestionID    int          `json:"question_id"`
	Type          QuestionType `json:"type"`
	StudentAnswer string       `json:"student_answer"`
	Answered      bool         `json:"answered"`
	PointsEarned  float64      `json:"points_earned"`
	MaxPoints     int          `json:"max_points"`
	Similarity    *float64     `json:"similarity,omitempty"`
	Feedback      string       `json:"feedback"`
}

// Attempt is one graded submission. Immutable once stored.
type Attempt struct {
	ID                string             `json:"attempt_id"`
	QuizID            string             `json:"quiz_id"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	PointsEarned      float64            `json:"points_earned"`
	PointsPossible    int                `json:"points_possible"`
	ScorePercent      float64            `json:"score_percent"`
	QuestionFeedbacks []QuestionFeedback `json:"question_feedbacks"`
	Report            LearningReport     `json:"report"`
}

// Tier is the performance band of a report.
type Tier string

const (
	TierExcellent  Tier = "excellent"
	TierGood       Tier = "good"
	TierNeedsWork  Tier = "needs_work"
	TierStruggling Tier = "struggling"
)

// LearningReport summarizes an attempt for the student.
type LearningReport struct {
	OverallPercent   float64            `json:"overall_percent"`
	Tier             Tier               `json:"tier"`
	Summary          string             `json:"summary"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	DetailedFeedback []DetailedFeedback `json:"detailed_feedback"`
	MicroExercises   []MicroExercise    `json:"micro_exercises"`
	Source           string             `json:"source"`
}

// DetailedFeedback is report commentary on a single question.
type DetailedFeedback struct {
	QuestionID int    `json:"question_id"`
	Text       string `json:"text"`
}

// MicroExercise is a short practice task targeting a weakness.
type MicroExercise struct {
	Task    string `json:"task"`
	Purpose string `json:"purpose"`
}
