package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	appI18n "github.com/pavelanni/ytlearner/internal/i18n"
	"github.com/pavelanni/ytlearner/internal/metrics"
	"github.com/pavelanni/ytlearner/internal/model"
)

// TierFor bands a score percentage.
func TierFor(percent float64) model.Tier {
	switch {
	case percent >= 90:
		return model.TierExcellent
	case percent >= 70:
		return model.TierGood
	case percent >= 50:
		return model.TierNeedsWork
	default:
		return model.TierStruggling
	}
}

var tierMessages = map[model.Tier]struct{ summary, stretch string }{
	model.TierExcellent:  {"ReportSummaryExcellent", "ExerciseStretchExcellent"},
	model.TierGood:       {"ReportSummaryGood", "ExerciseStretchGood"},
	model.TierNeedsWork:  {"ReportSummaryNeedsWork", "ExerciseStretchNeedsWork"},
	model.TierStruggling: {"ReportSummaryStruggling", "ExerciseStretchStruggling"},
}

// Reporter derives learning reports from graded attempts.
type Reporter struct {
	gen Generative
	cfg ReportConfig
}

// NewReporter creates a Reporter. gen may be nil.
func NewReporter(gen Generative, cfg ReportConfig) *Reporter {
	return &Reporter{gen: gen, cfg: cfg}
}

// Build always returns a well-formed report: a drafted one when the
// generative capability produces a valid draft in time, otherwise the
// deterministic fallback.
func (r *Reporter) Build(ctx context.Context, q *model.Quiz, a *model.Attempt) model.LearningReport {
	if enabled(r.gen) {
		rep, err := r.draft(ctx, q, a)
		if err == nil {
			metrics.Reports.WithLabelValues(model.SourceLLM).Inc()
			return rep
		}
		slog.Warn("report drafting failed, using fallback", "attempt_id", a.ID, "error", err)
	}
	metrics.Reports.WithLabelValues(model.SourceFallback).Inc()
	return r.Fallback(ctx, q, a)
}

func (r *Reporter) draft(ctx context.Context, q *model.Quiz, a *model.Attempt) (model.LearningReport, error) {
	tier := TierFor(a.ScorePercent)
	req := model.ReportRequest{SourceRef: q.SourceRef, ScorePercent: a.ScorePercent, Tier: tier}
	for _, fb := range a.QuestionFeedbacks {
		item := model.ReportItem{
			QuestionID:    fb.QuestionID,
			Type:          fb.Type,
			StudentAnswer: fb.StudentAnswer,
			PointsEarned:  fb.PointsEarned,
			MaxPoints:     fb.MaxPoints,
			Feedback:      fb.Feedback,
		}
		if qs := q.Question(fb.QuestionID); qs != nil {
			item.Prompt, item.Topic = qs.Prompt, qs.Topic
		}
		req.Items = append(req.Items, item)
	}

	dctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	d, err := r.gen.DraftReport(dctx, req)
	if err != nil {
		return model.LearningReport{}, err
	}
	if err := r.validateDraft(q, d); err != nil {
		return model.LearningReport{}, err
	}

	fallback := r.Fallback(ctx, q, a)
	rep := model.LearningReport{
		OverallPercent:   a.ScorePercent,
		Tier:             tier,
		Summary:          strings.TrimSpace(d.Summary),
		Strengths:        cleanList(d.Strengths),
		Weaknesses:       cleanList(d.Weaknesses),
		DetailedFeedback: alignDetails(a, d.DetailedFeedback, fallback.DetailedFeedback),
		MicroExercises:   d.MicroExercises,
		Source:           model.SourceLLM,
	}
	if rep.Summary == "" {
		rep.Summary = fallback.Summary
	}
	if len(rep.MicroExercises) == 0 {
		rep.MicroExercises = fallback.MicroExercises
	}
	return rep, nil
}

func (r *Reporter) validateDraft(q *model.Quiz, d *model.ReportDraft) error {
	if d == nil {
		return fmt.Errorf("%w: empty draft", ErrReportMalformed)
	}
	if strings.TrimSpace(d.Summary) == "" && len(cleanList(d.Strengths))+len(cleanList(d.Weaknesses)) == 0 {
		return fmt.Errorf("%w: no summary, strengths or weaknesses", ErrReportMalformed)
	}
	seen := make(map[int]bool)
	for _, df := range d.DetailedFeedback {
		if q.Question(df.QuestionID) == nil {
			return fmt.Errorf("%w: detailed feedback for unknown question %d", ErrReportMalformed, df.QuestionID)
		}
		if seen[df.QuestionID] {
			return fmt.Errorf("%w: duplicate detailed feedback for question %d", ErrReportMalformed, df.QuestionID)
		}
		seen[df.QuestionID] = true
	}
	if limit := 2 * r.cfg.MaxMicroExercises; len(d.MicroExercises) > limit {
		return fmt.Errorf("%w: %d micro exercises, at most %d allowed", ErrReportMalformed, len(d.MicroExercises), limit)
	}
	for i, ex := range d.MicroExercises {
		if strings.TrimSpace(ex.Task) == "" {
			return fmt.Errorf("%w: micro exercise %d has no task", ErrReportMalformed, i)
		}
	}
	return nil
}

// alignDetails orders drafted feedback like the attempt, filling gaps from fallback.
func alignDetails(a *model.Attempt, drafted, fallback []model.DetailedFeedback) []model.DetailedFeedback {
	byID := make(map[int]string, len(drafted))
	for _, df := range drafted {
		if t := strings.TrimSpace(df.Text); t != "" {
			byID[df.QuestionID] = t
		}
	}
	out := make([]model.DetailedFeedback, len(a.QuestionFeedbacks))
	for i, fb := range a.QuestionFeedbacks {
		text, ok := byID[fb.QuestionID]
		if !ok {
			text = fallback[i].Text
		}
		out[i] = model.DetailedFeedback{QuestionID: fb.QuestionID, Text: text}
	}
	return out
}

type topicGroup struct {
	topic   string
	prompts []string
}

type groups struct {
	order []*topicGroup
	index map[string]*topicGroup
}

func (g *groups) add(topic, prompt string) {
	if g.index == nil {
		g.index = make(map[string]*topicGroup)
	}
	grp, ok := g.index[topic]
	if !ok {
		grp = &topicGroup{topic: topic}
		g.index[topic] = grp
		g.order = append(g.order, grp)
	}
	grp.prompts = append(grp.prompts, prompt)
}

// Fallback builds a report from localized templates without any model call.
func (r *Reporter) Fallback(ctx context.Context, q *model.Quiz, a *model.Attempt) model.LearningReport {
	tier := TierFor(a.ScorePercent)
	msgs := tierMessages[tier]
	rep := model.LearningReport{
		OverallPercent: a.ScorePercent,
		Tier:           tier,
		Summary: appI18n.Td(ctx, msgs.summary, map[string]any{
			"Percent": strconv.FormatFloat(a.ScorePercent, 'f', -1, 64),
		}),
		Strengths:        []string{},
		Weaknesses:       []string{},
		DetailedFeedback: make([]model.DetailedFeedback, 0, len(a.QuestionFeedbacks)),
		MicroExercises:   []model.MicroExercise{},
		Source:           model.SourceFallback,
	}

	var strong, weak groups
	for i, fb := range a.QuestionFeedbacks {
		number := i + 1
		prompt, topic := "", ""
		if qs := q.Question(fb.QuestionID); qs != nil {
			prompt, topic = qs.Prompt, qs.Topic
		}
		if topic == "" {
			topic = appI18n.Td(ctx, "QuestionLabel", map[string]any{"Number": number})
		}

		ratio := 0.0
		if fb.MaxPoints > 0 {
			ratio = fb.PointsEarned / float64(fb.MaxPoints)
		}
		if ratio >= r.cfg.StrengthRatio {
			strong.add(topic, prompt)
		} else {
			weak.add(topic, prompt)
		}

		detailID := "ReportDetailZero"
		switch {
		case !fb.Answered:
			detailID = "ReportDetailUnanswered"
		case ratio >= 1:
			detailID = "ReportDetailFull"
		case ratio > 0:
			detailID = "ReportDetailPartial"
		}
		rep.DetailedFeedback = append(rep.DetailedFeedback, model.DetailedFeedback{
			QuestionID: fb.QuestionID,
			Text:       appI18n.Td(ctx, detailID, map[string]any{"Number": number, "Prompt": prompt}),
		})
	}

	for _, g := range strong.order {
		rep.Strengths = append(rep.Strengths, appI18n.Td(ctx, "ReportStrength", map[string]any{"Topic": g.topic}))
	}
	for _, g := range weak.order {
		rep.Weaknesses = append(rep.Weaknesses, appI18n.Td(ctx, "ReportWeakness", map[string]any{
			"Topic":   g.topic,
			"Prompts": strings.Join(g.prompts, "; "),
		}))
		if len(rep.MicroExercises) < r.cfg.MaxMicroExercises {
			rep.MicroExercises = append(rep.MicroExercises, model.MicroExercise{
				Task:    appI18n.Td(ctx, "ExerciseTask", map[string]any{"Topic": g.topic, "Prompt": g.prompts[0]}),
				Purpose: appI18n.Td(ctx, "ExercisePurpose", map[string]any{"Topic": g.topic}),
			})
		}
	}
	if len(weak.order) == 0 {
		rep.MicroExercises = append(rep.MicroExercises, model.MicroExercise{
			Task:    appI18n.T(ctx, msgs.stretch),
			Purpose: appI18n.T(ctx, "ExerciseStretchPurpose"),
		})
	}
	return rep
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
