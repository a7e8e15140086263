package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/ytlearner/internal/i18n"
	"github.com/pavelanni/ytlearner/internal/model"
)

var tierLabels = map[model.Tier]string{
	model.TierExcellent:  "TierExcellent",
	model.TierGood:       "TierGood",
	model.TierNeedsWork:  "TierNeedsWork",
	model.TierStruggling: "TierStruggling",
}

// ReportPage renders the learning report of an attempt as a standalone page.
func ReportPage(a model.Attempt) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx}
		rep := a.Report

		p.raw("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
		p.text(i18n.T(ctx, "ReportTitle") + " - " + i18n.T(ctx, "AppTitle"))
		p.raw("</title></head><body><main class=\"report\">")

		p.raw("<h1>")
		p.text(i18n.T(ctx, "ReportTitle"))
		p.raw("</h1><p class=\"score\">")
		p.text(fmt.Sprintf("%s: %.2f%% (%g / %d)", i18n.T(ctx, "Score"), a.ScorePercent, a.PointsEarned, a.PointsPossible))
		p.raw("</p><p class=\"tier\">")
		p.text(i18n.T(ctx, "Tier") + ": " + i18n.T(ctx, tierLabels[rep.Tier]))
		p.raw("</p><p class=\"answered\">")
		p.text(i18n.Tp(ctx, "QuestionsAnswered", answered(a)))
		p.raw("</p><p class=\"summary\">")
		p.text(rep.Summary)
		p.raw("</p>")

		p.list("Strengths", rep.Strengths)
		p.list("Weaknesses", rep.Weaknesses)

		details := make([]string, 0, len(rep.DetailedFeedback))
		for _, d := range rep.DetailedFeedback {
			details = append(details, d.Text)
		}
		p.list("QuestionFeedback", details)

		p.raw("<section><h2>")
		p.text(i18n.T(ctx, "MicroExercises"))
		p.raw("</h2>")
		if len(rep.MicroExercises) == 0 {
			p.empty()
		} else {
			p.raw("<ol>")
			for _, ex := range rep.MicroExercises {
				p.raw("<li>")
				p.text(ex.Task)
				p.raw("<br><small>")
				p.text(i18n.T(ctx, "Purpose") + ": " + ex.Purpose)
				p.raw("</small></li>")
			}
			p.raw("</ol>")
		}
		p.raw("</section></main></body></html>")

		_, err := io.WriteString(w, p.b.String())
		return err
	})
}

func answered(a model.Attempt) int {
	n := 0
	for _, f := range a.QuestionFeedbacks {
		if f.Answered {
			n++
		}
	}
	return n
}

type page struct {
	ctx context.Context
	b   strings.Builder
}

func (p *page) raw(s string) { p.b.WriteString(s) }

func (p *page) text(s string) { p.b.WriteString(templ.EscapeString(s)) }

func (p *page) empty() {
	p.raw("<p class=\"empty\">")
	p.text(i18n.T(p.ctx, "NothingToShow"))
	p.raw("</p>")
}

func (p *page) list(titleID string, items []string) {
	p.raw("<section><h2>")
	p.text(i18n.T(p.ctx, titleID))
	p.raw("</h2>")
	if len(items) == 0 {
		p.empty()
		p.raw("</section>")
		return
	}
	p.raw("<ul>")
	for _, it := range items {
		p.raw("<li>")
		p.text(it)
		p.raw("</li>")
	}
	p.raw("</ul></section>")
}
