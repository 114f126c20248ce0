package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/matcher"
	"github.com/zulandar/productif/internal/state"
)

// detailCutoff is the largest batch that gets a per-task breakdown.
const detailCutoff = 5

const planPrompt = "📅 Planifions ta journée de demain !\n\n" +
	"Écris-moi toutes les tâches que tu veux faire, en vrac. Pour chacune, précise si tu peux :\n" +
	"• sa priorité (urgent, important, quand j'ai le temps)\n" +
	"• sa durée estimée\n" +
	"• une échéance éventuelle\n\n" +
	"Je m'occupe d'organiser tout ça 🧠"

const analyzingAck = "🧠 J'analyse tes tâches et je prépare ta journée, un instant..."

// Planner runs the two-step "plan tomorrow" conversation: prompt for a task
// dump, then hand the dump to the backend's analysis.
type Planner struct {
	backend   Backend
	states    state.Store
	messenger Messenger
	match     *matcher.Matcher
	log       *zap.Logger
}

// Start begins the flow when text is a plan-tomorrow command.
func (p *Planner) Start(ctx context.Context, u User, text string) (Result, bool) {
	if !p.match.Match(text, matcher.CmdPlanTomorrow).Matches {
		return Result{}, false
	}
	if err := p.states.Set(ctx, u.ID, state.AwaitingTasksList, nil); err != nil {
		p.log.Warn("set planning state", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}, true
	}
	return Result{Handled: true, Response: planPrompt, ActionExecuted: ActionPlanPrompt}, true
}

// ProcessTasksList treats text as the user's task dump. The planning state
// is cleared whether or not the analysis succeeds.
func (p *Planner) ProcessTasksList(ctx context.Context, u User, text string) Result {
	defer func() {
		if err := p.states.Clear(ctx, u.ID); err != nil {
			p.log.Warn("clear planning state", zap.String("user", u.ID), zap.Error(err))
		}
	}()

	if p.messenger != nil && u.Address != "" {
		if err := p.messenger.Send(ctx, u.Address, analyzingAck); err != nil {
			p.log.Warn("send analyzing ack", zap.String("user", u.ID), zap.Error(err))
		}
	}

	res, err := p.backend.BatchCreate(ctx, u.Token, text)
	if err != nil {
		p.log.Warn("batch create", zap.String("user", u.ID), zap.Error(err))
		return Result{
			Handled: true,
			Response: "❌ Je n'ai pas réussi à analyser ta liste. " +
				"Réessaie en écrivant « planifier demain ».",
			ActionExecuted: ActionError,
		}
	}
	return Result{Handled: true, Response: renderPlan(res), ActionExecuted: ActionProcessTasksList}
}

func renderPlan(res backend.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %d %s pour demain !", res.TasksCreated, plural(res.TasksCreated, "tâche créée", "tâches créées"))
	if s := strings.TrimSpace(res.Analysis.Summary); s != "" {
		fmt.Fprintf(&b, "\n\n💡 %s", s)
	}
	if s := strings.TrimSpace(res.Analysis.PlanSummary); s != "" {
		fmt.Fprintf(&b, "\n\n%s", s)
	}
	if res.Analysis.TotalEstimatedTime > 0 {
		fmt.Fprintf(&b, "\n\n⏱️ Temps total estimé : %s", formatMinutes(res.Analysis.TotalEstimatedTime))
	}

	if res.TasksCreated > detailCutoff || len(res.Tasks) == 0 {
		return b.String()
	}
	b.WriteString("\n\n📋 Détail :")
	for _, t := range res.Tasks {
		fmt.Fprintf(&b, "\n%s %s", emojiForPriority(t.Priority), t.Title)
		var meta []string
		if t.ScheduledTime != "" {
			meta = append(meta, "⏰ "+t.ScheduledTime)
		}
		if t.EstimatedDuration > 0 {
			meta = append(meta, "⌛ "+formatMinutes(t.EstimatedDuration))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, "\n   %s", strings.Join(meta, " · "))
		}
		if r := strings.TrimSpace(t.Reasoning); r != "" {
			fmt.Fprintf(&b, "\n   💭 %s", r)
		}
	}
	return b.String()
}
