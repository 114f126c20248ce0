package agent

import (
	"context"
	"fmt"

	"github.com/zulandar/productif/internal/intent"
)

// handlerFunc handles one action category.
type handlerFunc func(ctx context.Context, in intent.Intent, u User, text string) Result

// Router maps every action category to its handler.
type Router struct {
	agent    *Agent
	handlers map[intent.Category]handlerFunc
}

const clarifyReply = "🤔 Je n'ai pas bien compris. Tu peux par exemple écrire :\n" +
	"• « ajoute réviser les maths »\n" +
	"• « mes tâches »\n" +
	"• « je commence à travailler »\n" +
	"• « planifier demain »"

func newRouter(a *Agent) (*Router, error) {
	r := &Router{agent: a}
	r.handlers = map[intent.Category]handlerFunc{
		intent.CreateTask:    a.createTask,
		intent.ListTasks:     a.listTasks,
		intent.CompleteTask:  a.completeTask,
		intent.PlanTomorrow:  a.planTomorrow,
		intent.StartDeepWork: a.startDeepWork,
		intent.TrackHabit:    a.trackHabit,
		intent.StatusCheck:   a.statusCheck,
		intent.Statistics:    a.statistics,
		intent.HelpRequest:   a.askHelp,
		intent.HowTo:         a.askHelp,
		intent.AdviceRequest: a.askHelp,
		intent.Explanation:   a.askHelp,
	}
	if err := r.checkExhaustive(); err != nil {
		return nil, err
	}
	return r, nil
}

// checkExhaustive fails when an action category has no handler, so a new
// category cannot silently fall through to the clarification reply.
func (r *Router) checkExhaustive() error {
	for _, c := range intent.ActionCategories() {
		if r.handlers[c] == nil {
			return fmt.Errorf("agent: router: no handler for category %q", c)
		}
	}
	return nil
}

func (r *Router) route(ctx context.Context, in intent.Intent, u User, text string) Result {
	if !in.RequiresAction {
		return Result{Handled: true, Response: in.SuggestedResponse, ActionExecuted: ActionConversation}
	}
	if h, ok := r.handlers[in.Category]; ok {
		return h(ctx, in, u, text)
	}
	// Unclassified messages may still be questions the help handler answers.
	if res, ok := r.agent.help.Handle(ctx, u, text, nil); ok {
		return res
	}
	return Result{Handled: false, Response: clarifyReply}
}

func (a *Agent) planTomorrow(ctx context.Context, _ intent.Intent, u User, text string) Result {
	if res, ok := a.planner.Start(ctx, u, text); ok {
		return res
	}
	return Result{
		Handled:        true,
		Response:       "📅 Tu veux organiser ta journée de demain ? Écris « planifier demain » et je te guide pas à pas.",
		ActionExecuted: ActionPlanInvite,
	}
}

func (a *Agent) startDeepWork(ctx context.Context, _ intent.Intent, u User, text string) Result {
	if res, ok := a.deepWork.Handle(ctx, u, text); ok {
		return res
	}
	return Result{
		Handled:        true,
		Response:       "🎯 Prêt pour une session Deep Work ? Écris « je commence à travailler » et je lance le chrono.",
		ActionExecuted: ActionDeepWorkInvite,
	}
}

// askHelp serves help_request, how_to, advice_request and explanation alike;
// the distinction the classifier made is not used.
func (a *Agent) askHelp(ctx context.Context, _ intent.Intent, u User, text string) Result {
	if res, ok := a.help.Handle(ctx, u, text, nil); ok {
		return res
	}
	return Result{Handled: false, Response: clarifyReply}
}
