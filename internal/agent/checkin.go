package agent

import (
	"context"
	"fmt"

	"github.com/zulandar/productif/internal/intent"
)

// CheckIn is a scheduled, agent-initiated message.
type CheckIn string

const (
	MorningCheckIn CheckIn = "morning"
	EveningCheckIn CheckIn = "evening"
)

// CheckIn builds the proactive message of kind k for u. The morning recap
// reuses the status report; the evening message invites the user to plan
// tomorrow without entering the planning flow.
func (a *Agent) CheckIn(ctx context.Context, u User, k CheckIn) (Result, error) {
	switch k {
	case MorningCheckIn:
		res := a.statusCheck(ctx, intent.Intent{Category: intent.StatusCheck}, u, "")
		if res.ActionExecuted == ActionError {
			return res, fmt.Errorf("agent: morning check-in for %s failed", u.ID)
		}
		res.Response = "☀️ Bonjour ! " + res.Response
		return res, nil
	case EveningCheckIn:
		return Result{
			Handled:        true,
			Response:       "🌙 Ta journée touche à sa fin. Envie de préparer demain ? Écris « planifier demain » et on s'y met ensemble.",
			ActionExecuted: ActionPlanInvite,
		}, nil
	}
	return Result{}, fmt.Errorf("agent: unknown check-in %q", k)
}
