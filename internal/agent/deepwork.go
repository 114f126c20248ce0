package agent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/matcher"
	"github.com/zulandar/productif/internal/state"
)

const (
	minSessionMinutes = 5
	maxSessionMinutes = 240
	// graceMinutes is how far past the plan a session may run and still
	// count as on time.
	graceMinutes = 2
	historySize  = 5
	sessionType  = "focus"
)

var firstIntRe = regexp.MustCompile(`\d+`)

// DeepWork drives focus sessions. The session itself lives in the backend;
// the only local step is waiting for the duration, kept in the state store.
type DeepWork struct {
	backend Backend
	states  state.Store
	match   *matcher.Matcher
	now     func() time.Time
	log     *zap.Logger
}

func wasOnTime(actual, planned int) bool { return actual <= planned+graceMinutes }

// actualMinutes is the wall-clock length of a finished session, falling back
// to the recorded elapsed time when the end is unknown.
func actualMinutes(s backend.DeepWorkSession) int {
	if s.EndTime != nil && !s.StartTime.IsZero() {
		return int(math.Round(s.EndTime.Sub(s.StartTime).Minutes()))
	}
	return s.ElapsedMinutes
}

// isHistoryRequest uses plain substring matching rather than the matcher.
func isHistoryRequest(text string) bool {
	n := matcher.Normalize(text)
	return (strings.Contains(n, "historique") || strings.Contains(n, "sessions")) &&
		(strings.Contains(n, "deep work") || strings.Contains(n, "travail"))
}

// Handle runs a deep-work command if text is one. ok is false when the
// message is not a deep-work command.
func (d *DeepWork) Handle(ctx context.Context, u User, text string) (Result, bool) {
	if isHistoryRequest(text) {
		return d.history(ctx, u), true
	}
	id, _, ok := d.match.Best(text,
		matcher.CmdDeepWorkEnd,
		matcher.CmdDeepWorkPause,
		matcher.CmdDeepWorkResume,
		matcher.CmdDeepWorkStatus,
		matcher.CmdDeepWorkStart,
	)
	if !ok {
		return Result{}, false
	}
	switch id {
	case matcher.CmdDeepWorkStart:
		return d.start(ctx, u), true
	case matcher.CmdDeepWorkEnd:
		return d.end(ctx, u), true
	case matcher.CmdDeepWorkPause:
		return d.pause(ctx, u), true
	case matcher.CmdDeepWorkResume:
		return d.resume(ctx, u), true
	default:
		return d.status(ctx, u), true
	}
}

// current returns the user's session with the first matching status.
func (d *DeepWork) current(ctx context.Context, u User, statuses ...string) (backend.DeepWorkSession, bool, error) {
	for _, st := range statuses {
		found, err := d.backend.Sessions(ctx, u.Token, backend.SessionQuery{Status: st, Limit: 1})
		if err != nil {
			return backend.DeepWorkSession{}, false, err
		}
		if len(found) > 0 {
			return found[0], true, nil
		}
	}
	return backend.DeepWorkSession{}, false, nil
}

func (d *DeepWork) fail(u User, op string, err error) Result {
	d.log.Warn(op, zap.String("user", u.ID), zap.Error(err))
	return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
}

func (d *DeepWork) start(ctx context.Context, u User) Result {
	s, ok, err := d.current(ctx, u, backend.SessionActive, backend.SessionPaused)
	if err != nil {
		return d.fail(u, "check running session", err)
	}
	if ok {
		var msg string
		if s.Status == backend.SessionPaused {
			msg = fmt.Sprintf("⏸️ Tu as déjà une session en pause : %d min sur %d min.\n\n"+
				"Écris « reprendre deep work » pour la reprendre ou « terminer deep work » pour la clôturer.",
				s.ElapsedMinutes, s.PlannedDuration)
		} else {
			msg = fmt.Sprintf("⏱️ Tu as déjà une session Deep Work en cours : %d min sur %d min.\n\n"+
				"Écris « terminer deep work » pour la terminer ou « pause » pour faire une pause.",
				s.ElapsedMinutes, s.PlannedDuration)
		}
		return Result{Handled: true, Response: msg, ActionExecuted: ActionDeepWorkBusy}
	}

	if err := d.states.Set(ctx, u.ID, state.AwaitingDeepWorkDuration, nil); err != nil {
		return d.fail(u, "set duration state", err)
	}
	return Result{
		Handled: true,
		Response: "🎯 C'est parti pour une session Deep Work !\n\n" +
			fmt.Sprintf("Combien de minutes veux-tu travailler ? (entre %d et %d)\n", minSessionMinutes, maxSessionMinutes) +
			"Exemples : 25, 50, 90",
		ActionExecuted: ActionDeepWorkPrompt,
	}
}

// HandleDuration consumes the reply to the duration prompt. The waiting
// state is cleared whatever the outcome; an invalid reply requires a new
// start command.
func (d *DeepWork) HandleDuration(ctx context.Context, u User, text string) Result {
	if err := d.states.Clear(ctx, u.ID); err != nil {
		d.log.Warn("clear duration state", zap.String("user", u.ID), zap.Error(err))
	}

	raw := firstIntRe.FindString(text)
	if raw == "" {
		return Result{
			Handled: true,
			Response: "❓ Je n'ai pas trouvé de durée dans ton message. " +
				"Relance avec « je commence à travailler » puis indique un nombre de minutes.",
			ActionExecuted: ActionDeepWorkDuration,
		}
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		minutes = math.MaxInt
	}
	switch {
	case minutes < minSessionMinutes:
		return Result{
			Handled: true,
			Response: fmt.Sprintf("⚠️ Une session doit durer au moins %d minutes. "+
				"Relance avec « je commence à travailler » et choisis entre %d et %d minutes.",
				minSessionMinutes, minSessionMinutes, maxSessionMinutes),
			ActionExecuted: ActionDeepWorkDuration,
		}
	case minutes > maxSessionMinutes:
		return Result{
			Handled: true,
			Response: fmt.Sprintf("⚠️ %d minutes (4h) maximum pour rester efficace. "+
				"Relance avec « je commence à travailler » et choisis entre %d et %d minutes.",
				maxSessionMinutes, minSessionMinutes, maxSessionMinutes),
			ActionExecuted: ActionDeepWorkDuration,
		}
	}

	now := d.now()
	if _, err := d.backend.CreateSession(ctx, u.Token, backend.NewSession{PlannedDuration: minutes, Type: sessionType}); err != nil {
		d.log.Warn("create session", zap.String("user", u.ID), zap.Int("minutes", minutes), zap.Error(err))
		return Result{
			Handled:        true,
			Response:       "❌ Un problème technique m'empêche de lancer ta session. Réessaie dans quelques instants.",
			ActionExecuted: ActionError,
		}
	}
	end := now.Add(time.Duration(minutes) * time.Minute)
	return Result{
		Handled: true,
		Response: fmt.Sprintf("🚀 Session Deep Work lancée pour %s !\n⏰ Fin prévue à %s\n\n"+
			"Coupe tes notifications et concentre-toi. Écris « pause » ou « terminer deep work » quand tu veux.",
			formatMinutes(minutes), formatClock(end)),
		ActionExecuted: ActionDeepWorkStart,
	}
}

func (d *DeepWork) end(ctx context.Context, u User) Result {
	s, ok, err := d.current(ctx, u, backend.SessionActive, backend.SessionPaused)
	if err != nil {
		return d.fail(u, "find session to end", err)
	}
	if !ok {
		return noSessionReply(ActionDeepWorkEnd)
	}
	done, err := d.backend.UpdateSession(ctx, u.Token, s.ID, backend.ActionComplete)
	if err != nil {
		return d.fail(u, "complete session", err)
	}

	actual := done.ElapsedMinutes
	if actual == 0 && !s.StartTime.IsZero() {
		actual = int(math.Round(d.now().Sub(s.StartTime).Minutes()))
	}
	planned := s.PlannedDuration
	var msg string
	switch {
	case !wasOnTime(actual, planned):
		msg = fmt.Sprintf("⏱️ Session terminée : %s de travail, %d min de plus que les %d min prévues. "+
			"Pense à faire une vraie pause !", formatMinutes(actual), actual-planned, planned)
	case actual < planned:
		msg = fmt.Sprintf("✅ Session terminée : %s de concentration, %d min avant l'objectif de %d min. Bien joué !",
			formatMinutes(actual), planned-actual, planned)
	case actual > planned:
		msg = fmt.Sprintf("🎉 Session terminée dans les temps : %s sur %d min prévues (%d min de rab, ça compte). Bravo !",
			formatMinutes(actual), planned, actual-planned)
	default:
		msg = fmt.Sprintf("🎉 Session terminée pile dans les temps : %s sur %d min prévues. Bravo !",
			formatMinutes(actual), planned)
	}
	return Result{Handled: true, Response: msg, ActionExecuted: ActionDeepWorkEnd}
}

func noSessionReply(action string) Result {
	return Result{
		Handled:        true,
		Response:       "🤷 Aucune session Deep Work en cours. Écris « je commence à travailler » pour en lancer une.",
		ActionExecuted: action,
	}
}

func (d *DeepWork) pause(ctx context.Context, u User) Result {
	s, ok, err := d.current(ctx, u, backend.SessionActive)
	if err != nil {
		return d.fail(u, "find session to pause", err)
	}
	if !ok {
		return noSessionReply(ActionDeepWorkPause)
	}
	if _, err := d.backend.UpdateSession(ctx, u.Token, s.ID, backend.ActionPause); err != nil {
		return d.fail(u, "pause session", err)
	}
	return Result{
		Handled: true,
		Response: fmt.Sprintf("⏸️ Session en pause (%d/%d min). Écris « reprendre deep work » quand tu es prêt.",
			s.ElapsedMinutes, s.PlannedDuration),
		ActionExecuted: ActionDeepWorkPause,
	}
}

func (d *DeepWork) resume(ctx context.Context, u User) Result {
	s, ok, err := d.current(ctx, u, backend.SessionPaused)
	if err != nil {
		return d.fail(u, "find session to resume", err)
	}
	if !ok {
		return Result{
			Handled:        true,
			Response:       "🤷 Aucune session en pause à reprendre.",
			ActionExecuted: ActionDeepWorkResume,
		}
	}
	resumed, err := d.backend.UpdateSession(ctx, u.Token, s.ID, backend.ActionResume)
	if err != nil {
		return d.fail(u, "resume session", err)
	}
	if resumed.PlannedDuration == 0 {
		resumed = s
	}
	remaining := max(0, resumed.PlannedDuration-resumed.ElapsedMinutes)
	return Result{
		Handled:        true,
		Response:       fmt.Sprintf("▶️ C'est reparti ! Il te reste %s.", formatMinutes(remaining)),
		ActionExecuted: ActionDeepWorkResume,
	}
}

func (d *DeepWork) status(ctx context.Context, u User) Result {
	s, ok, err := d.current(ctx, u, backend.SessionActive, backend.SessionPaused)
	if err != nil {
		return d.fail(u, "find session status", err)
	}
	if !ok {
		return noSessionReply(ActionDeepWorkStatus)
	}
	remaining := s.PlannedDuration - s.ElapsedMinutes
	progress := 0
	if s.PlannedDuration > 0 {
		progress = int(math.Round(float64(s.ElapsedMinutes) / float64(s.PlannedDuration) * 100))
	}
	var msg string
	if remaining > 0 {
		msg = fmt.Sprintf("⏱️ Session en cours : %d/%d min (%d%%)\n⏳ Encore %s, tu tiens le bon bout !",
			s.ElapsedMinutes, s.PlannedDuration, progress, formatMinutes(remaining))
	} else {
		msg = fmt.Sprintf("⏰ Temps écoulé : %d/%d min (%d%%). Écris « terminer deep work » pour clôturer la session.",
			s.ElapsedMinutes, s.PlannedDuration, progress)
	}
	return Result{Handled: true, Response: msg, ActionExecuted: ActionDeepWorkStatus}
}

func (d *DeepWork) history(ctx context.Context, u User) Result {
	sessions, err := d.backend.Sessions(ctx, u.Token, backend.SessionQuery{Status: backend.SessionCompleted, Limit: historySize})
	if err != nil {
		return d.fail(u, "session history", err)
	}
	if len(sessions) == 0 {
		return Result{
			Handled:        true,
			Response:       "📭 Aucune session Deep Work terminée pour l'instant. Écris « je commence à travailler » pour démarrer.",
			ActionExecuted: ActionDeepWorkHistory,
		}
	}
	if len(sessions) > historySize {
		sessions = sessions[:historySize]
	}

	loc := d.now().Location()
	var b strings.Builder
	fmt.Fprintf(&b, "📚 Tes %d dernières sessions :", len(sessions))
	total := 0
	for _, s := range sessions {
		actual := actualMinutes(s)
		total += actual
		mark := "✅"
		if !wasOnTime(actual, s.PlannedDuration) {
			mark = "⚠️"
		}
		start := s.StartTime.In(loc)
		fmt.Fprintf(&b, "\n%s %s %s · %d/%d min", mark, formatDay(start), formatClock(start), actual, s.PlannedDuration)
	}
	avg := int(math.Round(float64(total) / float64(len(sessions))))
	fmt.Fprintf(&b, "\n\n⏱️ Total : %s · Moyenne : %d min par session", formatMinutes(total), avg)
	return Result{Handled: true, Response: b.String(), ActionExecuted: ActionDeepWorkHistory}
}
