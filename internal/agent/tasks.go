package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/intent"
	"github.com/zulandar/productif/internal/matcher"
)

const (
	maxTitleLen   = 100
	maxListed     = 10
	priorityHigh  = 3
	priorityBasic = 2
)

// Outcome is the result of creating one task in a batch.
type Outcome struct {
	Title string
	Task  backend.Task
	Err   error
}

// BatchSummary splits a batch into created and failed outcomes, each in
// submission order. Replies name tasks by their submitted title.
type BatchSummary struct {
	Successes []Outcome
	Failures  []Outcome
}

func summarize(outcomes []Outcome) BatchSummary {
	var s BatchSummary
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failures = append(s.Failures, o)
			continue
		}
		s.Successes = append(s.Successes, o)
	}
	return s
}

// resolveDueDate understands "demain" and "aujourd'hui" only; anything else
// is left unset.
func resolveDueDate(word string, now time.Time) (time.Time, bool) {
	w := strings.ToLower(word)
	switch {
	case strings.Contains(w, "demain"):
		return startOfDay(now).AddDate(0, 0, 1), true
	case strings.Contains(w, "aujourd'hui"), strings.Contains(w, "aujourd’hui"), strings.Contains(w, "aujourdhui"):
		return startOfDay(now), true
	}
	return time.Time{}, false
}

func (a *Agent) createTask(ctx context.Context, in intent.Intent, u User, text string) Result {
	var titles []string
	for _, t := range in.Entities.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		if t := truncate(strings.TrimSpace(text), maxTitleLen); t != "" {
			titles = []string{t}
		}
	}
	if len(titles) == 0 {
		return Result{
			Handled:        true,
			Response:       "✏️ Quel est le titre de la tâche ? Par exemple : « ajoute réviser les maths ».",
			ActionExecuted: ActionCreateTask,
		}
	}

	priority := priorityBasic
	if in.Parameters.Urgency == intent.UrgencyHigh {
		priority = priorityHigh
	}
	var due string
	var dueLabel string
	if len(in.Entities.Dates) > 0 {
		if d, ok := resolveDueDate(in.Entities.Dates[0], a.localNow()); ok {
			due = d.Format(backend.DateLayout)
			dueLabel = formatDay(d)
		}
	}

	outcomes := make([]Outcome, 0, len(titles))
	for _, title := range titles {
		task, err := a.backend.CreateTask(ctx, u.Token, backend.NewTask{
			Title:    title,
			Priority: priority,
			DueDate:  due,
			UserID:   u.ID,
		})
		if err != nil {
			a.log.Warn("create task", zap.String("user", u.ID), zap.String("title", title), zap.Error(err))
		}
		outcomes = append(outcomes, Outcome{Title: title, Task: task, Err: err})
	}
	return Result{
		Handled:        true,
		Response:       renderBatch(summarize(outcomes), titles, priority, dueLabel),
		ActionExecuted: ActionCreateTask,
	}
}

func renderBatch(s BatchSummary, titles []string, priority int, dueLabel string) string {
	if len(s.Successes) == 0 {
		return "❌ Je n'ai pas réussi à créer " + plural(len(titles), "ta tâche", "tes tâches") +
			". Réessaie dans quelques instants."
	}

	var b strings.Builder
	if len(titles) == 1 {
		fmt.Fprintf(&b, "✅ Tâche créée : %s %s", emojiForPriority(priority), s.Successes[0].Title)
	} else {
		fmt.Fprintf(&b, "✅ %d %s :", len(s.Successes), plural(len(s.Successes), "tâche créée", "tâches créées"))
		for i, o := range s.Successes {
			fmt.Fprintf(&b, "\n%d. %s %s", i+1, emojiForPriority(priority), o.Title)
		}
	}
	if dueLabel != "" {
		fmt.Fprintf(&b, "\n📅 Échéance : %s", dueLabel)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "\n\n⚠️ %d %s :", len(s.Failures), plural(len(s.Failures), "tâche n'a pas pu être créée", "tâches n'ont pas pu être créées"))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "\n• %s", f.Title)
		}
		b.WriteString("\nRéessaie de les ajouter dans un instant.")
	}
	return b.String()
}

func (a *Agent) listTasks(ctx context.Context, in intent.Intent, u User, _ string) Result {
	day := startOfDay(a.localNow())
	label := "aujourd'hui"
	for _, d := range in.Entities.Dates {
		if strings.Contains(strings.ToLower(d), "demain") {
			day = day.AddDate(0, 0, 1)
			label = "demain"
			break
		}
	}

	tasks, err := a.backend.TasksForDate(ctx, u.Token, day)
	if err != nil {
		a.log.Warn("list tasks", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	if len(tasks) == 0 {
		return Result{Handled: true, Response: emptyListReply(in.EmotionalContext, label), ActionExecuted: ActionListTasks}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Tes tâches pour %s (%d) :", label, len(tasks))
	for i, t := range tasks {
		if i == maxListed {
			fmt.Fprintf(&b, "\n… et %d de plus", len(tasks)-maxListed)
			break
		}
		done := ""
		if t.Completed {
			done = " ✅"
		}
		fmt.Fprintf(&b, "\n%s %s%s", emojiForPriority(t.Priority), t.Title, done)
	}
	return Result{Handled: true, Response: b.String(), ActionExecuted: ActionListTasks}
}

func emptyListReply(e intent.Emotion, label string) string {
	switch e {
	case intent.Stressed:
		return "😌 Rien de prévu pour " + label + ". Profites-en pour souffler un peu, tu l'as bien mérité."
	case intent.Tired:
		return "😴 Aucune tâche pour " + label + ". Repose-toi bien, la récupération fait partie du travail."
	case intent.Motivated:
		return "🚀 Aucune tâche pour " + label + " ! Tu as de l'énergie ? Écris « ajoute <tâche> » pour te lancer."
	}
	return "🎉 Aucune tâche prévue pour " + label + " ! Tu peux en ajouter avec « ajoute <tâche> »."
}

func (a *Agent) completeTask(ctx context.Context, in intent.Intent, u User, _ string) Result {
	var term string
	if len(in.Entities.Tasks) > 0 {
		term = strings.TrimSpace(in.Entities.Tasks[0])
	}
	if term == "" {
		return Result{
			Handled:        true,
			Response:       "❓ Quelle tâche veux-tu marquer comme terminée ? Par exemple : « marque la tâche réviser comme terminée ».",
			ActionExecuted: ActionCompleteTask,
		}
	}

	found, err := a.backend.SearchTasks(ctx, u.Token, term)
	if err != nil {
		a.log.Warn("search tasks", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	if len(found) == 0 {
		return Result{
			Handled:        true,
			Response:       fmt.Sprintf("🔍 Je n'ai trouvé aucune tâche correspondant à « %s ».", term),
			ActionExecuted: ActionCompleteTask,
		}
	}

	done := true
	task := found[0]
	if _, err := a.backend.UpdateTask(ctx, u.Token, task.ID, backend.TaskPatch{Completed: &done}); err != nil {
		a.log.Warn("complete task", zap.String("user", u.ID), zap.String("task", task.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	return Result{
		Handled:        true,
		Response:       fmt.Sprintf("✅ Bravo ! « %s » est terminée. Une de moins 💪", task.Title),
		ActionExecuted: ActionCompleteTask,
	}
}

// completionRate returns the rounded percentage of done over total.
func completionRate(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func countDone(tasks []backend.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

func (a *Agent) statusCheck(ctx context.Context, _ intent.Intent, u User, _ string) Result {
	tasks, err := a.backend.TasksForDate(ctx, u.Token, startOfDay(a.localNow()))
	if err != nil {
		a.log.Warn("status tasks", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	active, err := a.backend.Sessions(ctx, u.Token, backend.SessionQuery{Status: backend.SessionActive, Limit: 1})
	if err != nil {
		a.log.Warn("status sessions", zap.String("user", u.ID), zap.Error(err))
	}
	return Result{
		Handled:        true,
		Response:       renderStatus(countDone(tasks), len(tasks), len(active) > 0),
		ActionExecuted: ActionStatusCheck,
	}
}

func renderStatus(done, total int, sessionActive bool) string {
	rate := completionRate(done, total)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Ton point du jour :\n✅ %d/%d %s (%d%%)", done, total, plural(total, "tâche terminée", "tâches terminées"), rate)
	if sessionActive {
		b.WriteString("\n🎯 Session Deep Work en cours")
	} else {
		b.WriteString("\n💤 Aucune session Deep Work en cours")
	}
	b.WriteString("\n\n")
	switch {
	case rate >= 80:
		b.WriteString("🏆 Journée exceptionnelle, continue comme ça !")
	case rate >= 50:
		b.WriteString("💪 Bon rythme, tu as fait plus de la moitié !")
	case rate > 0:
		b.WriteString("🌱 C'est lancé. Une tâche après l'autre, tu vas y arriver.")
	default:
		b.WriteString("🚀 Rien de coché pour l'instant. Choisis une petite tâche pour démarrer !")
	}
	return b.String()
}

func (a *Agent) statistics(ctx context.Context, _ intent.Intent, u User, _ string) Result {
	now := a.localNow()
	sessions, err := a.backend.Sessions(ctx, u.Token, backend.SessionQuery{Status: backend.SessionCompleted, Limit: 50})
	if err != nil {
		a.log.Warn("statistics sessions", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	tasks, err := a.backend.TasksForDate(ctx, u.Token, startOfDay(now))
	if err != nil {
		a.log.Warn("statistics tasks", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}

	since := startOfDay(now).AddDate(0, 0, -6)
	var count, total, onTime int
	for _, s := range sessions {
		if s.StartTime.Before(since) {
			continue
		}
		actual := actualMinutes(s)
		count++
		total += actual
		if wasOnTime(actual, s.PlannedDuration) {
			onTime++
		}
	}

	var b strings.Builder
	b.WriteString("📈 Tes 7 derniers jours :")
	if count == 0 {
		b.WriteString("\n🎯 Aucune session Deep Work terminée")
	} else {
		fmt.Fprintf(&b, "\n🎯 %d %s Deep Work, %s de concentration", count, plural(count, "session", "sessions"), formatMinutes(total))
		fmt.Fprintf(&b, "\n⏱️ %d%% dans les temps", completionRate(onTime, count))
	}
	done := countDone(tasks)
	fmt.Fprintf(&b, "\n✅ Aujourd'hui : %d/%d %s (%d%%)", done, len(tasks), plural(len(tasks), "tâche", "tâches"), completionRate(done, len(tasks)))
	return Result{Handled: true, Response: b.String(), ActionExecuted: ActionStatistics}
}

func (a *Agent) trackHabit(ctx context.Context, in intent.Intent, u User, _ string) Result {
	var name string
	if len(in.Entities.Tasks) > 0 {
		name = strings.TrimSpace(in.Entities.Tasks[0])
	}
	if name == "" {
		return Result{
			Handled:        true,
			Response:       "❓ Quelle habitude veux-tu valider ? Par exemple : « habitude méditation ».",
			ActionExecuted: ActionTrackHabit,
		}
	}

	habits, err := a.backend.Habits(ctx, u.Token)
	if err != nil {
		a.log.Warn("list habits", zap.String("user", u.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	habit, ok := findHabit(habits, name)
	if !ok {
		return Result{
			Handled:        true,
			Response:       fmt.Sprintf("🔍 Je ne trouve pas d'habitude correspondant à « %s ». Crée-la d'abord dans l'application.", name),
			ActionExecuted: ActionTrackHabit,
		}
	}
	if err := a.backend.LogHabit(ctx, u.Token, habit.ID, a.localNow()); err != nil {
		a.log.Warn("log habit", zap.String("user", u.ID), zap.String("habit", habit.ID), zap.Error(err))
		return Result{Handled: true, Response: retryReply, ActionExecuted: ActionError}
	}
	return Result{
		Handled:        true,
		Response:       fmt.Sprintf("🔥 Habitude « %s » validée pour aujourd'hui. La régularité paie !", habit.Name),
		ActionExecuted: ActionTrackHabit,
	}
}

// findHabit returns the first habit whose normalized name contains the
// normalized term, or is contained in it.
func findHabit(habits []backend.Habit, term string) (backend.Habit, bool) {
	t := matcher.Normalize(term)
	if t == "" {
		return backend.Habit{}, false
	}
	for _, h := range habits {
		n := matcher.Normalize(h.Name)
		if n != "" && (strings.Contains(n, t) || strings.Contains(t, n)) {
			return h, true
		}
	}
	return backend.Habit{}, false
}
