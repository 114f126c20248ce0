// Package agent is the conversational core: it routes a user's chat message
// to task, deep-work, planning and help handlers and returns the reply.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/intent"
	"github.com/zulandar/productif/internal/llm"
	"github.com/zulandar/productif/internal/matcher"
	"github.com/zulandar/productif/internal/state"
)

// Backend is the subset of the application API the agent calls.
type Backend interface {
	CreateTask(ctx context.Context, token string, t backend.NewTask) (backend.Task, error)
	SearchTasks(ctx context.Context, token, term string) ([]backend.Task, error)
	UpdateTask(ctx context.Context, token, id string, patch backend.TaskPatch) (backend.Task, error)
	TasksForDate(ctx context.Context, token string, d time.Time) ([]backend.Task, error)
	BatchCreate(ctx context.Context, token, userInput string) (backend.BatchResult, error)
	Sessions(ctx context.Context, token string, q backend.SessionQuery) ([]backend.DeepWorkSession, error)
	CreateSession(ctx context.Context, token string, s backend.NewSession) (backend.DeepWorkSession, error)
	UpdateSession(ctx context.Context, token, id, action string) (backend.DeepWorkSession, error)
	Habits(ctx context.Context, token string) ([]backend.Habit, error)
	LogHabit(ctx context.Context, token, id string, d time.Time) error
}

// Messenger delivers an out-of-band message, such as an acknowledgment sent
// before a slow call. Delivery failures are logged, never surfaced.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// User identifies who sent a message and how to act on their behalf.
type User struct {
	ID      string // backend user id; keys conversation state
	Address string // channel address replies go to (phone number, DM channel)
	Token   string // backend API token
	Name    string
}

// Result is the outcome of handling one message. Response is always set
// when Handled is true.
type Result struct {
	Handled        bool
	Response       string
	ActionExecuted string
	Category       intent.Category
}

// Action identifiers reported in Result.ActionExecuted.
const (
	ActionConversation     = "conversation"
	ActionCreateTask       = "create_task"
	ActionListTasks        = "list_tasks"
	ActionCompleteTask     = "complete_task"
	ActionTrackHabit       = "track_habit"
	ActionStatusCheck      = "status_check"
	ActionStatistics       = "statistics"
	ActionPlanPrompt       = "plan_tomorrow"
	ActionPlanInvite       = "plan_tomorrow_invite"
	ActionProcessTasksList = "process_tasks_list"
	ActionDeepWorkPrompt   = "start_deepwork"
	ActionDeepWorkInvite   = "start_deepwork_invite"
	ActionDeepWorkStart    = "deepwork_started"
	ActionDeepWorkBusy     = "deepwork_already_active"
	ActionDeepWorkDuration = "deepwork_invalid_duration"
	ActionDeepWorkEnd      = "deepwork_end"
	ActionDeepWorkPause    = "deepwork_pause"
	ActionDeepWorkResume   = "deepwork_resume"
	ActionDeepWorkStatus   = "deepwork_status"
	ActionDeepWorkHistory  = "deepwork_history"
	ActionHelp             = "help"
	ActionError            = "error"
)

// Agent handles inbound messages for any number of users. It keeps no
// per-user memory of its own; pending multi-turn steps live in the state
// store so any instance can continue a conversation.
type Agent struct {
	backend    Backend
	states     state.Store
	classifier intent.Classifier
	deepWork   *DeepWork
	planner    *Planner
	help       *Help
	router     *Router
	now        func() time.Time
	loc        *time.Location
	log        *zap.Logger
}

// Opts holds parameters for creating an Agent.
type Opts struct {
	Backend    Backend           // required
	States     state.Store       // required
	Classifier intent.Classifier // defaults to intent.NewRules()
	Completer  llm.Completer     // optional; help falls back to a static answer without it
	Messenger  Messenger         // optional; planning acknowledgments are skipped without it
	Matcher    *matcher.Matcher  // defaults to matcher.Default()
	Location   *time.Location    // user-facing dates and times; defaults to time.Local
	Now        func() time.Time  // defaults to time.Now
	Logger     *zap.Logger       // defaults to zap.NewNop()
}

// New creates an Agent.
func New(opts Opts) (*Agent, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("agent: backend is required")
	}
	if opts.States == nil {
		return nil, fmt.Errorf("agent: state store is required")
	}
	if opts.Classifier == nil {
		opts.Classifier = intent.NewRules()
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	a := &Agent{
		backend:    opts.Backend,
		states:     opts.States,
		classifier: opts.Classifier,
		now:        opts.Now,
		loc:        opts.Location,
		log:        opts.Logger,
	}
	a.deepWork = &DeepWork{
		backend: opts.Backend,
		states:  opts.States,
		match:   opts.Matcher,
		now:     a.localNow,
		log:     opts.Logger.Named("deepwork"),
	}
	a.planner = &Planner{
		backend:   opts.Backend,
		states:    opts.States,
		messenger: opts.Messenger,
		match:     opts.Matcher,
		log:       opts.Logger.Named("planner"),
	}
	a.help = &Help{
		backend:   opts.Backend,
		completer: opts.Completer,
		now:       a.localNow,
		log:       opts.Logger.Named("help"),
	}
	router, err := newRouter(a)
	if err != nil {
		return nil, err
	}
	a.router = router
	return a, nil
}

func (a *Agent) localNow() time.Time { return a.now().In(a.loc) }

// HandleMessage processes one inbound message. A pending conversation step
// always takes precedence, so a bare number only counts as a duration while
// the user is being asked for one.
func (a *Agent) HandleMessage(ctx context.Context, u User, text string) Result {
	text = strings.TrimSpace(text)
	start := time.Now()
	res := a.handle(ctx, u, text)
	a.log.Info("message handled",
		zap.String("user", u.ID),
		zap.String("category", string(res.Category)),
		zap.String("action", res.ActionExecuted),
		zap.Bool("handled", res.Handled),
		zap.Duration("took", time.Since(start)))
	return res
}

func (a *Agent) handle(ctx context.Context, u User, text string) Result {
	e, ok, err := a.states.Get(ctx, u.ID)
	if err != nil {
		a.log.Warn("read conversation state, treating user as idle", zap.String("user", u.ID), zap.Error(err))
	}
	if ok {
		switch e.State {
		case state.AwaitingTasksList:
			return a.planner.ProcessTasksList(ctx, u, text)
		case state.AwaitingDeepWorkDuration:
			return a.deepWork.HandleDuration(ctx, u, text)
		default:
			a.log.Warn("unknown conversation state, clearing", zap.String("user", u.ID), zap.String("state", string(e.State)))
			if err := a.states.Clear(ctx, u.ID); err != nil {
				a.log.Warn("clear conversation state", zap.String("user", u.ID), zap.Error(err))
			}
		}
	}

	if res, ok := a.deepWork.Handle(ctx, u, text); ok {
		return res
	}
	if res, ok := a.planner.Start(ctx, u, text); ok {
		return res
	}

	in := a.classifier.Classify(ctx, text)
	return a.RouteIntent(ctx, in, u, text)
}

// RouteIntent dispatches a classified message to exactly one handler. It
// never fails: handler errors become user-facing replies.
func (a *Agent) RouteIntent(ctx context.Context, in intent.Intent, u User, text string) Result {
	res := a.router.route(ctx, in, u, text)
	res.Category = in.Category
	return res
}
