package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/productif/internal/intent"
	"github.com/zulandar/productif/internal/state"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Opts{States: testStore(t)})
	require.Error(t, err)
	_, err = New(Opts{Backend: newFakeBackend()})
	require.Error(t, err)
}

func TestRouter_Exhaustive(t *testing.T) {
	h := newHarness(t)
	for _, c := range intent.ActionCategories() {
		assert.NotNil(t, h.agent.router.handlers[c], "category %s", c)
	}
	delete(h.agent.router.handlers, intent.TrackHabit)
	require.Error(t, h.agent.router.checkExhaustive())
}

func TestRouteIntent_ConversationIsReflex(t *testing.T) {
	h := newHarness(t)
	for _, c := range append(intent.ActionCategories(), intent.Conversation, intent.Unknown) {
		in := intent.Intent{Category: c, RequiresAction: false, SuggestedResponse: "Salut 👋"}
		res := h.agent.RouteIntent(context.Background(), in, testUser, "salut")
		assert.True(t, res.Handled)
		assert.Equal(t, "Salut 👋", res.Response)
		assert.Equal(t, ActionConversation, res.ActionExecuted)
	}
	assert.Zero(t, h.backend.callCount(), "no remote calls for conversation")
	assert.Empty(t, h.completer.reqs)
}

func TestRouteIntent_UnknownIsNotHandled(t *testing.T) {
	h := newHarness(t)
	res := h.agent.RouteIntent(context.Background(),
		intent.Intent{Category: intent.Unknown, RequiresAction: true}, testUser, "quel temps fait-il à Lyon")
	assert.False(t, res.Handled)
	assert.Equal(t, clarifyReply, res.Response)
	assert.Equal(t, intent.Unknown, res.Category)
}

func TestRouteIntent_UnknownQuestionGetsHelp(t *testing.T) {
	h := newHarness(t)
	res := h.agent.RouteIntent(context.Background(),
		intent.Intent{Category: intent.Unknown, RequiresAction: true}, testUser, "je ne sais pas comment réviser")
	assert.True(t, res.Handled)
	assert.Equal(t, ActionHelp, res.ActionExecuted)
}

func TestRouteIntent_HelpFamilySharesHandler(t *testing.T) {
	for _, c := range []intent.Category{intent.HelpRequest, intent.HowTo, intent.AdviceRequest, intent.Explanation} {
		h := newHarness(t)
		res := h.agent.RouteIntent(context.Background(),
			intent.Intent{Category: c, RequiresAction: true}, testUser, "comment faire pour réviser ?")
		assert.Equal(t, ActionHelp, res.ActionExecuted, c)
		require.Len(t, h.completer.reqs, 1, c)
	}
}

func TestRouteIntent_PlanInviteWhenNotTriggered(t *testing.T) {
	h := newHarness(t)
	res := h.agent.RouteIntent(context.Background(),
		intent.Intent{Category: intent.PlanTomorrow, RequiresAction: true}, testUser, "aide moi pour la suite")
	assert.True(t, res.Handled)
	assert.Equal(t, ActionPlanInvite, res.ActionExecuted)
	_, ok := h.currentState(t)
	assert.False(t, ok)
}

func TestRouteIntent_DeepWorkInviteWhenNotTriggered(t *testing.T) {
	h := newHarness(t)
	res := h.agent.RouteIntent(context.Background(),
		intent.Intent{Category: intent.StartDeepWork, RequiresAction: true}, testUser, "je veux bosser concentré")
	assert.True(t, res.Handled)
	assert.Equal(t, ActionDeepWorkInvite, res.ActionExecuted)
}

func TestHandleMessage_StartThenDuration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.agent.HandleMessage(ctx, testUser, "je commence à travailler")
	require.True(t, res.Handled)
	assert.Equal(t, ActionDeepWorkPrompt, res.ActionExecuted)
	assert.Contains(t, res.Response, "minutes")
	st, ok := h.currentState(t)
	require.True(t, ok)
	assert.Equal(t, state.AwaitingDeepWorkDuration, st)

	res = h.agent.HandleMessage(ctx, testUser, "90")
	assert.Equal(t, ActionDeepWorkStart, res.ActionExecuted)
	require.Len(t, h.backend.createdSessions, 1)
	assert.Equal(t, 90, h.backend.createdSessions[0].PlannedDuration)
	assert.Contains(t, res.Response, "10:30")
	_, ok = h.currentState(t)
	assert.False(t, ok)
}

func TestHandleMessage_BareNumberWithoutStateIsNotDuration(t *testing.T) {
	h := newHarness(t)
	res := h.agent.HandleMessage(context.Background(), testUser, "30")
	assert.Empty(t, h.backend.createdSessions)
	assert.NotEqual(t, ActionDeepWorkStart, res.ActionExecuted)
	assert.NotEqual(t, ActionDeepWorkDuration, res.ActionExecuted)
}

func TestHandleMessage_PlanFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.backend.batch.TasksCreated = 2

	res := h.agent.HandleMessage(ctx, testUser, "planifier demain")
	assert.Equal(t, ActionPlanPrompt, res.ActionExecuted)
	st, ok := h.currentState(t)
	require.True(t, ok)
	assert.Equal(t, state.AwaitingTasksList, st)

	// The dump is not re-matched against commands, even one that looks like one.
	res = h.agent.HandleMessage(ctx, testUser, "deep work sur le mémoire, puis courses")
	assert.Equal(t, ActionProcessTasksList, res.ActionExecuted)
	assert.Equal(t, []string{"deep work sur le mémoire, puis courses"}, h.backend.batchInputs)
	assert.Empty(t, h.backend.createdSessions)
	_, ok = h.currentState(t)
	assert.False(t, ok)
}

func TestHandleMessage_ClassifiesAndRoutes(t *testing.T) {
	h := newHarness(t)
	res := h.agent.HandleMessage(context.Background(), testUser, "ajoute réviser les maths, appeler le dentiste")
	assert.Equal(t, ActionCreateTask, res.ActionExecuted)
	assert.Equal(t, intent.CreateTask, res.Category)
	require.Len(t, h.backend.createdTasks, 2)
}

func TestHandleMessage_CommandWordInsideSentence(t *testing.T) {
	tests := []struct {
		text   string
		action string
		title  string
	}{
		{"ajoute préparer la pause déjeuner", ActionCreateTask, "préparer la pause déjeuner"},
		{"ajoute lire un article sur le deep work", ActionCreateTask, "lire un article sur le deep work"},
		{"comment faire du deep work ?", ActionHelp, ""},
		{"j'ai besoin d'aide pour faire une pause", ActionHelp, ""},
	}
	for _, tt := range tests {
		h := newHarness(t)
		res := h.agent.HandleMessage(context.Background(), testUser, tt.text)
		assert.Equal(t, tt.action, res.ActionExecuted, "%q", tt.text)
		assert.Empty(t, h.backend.sessionActions, "%q", tt.text)
		_, pending := h.currentState(t)
		assert.False(t, pending, "%q left a pending question", tt.text)
		if tt.title != "" {
			require.Len(t, h.backend.createdTasks, 1, "%q", tt.text)
			assert.Equal(t, tt.title, h.backend.createdTasks[0].Title)
		}
	}
}

func TestHandleMessage_SmallTalk(t *testing.T) {
	h := newHarness(t)
	res := h.agent.HandleMessage(context.Background(), testUser, "merci")
	assert.Equal(t, ActionConversation, res.ActionExecuted)
	assert.NotEmpty(t, res.Response)
	assert.Zero(t, h.backend.callCount())
}

func TestHandleMessage_UnknownStateIsCleared(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.states.Set(ctx, testUser.ID, state.Name("awaiting_something_else"), nil))

	res := h.agent.HandleMessage(ctx, testUser, "mes tâches")
	assert.Equal(t, ActionListTasks, res.ActionExecuted)
	_, ok := h.currentState(t)
	assert.False(t, ok)
}

func TestCheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.agent.CheckIn(ctx, testUser, MorningCheckIn)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "Bonjour")
	assert.Equal(t, ActionStatusCheck, res.ActionExecuted)

	res, err = h.agent.CheckIn(ctx, testUser, EveningCheckIn)
	require.NoError(t, err)
	assert.Contains(t, res.Response, "planifier demain")
	_, ok := h.currentState(t)
	assert.False(t, ok, "evening invite does not start the flow")

	h.backend.failOps["TasksForDate"] = true
	_, err = h.agent.CheckIn(ctx, testUser, MorningCheckIn)
	require.Error(t, err)

	_, err = h.agent.CheckIn(ctx, testUser, CheckIn("noon"))
	require.Error(t, err)
}
