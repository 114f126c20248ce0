package matcher

// Command IDs understood by the agent's conversational handlers.
const (
	CmdPlanTomorrow   = "plan_tomorrow"
	CmdDeepWorkStart  = "deepwork_start"
	CmdDeepWorkEnd    = "deepwork_end"
	CmdDeepWorkPause  = "deepwork_pause"
	CmdDeepWorkResume = "deepwork_resume"
	CmdDeepWorkStatus = "deepwork_status"
)

// DefaultCatalog lists the phrasings for each command. Phrasings are mostly
// French, with the English forms users type anyway.
var DefaultCatalog = map[string][]string{
	CmdPlanTomorrow: {
		"planifier demain",
		"planifie demain",
		"planifier ma journée de demain",
		"planifie ma journée de demain",
		"organiser demain",
		"organise ma journée de demain",
		"préparer demain",
		"prépare ma journée de demain",
		"planification de demain",
		"plan tomorrow",
		"plan my day tomorrow",
	},
	CmdDeepWorkStart: {
		"je commence à travailler",
		"je commence à bosser",
		"je me mets au travail",
		"commencer deep work",
		"commencer une session",
		"lancer deep work",
		"lancer une session",
		"démarrer deep work",
		"démarrer une session",
		"deep work",
		"mode focus",
		"start deep work",
		"start focus session",
	},
	CmdDeepWorkEnd: {
		"terminer la session",
		"terminer session",
		"terminer deep work",
		"fin de session",
		"fin deep work",
		"arrêter la session",
		"stop deep work",
		"stop session",
		"end session",
		"end deep work",
	},
	CmdDeepWorkPause: {
		"pause",
		"mettre en pause",
		"pause deep work",
		"pause session",
		"faire une pause",
	},
	CmdDeepWorkResume: {
		"je reprends",
		"reprendre la session",
		"reprendre deep work",
		"reprendre le travail",
		"resume session",
		"resume deep work",
	},
	CmdDeepWorkStatus: {
		"statut session",
		"statut deep work",
		"où en est ma session",
		"temps restant",
		"combien de temps reste",
		"session status",
		"deep work status",
	},
}

// defaultOrder fixes tie-breaking between commands of equal specificity.
var defaultOrder = []string{
	CmdDeepWorkEnd,
	CmdDeepWorkPause,
	CmdDeepWorkResume,
	CmdDeepWorkStatus,
	CmdDeepWorkStart,
	CmdPlanTomorrow,
}

// Default returns a Matcher over DefaultCatalog.
func Default() *Matcher {
	return New(DefaultCatalog, defaultOrder...)
}
