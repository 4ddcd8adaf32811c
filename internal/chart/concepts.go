package chart

// Question concepts with dedicated handling.
const (
	ConceptTemperature      = "5088AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptWeight           = "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptDiarrhea         = "1aa247f3-2d83-4efc-94bc-123b1a71b19f"
	ConceptVomiting         = "405ad95d-f6e1-4023-a459-28cffdb055c5"
	ConceptBleeding         = "147241AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptPain             = "f75da5de-404c-42d0-b484-b69a4896e093"
	ConceptResponsiveness   = "162643AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptMobility         = "30143d74-f654-4427-bb92-685f68f92c15"
	ConceptWeakness         = "5226AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptNotes            = "162169AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConceptGeneralCondition = "a3657203-cfed-44b8-8e3f-960f8d4cf3b3"
)

// Answer concepts.
const (
	AnswerYes       = "1065AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerNo        = "1066AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerUnknown   = "1067AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerNone      = "1107AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerNormal    = "1115AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerSolidFood = "159597AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerMild      = "1498AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerModerate  = "1499AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	AnswerSevere    = "1500AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// General condition answers.
const (
	ConditionWell          = "1855AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConditionUnwell        = "137793AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConditionCritical      = "2827e7ac-10c1-4d3f-9fa4-0239771d8548"
	ConditionPalliative    = "7cea1f8f-88cb-4f9c-a9d6-dc28d6eaa520"
	ConditionConvalescent  = "119844AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConditionNonCase       = "e4a20c4a-6f13-11e4-b315-040ccecfdba4"
	ConditionCured         = "159791AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ConditionSuspectedDead = "91dc5fcc-fa9e-4ccd-8cd0-0d203923493f"
	ConditionConfirmedDead = "160432AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// DefaultChartUUID is the chart layout used when none is configured.
const DefaultChartUUID = "ea43f213-66fb-4af6-8a49-70fd6b9ce5d4"

// BleedingSitesGroup is the group name whose observations mark any bleeding.
const BleedingSitesGroup = "Bleeding site"

// Severities in synthetic row order.
var Severities = []string{AnswerSevere, AnswerModerate, AnswerMild}

// CompoundConcepts get one synthetic row per severity.
var CompoundConcepts = map[string]bool{
	ConceptDiarrhea: true,
	ConceptVomiting: true,
}

// DefaultFallbackConcepts are shown when a patient has no chart rows at all.
var DefaultFallbackConcepts = []string{
	ConceptGeneralCondition,
	ConceptTemperature,
	ConceptWeight,
	ConceptDiarrhea,
	ConceptVomiting,
	ConceptPain,
	ConceptNotes,
}

var noSymptomAnswers = map[string]bool{
	AnswerNo:        true,
	AnswerSolidFood: true,
	AnswerNormal:    true,
	AnswerNone:      true,
}

// IsNoSymptom reports whether value is an answer meaning the symptom is absent.
func IsNoSymptom(value string) bool { return noSymptomAnswers[value] }

func isSeverity(value string) bool {
	return value == AnswerSevere || value == AnswerModerate || value == AnswerMild
}
