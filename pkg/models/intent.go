package models

// Intent is the handling category assigned to a question by the router.
type Intent string

const (
	IntentSecurity Intent = "SECURITY"
	IntentGreeting Intent = "GREETING"
	IntentOffTopic Intent = "OFFTOPIC"
	IntentData     Intent = "DATA"
)

// AllIntents lists intents in routing priority order.
var AllIntents = []Intent{IntentSecurity, IntentGreeting, IntentOffTopic, IntentData}

// IsValid returns true if the intent is one of the known categories.
func (i Intent) IsValid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}
