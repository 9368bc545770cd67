package chat

import (
	"regexp"
	"strings"
)

// Intent classifies how a reply was produced
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentIdentity   Intent = "identity"
	IntentAnswer     Intent = "answer"
	IntentExtractive Intent = "extractive"
	IntentNoResults  Intent = "no_results"
)

var (
	greetingPattern = regexp.MustCompile(`\b(?:hola|buenos días|buenos dias)\b`)
	identityPattern = regexp.MustCompile(`\b(?:cómo te llamas|como te llamas|quién eres|quien eres)\b`)
)

// DetectTrivial returns the canned intent for greetings and identity
// questions. Greetings win when both match.
func DetectTrivial(message string) (Intent, bool) {
	m := strings.ToLower(message)
	switch {
	case greetingPattern.MatchString(m):
		return IntentGreeting, true
	case identityPattern.MatchString(m):
		return IntentIdentity, true
	default:
		return "", false
	}
}
