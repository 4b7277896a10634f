package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidIntent = goerr.New("invalid intent")

// Intent is the classified purpose of a guest message.
type Intent string

const (
	IntentMenu           Intent = "MENU"
	IntentOrder          Intent = "ORDER"
	IntentServiceRequest Intent = "SERVICE_REQUEST"
	IntentTicket         Intent = "TICKET"
	IntentQnA            Intent = "QNA"
	IntentSmallTalk      Intent = "SMALL_TALK"
	IntentUnknown        Intent = "UNKNOWN"
)

// Intents is the closed tag set accepted from the LLM classifier.
var Intents = []Intent{
	IntentMenu,
	IntentOrder,
	IntentServiceRequest,
	IntentTicket,
	IntentQnA,
	IntentSmallTalk,
	IntentUnknown,
}

// Validate checks if the intent is one of the allowed tags
func (x Intent) Validate() error {
	for _, intent := range Intents {
		if x == intent {
			return nil
		}
	}
	return goerr.Wrap(ErrInvalidIntent, "unrecognized tag", goerr.V("intent", string(x)))
}

// ParseIntent maps a raw label to an Intent, returning IntentUnknown for any
// label outside the closed tag set.
func ParseIntent(label string) Intent {
	intent := Intent(label)
	if err := intent.Validate(); err != nil {
		return IntentUnknown
	}
	return intent
}
