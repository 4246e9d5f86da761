package skill

import (
	"github.com/yairfalse/fleetvoice/internal/session"
)

// Request types sent by the voice platform.
const (
	RequestLaunch       = "LaunchRequest"
	RequestIntent       = "IntentRequest"
	RequestSessionEnded = "SessionEndedRequest"
)

// RequestEnvelope is the JSON body the voice platform posts for a turn.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Request Request `json:"request"`
}

// Session is the platform-managed session carried with every request.
type Session struct {
	New         bool               `json:"new"`
	SessionID   string             `json:"sessionId"`
	Application Application        `json:"application"`
	Attributes  session.Attributes `json:"attributes"`
}

// Application identifies the skill the request is addressed to.
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// Request is the typed part of the envelope.
type Request struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	Timestamp string  `json:"timestamp,omitempty"`
	Locale    string  `json:"locale,omitempty"`
	Intent    *Intent `json:"intent,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Intent is a resolved user intent with its slots.
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is a named intent argument. Value is empty when the user gave none.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// SlotValue returns the non-empty value of a slot.
func (i Intent) SlotValue(name string) (string, bool) {
	slot, ok := i.Slots[name]
	if !ok || slot.Value == "" {
		return "", false
	}
	return slot.Value, true
}

// ResponseEnvelope is returned to the voice platform.
type ResponseEnvelope struct {
	Version           string             `json:"version"`
	SessionAttributes session.Attributes `json:"sessionAttributes"`
	Response          Speechlet          `json:"response"`
}

// Speechlet is what the device says and shows.
type Speechlet struct {
	OutputSpeech     OutputSpeech `json:"outputSpeech"`
	Card             Card         `json:"card"`
	Reprompt         Reprompt     `json:"reprompt"`
	ShouldEndSession bool         `json:"shouldEndSession"`
}

// OutputSpeech is plain-text speech.
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reprompt is spoken when the user does not answer. A nil text means the
// session ends quietly instead of reprompting.
type Reprompt struct {
	OutputSpeech RepromptSpeech `json:"outputSpeech"`
}

// RepromptSpeech is OutputSpeech with a nullable text.
type RepromptSpeech struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// Card is the simple card shown in the companion app.
type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

const (
	responseVersion = "1.0"
	speechPlainText = "PlainText"
	cardSimple      = "Simple"
	cardPrefix      = "SessionSpeechlet - "
)

func buildSpeechlet(title, output string, reprompt *string, shouldEndSession bool) Speechlet {
	return Speechlet{
		OutputSpeech: OutputSpeech{Type: speechPlainText, Text: output},
		Card: Card{
			Type:    cardSimple,
			Title:   cardPrefix + title,
			Content: cardPrefix + output,
		},
		Reprompt: Reprompt{
			OutputSpeech: RepromptSpeech{Type: speechPlainText, Text: reprompt},
		},
		ShouldEndSession: shouldEndSession,
	}
}

func buildResponse(attrs session.Attributes, speechlet Speechlet) *ResponseEnvelope {
	return &ResponseEnvelope{
		Version:           responseVersion,
		SessionAttributes: attrs,
		Response:          speechlet,
	}
}

func text(s string) *string {
	return &s
}
