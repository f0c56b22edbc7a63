// Package twiml renders outcome decisions into the provider's declarative
// voice-response XML. Rendering is pure: no I/O, no clock, no state.
package twiml

import (
	"encoding/xml"
	"fmt"

	"github.com/doorlink/doorlink/internal/domain"
)

type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Play with a digits attribute transmits DTMF tones; "w" waits half a second.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	Digits  string   `xml:"digits,attr,omitempty"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []interface{}
}

type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Numbers  []Number
}

type Number struct {
	XMLName xml.Name `xml:"Number"`
	Value   string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Config carries the prompt parameters; zero values fall back to defaults.
type Config struct {
	GatherTimeout int // seconds
	DigitCount    int
	DialTimeout   int // seconds
}

func (c Config) withDefaults() Config {
	if c.GatherTimeout == 0 {
		c.GatherTimeout = 10
	}
	if c.DigitCount == 0 {
		c.DigitCount = 4
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 30
	}
	return c
}

// Spoken messages. Fixed wording; configuration errors and denials sound
// identical to every caller.
const (
	msgNotConfigured   = "This number is not set up for door access. Please check your dashboard configuration. Goodbye."
	msgServiceDisabled = "Door service is currently unavailable. Please contact the resident directly. Goodbye."
	msgPaused          = "Door access is temporarily paused. Please try again later. Goodbye."
	msgPromptAccess    = "Please enter your four digit access code, or say it after the tone."
	msgPromptGuest     = "Please enter your four digit guest passcode, or say it after the tone."
	msgUnlocking       = "Welcome. Unlocking the door now."
	msgSessionExpired  = "Your session has expired. Please call again."
	msgNoInput         = "We did not receive any input. Goodbye."
	msgInvalidCode     = "That code is not valid. Access denied. Goodbye."
	msgRateLimited     = "Too many attempts. Please try again later. Goodbye."
	msgError           = "An error occurred. Please try again."
)

// Render maps an outcome to a complete voice-response document.
func Render(o domain.Outcome, cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()

	var verbs []interface{}
	switch o.Kind {
	case domain.OutcomeNotConfigured:
		verbs = sayAndHangup(msgNotConfigured)
	case domain.OutcomeServiceDisabled:
		verbs = sayAndHangup(msgServiceDisabled)
	case domain.OutcomePaused:
		verbs = sayAndHangup(msgPaused)
	case domain.OutcomeForward:
		dial := Dial{Timeout: cfg.DialTimeout}
		for _, n := range o.ForwardTo {
			dial.Numbers = append(dial.Numbers, Number{Value: n})
		}
		verbs = []interface{}{dial}
	case domain.OutcomePrompt:
		msg := msgPromptGuest
		if o.AccessCodeFlow {
			msg = msgPromptAccess
		}
		verbs = []interface{}{
			Gather{
				Input:         "dtmf speech",
				NumDigits:     cfg.DigitCount,
				Timeout:       cfg.GatherTimeout,
				SpeechTimeout: "auto",
				Verbs:         []interface{}{Say{Text: msg}},
			},
			Say{Text: msgNoInput},
			Hangup{},
		}
	case domain.OutcomeAutoUnlock:
		verbs = []interface{}{
			Say{Text: msgUnlocking},
			Pause{Length: 1},
			Play{Digits: o.DoorCode + "w"},
			Pause{Length: 1},
			Hangup{},
		}
	case domain.OutcomeSessionExpired:
		verbs = sayAndHangup(msgSessionExpired)
	case domain.OutcomeInvalidCode:
		verbs = sayAndHangup(msgInvalidCode)
	case domain.OutcomeRateLimited:
		verbs = sayAndHangup(msgRateLimited)
	case domain.OutcomeError:
		verbs = sayAndHangup(msgError)
	default:
		return nil, fmt.Errorf("unknown outcome kind %q", o.Kind)
	}

	return marshal(Response{Verbs: verbs})
}

// RenderEmpty returns an empty response document, used to acknowledge
// status callbacks where no instructions apply.
func RenderEmpty() []byte {
	out, _ := marshal(Response{})
	return out
}

func sayAndHangup(msg string) []interface{} {
	return []interface{}{Say{Text: msg}, Hangup{}}
}

func marshal(r Response) ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal voice response: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
