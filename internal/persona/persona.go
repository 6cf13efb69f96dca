// Package persona defines the boss personas and builds the roleplay,
// voice and feedback instructions sent to the model.
package persona

import (
	"errors"
	"fmt"
)

// ErrUnknownPersona is returned for ids outside the catalog.
var ErrUnknownPersona = errors.New("unknown persona")

// ID identifies a boss persona.
type ID string

const (
	BudgetBlocker ID = "budget-blocker"
	DataDriven    ID = "data-driven"
	Gaslighter    ID = "gaslighter"
)

// IDs lists every persona in display order.
var IDs = []ID{BudgetBlocker, DataDriven, Gaslighter}

// Descriptor is the static profile of a persona.
type Descriptor struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Emoji       string   `json:"emoji"`
	Greeting    string   `json:"greeting"`
	VoiceStyle  string   `json:"voiceStyle"`
}

var descriptors = map[ID]Descriptor{
	BudgetBlocker: {
		ID:          BudgetBlocker,
		Name:        "The Budget Blocker",
		Title:       "Director of Finance",
		Description: "Friendly but constantly claims there is no money in the budget. Will sympathize with you while shutting down every request.",
		Traits:      []string{"Sympathetic", "Budget-focused", "Deflective"},
		Emoji:       "💼",
		Greeting:    "Hey! Come on in, have a seat. So, you wanted to chat about your compensation? I saw your meeting request... look, I really appreciate you bringing this up directly with me. So, what's on your mind?",
		VoiceStyle:  "alloy",
	},
	DataDriven: {
		ID:          DataDriven,
		Name:        "The Show-Me-The-Data",
		Title:       "VP of Operations",
		Description: "Cold, analytical, only cares about ROI and metrics. Numbers speak louder than feelings.",
		Traits:      []string{"Analytical", "Results-oriented", "Skeptical"},
		Emoji:       "📊",
		Greeting:    "You requested this meeting to discuss compensation. I have exactly 15 minutes. Let's get straight to it - what specifically are you proposing?",
		VoiceStyle:  "echo",
	},
	Gaslighter: {
		ID:          Gaslighter,
		Name:        "The Gaslighter",
		Title:       "Senior Manager",
		Description: "Dismissive, tries to make you feel lucky to even have a job. Questions your contributions and confidence.",
		Traits:      []string{"Dismissive", "Manipulative", "Undermining"},
		Emoji:       "🎭",
		Greeting:    "Oh, a meeting about your salary? Really? Okay, well... I suppose we can talk. Though I have to say, I wasn't expecting this from you. Go ahead, what is it?",
		VoiceStyle:  "sage",
	},
}

func init() {
	if err := validateCatalog(); err != nil {
		panic(err)
	}
}

// validateCatalog fails when a persona id is missing its descriptor or
// either prompt overlay.
func validateCatalog() error {
	for _, id := range IDs {
		if _, ok := descriptors[id]; !ok {
			return fmt.Errorf("persona %q: missing descriptor", id)
		}
		if _, ok := overlays[id]; !ok {
			return fmt.Errorf("persona %q: missing negotiation overlay", id)
		}
		if _, ok := voiceTraits[id]; !ok {
			return fmt.Errorf("persona %q: missing voice traits", id)
		}
	}
	if len(descriptors) != len(IDs) || len(overlays) != len(IDs) || len(voiceTraits) != len(IDs) {
		return fmt.Errorf("persona tables out of sync with IDs")
	}
	return nil
}

// Parse validates a persona id.
func Parse(s string) (ID, error) {
	id := ID(s)
	if _, ok := descriptors[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersona, s)
	}
	return id, nil
}

// Lookup returns the descriptor for id.
func Lookup(id ID) (Descriptor, error) {
	d, ok := descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	d.Traits = append([]string(nil), d.Traits...)
	return d, nil
}

// All returns every descriptor in display order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(IDs))
	for _, id := range IDs {
		d, _ := Lookup(id)
		out = append(out, d)
	}
	return out
}
