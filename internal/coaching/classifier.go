// Package coaching detects negotiation tactics in a single user utterance
// and maps them to coaching tips.
//
// Rules are evaluated in a fixed priority order and the first match wins.
// Rules overlap (an utterance can hedge and quote a number at once), so the
// order in rules is part of the observable behaviour.
package coaching

import (
	"regexp"
	"strings"
)

type rule struct {
	category string
	matches  func(string) bool
}

func pattern(expr string) func(string) bool {
	re := regexp.MustCompile(`(?i)` + expr)
	return re.MatchString
}

var (
	hardship = pattern(`i need|bills|family|expenses|struggling|stressed`)
	evidence = pattern(`\d+%|\$\d+|increased|grew|saved|generated`)
)

var rules = []rule{
	{Apologetic, pattern(`sorry|apologize|i know this is bad timing|hate to ask|don't want to bother`)},
	{Vague, pattern(`i think i deserve|i feel like|maybe|kind of|sort of|a bit more`)},
	{Weak, pattern(`was wondering|would it be possible|is there any chance|could you maybe`)},
	// Hardship only counts when no evidence is offered; otherwise the
	// utterance falls through to the achievement rule.
	{Emotional, func(s string) bool { return hardship(s) && !evidence(s) }},
	{Achievement, pattern(`\d+%|increased.*\d|saved.*\$|generated.*\$|grew.*\d|revenue|profit|efficiency`)},
	{Comparison, pattern(`market rate|industry standard|glassdoor|linkedin|competitive|other companies|offers`)},
	{Future, pattern(`plan to|going to|will deliver|next quarter|upcoming|roadmap|initiative`)},
	{Strong, pattern(`i've delivered|i have proven|my track record|i've consistently|i bring|i contribute`)},
	{Anchor, pattern(`\$\d{2,}|asking for \d|requesting \d|\d{2,}k|\d{2,},\d{3}`)},
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// Classify returns the tip for the highest-priority rule matching utterance,
// or nil when nothing matches.
func Classify(utterance string) *Tip {
	category := Detect(utterance)
	if category == "" {
		return nil
	}
	tip, ok := Lookup(category)
	if !ok {
		return nil
	}
	return &tip
}

// Detect returns the catalog key of the first matching rule, or "".
func Detect(utterance string) string {
	s := apostrophes.Replace(utterance)
	for _, r := range rules {
		if r.matches(s) {
			return r.category
		}
	}
	return ""
}
