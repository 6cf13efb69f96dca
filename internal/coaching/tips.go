package coaching

// Tip is a coaching hint attached to a chat turn.
type Tip struct {
	Tactic string `json:"tactic"`
	Tip    string `json:"tip"`
}

// Catalog keys. Deflecting has a tip but no detection rule.
const (
	Vague       = "vague"
	Emotional   = "emotional"
	Apologetic  = "apologetic"
	Comparison  = "comparison"
	Achievement = "achievement"
	Deflecting  = "deflecting"
	Future      = "future"
	Weak        = "weak"
	Strong      = "strong"
	Anchor      = "anchor"
)

var catalog = map[string]Tip{
	Vague: {
		Tactic: "Be Specific",
		Tip:    "Try quantifying your contributions with specific numbers, percentages, or dollar amounts.",
	},
	Emotional: {
		Tactic: "Use Data",
		Tip:    "Emotions are valid, but back them up with concrete examples of your impact.",
	},
	Apologetic: {
		Tactic: "Own Your Value",
		Tip:    "Avoid apologizing for asking. You've earned the right to this conversation.",
	},
	Comparison: {
		Tactic: "Market Research",
		Tip:    "Good use of market data! Make sure you have sources ready if challenged.",
	},
	Achievement: {
		Tactic: "Strong Evidence",
		Tip:    "Great job highlighting achievements! Keep emphasizing measurable results.",
	},
	Deflecting: {
		Tactic: "Stay Focused",
		Tip:    "Don't let the conversation shift. Redirect back to your value and request.",
	},
	Future: {
		Tactic: "Future Value",
		Tip:    "Smart! Showing future value demonstrates you're thinking about the company's success.",
	},
	Weak: {
		Tactic: "Be Assertive",
		Tip:    "Avoid weak language like 'maybe' or 'I was wondering.' State your case confidently.",
	},
	Strong: {
		Tactic: "Perfect Tone",
		Tip:    "Excellent confident tone without being aggressive. Keep this energy!",
	},
	Anchor: {
		Tactic: "Anchoring",
		Tip:    "You've set an anchor point. Be prepared to negotiate from here, not against yourself.",
	},
}

// Lookup returns a copy of the tip for category.
func Lookup(category string) (Tip, bool) {
	tip, ok := catalog[category]
	return tip, ok
}
