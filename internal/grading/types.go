package grading

// Rubric area names, in the order every Result lists them.
const (
	AreaConfidence = "Confidence & Assertiveness"
	AreaEvidence   = "Evidence & Data Usage"
	AreaObjections = "Objection Handling"
	AreaValue      = "Value Articulation"
	AreaClosing    = "Closing Technique"
)

// AreaNames is the fixed rubric.
var AreaNames = [5]string{AreaConfidence, AreaEvidence, AreaObjections, AreaValue, AreaClosing}

// Area is one scored rubric dimension.
type Area struct {
	Name     string `json:"name"`
	Score    int    `json:"score"` // 1-10
	Feedback string `json:"feedback"`
}

// Result is the structured grade of a finished negotiation.
type Result struct {
	LikelihoodOfSuccess int    `json:"likelihood_of_success"` // 0-100
	OverallSummary      string `json:"overall_summary"`
	Areas               []Area `json:"areas"`
}

// Source records which path produced a Result.
type Source string

const (
	SourceParsed   Source = "parsed"
	SourceFallback Source = "fallback"
)

var fallbackAreas = [5]Area{
	{Name: AreaConfidence, Score: 5, Feedback: "Room for improvement in delivering your ask with conviction."},
	{Name: AreaEvidence, Score: 5, Feedback: "Consider using more specific metrics and achievements."},
	{Name: AreaObjections, Score: 5, Feedback: "Practice acknowledging concerns while redirecting to your value."},
	{Name: AreaValue, Score: 5, Feedback: "Focus on the impact of your contributions."},
	{Name: AreaClosing, Score: 5, Feedback: "Work on a clear call-to-action at the end."},
}

// Fallback is the neutral grade used when the model's answer is unusable.
func Fallback() Result {
	areas := make([]Area, len(fallbackAreas))
	copy(areas, fallbackAreas[:])
	return Result{
		LikelihoodOfSuccess: 50,
		OverallSummary:      "The negotiation showed some good elements but could be improved with more specific evidence and confident delivery.",
		Areas:               areas,
	}
}
