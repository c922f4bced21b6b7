package model

const (
	defaultCategoryScore = 50
	defaultPostureScore  = 100
	defaultStressScore   = 100
	unavailableFeedback  = "Analysis unavailable"
)

// SkillScore is a scored feedback category.
type SkillScore struct {
	Score     int      `json:"score"`
	Feedback  string   `json:"feedback"`
	WeakAreas []string `json:"weakAreas,omitempty"`
}

// FeedbackResult is the structured outcome of scoring a session. Every field
// carries a usable value once it has passed through Normalize.
type FeedbackResult struct {
	OverallScore    int        `json:"overallScore"`
	TechnicalSkills SkillScore `json:"technicalSkills"`
	Communication   SkillScore `json:"communication"`
	Confidence      SkillScore `json:"confidence"`
	PostureScore    int        `json:"postureScore"`
	StressScore     int        `json:"stressScore"`
	Improvements    []string   `json:"improvements"`
	Strengths       []string   `json:"strengths"`
	PostureWarnings int        `json:"postureWarnings"`
	TotalPauses     int        `json:"totalPauses"`
	Degraded        bool       `json:"degraded"`
}

// RawFeedback mirrors FeedbackResult with optional fields, as decoded from a
// collaborator that may omit any of them.
type RawFeedback struct {
	OverallScore    *int           `json:"overallScore"`
	TechnicalSkills *RawSkillScore `json:"technicalSkills"`
	Communication   *RawSkillScore `json:"communication"`
	Confidence      *RawSkillScore `json:"confidence"`
	PostureScore    *int           `json:"postureScore"`
	StressScore     *int           `json:"stressScore"`
	Improvements    []string       `json:"improvements"`
	Strengths       []string       `json:"strengths"`
}

// RawSkillScore is the optional form of SkillScore.
type RawSkillScore struct {
	Score     *int     `json:"score"`
	Feedback  *string  `json:"feedback"`
	WeakAreas []string `json:"weakAreas"`
}

// Normalize applies the defaults for every missing field and echoes the
// session metrics into the result.
func (r RawFeedback) Normalize(m SessionMetrics) FeedbackResult {
	return FeedbackResult{
		OverallScore:    clampScore(intOr(r.OverallScore, defaultCategoryScore)),
		TechnicalSkills: r.TechnicalSkills.normalize(),
		Communication:   r.Communication.normalize(),
		Confidence:      r.Confidence.normalize(),
		PostureScore:    clampScore(intOr(r.PostureScore, defaultPostureScore)),
		StressScore:     clampScore(intOr(r.StressScore, defaultStressScore)),
		Improvements:    nonNil(r.Improvements),
		Strengths:       nonNil(r.Strengths),
		PostureWarnings: m.PostureWarningCount,
		TotalPauses:     m.TotalPauses,
	}
}

func (s *RawSkillScore) normalize() SkillScore {
	if s == nil {
		return SkillScore{Score: defaultCategoryScore, Feedback: unavailableFeedback, WeakAreas: []string{}}
	}
	out := SkillScore{
		Score:     clampScore(intOr(s.Score, defaultCategoryScore)),
		Feedback:  unavailableFeedback,
		WeakAreas: nonNil(s.WeakAreas),
	}
	if s.Feedback != nil && *s.Feedback != "" {
		out.Feedback = *s.Feedback
	}
	return out
}

// DegradedFeedback is substituted when scoring is unusable. It is always
// renderable and marked as degraded.
func DegradedFeedback(m SessionMetrics) FeedbackResult {
	return FeedbackResult{
		OverallScore: defaultCategoryScore,
		TechnicalSkills: SkillScore{
			Score:     defaultCategoryScore,
			Feedback:  "Unable to analyze due to an API error. Please try again.",
			WeakAreas: []string{"API Connection"},
		},
		Communication: SkillScore{Score: defaultCategoryScore, Feedback: unavailableFeedback, WeakAreas: []string{}},
		Confidence:    SkillScore{Score: defaultCategoryScore, Feedback: unavailableFeedback, WeakAreas: []string{}},
		PostureScore:  clampScore(defaultPostureScore - 10*m.PostureWarningCount),
		StressScore:   clampScore(100 - int(m.AverageStressLevel)),
		Improvements: []string{
			"Check your internet connection",
			"Try the interview again",
		},
		Strengths:       []string{"Session completed"},
		PostureWarnings: m.PostureWarningCount,
		TotalPauses:     m.TotalPauses,
		Degraded:        true,
	}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
