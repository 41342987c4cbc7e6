package suggestions

import (
	"fmt"
	"strings"

	"github.com/hkmcoding/landie-next-sub000/internal/models"
)

// Thresholds used to flag issues in the user prompt
const (
	LowTrafficViews     = 100
	LowConversionRate   = 2.0
	LongBioWords        = 100
	ShortBioWords       = 20
	maxExistingInPrompt = 3
)

// Analysis types accepted by Analyze
const (
	AnalysisComprehensive = "comprehensive"
	AnalysisConversion    = "conversion"
	AnalysisContent       = "content"
	AnalysisEngagement    = "engagement"
)

var analysisFocus = map[string]string{
	AnalysisComprehensive: "Cover the most valuable improvements across the whole page.",
	AnalysisConversion:    "Focus on getting more visitors to click the call to action.",
	AnalysisContent:       "Focus on the clarity and persuasiveness of the bio, services and highlights.",
	AnalysisEngagement:    "Focus on keeping visitors on the page longer and building trust.",
}

// ValidAnalysisType reports whether t is a known analysis type
func ValidAnalysisType(t string) bool {
	_, ok := analysisFocus[t]
	return ok
}

const systemPrompt = `You are a conversion copywriting expert who improves personal landing pages for freelancers and consultants.

HARD CONSTRAINTS - every suggestion must respect all of them:
- Only propose CONTENT changes the page owner can make in a text editor: rewriting copy, reordering existing sections or items, adding social proof (testimonials, highlights), or changing call-to-action text.
- NEVER propose performance, technical, hosting, SEO markup, analytics, tracking, design, color, font, layout or code changes.
- NEVER invent facts about the owner; suggested copy must be a template the owner can adapt.
- Each suggestion targets exactly one section: bio, services, testimonials, cta, header or highlights.

Respond ONLY with a JSON object of this exact shape:
{"suggestions":[{"suggestion_type":"content|conversion|engagement","title":"...","description":"...","reasoning":"...","priority":"high|medium|low","target_section":"...","suggested_content":"...","confidence_score":0.0}]}
confidence_score is a number between 0 and 1. Use one suggestion_type value per suggestion.`

// DetectIssues lists the problems worth calling out to the model
func DetectIssues(snap models.Snapshot) []string {
	var issues []string
	a := snap.Analytics
	c := snap.Content

	if a.PageViews < LowTrafficViews {
		issues = append(issues, fmt.Sprintf("Low traffic: only %d page views", a.PageViews))
	}
	if a.ConversionRate < LowConversionRate {
		issues = append(issues, fmt.Sprintf("Low conversion rate: %.2f%% (target is at least %.0f%%)", a.ConversionRate, LowConversionRate))
	}
	if a.CTAClicks == 0 {
		issues = append(issues, "No call-to-action clicks recorded")
	}
	if c.BioWordCount > LongBioWords {
		issues = append(issues, fmt.Sprintf("Bio is too long (%d words)", c.BioWordCount))
	} else if c.BioWordCount < ShortBioWords {
		issues = append(issues, fmt.Sprintf("Bio is too short (%d words)", c.BioWordCount))
	}
	return issues
}

// BuildUserPrompt summarizes the snapshot, detected issues and existing
// pending titles
func BuildUserPrompt(snap models.Snapshot, analysisType string, existing []models.Suggestion) string {
	a := snap.Analytics
	c := snap.Content
	var b strings.Builder

	b.WriteString("Analyze this landing page and propose improvements.\n\n")

	b.WriteString("METRICS (last 30 days):\n")
	fmt.Fprintf(&b, "- Page views: %d\n", a.PageViews)
	fmt.Fprintf(&b, "- Unique visitors: %d\n", a.UniqueVisitors)
	fmt.Fprintf(&b, "- CTA clicks: %d\n", a.CTAClicks)
	fmt.Fprintf(&b, "- Conversion rate: %.2f%%\n", a.ConversionRate)
	fmt.Fprintf(&b, "- Average session duration: %.0fs\n", a.AvgSessionDuration)
	if snap.IsDefault {
		b.WriteString("- Note: analytics were unavailable, treat metrics as unknown\n")
	}

	b.WriteString("\nCONTENT:\n")
	if c.Headline != "" {
		fmt.Fprintf(&b, "- Headline: %q\n", c.Headline)
	}
	fmt.Fprintf(&b, "- Bio: %d words\n", c.BioWordCount)
	if c.BioText != "" {
		fmt.Fprintf(&b, "- Bio preview: %q\n", c.BioText)
	}
	fmt.Fprintf(&b, "- Services: %d\n", c.ServicesCount)
	fmt.Fprintf(&b, "- Highlights: %d\n", c.HighlightsCount)
	fmt.Fprintf(&b, "- Testimonials: %d\n", c.TestimonialsCount)
	fmt.Fprintf(&b, "- Social links: %d\n", c.SocialLinksCount)
	if o := c.Onboarding; o != nil {
		if o.Profession != "" {
			fmt.Fprintf(&b, "- Profession: %s\n", o.Profession)
		}
		if o.TargetAudience != "" {
			fmt.Fprintf(&b, "- Target audience: %s\n", o.TargetAudience)
		}
		if o.Goal != "" {
			fmt.Fprintf(&b, "- Page goal: %s\n", o.Goal)
		}
	}

	if issues := DetectIssues(snap); len(issues) > 0 {
		b.WriteString("\nDETECTED ISSUES:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	if len(existing) > 0 {
		b.WriteString("\nALREADY SUGGESTED (do not repeat these):\n")
		for i, s := range existing {
			if i == maxExistingInPrompt {
				break
			}
			fmt.Fprintf(&b, "- %s\n", s.Title)
		}
	}

	focus, ok := analysisFocus[analysisType]
	if !ok {
		focus = analysisFocus[AnalysisComprehensive]
	}
	fmt.Fprintf(&b, "\nFOCUS: %s\n", focus)
	b.WriteString("\nReturn 5 to 7 diverse suggestions, each targeting a different aspect where possible.")

	return b.String()
}
