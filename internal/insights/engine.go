// Package insights derives decision-support alerts from a clinical note and
// patient context using deterministic keyword rules.
package insights

import (
	"strings"

	"visitscribe/internal/domain"
)

// noteRule fires at most one insight when any of its keywords appears in the
// selected note section (case-insensitive substring match).
type noteRule struct {
	field    domain.NoteField
	keywords []string
	insight  domain.ClinicalInsight
}

func (r noteRule) evaluate(note domain.ClinicalNote) (domain.ClinicalInsight, bool) {
	text := strings.ToLower(note.Field(r.field))
	if text == "" {
		return domain.ClinicalInsight{}, false
	}
	for _, keyword := range r.keywords {
		if strings.Contains(text, keyword) {
			return r.insight, true
		}
	}
	return domain.ClinicalInsight{}, false
}

// Engine evaluates a fixed, ordered rule set. Rules are independent and
// non-exclusive; none of them mutates its inputs.
type Engine struct {
	rules []noteRule
}

func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// Evaluate returns the ordered insight list for the given note and patient
// context. Identical inputs always produce identical output.
func (e *Engine) Evaluate(note domain.ClinicalNote, patient domain.PatientContext) []domain.ClinicalInsight {
	insights := make([]domain.ClinicalInsight, 0, len(e.rules)+1)

	for _, rule := range e.rules {
		if insight, ok := rule.evaluate(note); ok {
			insights = append(insights, insight)
		}
	}

	if insight, ok := allergyAlert(note, patient); ok {
		insights = append(insights, insight)
	}

	return insights
}

// allergyAlert fires when a known allergen from the patient context shows up
// in the assessment or plan.
func allergyAlert(note domain.ClinicalNote, patient domain.PatientContext) (domain.ClinicalInsight, bool) {
	text := strings.ToLower(note.Assessment + "\n" + note.Plan)
	if strings.TrimSpace(text) == "" {
		return domain.ClinicalInsight{}, false
	}

	var matched []string
	for _, allergy := range patient.Allergies {
		allergy = strings.TrimSpace(allergy)
		if allergy == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(allergy)) {
			matched = append(matched, allergy)
		}
	}
	if len(matched) == 0 {
		return domain.ClinicalInsight{}, false
	}

	return domain.ClinicalInsight{
		Kind:  domain.InsightWarning,
		Title: "Allergy Alert",
		Content: "Documented patient allergy mentioned in the current note: " +
			strings.Join(matched, ", ") + ". Review before prescribing.",
	}, true
}

// defaultRules is the fixed evaluation order: symptom rules on subjective,
// medication rules on assessment, follow-up rules on plan. The allergy rule
// runs last, outside this list.
func defaultRules() []noteRule {
	return []noteRule{
		{
			field:    domain.FieldSubjective,
			keywords: []string{"seizure", "convulsion"},
			insight: domain.ClinicalInsight{
				Kind:  domain.InsightGuideline,
				Title: "Seizure Management Guideline",
				Content: "Reported seizure activity: verify medication adherence, rule out " +
					"precipitating factors (sleep, stress), and consider EEG monitoring " +
					"if the pattern has changed before adding a new ASM.",
			},
		},
		{
			field:    domain.FieldSubjective,
			keywords: []string{"sleep disruption", "insomnia", "poor sleep"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightRecommendation,
				Title:   "Sleep Hygiene Counseling",
				Content: "Sleep disturbance reported. Counsel on sleep hygiene; disrupted sleep is a common seizure precipitant.",
			},
		},
		{
			field:    domain.FieldSubjective,
			keywords: []string{"headache", "migraine"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightInfo,
				Title:   "Headache Reported",
				Content: "Document frequency, severity and relation to episodes; distinguish postictal headache from primary headache.",
			},
		},
		{
			field:    domain.FieldAssessment,
			keywords: []string{"levetiracetam", "keppra"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightGuideline,
				Title:   "Levetiracetam Titration Review",
				Content: "Consider dosage adjustment before adding a new ASM; review the complete medication list for interactions.",
			},
		},
		{
			field:    domain.FieldAssessment,
			keywords: []string{"non-compliance", "nonadherence", "missed dose"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightWarning,
				Title:   "Medication Adherence Concern",
				Content: "Possible non-adherence noted. Verify intake schedule before escalating therapy.",
			},
		},
		{
			field:    domain.FieldPlan,
			keywords: []string{"eeg"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightInfo,
				Title:   "EEG Ordered",
				Content: "EEG in plan: schedule promptly; recent seizure activity improves diagnostic yield.",
			},
		},
		{
			field:    domain.FieldPlan,
			keywords: []string{"follow-up", "follow up"},
			insight: domain.ClinicalInsight{
				Kind:    domain.InsightInfo,
				Title:   "Follow-Up Scheduled",
				Content: "Follow-up planned. Confirm interval against current seizure frequency.",
			},
		},
	}
}
