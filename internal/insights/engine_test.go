package insights

import (
	"reflect"
	"strings"
	"testing"

	"visitscribe/internal/domain"
)

func TestSeizureNoteYieldsSingleGuideline(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	note := domain.ClinicalNote{
		Subjective: "Patient reports one seizure last Tuesday, lasting about a minute.",
		Objective:  "Alert and oriented. No focal deficits.",
		Assessment: "Breakthrough seizure, likely provoked.",
		Plan:       "Continue current regimen.",
	}

	insights := engine.Evaluate(note, domain.PatientContext{})

	var guidelines, warnings int
	for _, insight := range insights {
		switch insight.Kind {
		case domain.InsightGuideline:
			guidelines++
		case domain.InsightWarning:
			warnings++
		}
	}
	if guidelines != 1 {
		t.Fatalf("guidelines = %d, want 1 (got %+v)", guidelines, insights)
	}
	if warnings != 0 {
		t.Fatalf("warnings = %d, want 0 (got %+v)", warnings, insights)
	}
	if insights[0].Title != "Seizure Management Guideline" {
		t.Fatalf("first insight = %q", insights[0].Title)
	}
}

func TestEmptyNoteYieldsNoInsights(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	patient := domain.PatientContext{Allergies: []string{"penicillin"}}

	if got := engine.Evaluate(domain.ClinicalNote{}, patient); len(got) != 0 {
		t.Fatalf("insights = %+v, want none", got)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	note := domain.ClinicalNote{
		Subjective: "Seizure after several nights of poor sleep. Occasional headache.",
		Assessment: "On levetiracetam 500 mg BID. Suspected missed doses.",
		Plan:       "Order EEG, schedule follow-up in 6 weeks, start amoxicillin for sinusitis.",
	}
	patient := domain.PatientContext{Allergies: []string{"Amoxicillin"}}

	first := engine.Evaluate(note, patient)
	for i := 0; i < 10; i++ {
		if again := engine.Evaluate(note, patient); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}

	wantTitles := []string{
		"Seizure Management Guideline",
		"Sleep Hygiene Counseling",
		"Headache Reported",
		"Levetiracetam Titration Review",
		"Medication Adherence Concern",
		"EEG Ordered",
		"Follow-Up Scheduled",
		"Allergy Alert",
	}
	if len(first) != len(wantTitles) {
		t.Fatalf("insights = %d, want %d (%+v)", len(first), len(wantTitles), first)
	}
	for i, want := range wantTitles {
		if first[i].Title != want {
			t.Fatalf("insight[%d] = %q, want %q", i, first[i].Title, want)
		}
	}
}

func TestMatchingIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	note := domain.ClinicalNote{Subjective: "Witnessed CONVULSION at work."}

	insights := engine.Evaluate(note, domain.PatientContext{})
	if len(insights) != 1 || insights[0].Kind != domain.InsightGuideline {
		t.Fatalf("insights = %+v", insights)
	}
}

func TestAllergyAlertRequiresMentionInAssessmentOrPlan(t *testing.T) {
	t.Parallel()

	engine := NewEngine()
	patient := domain.PatientContext{Allergies: []string{"penicillin", "latex"}}

	// Mention in subjective only does not fire the alert.
	note := domain.ClinicalNote{Subjective: "Asked about penicillin from a prior visit."}
	if got := engine.Evaluate(note, patient); len(got) != 0 {
		t.Fatalf("insights = %+v, want none", got)
	}

	note = domain.ClinicalNote{Plan: "Start penicillin VK 500 mg QID."}
	insights := engine.Evaluate(note, patient)
	if len(insights) != 1 {
		t.Fatalf("insights = %+v, want exactly the allergy alert", insights)
	}
	alert := insights[0]
	if alert.Kind != domain.InsightWarning || alert.Title != "Allergy Alert" {
		t.Fatalf("alert = %+v", alert)
	}
	if want := "penicillin"; !strings.Contains(alert.Content, want) {
		t.Fatalf("content %q missing %q", alert.Content, want)
	}
	if strings.Contains(alert.Content, "latex") {
		t.Fatalf("content %q names an unmatched allergen", alert.Content)
	}
}
