package domain

import (
	"reflect"
	"testing"
)

func TestTranscriptRoundTrip(t *testing.T) {
	t.Parallel()

	messages := []TranscriptMessage{
		{Speaker: SpeakerDoctor, Text: "How have the episodes been?", TimestampMillis: 0},
		{Speaker: SpeakerPatient, Text: "One seizure, last Tuesday.", TimestampMillis: 4200},
		{Speaker: SpeakerUnknown, Text: "(door opens)", TimestampMillis: 9000},
	}

	got := ParseTranscript(FormatTranscript(messages))
	if !reflect.DeepEqual(got, messages) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, messages)
	}
}

func TestFormatTranscriptFlattensNewlines(t *testing.T) {
	t.Parallel()

	messages := []TranscriptMessage{
		{Speaker: SpeakerDoctor, Text: "First line.\nSecond line.", TimestampMillis: 10},
	}

	got := ParseTranscript(FormatTranscript(messages))
	if len(got) != 1 {
		t.Fatalf("messages = %+v, want 1", got)
	}
	if got[0].Text != "First line. Second line." {
		t.Fatalf("text = %q", got[0].Text)
	}
}

func TestParseTranscriptSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	raw := "[100] Doctor: Hello.\ngarbage line\n[not-a-number] Patient: Hi.\n[200] Patient: Hi."
	got := ParseTranscript(raw)
	if len(got) != 2 {
		t.Fatalf("messages = %+v, want 2", got)
	}
	if got[1].Speaker != SpeakerPatient || got[1].TimestampMillis != 200 {
		t.Fatalf("second message = %+v", got[1])
	}
}

func TestParseSpeaker(t *testing.T) {
	t.Parallel()

	cases := map[string]Speaker{
		"A":       SpeakerDoctor,
		"a":       SpeakerDoctor,
		"Doctor":  SpeakerDoctor,
		"B":       SpeakerPatient,
		"patient": SpeakerPatient,
		"C":       SpeakerUnknown,
		"":        SpeakerUnknown,
	}
	for label, want := range cases {
		if got := ParseSpeaker(label); got != want {
			t.Fatalf("ParseSpeaker(%q) = %s, want %s", label, got, want)
		}
	}
}

func TestFallbackSpeakerAlternatesByParity(t *testing.T) {
	t.Parallel()

	if got := FallbackSpeaker(0); got != SpeakerDoctor {
		t.Fatalf("even parity = %s", got)
	}
	if got := FallbackSpeaker(3); got != SpeakerPatient {
		t.Fatalf("odd parity = %s", got)
	}
}

func TestPromptText(t *testing.T) {
	t.Parallel()

	messages := []TranscriptMessage{
		{Speaker: SpeakerDoctor, Text: "How are you?", TimestampMillis: 0},
		{Speaker: SpeakerPatient, Text: "Better.", TimestampMillis: 1000},
	}
	want := "Doctor: How are you?\n\nPatient: Better."
	if got := PromptText(messages); got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}
