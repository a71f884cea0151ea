package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTranscript serializes messages into the stored text form, one line
// per message: "[<timestampMillis>] <speaker>: <text>". Newlines inside the
// text are flattened to spaces so the form stays line-oriented.
func FormatTranscript(messages []TranscriptMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := strings.Join(strings.Fields(m.Text), " ")
		lines = append(lines, fmt.Sprintf("[%d] %s: %s", m.TimestampMillis, m.Speaker, text))
	}
	return strings.Join(lines, "\n")
}

// ParseTranscript is the inverse of FormatTranscript. Lines that do not match
// the stored form are skipped.
func ParseTranscript(text string) []TranscriptMessage {
	var messages []TranscriptMessage
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.Index(line, "]")
		if end < 0 {
			continue
		}
		millis, err := strconv.ParseInt(line[1:end], 10, 64)
		if err != nil {
			continue
		}
		rest := strings.TrimSpace(line[end+1:])
		speaker, body, ok := strings.Cut(rest, ": ")
		if !ok {
			continue
		}
		messages = append(messages, TranscriptMessage{
			Speaker:         ParseSpeaker(speaker),
			Text:            body,
			TimestampMillis: millis,
		})
	}
	return messages
}

// PromptText flattens messages into the "<speaker>: <text>" form consumed by
// the note generation service, joined by blank lines.
func PromptText(messages []TranscriptMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker, m.Text))
	}
	return strings.Join(lines, "\n\n")
}

// ParseSpeaker maps a provider or stored label onto a Speaker. AssemblyAI
// labels diarized speakers with single letters; the first party is assumed
// to be the doctor.
func ParseSpeaker(label string) Speaker {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "a", "doctor":
		return SpeakerDoctor
	case "b", "patient":
		return SpeakerPatient
	}
	return SpeakerUnknown
}

// FallbackSpeaker alternates Doctor/Patient by message-count parity for
// results without diarization. Attribution here is an approximation, not a
// guarantee.
func FallbackSpeaker(index int) Speaker {
	if index%2 == 0 {
		return SpeakerDoctor
	}
	return SpeakerPatient
}
