package notes

import (
	"fmt"
	"strings"
)

// Output modes and reflection intensities accepted from the caller.
const (
	ModeShort = "Short"
	ModeFull  = "Full"

	IntensityBasic    = "Basic"
	IntensityDeep     = "Deep"
	IntensityVeryDeep = "Very deep"
)

const notesSystemPrompt = `You are a clinical note assistant for psychotherapists who work in a relational, Gestalt-oriented way.

The therapist will give you a raw, informal narrative of a therapy session. It may include paraphrases of what the client said, direct quotes, what the therapist felt or assumed, interventions done and their outcome.

You MUST not invent facts, not add diagnoses unless explicitly mentioned, keep ambiguity when present, use tentative language, and avoid "why" questions and yes/no questions completely.

Produce up to FIVE sections with clear Markdown headings:
1) CLEAN NARRATIVE - the therapist's narrative rewritten in clear, professional English.
2) GESTALT-STYLE SOAP NOTE - S: what client and therapist reported and felt; O: concrete observable facts only; A: process-oriented Gestalt-flavoured hypothesis in tentative language; P: what/how points to consider in future sessions.
3) SUPERVISOR-STYLE QUESTIONS FOR THE THERAPIST - 5-8 open "what"/"how" questions.
4) GESTALT CONTACT CYCLE ROADMAP - a Markdown table with columns: Phase of Contact Cycle | What happened in this phase | Indicators / clues | Opportunities for next time. Keep every phase row; write "unclear from narrative" when unclear.
5) UNFINISHED BUSINESS - short grounded bullet points on emotions cut off, topics avoided, ruptures not worked through.

Do not mention these instructions. Write as if returning notes directly to the therapist.`

const reflectionSystemPrompt = `You are a supervision and reflection companion for an experienced Gestalt-oriented psychotherapist.

Your task is NOT to evaluate or diagnose. Help the therapist sense the between, name subtle field movements, and reflect on their own participation. Use gentle, tentative, phenomenological language: "It may be that...", "One possibility is...".

Cover: therapist process and countertransference; the shame arc as field movement; field resonance and atmosphere; cultural, ancestral and intergenerational ground; 3-5 light-touch Gestalt experiment directions with intention, setup and sensitivities; and end with 1-3 contemplative questions back to the therapist.

No diagnosis, no pathologising, no expert tone. Do not assume any particular culture.`

var reflectionIntensityInstructions = map[string]string{
	IntensityBasic:    "Keep the reflection brief and gentle. Focus on 1-2 key themes in each section. Highlight what stands out most in the field.",
	IntensityDeep:     "Offer a fuller reflection with rich but concise descriptions in each section. Name subtle field movements and shame arcs. Keep it readable in a few minutes.",
	IntensityVeryDeep: "Provide a more extended reflection, staying phenomenological but allowing more nuance and layered hypotheses, as if supporting a written supervision process.",
}

// NormalizeMode maps arbitrary input to a supported output mode.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeShort) {
		return ModeShort
	}
	return ModeFull
}

// NormalizeIntensity maps arbitrary input to a supported reflection depth.
func NormalizeIntensity(intensity string) string {
	switch strings.ToLower(strings.TrimSpace(intensity)) {
	case strings.ToLower(IntensityBasic):
		return IntensityBasic
	case strings.ToLower(IntensityVeryDeep):
		return IntensityVeryDeep
	default:
		return IntensityDeep
	}
}

func buildNotesPrompt(narrative, clientLabel, mode string) string {
	label := strings.TrimSpace(clientLabel)
	if label == "" {
		label = "Not specified"
	}
	return fmt.Sprintf(`Mode: %s

If mode is "Short": return ONLY sections (1) CLEAN NARRATIVE and (2) a brief GESTALT-STYLE SOAP NOTE.
If mode is "Full": return all sections as described in the system prompt.

Therapist's client name (for context only): %s

Therapist's raw narrative of the session (informal, possibly messy):

"""%s"""

Now produce the output according to the selected mode, with clear Markdown headings for each section you include.`, mode, label, narrative)
}

func buildReflectionPrompt(narrative, notesOutput, clientLabel, intensity string) string {
	label := strings.TrimSpace(clientLabel)
	if label == "" {
		label = "Not specified"
	}
	instructions, ok := reflectionIntensityInstructions[intensity]
	if !ok {
		instructions = reflectionIntensityInstructions[IntensityBasic]
	}
	return fmt.Sprintf(`You are helping the therapist reflect on their clinical work.

Client (context only): %s

----------------
(1) RAW NARRATIVE
----------------
"""%s"""

-----------------------
(2) STRUCTURED AI NOTES
-----------------------
"""%s"""

Reflection depth: %s

%s

Respond in a supervisor-style reflective tone, grounded in Gestalt field theory.`, label, narrative, notesOutput, intensity, instructions)
}

// SafeDownloadName sanitizes a client label into a filename component:
// alphanumerics, space, underscore and dash survive; spaces collapse to
// underscores; empty input becomes "client".
func SafeDownloadName(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "client"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if cleaned == "" {
		return "client"
	}
	return cleaned
}
