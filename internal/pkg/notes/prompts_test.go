package notes

import (
	"strings"
	"testing"
)

func TestNormalizeMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Short", want: ModeShort},
		{in: "short", want: ModeShort},
		{in: " SHORT ", want: ModeShort},
		{in: "Full", want: ModeFull},
		{in: "anything", want: ModeFull},
		{in: "", want: ModeFull},
	}

	for _, tt := range tests {
		if got := NormalizeMode(tt.in); got != tt.want {
			t.Fatalf("NormalizeMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIntensity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Basic", want: IntensityBasic},
		{in: "basic", want: IntensityBasic},
		{in: "Very deep", want: IntensityVeryDeep},
		{in: "VERY DEEP", want: IntensityVeryDeep},
		{in: "Deep", want: IntensityDeep},
		{in: "unknown", want: IntensityDeep},
		{in: "", want: IntensityDeep},
	}

	for _, tt := range tests {
		if got := NormalizeIntensity(tt.in); got != tt.want {
			t.Fatalf("NormalizeIntensity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildNotesPrompt(t *testing.T) {
	prompt := buildNotesPrompt("client arrived late and talked about work", "Anna B", ModeShort)

	for _, want := range []string{"Mode: Short", "Anna B", "client arrived late"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("notes prompt missing %q:\n%s", want, prompt)
		}
	}

	prompt = buildNotesPrompt("narrative", "", ModeFull)
	if !strings.Contains(prompt, "Not specified") {
		t.Fatalf("expected empty client label to render as Not specified")
	}
}

func TestBuildReflectionPrompt(t *testing.T) {
	prompt := buildReflectionPrompt("narrative text", "notes text", "Anna", IntensityVeryDeep)

	for _, want := range []string{"narrative text", "notes text", "Anna", IntensityVeryDeep} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("reflection prompt missing %q", want)
		}
	}
	if !strings.Contains(prompt, reflectionIntensityInstructions[IntensityVeryDeep]) {
		t.Fatalf("expected the intensity instructions to be embedded")
	}

	// unknown intensity falls back to the basic instructions
	prompt = buildReflectionPrompt("n", "o", "", "bogus")
	if !strings.Contains(prompt, reflectionIntensityInstructions[IntensityBasic]) {
		t.Fatalf("expected unknown intensity to fall back to basic instructions")
	}
}

func TestSafeDownloadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Anna B", want: "Anna_B"},
		{in: "  Anna  ", want: "Anna"},
		{in: "client-1_x", want: "client-1_x"},
		{in: "äöü/..\\", want: "client"},
		{in: "", want: "client"},
		{in: "../../etc/passwd", want: "etcpasswd"},
		{in: "Mr. Smith", want: "Mr_Smith"},
	}

	for _, tt := range tests {
		if got := SafeDownloadName(tt.in); got != tt.want {
			t.Fatalf("SafeDownloadName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
