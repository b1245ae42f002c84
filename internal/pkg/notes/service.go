package notes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/internal/pkg/dedup"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/generation"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/ledger"
	"github.com/google/uuid"
)

// CreditsPerSession is what one generation action costs, reflection included.
const CreditsPerSession = 1

var (
	ErrInsufficientCredits = errors.New("notes: insufficient credits")
	ErrDuplicateRequest    = errors.New("notes: identical request within cooldown")
	ErrEmptyNarrative      = errors.New("notes: narrative is required")
)

// Request carries one user-triggered generation action.
type Request struct {
	Email       string
	Narrative   string
	ClientLabel string
	Mode        string
	Reflection  bool
	Intensity   string
}

// Note is the generated output returned to the caller.
type Note struct {
	ID         string `json:"id"`
	Notes      string `json:"notes"`
	Reflection string `json:"reflection,omitempty"`
	FileStem   string `json:"file_stem"`
}

// Service runs the spend-gated generation flow: dedup guard, conditional
// spend, generation call, credit-back on failure. The guard is advisory;
// the ledger's atomic spend is what makes concurrent double-submits safe.
type Service struct {
	guard     *dedup.Guard
	ledger    *ledger.Ledger
	generator generation.Generator
}

// NewService creates a notes service from injected collaborators.
func NewService(guard *dedup.Guard, l *ledger.Ledger, g generation.Generator) *Service {
	return &Service{guard: guard, ledger: l, generator: g}
}

// Generate produces structured session notes for one narrative. The credit is
// deducted atomically before the generation call; if the call fails the
// credit is granted back so a failed session costs nothing.
func (s *Service) Generate(ctx context.Context, req Request) (*Note, error) {
	narrative := strings.TrimSpace(req.Narrative)
	if narrative == "" {
		return nil, ErrEmptyNarrative
	}
	mode := NormalizeMode(req.Mode)
	intensity := NormalizeIntensity(req.Intensity)

	fingerprint := dedup.Fingerprint(req.Email, narrative, req.ClientLabel, mode,
		fmt.Sprintf("reflection=%t", req.Reflection), intensity)
	if s.guard.ShouldReject(ctx, req.Email, fingerprint, time.Now()) {
		return nil, ErrDuplicateRequest
	}

	ok, err := s.ledger.Spend(req.Email, CreditsPerSession)
	if err != nil {
		return nil, fmt.Errorf("spend credit: %w", err)
	}
	if !ok {
		return nil, ErrInsufficientCredits
	}

	notesText, err := s.generator.Generate(ctx, notesSystemPrompt, buildNotesPrompt(narrative, req.ClientLabel, mode))
	if err != nil {
		s.refund(req.Email)
		return nil, fmt.Errorf("generate notes: %w", err)
	}

	reflectionText := ""
	if req.Reflection {
		reflectionText, err = s.generator.Generate(ctx, reflectionSystemPrompt,
			buildReflectionPrompt(narrative, notesText, req.ClientLabel, intensity))
		if err != nil {
			s.refund(req.Email)
			return nil, fmt.Errorf("generate reflection: %w", err)
		}
	}

	stem := fmt.Sprintf("%s_%s", SafeDownloadName(req.ClientLabel), time.Now().Format("2006-01-02_15-04"))
	return &Note{
		ID:         uuid.NewString(),
		Notes:      notesText,
		Reflection: reflectionText,
		FileStem:   stem,
	}, nil
}

func (s *Service) refund(email string) {
	if err := s.ledger.Grant(email, CreditsPerSession); err != nil {
		// The spend already committed; losing the refund must at least be loud.
		log.Printf("notes: failed to refund credit to %s after generation failure: %v", email, err)
	}
}
