package enricher

import (
	"strings"
	"testing"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

func testSections() []domain.Section {
	return []domain.Section{
		{SectionID: "s01", Content: "The company announced a new product line today."},
		{SectionID: "s02", Content: "Analysts expect revenue to grow by 10 percent next year."},
	}
}

func TestValidateAcceptsGroundedSignal(t *testing.T) {
	cfg := withDefaults(Config{})
	output := enrichmentOutput{
		Summary: "short summary",
		Signals: []enrichmentSignal{
			{
				Claim:             "revenue will grow",
				Why:               "analyst expectations",
				SupportingSnippet: "revenue to grow by 10 percent",
				Cite:              citePointer{SectionID: "s02"},
			},
		},
	}

	if err := validate(output, testSections(), cfg); err != nil {
		t.Fatalf("expected valid output, got error: %v", err)
	}
}

func TestValidateRejectsUngroundedSnippet(t *testing.T) {
	cfg := withDefaults(Config{})
	output := enrichmentOutput{
		Summary: "short summary",
		Signals: []enrichmentSignal{
			{
				Claim:             "claim",
				Why:               "why",
				SupportingSnippet: "this text does not appear anywhere",
				Cite:              citePointer{SectionID: "s02"},
			},
		},
	}

	err := validate(output, testSections(), cfg)
	if err != ErrUngroundedSnippet {
		t.Fatalf("expected ErrUngroundedSnippet, got %v", err)
	}
}

func TestValidateRejectsUnknownSectionID(t *testing.T) {
	cfg := withDefaults(Config{})
	output := enrichmentOutput{
		Summary: "short summary",
		Signals: []enrichmentSignal{
			{
				Claim:             "claim",
				Why:               "why",
				SupportingSnippet: "x",
				Cite:              citePointer{SectionID: "s99"},
			},
		},
	}

	err := validate(output, testSections(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown section_id")
	}
}

func TestValidateRejectsSummaryTooLong(t *testing.T) {
	cfg := withDefaults(Config{MaxSummaryChars: 10})
	output := enrichmentOutput{Summary: strings.Repeat("a", 11)}

	if err := validate(output, testSections(), cfg); err != ErrSummaryTooLong {
		t.Fatalf("expected ErrSummaryTooLong, got %v", err)
	}
}

func TestValidateRejectsTooManySignals(t *testing.T) {
	cfg := withDefaults(Config{MaxSignals: 1})
	output := enrichmentOutput{
		Signals: []enrichmentSignal{
			{Cite: citePointer{SectionID: "s01"}},
			{Cite: citePointer{SectionID: "s01"}},
		},
	}

	if err := validate(output, testSections(), cfg); err != ErrTooManySignals {
		t.Fatalf("expected ErrTooManySignals, got %v", err)
	}
}

func TestTrimAddsEllipsisWhenTruncated(t *testing.T) {
	got := trim(strings.Repeat("a", 20), 10)
	if got != strings.Repeat("a", 7)+"..." {
		t.Errorf("unexpected trim result: %q", got)
	}
}

func TestTrimLeavesShortTextAlone(t *testing.T) {
	got := trim("short", 10)
	if got != "short" {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestBuildPromptIncludesInstructions(t *testing.T) {
	cfg := withDefaults(Config{})
	prompt := buildPrompt("Title", "https://example.com/a", testSections(), cfg)

	if !strings.Contains(prompt, "\"signals_max\"") {
		t.Errorf("expected instructions block in prompt, got %q", prompt)
	}

	if !strings.Contains(prompt, "s01") {
		t.Errorf("expected section ids in prompt, got %q", prompt)
	}
}
