package sectioniser

import (
	"strings"
	"testing"
)

func TestSectioniseEmpty(t *testing.T) {
	sections, outline := Sectionise("art1", "   \n\n  ")
	if sections != nil || outline != nil {
		t.Errorf("expected nil sections/outline for blank text, got %v / %v", sections, outline)
	}
}

func TestSectioniseSingleParagraph(t *testing.T) {
	sections, outline := Sectionise("art1", "hello world")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}

	if sections[0].SectionID != "s01" {
		t.Errorf("expected section_id s01, got %q", sections[0].SectionID)
	}

	if sections[0].Heading != "Section 1" {
		t.Errorf("expected heading 'Section 1', got %q", sections[0].Heading)
	}

	if sections[0].Content != "hello world" {
		t.Errorf("expected content 'hello world', got %q", sections[0].Content)
	}

	if len(outline) != 1 || outline[0].SectionID != "s01" {
		t.Errorf("expected matching outline entry, got %v", outline)
	}
}

func TestSectionisePacksUnderBudget(t *testing.T) {
	para := strings.Repeat("a", 500)
	text := strings.Join([]string{para, para, para}, "\n\n")

	sections, _ := Sectionise("art1", text)
	if len(sections) != 1 {
		t.Fatalf("expected paragraphs under budget to pack into 1 section, got %d", len(sections))
	}
}

func TestSectioniseSplitsOverBudget(t *testing.T) {
	para := strings.Repeat("a", 1200)
	text := strings.Join([]string{para, para, para}, "\n\n")

	sections, outline := Sectionise("art1", text)
	// Each pair (1200+1200=2400) exceeds the 2000-char cap, so every
	// paragraph ends up flushed into its own section.
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}

	if sections[0].Rank != 1 || sections[1].Rank != 2 || sections[2].Rank != 3 {
		t.Errorf("expected ranks 1,2,3 in order, got %d,%d,%d", sections[0].Rank, sections[1].Rank, sections[2].Rank)
	}

	if len(outline) != 3 {
		t.Errorf("expected 3 outline entries, got %d", len(outline))
	}
}

func TestSectioniseZeroPadsIDsPastNine(t *testing.T) {
	paras := make([]string, 15)
	big := strings.Repeat("b", 1999)

	for i := range paras {
		paras[i] = big
	}

	text := strings.Join(paras, "\n\n")

	sections, _ := Sectionise("art1", text)
	if len(sections) < 10 {
		t.Fatalf("expected at least 10 sections, got %d", len(sections))
	}

	if sections[9].SectionID != "s10" {
		t.Errorf("expected 10th section id s10, got %q", sections[9].SectionID)
	}
}

func TestSectioniseBlurbTruncatesAt160(t *testing.T) {
	para := strings.Repeat("c", 300)

	sections, outline := Sectionise("art1", para)
	if len(sections[0].Blurb) != 160 {
		t.Errorf("expected blurb length 160, got %d", len(sections[0].Blurb))
	}

	if outline[0].Blurb != sections[0].Blurb {
		t.Errorf("expected outline blurb to match section blurb")
	}
}
