// Package sectioniser splits extracted article text into bounded
// sections, greedily packing paragraphs so that the paragraphs of a
// section total at most the configured character cap.
package sectioniser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

const (
	maxSectionChars = 2000
	blurbChars      = 160
)

var blankRunRE = regexp.MustCompile(`\n{2,}`)

// Sectionise splits text into paragraphs on blank-line runs and packs
// them greedily into sections whose paragraph lengths sum to at most
// maxSectionChars (the "\n\n" separators are not counted, and a single
// paragraph longer than the cap forms a section of its own), returning
// the sections alongside their outline entries in rank order. Section IDs
// ("s01", "s02", ...) are only stable for this extraction; a re-fetch
// that re-runs sectionise from scratch may reassign them.
func Sectionise(articleID, text string) ([]domain.Section, []domain.OutlineEntry) {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, nil
	}

	var (
		sections []domain.Section
		outline  []domain.OutlineEntry
		buffer   []string
		bufLen   int
		rank     = 1
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		content := strings.Join(buffer, "\n\n")
		sectionID := sectionID(rank)
		heading := sectionHeading(rank)
		blurb := blurb(content)

		sections = append(sections, domain.Section{
			ArticleID: articleID,
			SectionID: sectionID,
			Heading:   heading,
			Content:   content,
			Blurb:     blurb,
			Rank:      rank,
		})
		outline = append(outline, domain.OutlineEntry{
			SectionID: sectionID,
			Heading:   heading,
			Blurb:     blurb,
			Rank:      rank,
		})

		rank++
		buffer = nil
		bufLen = 0
	}

	for _, para := range paragraphs {
		if len(buffer) > 0 && bufLen+len(para) > maxSectionChars {
			flush()
		}

		buffer = append(buffer, para)
		bufLen += len(para)
	}

	flush()

	return sections, outline
}

func splitParagraphs(text string) []string {
	chunks := blankRunRE.Split(text, -1)

	out := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		trimmed := strings.TrimSpace(chunk)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

func sectionID(rank int) string {
	return "s" + fmtZeroPad2(rank)
}

func sectionHeading(rank int) string {
	return "Section " + strconv.Itoa(rank)
}

func blurb(content string) string {
	if len(content) > blurbChars {
		content = content[:blurbChars]
	}

	return strings.TrimSpace(content)
}

func fmtZeroPad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}

	return s
}
