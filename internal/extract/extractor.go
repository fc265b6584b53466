// Package extract parses structured audio metadata out of found pages.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/instasweep/instasweep/internal/sweep"
)

// ErrNoMetadata signals that the page loaded but lacks the expected
// structure. Callers record it as a terminal error; it never aborts a
// batch.
var ErrNoMetadata = errors.New("page missing expected metadata structure")

var (
	listensRe   = regexp.MustCompile(`(?i)(\d+(?:,\d+)?)\s*listen`)
	downloadsRe = regexp.MustCompile(`(?i)(\d+(?:,\d+)?)\s*download`)
)

// HTMLExtractor pulls title, duration, and play stats from the audio
// page markup.
type HTMLExtractor struct {
	titleSuffix string
}

// New builds an extractor that strips the given site suffix from titles
// (e.g. " - Instaudio").
func New(titleSuffix string) *HTMLExtractor {
	return &HTMLExtractor{titleSuffix: titleSuffix}
}

// Extract parses a found page body into Metadata.
func (x *HTMLExtractor) Extract(body []byte) (sweep.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return sweep.Metadata{}, fmt.Errorf("parse page: %w", err)
	}

	titleSel := doc.Find("title").First()
	if titleSel.Length() == 0 {
		return sweep.Metadata{}, ErrNoMetadata
	}
	title := strings.TrimSpace(strings.ReplaceAll(titleSel.Text(), x.titleSuffix, ""))
	if title == "" {
		title = "Unknown"
	}

	durationRaw := strings.TrimSpace(doc.Find("time").First().Text())
	durationSec := ParseDuration(durationRaw)
	durationFmt := "?:??"
	if durationSec > 0 {
		durationFmt = fmt.Sprintf("%02d:%02d", durationSec/60, durationSec%60)
	}

	pageText := doc.Text()
	return sweep.Metadata{
		Title:           title,
		DurationDisplay: durationFmt,
		DurationSeconds: durationSec,
		Listens:         findCount(listensRe, pageText),
		Downloads:       findCount(downloadsRe, pageText),
	}, nil
}

// ParseDuration converts "M:SS" or "H:MM:SS" display text to seconds,
// returning 0 for anything unparsable.
func ParseDuration(text string) int {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, ":") {
		return 0
	}
	parts := strings.Split(text, ":")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 2:
		return int(vals[0]*60 + vals[1])
	case 3:
		return int(vals[0]*3600 + vals[1]*60 + vals[2])
	default:
		return 0
	}
}

func findCount(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}
