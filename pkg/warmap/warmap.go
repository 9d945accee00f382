// Package warmap parses the Herald warmap HTML document into a canonical
// world-state snapshot: keep panels, the recent-events table, and the
// Darkness Falls owner. Parsing is a pure function of the input bytes plus
// the parse instant; it never fails on missing optional fields.
package warmap

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	domain "github.com/Golani45/uthgard/pkg/types"
)

// DefaultAttackWindow is how fresh an under-attack event must be to flag a
// keep as besieged.
const DefaultAttackWindow = 7 * time.Minute

// maxEvents caps the parsed event list.
const maxEvents = 200

// Options configures a parse.
type Options struct {
	// Now anchors the synthetic event timestamps. Zero means time.Now().
	Now time.Time
	// BaseURL resolves relative emblem image paths. May be nil.
	BaseURL *url.URL
	// AttackWindow overrides DefaultAttackWindow when positive.
	AttackWindow time.Duration
}

var (
	reLevel   = regexp.MustCompile(`(?i)level\s+(\d+)\s+keep`)
	reRelic   = regexp.MustCompile(`(?i)relic`)
	reEmblem  = regexp.MustCompile(`(?i)emblem`)
	reRelTime = regexp.MustCompile(`(?i)\b(\d+)\s*(m|min|minute|h|hour|d|day)s?\s*ago\b`)

	reCaptureEvent = regexp.MustCompile(
		`^(.+?) (?:has been|was) captured by (?:the forces of )?(Albion|Midgard|Hibernia)(?: led by (.+?))?[.!]?$`)
	reUAEvent      = regexp.MustCompile(`^(.+?) (?:is|was) under attack`)
	reClaimedEvent = regexp.MustCompile(`^(.+?) (?:has been|was) claimed by (.+?)[.!]?$`)
	reUpgradeEvent = regexp.MustCompile(`^(.+?) (?:has been|was) upgraded to level (\d+)`)
)

// Parse converts the warmap HTML into a Snapshot. A document with no keep
// panels yields an empty keep list; downstream treats that as "nothing to
// diff" and never advances baselines from it.
func Parse(data []byte, opts Options) (*domain.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing warmap HTML: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := opts.AttackWindow
	if window <= 0 {
		window = DefaultAttackWindow
	}

	snap := &domain.Snapshot{
		UpdatedAt: now,
		Keeps:     parseKeeps(doc, opts.BaseURL),
		Events:    parseEvents(doc, now),
		DFOwner:   parseDFOwner(doc),
	}

	applyAttackEvents(snap, now, window)

	return snap, nil
}

func parseKeeps(doc *goquery.Document, base *url.URL) []domain.Keep {
	var keeps []domain.Keep
	seen := map[string]struct{}{}

	doc.Find("[class*='keepinfo_']").Each(func(_ int, panel *goquery.Selection) {
		classAttr, _ := panel.Attr("class")
		owner, ok := realmFromClass(classAttr)
		if !ok {
			return
		}

		hdr := panel.Find(".keepheader").First()
		if hdr.Length() == 0 {
			hdr = panel.Find("td, th").First()
		}
		if hdr.Length() == 0 {
			hdr = panel
		}

		lines := cellLines(hdr)
		if len(lines) == 0 {
			return
		}
		name := lines[0]
		id := domain.Slug(name)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		k := domain.Keep{
			ID:    id,
			Name:  name,
			Type:  domain.KeepTypeKeep,
			Owner: owner,
		}
		if reRelic.MatchString(name) || reRelic.MatchString(classAttr) {
			k.Type = domain.KeepTypeRelic
		}

		hdrText := strings.Join(lines, "\n")
		if m := reLevel.FindStringSubmatch(hdrText); m != nil {
			k.Level, _ = strconv.Atoi(m[1])
		}

		k.HeaderUnderAttack = headerUnderAttack(hdr, hdrText)
		k.UnderAttack = k.HeaderUnderAttack
		k.ClaimedBy = claimedBy(lines, name)

		panel.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if !isEmblemImage(img) {
				return true
			}
			src, _ := img.Attr("src")
			k.EmblemURL = resolveURL(base, src)
			return false
		})

		keeps = append(keeps, k)
	})

	return keeps
}

func headerUnderAttack(hdr *goquery.Selection, hdrText string) bool {
	if reUnderAttack.MatchString(normalizeSpace(hdrText)) {
		return true
	}
	banner := false
	hdr.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if isSiegeBannerImage(img) {
			banner = true
			return false
		}
		return true
	})
	return banner
}

// claimedBy scans the header lines bottom-up for the claiming guild,
// rejecting the keep name itself, level lines, emblem captions, and the
// under-attack phrase.
func claimedBy(lines []string, name string) string {
	for i := len(lines) - 1; i >= 1; i-- {
		l := lines[i]
		switch {
		case l == name:
		case reLevel.MatchString(l):
		case reEmblem.MatchString(l):
		case reUnderAttack.MatchString(l):
		default:
			return l
		}
	}
	return ""
}

func parseEvents(doc *goquery.Document, now time.Time) []domain.Event {
	var events []domain.Event
	bucketIdx := map[string]int{}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// Keep panels are tables too; their rows are not events.
		if row.Closest("[class*='keepinfo_']").Length() > 0 {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		var token string
		var age time.Duration
		var text string
		cells.Each(func(_ int, c *goquery.Selection) {
			cell := normalizeSpace(c.Text())
			if m := reRelTime.FindStringSubmatch(cell); m != nil && token == "" {
				token = normalizeSpace(m[0])
				age = relDuration(m[1], m[2])
				return
			}
			if text == "" {
				text = cell
			}
		})
		if token == "" || text == "" {
			return
		}

		// Events sharing a relative token land in one bucket; spreading
		// them a minute apart preserves row order without pretending they
		// happened at the same instant.
		idx := bucketIdx[token]
		bucketIdx[token]++
		at := now.Add(-age).Add(-time.Duration(idx) * time.Minute)

		e := parseEventText(text)
		e.At = at
		e.Raw = text + " (" + token + ")"
		events = append(events, e)
	})

	// Newest first. Buckets already descend within themselves, so a stable
	// sort keeps row order.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].At.After(events[j-1].At); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	return events
}

func parseEventText(text string) domain.Event {
	if m := reCaptureEvent.FindStringSubmatch(text); m != nil {
		owner, _ := domain.ParseRealm(m[2])
		kind := domain.EventCaptured
		if reRelic.MatchString(m[1]) {
			kind = domain.EventRelicMoved
		}
		return domain.Event{
			Kind:     kind,
			KeepID:   domain.Slug(m[1]),
			KeepName: m[1],
			NewOwner: owner,
			Leader:   m[3],
		}
	}
	if m := reUAEvent.FindStringSubmatch(text); m != nil {
		return domain.Event{
			Kind:     domain.EventUnderAttack,
			KeepID:   domain.Slug(m[1]),
			KeepName: m[1],
		}
	}
	if m := reClaimedEvent.FindStringSubmatch(text); m != nil {
		return domain.Event{
			Kind:     domain.EventClaimed,
			KeepID:   domain.Slug(m[1]),
			KeepName: m[1],
			Leader:   m[2],
		}
	}
	if m := reUpgradeEvent.FindStringSubmatch(text); m != nil {
		return domain.Event{
			Kind:     domain.EventUpgraded,
			KeepID:   domain.Slug(m[1]),
			KeepName: m[1],
		}
	}
	return domain.Event{Kind: domain.EventOther}
}

func relDuration(magnitude, unit string) time.Duration {
	n, _ := strconv.Atoi(magnitude)
	switch strings.ToLower(unit)[0] {
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}

func applyAttackEvents(snap *domain.Snapshot, now time.Time, window time.Duration) {
	for i := range snap.Events {
		e := &snap.Events[i]
		if e.Kind != domain.EventUnderAttack {
			continue
		}
		if now.Sub(e.At) > window {
			continue
		}
		if k := snap.Keep(e.KeepID); k != nil {
			k.UnderAttack = true
			at := e.At
			k.LastEvent = &at
		}
	}
}

func parseDFOwner(doc *goquery.Document) domain.Realm {
	owner := domain.RealmMidgard // documented fallback when the panel is ambiguous
	doc.Find("#df, .df, [class*='darkness'], [class*='dfowner']").
		Find("img").
		EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src, _ := img.Attr("src")
			alt, _ := img.Attr("alt")
			if r, ok := realmFromImage(src, alt); ok {
				owner = r
				return false
			}
			return true
		})
	return owner
}

// cellLines renders a table cell to logical lines: <br> and block children
// become line breaks, whitespace is collapsed, empties dropped.
func cellLines(sel *goquery.Selection) []string {
	clone := sel.Clone()
	clone.Find("br").ReplaceWithHtml("\n")
	clone.Find("div, p, tr").AppendHtml("\n")

	var lines []string
	for _, l := range strings.Split(clone.Text(), "\n") {
		if l = normalizeSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
