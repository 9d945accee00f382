package warmap

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseRealmPoints extracts the lifetime realm-point total from a player
// profile page: the value cell of the first table row whose label cell
// normalizes to "realm points". The boolean is false when no such row
// exists or the value holds no digits.
func ParseRealmPoints(data []byte) (int64, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return 0, false, fmt.Errorf("parsing player HTML: %w", err)
	}

	var rp int64
	found := false

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return true
		}
		label := normalizeLabel(cells.First().Text())
		if label != "realmpoints" {
			return true
		}
		digits := digitsOnly(cells.Eq(1).Text())
		if digits == "" {
			return true
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return true
		}
		rp = v
		found = true
		return false
	})

	return rp, found, nil
}

// normalizeLabel lowercases and strips everything but letters, so
// "Realm Points:", "realm points" and "Realmpoints" all compare equal.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
