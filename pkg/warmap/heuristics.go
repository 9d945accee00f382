package warmap

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	domain "github.com/Golani45/uthgard/pkg/types"
)

// The upstream markup drifts. Everything that sniffs classes, image names,
// or banner phrasing lives here so a schema change is a one-file fix.

var (
	reOwnerClass  = regexp.MustCompile(`keepinfo_([a-z]+)`)
	reUnderAttack = regexp.MustCompile(`(?i)under\s*attack`)
	reRealmToken  = regexp.MustCompile(`(?i)(albion|midgard|hibernia|alb|mid|hib)`)
)

// Filenames the siege banner ships under. A plain "under" substring is too
// loose: it matches unrelated art like "underground.gif".
var siegeBannerFiles = map[string]struct{}{
	"underattack.gif":  {},
	"underattack.png":  {},
	"under_attack.gif": {},
	"under_attack.png": {},
	"siege.gif":        {},
	"siege.png":        {},
	"flames.gif":       {},
}

// realmFromClass extracts the owning realm from a keepinfo_{alb|mid|hib}
// class marker.
func realmFromClass(classAttr string) (domain.Realm, bool) {
	m := reOwnerClass.FindStringSubmatch(strings.ToLower(classAttr))
	if m == nil {
		return "", false
	}
	return domain.ParseRealm(m[1])
}

// realmFromImage infers a realm from an image's src or alt.
func realmFromImage(src, alt string) (domain.Realm, bool) {
	for _, s := range []string{alt, src} {
		if m := reRealmToken.FindString(s); m != "" {
			if r, ok := domain.ParseRealm(m); ok {
				return r, true
			}
		}
	}
	return "", false
}

// isSiegeBannerImage reports whether an img element is the under-attack
// banner: the alt spells it out, or the filename is on the allowlist.
func isSiegeBannerImage(sel *goquery.Selection) bool {
	alt, _ := sel.Attr("alt")
	if reUnderAttack.MatchString(alt) {
		return true
	}
	src, _ := sel.Attr("src")
	base := strings.ToLower(path.Base(src))
	_, ok := siegeBannerFiles[base]
	return ok
}

// isEmblemImage reports whether an img element carries a guild emblem.
func isEmblemImage(sel *goquery.Selection) bool {
	alt, _ := sel.Attr("alt")
	src, _ := sel.Attr("src")
	return strings.Contains(strings.ToLower(alt), "emblem") ||
		strings.Contains(strings.ToLower(src), "emblem")
}

// resolveURL makes src absolute against base. A nil base or unparsable src
// returns src unchanged.
func resolveURL(base *url.URL, src string) string {
	if base == nil || src == "" {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
