package warmap

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Golani45/uthgard/pkg/types"
)

const fixtureWarmap = `<html><body>
<table class="keepinfo_mid">
  <tr><td class="keepheader">
    Bledmeer Faste<br>
    Level 5 keep<br>
    Guild emblem<br>
    Stormwatch
  </td></tr>
  <tr><td><img src="/emblems/stormwatch.png" alt="Guild emblem"></td></tr>
</table>
<table class="keepinfo_alb">
  <tr><td class="keepheader">
    Caer Benowyc<br>
    Level 4 keep<br>
    <img src="/img/underattack.gif">
  </td></tr>
</table>
<table class="keepinfo_hib">
  <tr><td class="keepheader">
    Dun Crauchon<br>
    Level 1 keep
  </td></tr>
</table>
<table class="events">
  <tr><td>Caer Benowyc is under attack!</td><td>3m ago</td></tr>
  <tr><td>Bledmeer Faste was captured by Midgard led by Ragnar</td><td>10m ago</td></tr>
  <tr><td>Dun Crauchon has been captured by the forces of Hibernia</td><td>10m ago</td></tr>
  <tr><td>Dun Crauchon was claimed by Emerald Riders</td><td>2h ago</td></tr>
</table>
<div class="dfowner"><img src="/img/df_hib.gif" alt="Hibernia holds Darkness Falls"></div>
</body></html>`

func parseFixture(t *testing.T, html string) *domain.Snapshot {
	t.Helper()
	base, _ := url.Parse("https://herald.example.com/warmap")
	snap, err := Parse([]byte(html), Options{
		Now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		BaseURL: base,
	})
	require.NoError(t, err)
	return snap
}

func TestParse_Keeps(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, fixtureWarmap)
	require.Len(t, snap.Keeps, 3)

	bled := snap.Keep("bledmeer-faste")
	require.NotNil(t, bled)
	assert.Equal(t, "Bledmeer Faste", bled.Name)
	assert.Equal(t, domain.RealmMidgard, bled.Owner)
	assert.Equal(t, domain.KeepTypeKeep, bled.Type)
	assert.Equal(t, 5, bled.Level)
	assert.Equal(t, "Stormwatch", bled.ClaimedBy, "claimed-by scan must skip name, level and emblem lines")
	assert.Equal(t, "https://herald.example.com/emblems/stormwatch.png", bled.EmblemURL)
	assert.False(t, bled.HeaderUnderAttack)

	caer := snap.Keep("caer-benowyc")
	require.NotNil(t, caer)
	assert.Equal(t, domain.RealmAlbion, caer.Owner)
	assert.True(t, caer.HeaderUnderAttack, "banner image on the allowlist flags the keep")
	assert.Empty(t, caer.ClaimedBy)
}

func TestParse_BannerText(t *testing.T) {
	t.Parallel()

	html := `<table class="keepinfo_alb"><tr><td class="keepheader">
		Caer Berkstead<br>Level 2 keep<br>Under Attack!
	</td></tr></table>`
	snap := parseFixture(t, html)

	k := snap.Keep("caer-berkstead")
	require.NotNil(t, k)
	assert.True(t, k.HeaderUnderAttack)
	assert.Empty(t, k.ClaimedBy, "the under-attack phrase is not a guild name")
}

func TestParse_NoPlainUnderSubstringMatch(t *testing.T) {
	t.Parallel()

	html := `<table class="keepinfo_alb"><tr><td class="keepheader">
		Caer Hurbury<br>Level 3 keep<br><img src="/img/underground.gif">
	</td></tr></table>`
	snap := parseFixture(t, html)

	k := snap.Keep("caer-hurbury")
	require.NotNil(t, k)
	assert.False(t, k.HeaderUnderAttack, "only allowlisted banner filenames count")
}

func TestParse_RelicKeepType(t *testing.T) {
	t.Parallel()

	html := `<table class="keepinfo_mid"><tr><td class="keepheader">Grallarhorn Faste Relic</td></tr></table>`
	snap := parseFixture(t, html)

	require.Len(t, snap.Keeps, 1)
	assert.Equal(t, domain.KeepTypeRelic, snap.Keeps[0].Type)
}

func TestParse_Events(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, fixtureWarmap)
	require.Len(t, snap.Events, 4)

	// Newest first.
	ua := snap.Events[0]
	assert.Equal(t, domain.EventUnderAttack, ua.Kind)
	assert.Equal(t, "caer-benowyc", ua.KeepID)
	assert.Equal(t, snap.UpdatedAt.Add(-3*time.Minute), ua.At)

	cap1 := snap.Events[1]
	assert.Equal(t, domain.EventCaptured, cap1.Kind)
	assert.Equal(t, "bledmeer-faste", cap1.KeepID)
	assert.Equal(t, domain.RealmMidgard, cap1.NewOwner)
	assert.Equal(t, "Ragnar", cap1.Leader)
	assert.Equal(t, snap.UpdatedAt.Add(-10*time.Minute), cap1.At)

	// Same relative token: spread one minute apart, row order preserved.
	cap2 := snap.Events[2]
	assert.Equal(t, domain.EventCaptured, cap2.Kind)
	assert.Equal(t, "dun-crauchon", cap2.KeepID)
	assert.Equal(t, domain.RealmHibernia, cap2.NewOwner)
	assert.Empty(t, cap2.Leader)
	assert.Equal(t, snap.UpdatedAt.Add(-11*time.Minute), cap2.At)

	claimed := snap.Events[3]
	assert.Equal(t, domain.EventClaimed, claimed.Kind)
	assert.Equal(t, "Emerald Riders", claimed.Leader)
	assert.Equal(t, snap.UpdatedAt.Add(-2*time.Hour), claimed.At)
}

func TestParse_AttackWindowAppliedToKeeps(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, fixtureWarmap)

	// UA event 3m ago is inside the 7m window.
	caer := snap.Keep("caer-benowyc")
	require.NotNil(t, caer)
	assert.True(t, caer.UnderAttack)
	require.NotNil(t, caer.LastEvent)
	assert.Equal(t, snap.UpdatedAt.Add(-3*time.Minute), *caer.LastEvent)

	// Capture 10m ago does not flag UA on Bledmeer.
	bled := snap.Keep("bledmeer-faste")
	require.NotNil(t, bled)
	assert.False(t, bled.UnderAttack)
}

func TestParse_StaleAttackEventDoesNotFlag(t *testing.T) {
	t.Parallel()

	html := `
	<table class="keepinfo_hib"><tr><td class="keepheader">Dun Bolg</td></tr></table>
	<table class="events"><tr><td>Dun Bolg is under attack</td><td>20m ago</td></tr></table>`
	snap := parseFixture(t, html)

	k := snap.Keep("dun-bolg")
	require.NotNil(t, k)
	assert.False(t, k.UnderAttack)
	assert.Nil(t, k.LastEvent)
}

func TestParse_DFOwner(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, fixtureWarmap)
	assert.Equal(t, domain.RealmHibernia, snap.DFOwner)
}

func TestParse_DFOwnerDefaultsToMidgard(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, `<html><body><p>nothing here</p></body></html>`)
	assert.Equal(t, domain.RealmMidgard, snap.DFOwner)
}

func TestParse_EmptyDocumentYieldsEmptyKeeps(t *testing.T) {
	t.Parallel()

	snap := parseFixture(t, "<html><body></body></html>")
	assert.Empty(t, snap.Keeps)
	assert.Empty(t, snap.Events)
}

func TestParse_SameInputHashesEqual(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://herald.example.com/warmap")
	a, err := Parse([]byte(fixtureWarmap), Options{Now: time.Now(), BaseURL: base})
	require.NoError(t, err)
	b, err := Parse([]byte(fixtureWarmap), Options{Now: time.Now().Add(45 * time.Second), BaseURL: base})
	require.NoError(t, err)

	assert.Equal(t, a.CanonicalHash(), b.CanonicalHash())
}

func TestParse_HourAndDayUnits(t *testing.T) {
	t.Parallel()

	html := `
	<table class="keepinfo_alb"><tr><td class="keepheader">Caer Erasleigh</td></tr></table>
	<table class="events">
	  <tr><td>Caer Erasleigh was captured by Albion</td><td>3h ago</td></tr>
	  <tr><td>Caer Erasleigh was claimed by The Round Table</td><td>1d ago</td></tr>
	</table>`
	snap := parseFixture(t, html)

	require.Len(t, snap.Events, 2)
	assert.Equal(t, snap.UpdatedAt.Add(-3*time.Hour), snap.Events[0].At)
	assert.Equal(t, snap.UpdatedAt.Add(-24*time.Hour), snap.Events[1].At)
}

func TestParseEventText_Unrecognized(t *testing.T) {
	t.Parallel()

	e := parseEventText("something strange happened")
	assert.Equal(t, domain.EventOther, e.Kind)
	assert.Empty(t, e.KeepID)
}
