package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Golani45/uthgard/internal/notify"
	domain "github.com/Golani45/uthgard/pkg/types"
)

const footerText = "Uthgard Herald"

func uaEmbed(k domain.Keep, at time.Time) notify.Embed {
	embed := notify.Embed{
		Title:     fmt.Sprintf("⚔️ %s is under attack!", k.Name),
		Color:     k.Owner.Color(),
		Timestamp: isoTime(at),
		Footer:    &notify.EmbedFooter{Text: footerText},
		Fields: []notify.EmbedField{
			{Name: "Owner", Value: string(k.Owner), Inline: true},
		},
	}
	if k.Level > 0 {
		embed.Fields = append(embed.Fields, notify.EmbedField{
			Name: "Level", Value: strconv.Itoa(k.Level), Inline: true,
		})
	}
	if k.ClaimedBy != "" {
		embed.Fields = append(embed.Fields, notify.EmbedField{
			Name: "Claimed by", Value: k.ClaimedBy, Inline: true,
		})
	}
	if k.EmblemURL != "" {
		embed.Thumbnail = &notify.EmbedThumbnail{URL: k.EmblemURL}
	}
	return embed
}

func captureEmbed(c capCandidate) notify.Embed {
	title := fmt.Sprintf("🏰 %s was captured by %s", c.keepName, c.next)
	if c.leader != "" {
		title += fmt.Sprintf(" — led by %s", c.leader)
	}
	return notify.Embed{
		Title:     title,
		Color:     c.next.Color(),
		Timestamp: c.tsISO,
		Footer:    &notify.EmbedFooter{Text: footerText},
	}
}

func playerEmbed(p domain.TrackedPlayer, delta int64, now time.Time) notify.Embed {
	return notify.Embed{
		Title:       fmt.Sprintf("🟢 %s is active", p.Name),
		Description: fmt.Sprintf("+%d RPs gained", delta),
		Color:       p.Realm.Color(),
		Timestamp:   isoTime(now),
		Footer:      &notify.EmbedFooter{Text: footerText},
	}
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
