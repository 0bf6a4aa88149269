package broadcast

import (
	"strings"
	"time"

	"ratefeed/internal/composite"
)

const timeLayout = "2006-01-02 15:04:05"

// Render substitutes {placeholder} fields of content with values from r.
// Unknown placeholders are left as they are.
func Render(content string, r *composite.Rate, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return strings.NewReplacer(
		"{bid_price}", r.Bid.StringFixed(2),
		"{ask_price}", r.Ask.StringFixed(2),
		"{last_price}", r.Last.StringFixed(2),
		"{google_last_price}", r.SecondaryLast.StringFixed(2),
		"{spread_percent}", r.SpreadPercent.StringFixed(2),
		"{power}", r.Power.String(),
		"{formatted_time}", r.CalculatedAt.In(loc).Format(timeLayout),
	).Replace(content)
}

// markdownV2Special lists the characters Telegram requires escaped in
// MarkdownV2 text. Emphasis markers are not in it so templates can use them.
const markdownV2Special = "[]()>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes text for parse_mode MarkdownV2, keeping *bold*,
// _italic_, ~strike~ and `code` markers intact.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
