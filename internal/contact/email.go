package contact

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/mapscrap/internal/scrape"
)

var (
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	emailFullRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// assetSuffixes end tokens that look like emails but are retina asset names
// such as "logo@2x.png".
var assetSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp", ".avif",
	".css", ".js", ".mp4", ".woff", ".woff2",
}

// ValidEmail reports whether s is a plausible address.
func ValidEmail(s string) bool {
	if !emailFullRe.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(lower, suf) {
			return false
		}
	}
	return true
}

// MailtoEmail returns the first valid address among the page's mail links.
func MailtoEmail(page *scrape.Page) string {
	for _, link := range page.Links() {
		if len(link) < 7 || !strings.EqualFold(link[:7], "mailto:") {
			continue
		}
		addr := link[7:]
		if i := strings.IndexAny(addr, "?#"); i >= 0 {
			addr = addr[:i]
		}
		if dec, err := url.PathUnescape(addr); err == nil {
			addr = dec
		}
		// mailto may list several recipients.
		for _, a := range strings.Split(addr, ",") {
			a = strings.ToLower(strings.TrimSpace(a))
			if ValidEmail(a) {
				return a
			}
		}
	}
	return ""
}

// TextEmail returns the first valid email-shaped token in text.
func TextEmail(text string) string {
	for _, m := range emailRe.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".")
		if ValidEmail(m) {
			return strings.ToLower(m)
		}
	}
	return ""
}

// PageEmail applies mail links first and falls back to visible text.
func PageEmail(page *scrape.Page) string {
	if e := MailtoEmail(page); e != "" {
		return e
	}
	return TextEmail(page.Text())
}
