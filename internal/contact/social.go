package contact

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mapscrap/internal/locator"
	"github.com/sells-group/mapscrap/internal/model"
)

// matcher recognises profile links of one platform.
type matcher struct {
	name     string
	re       *regexp.Regexp
	min, max int
	reserved map[string]bool
}

func compileMatchers(platforms []locator.Platform) ([]matcher, error) {
	out := make([]matcher, 0, len(platforms))
	for _, p := range platforms {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "contact: compile %s pattern", p.Name)
		}
		if re.NumSubexp() < 1 {
			return nil, eris.Errorf("contact: %s pattern has no handle group", p.Name)
		}
		reserved := make(map[string]bool, len(p.Reserved))
		for _, r := range p.Reserved {
			reserved[strings.ToLower(r)] = true
		}
		out = append(out, matcher{name: p.Name, re: re, min: p.MinHandle, max: p.MaxHandle, reserved: reserved})
	}
	return out, nil
}

// handle returns the validated handle in link, if any.
func (m matcher) handle(link string) (string, bool) {
	sub := m.re.FindStringSubmatch(link)
	if sub == nil {
		return "", false
	}
	h := strings.Trim(sub[1], "/.")
	if dec, err := url.PathUnescape(h); err == nil {
		h = dec
	}
	if h == "" || m.reserved[strings.ToLower(h)] {
		return "", false
	}
	if m.min > 0 && len(h) < m.min {
		return "", false
	}
	if m.max > 0 && len(h) > m.max {
		return "", false
	}
	return h, true
}

// scanSocials fills the social fields of c from links. Each platform keeps
// its first valid match.
func scanSocials(c *model.ContactResult, matchers []matcher, links []string) {
	for _, link := range links {
		for _, m := range matchers {
			if socialSet(c, m.name) {
				continue
			}
			h, ok := m.handle(link)
			if !ok {
				continue
			}
			setSocial(c, m.name, h, link)
		}
	}
}

func socialSet(c *model.ContactResult, platform string) bool {
	switch platform {
	case locator.Instagram:
		return c.InstagramUsername != ""
	case locator.TikTok:
		return c.TikTokUsername != ""
	case locator.WhatsApp:
		return c.WhatsAppNumber != ""
	case locator.Facebook:
		return c.FacebookURL != ""
	case locator.LinkedIn:
		return c.LinkedInURL != ""
	}
	return true
}

func setSocial(c *model.ContactResult, platform, handle, link string) {
	switch platform {
	case locator.Instagram:
		c.InstagramUsername = handle
		c.InstagramURL = InstagramProfileURL(handle)
	case locator.TikTok:
		c.TikTokUsername = handle
		c.TikTokURL = "https://www.tiktok.com/@" + handle
	case locator.WhatsApp:
		c.WhatsAppNumber = handle
	case locator.Facebook:
		if strings.EqualFold(handle, "profile.php") {
			c.FacebookURL = link
		} else {
			c.FacebookURL = "https://www.facebook.com/" + handle
		}
	case locator.LinkedIn:
		c.LinkedInURL = stripQuery(link)
	}
}

// InstagramProfileURL returns the canonical profile URL of handle.
func InstagramProfileURL(handle string) string {
	return "https://www.instagram.com/" + handle + "/"
}

func stripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return strings.TrimRight(link, "/")
}
