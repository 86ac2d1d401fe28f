// Package locator holds every selector string, path list, and link pattern the
// scraper depends on. When the directory UI drifts, only this data changes.
package locator

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Selector locates one value in the detail pane. Query is a CSS selector or
// an XPath expression. When Attr is set the attribute value is read instead
// of the inner text.
type Selector struct {
	Query string `yaml:"query"`
	Attr  string `yaml:"attr,omitempty"`
}

// Feed describes the search box and the virtualized result feed.
type Feed struct {
	SearchBox      string   `yaml:"search_box"`
	Container      string   `yaml:"container"`
	ListingAnchor  string   `yaml:"listing_anchor"`
	ConsentButtons []string `yaml:"consent_buttons"`
}

// Detail lists ordered fallback selectors per business field.
type Detail struct {
	Name           []Selector `yaml:"name"`
	Address        []Selector `yaml:"address"`
	Domain         []Selector `yaml:"domain"`
	Phone          []Selector `yaml:"phone"`
	ReviewsCount   []Selector `yaml:"reviews_count"`
	ReviewsAverage []Selector `yaml:"reviews_average"`
}

// Platform describes how to recognise a social profile link. Pattern must
// capture the handle in its first group.
type Platform struct {
	Name      string   `yaml:"name"`
	Pattern   string   `yaml:"pattern"`
	MinHandle int      `yaml:"min_handle"`
	MaxHandle int      `yaml:"max_handle"`
	Reserved  []string `yaml:"reserved"`
}

// Table is the full locator table.
type Table struct {
	Feed       Feed       `yaml:"feed"`
	Detail     Detail     `yaml:"detail"`
	EmailPaths []string   `yaml:"email_paths"`
	Platforms  []Platform `yaml:"platforms"`
}

// Platform names recognised by the contact enricher.
const (
	Instagram = "instagram"
	TikTok    = "tiktok"
	WhatsApp  = "whatsapp"
	Facebook  = "facebook"
	LinkedIn  = "linkedin"
)

// Default returns the built-in locator table for the map directory UI.
func Default() *Table {
	return &Table{
		Feed: Feed{
			SearchBox:     `#searchboxinput`,
			Container:     `div[role="feed"]`,
			ListingAnchor: `a[href*="/maps/place/"]`,
			ConsentButtons: []string{
				`[aria-label="Reject all"]`,
				`button[aria-label="Accept all"]`,
				`button[aria-label="I agree"]`,
			},
		},
		Detail: Detail{
			Name: []Selector{
				{Query: `h1.DUwDvf`},
				{Query: `//div[@role="main"]//h1`},
			},
			Address: []Selector{
				{Query: `//button[@data-item-id="address"]//div[contains(@class,"Io6YTe")]`},
				{Query: `//button[@data-item-id="address"]//div[contains(@class,"fontBodyMedium")]`},
			},
			Domain: []Selector{
				{Query: `//a[@data-item-id="authority"]//div[contains(@class,"Io6YTe")]`},
				{Query: `//a[@data-item-id="authority"]//div[contains(@class,"fontBodyMedium")]`},
			},
			Phone: []Selector{
				{Query: `//button[contains(@data-item-id,"phone")]//div[contains(@class,"Io6YTe")]`},
				{Query: `//button[contains(@data-item-id,"phone:tel:")]//div[contains(@class,"fontBodyMedium")]`},
			},
			ReviewsCount: []Selector{
				{Query: `//span[@class="UY7F9"]`},
				{Query: `//div[@jsaction="pane.reviewChart.moreReviews"]//span`},
			},
			ReviewsAverage: []Selector{
				{Query: `//div[contains(@aria-label,"stars")]`, Attr: "aria-label"},
				{Query: `//div[@jsaction="pane.reviewChart.moreReviews"]//div[@role="img"]`, Attr: "aria-label"},
				{Query: `//div[contains(@class,"F7nice")]//span[@aria-hidden="true"]`},
			},
		},
		EmailPaths: []string{
			"", "contact", "contacto", "contacte", "contacts",
			"about", "about-us", "info", "information",
		},
		Platforms: []Platform{
			{
				Name:      Instagram,
				Pattern:   `(?i)^https?://(?:www\.|m\.)?instagram\.com/([A-Za-z0-9_.]+)/?`,
				MinHandle: 1,
				MaxHandle: 30,
				Reserved:  []string{"explore", "accounts", "reel", "reels", "p", "stories", "tv", "direct", "about", "developer", "legal"},
			},
			{
				Name:      TikTok,
				Pattern:   `(?i)^https?://(?:www\.|m\.)?tiktok\.com/@([A-Za-z0-9_.]+)/?`,
				MinHandle: 2,
				MaxHandle: 24,
			},
			{
				Name:      WhatsApp,
				Pattern:   `(?i)^https?://(?:wa\.me/|(?:api\.|web\.)?whatsapp\.com/send/?\?(?:.*&)?phone=)\+?([0-9]+)`,
				MinHandle: 6,
				MaxHandle: 15,
			},
			{
				Name:      Facebook,
				Pattern:   `(?i)^https?://(?:www\.|m\.|business\.)?facebook\.com/([A-Za-z0-9_.\-]+)/?`,
				MinHandle: 2,
				MaxHandle: 80,
				Reserved:  []string{"sharer", "sharer.php", "share", "dialog", "plugins", "tr", "login", "help", "policies", "privacy"},
			},
			{
				Name:      LinkedIn,
				Pattern:   `(?i)^https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in|school)/([A-Za-z0-9_\-%]+)/?`,
				MinHandle: 2,
				MaxHandle: 100,
				Reserved:  []string{"shareArticle", "share"},
			},
		},
	}
}

// Load returns the default table with any sections present in the YAML file
// at path replacing their defaults. An empty path returns Default().
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "locator: read %s", path)
	}

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, eris.Wrapf(err, "locator: parse %s", path)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the table has the entries the scraper cannot run without.
func (t *Table) Validate() error {
	if t.Feed.SearchBox == "" {
		return eris.New("locator: feed.search_box is required")
	}
	if t.Feed.Container == "" {
		return eris.New("locator: feed.container is required")
	}
	if t.Feed.ListingAnchor == "" {
		return eris.New("locator: feed.listing_anchor is required")
	}
	if len(t.EmailPaths) == 0 {
		return eris.New("locator: email_paths must not be empty")
	}
	for _, p := range t.Platforms {
		if p.Name == "" || p.Pattern == "" {
			return eris.Errorf("locator: platform %q needs name and pattern", p.Name)
		}
	}
	return nil
}

// Platform returns the platform entry with the given name.
func (t *Table) Platform(name string) (Platform, bool) {
	for _, p := range t.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}
