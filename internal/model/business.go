// Package model holds the records that flow through a run: businesses,
// their contact channels, and run bookkeeping.
package model

// Business is one listing discovered in the directory feed. Empty strings and
// nil pointers mean the value could not be extracted; absence is not an error.
type Business struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Domain         string   `json:"domain"`
	Website        string   `json:"website"`
	Phone          string   `json:"phone_number"`
	Category       string   `json:"category"`
	Location       string   `json:"location"`
	ReviewsCount   *int     `json:"reviews_count,omitempty"`
	ReviewsAverage *float64 `json:"reviews_average,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`

	Contact ContactResult `json:"contact"`
}

// IdentityKey decides whether two records denote the same business.
type IdentityKey struct {
	Name    string
	Website string
	Domain  string
	Phone   string
}

// KeyOf derives the identity key of b. Fields outside the key never affect it.
func KeyOf(b Business) IdentityKey {
	return IdentityKey{
		Name:    b.Name,
		Website: b.Website,
		Domain:  b.Domain,
		Phone:   b.Phone,
	}
}

// HasWebsite reports whether the business can be contact-enriched.
func (b Business) HasWebsite() bool {
	return b.Website != ""
}

// HasCoordinates reports whether both latitude and longitude are present.
func (b Business) HasCoordinates() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// WithContact returns a copy of b carrying c.
func (b Business) WithContact(c ContactResult) Business {
	b.Contact = c
	return b
}

// ContactResult holds the contact channels mined from one website.
type ContactResult struct {
	Email             string `json:"email,omitempty"`
	EmailSource       string `json:"email_source,omitempty"`
	InstagramUsername string `json:"instagram_username,omitempty"`
	InstagramURL      string `json:"instagram_url,omitempty"`
	WhatsAppNumber    string `json:"whatsapp_number,omitempty"`
	FacebookURL       string `json:"facebook_url,omitempty"`
	TikTokUsername    string `json:"tiktok_username,omitempty"`
	TikTokURL         string `json:"tiktok_url,omitempty"`
	LinkedInURL       string `json:"linkedin_url,omitempty"`
}

// Merge returns c with every channel found in fresh applied on top. Empty
// channels in fresh keep the value already in c. Paired fields (email and
// its source, handle and profile URL) move together.
func (c ContactResult) Merge(fresh ContactResult) ContactResult {
	if fresh.Email != "" {
		c.Email, c.EmailSource = fresh.Email, fresh.EmailSource
	}
	if fresh.InstagramUsername != "" {
		c.InstagramUsername, c.InstagramURL = fresh.InstagramUsername, fresh.InstagramURL
	}
	if fresh.TikTokUsername != "" {
		c.TikTokUsername, c.TikTokURL = fresh.TikTokUsername, fresh.TikTokURL
	}
	if fresh.WhatsAppNumber != "" {
		c.WhatsAppNumber = fresh.WhatsAppNumber
	}
	if fresh.FacebookURL != "" {
		c.FacebookURL = fresh.FacebookURL
	}
	if fresh.LinkedInURL != "" {
		c.LinkedInURL = fresh.LinkedInURL
	}
	return c
}

// IsZero reports whether no contact channel was found.
func (c ContactResult) IsZero() bool {
	return c == ContactResult{}
}

// HasEmail reports whether an email was found.
func (c ContactResult) HasEmail() bool {
	return c.Email != ""
}

// Socials returns the number of social channels found.
func (c ContactResult) Socials() int {
	n := 0
	for _, v := range []string{c.InstagramUsername, c.WhatsAppNumber, c.FacebookURL, c.TikTokUsername, c.LinkedInURL} {
		if v != "" {
			n++
		}
	}
	return n
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
