// Package export writes run results as CSV and XLSX files and reads exported
// CSV files back for re-enrichment.
package export

import (
	"strconv"
	"strings"

	"github.com/sells-group/mapscrap/internal/model"
)

// Columns is the fixed output schema, one row per unique business.
var Columns = []string{
	"name", "address", "domain", "website", "phone_number", "category", "location",
	"reviews_count", "reviews_average", "latitude", "longitude",
	"email", "email_source",
	"instagram_username", "instagram_url", "whatsapp_number", "facebook_url",
	"tiktok_username", "tiktok_url", "linkedin_url",
}

// Row renders b in Columns order. Absent values are empty cells.
func Row(b model.Business) []string {
	c := b.Contact
	return []string{
		b.Name, b.Address, b.Domain, b.Website, b.Phone, b.Category, b.Location,
		formatInt(b.ReviewsCount), formatFloat(b.ReviewsAverage), formatFloat(b.Latitude), formatFloat(b.Longitude),
		c.Email, c.EmailSource,
		c.InstagramUsername, c.InstagramURL, c.WhatsAppNumber, c.FacebookURL,
		c.TikTokUsername, c.TikTokURL, c.LinkedInURL,
	}
}

// FromRow builds a Business from a record whose column names are given by
// header. Unknown columns are ignored and unparsable numbers are left absent.
func FromRow(header, record []string) model.Business {
	get := func(col string) string {
		for i, h := range header {
			if i < len(record) && strings.EqualFold(strings.TrimSpace(h), col) {
				return strings.TrimSpace(record[i])
			}
		}
		return ""
	}

	return model.Business{
		Name:           get("name"),
		Address:        get("address"),
		Domain:         get("domain"),
		Website:        get("website"),
		Phone:          get("phone_number"),
		Category:       get("category"),
		Location:       get("location"),
		ReviewsCount:   parseInt(get("reviews_count")),
		ReviewsAverage: parseFloat(get("reviews_average")),
		Latitude:       parseFloat(get("latitude")),
		Longitude:      parseFloat(get("longitude")),
		Contact: model.ContactResult{
			Email:             get("email"),
			EmailSource:       get("email_source"),
			InstagramUsername: get("instagram_username"),
			InstagramURL:      get("instagram_url"),
			WhatsAppNumber:    get("whatsapp_number"),
			FacebookURL:       get("facebook_url"),
			TikTokUsername:    get("tiktok_username"),
			TikTokURL:         get("tiktok_url"),
			LinkedInURL:       get("linkedin_url"),
		},
	}
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return model.IntPtr(n)
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return model.FloatPtr(f)
}
