// Package mapping turns source contacts into the marketing system's field
// vocabulary and fingerprints the result for change detection. Everything
// here is pure.
package mapping

import (
	"strings"
	"time"

	"github.com/stoik/contactsync/internal/models"
)

const dateLayout = "2006-01-02"

// Fields is a flat target-side field map. A nil value clears the field.
type Fields map[string]any

// MapFields translates a source contact into target fields.
func MapFields(c models.SourceContact) Fields {
	return Fields{
		"email":            strings.TrimSpace(c.Email),
		"firstname":        str(c.FirstName),
		"lastname":         str(c.LastName),
		"mobile":           str(c.Mobile),
		"phone":            str(c.Landline),
		"address1":         str(c.AddressLine1),
		"address2":         str(c.AddressLine2),
		"city":             str(c.Suburb),
		"state_location":   str(c.State),
		"zipcode":          str(c.Postcode),
		"country":          NormalizeCountry(c.Country),
		"supabase_id":      c.ID.String(),
		"customer_segment": str(c.CustomerSegment),
		"lead_score":       intValue(c.LeadScore),
		"total_orders":     intValue(c.TotalOrders),
		"total_spent":      floatValue(c.TotalSpent),
		"last_order_date":  date(c.LastOrderDate),
		"last_event_name":  str(c.LastEventName),
		"preferred_venue":  str(c.PreferredVenue),
		"marketing_opt_in": optIn(c.MarketingOptIn),
		"customer_since":   date(c.CustomerSince),
	}
}

// NormalizeCountry expands a two-letter code to its display name. Unknown
// codes and blanks give nil; longer values are assumed to be names already.
func NormalizeCountry(value *string) any {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) == 2 {
		if name, ok := countryNames[strings.ToUpper(trimmed)]; ok {
			return name
		}
		return nil
	}
	return trimmed
}

// optIn keeps the unset state distinct from an explicit false.
func optIn(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

func str(v *string) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return s
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func date(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC().Format(dateLayout)
}
