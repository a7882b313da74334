// Package mapper flattens an enrichment candidate plus its pending record
// into the column map the places table expects.
package mapper

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/qamarero/placesync/internal/model"
	"github.com/qamarero/placesync/pkg/outscraper"
)

// ErrIdentityMismatch is returned when a pending record's declared
// customer id and its joined customer row disagree. Nothing derived from
// such a record may be persisted.
var ErrIdentityMismatch = eris.New("mapper: customer identity mismatch")

// Overridden in tests.
var timeNow = time.Now

// Map builds the column map for one place row. Every column in
// model.PlaceColumns is present in the output; absent data is an explicit
// nil so the reconciler writes NULL rather than skipping the column.
//
// The customer id is taken from the pending record (falling back to the
// joined customer when the record carries none) and never from the
// candidate, so a scraping result can never re-home a row.
func Map(rec model.PendingRecord, cand *outscraper.Place) (map[string]any, error) {
	customer := rec.Customer
	customerID, err := resolveCustomerID(rec, customer)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(model.PlaceColumns))
	for _, col := range model.PlaceColumns {
		out[col] = nil
	}
	out["customer_id"] = customerID

	if cand != nil {
		out["place_id"] = strOrNil(cand.PlaceID)
		out["google_id"] = strOrNil(cand.GoogleID)
		out["cid"] = strOrNil(cand.CID)
		out["kgmid"] = strOrNil(cand.KGMID)
		out["reviews_id"] = strOrNil(cand.ReviewsID)
		out["name"] = strOrNil(cand.Name)
		out["phone"] = strOrNil(cand.Phone)
		out["site"] = strOrNil(cand.Site)
		out["category"] = strOrNil(cand.Category)
		out["subtypes"] = strOrNil(cand.Subtypes)
		out["full_address"] = strOrNil(cand.FullAddress)
		out["borough"] = strOrNil(cand.Borough)
		out["street"] = strOrNil(cand.Street)
		out["city"] = strOrNil(cand.City)
		out["postal_code"] = strOrNil(cand.PostalCode)
		out["state"] = strOrNil(cand.State)
		out["country"] = strOrNil(cand.Country)
		out["latitude"] = cand.Latitude
		out["longitude"] = cand.Longitude
		out["rating"] = cand.Rating
		out["reviews"] = cand.Reviews
		out["reviews_per_score"] = cand.ReviewsPerScore
		out["photos_count"] = cand.PhotosCount
		out["photo"] = strOrNil(cand.Photo)
		out["working_hours"] = cand.WorkingHours
		out["about"] = cand.About
		out["range"] = strOrNil(cand.Range)
		out["prices"] = strOrNil(cand.Prices)
		out["description"] = strOrNil(cand.Description)
		out["typical_time_spent"] = strOrNil(cand.TypicalTimeSpent)
		out["verified"] = cand.Verified
		out["reservation_links"] = cand.ReservationLinks
		out["booking_appointment_link"] = strOrNil(cand.BookingAppointmentLink)
		out["menu_link"] = strOrNil(cand.MenuLink)
		out["order_links"] = cand.OrderLinks
		out["location_link"] = strOrNil(cand.LocationLink)
	}

	// Customer data fills the gaps the scrape left.
	if customer != nil {
		if out["name"] == nil && customer.Name != "" {
			out["name"] = customer.Name
		}
		if out["phone"] == nil && customer.Phone != nil && *customer.Phone != "" {
			out["phone"] = *customer.Phone
		}
		if out["full_address"] == nil && customer.Address != nil && *customer.Address != "" {
			out["full_address"] = *customer.Address
		}
		if out["city"] == nil && customer.City != nil && *customer.City != "" {
			out["city"] = *customer.City
		}
	}
	if out["name"] == nil && rec.Name != nil && *rec.Name != "" {
		out["name"] = *rec.Name
	}

	out["updated_at"] = timeNow().UTC().Format(time.RFC3339)

	return out, nil
}

// resolveCustomerID picks the authoritative customer id and rejects
// records whose declared id and joined customer disagree.
func resolveCustomerID(rec model.PendingRecord, customer *model.Customer) (any, error) {
	declared := ""
	if rec.CustomerID != nil {
		declared = *rec.CustomerID
	}

	if declared != "" && customer != nil && customer.ID != declared {
		return nil, ErrIdentityMismatch
	}
	if declared != "" {
		return declared, nil
	}
	if customer != nil && customer.ID != "" {
		return customer.ID, nil
	}
	return nil, nil
}

func strOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
