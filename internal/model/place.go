package model

// PlaceColumns is the canonical column order of the places table. The
// mapper emits exactly these keys (absent data as nil), the validator
// checks them, and the reconciler builds its INSERT/UPDATE from them.
// created_at is deliberately absent: the store owns it.
var PlaceColumns = []string{
	"customer_id",
	"place_id",
	"google_id",
	"cid",
	"kgmid",
	"reviews_id",
	"name",
	"phone",
	"site",
	"category",
	"subtypes",
	"full_address",
	"borough",
	"street",
	"city",
	"postal_code",
	"state",
	"country",
	"latitude",
	"longitude",
	"rating",
	"reviews",
	"reviews_per_score",
	"photos_count",
	"photo",
	"working_hours",
	"about",
	"range",
	"prices",
	"description",
	"typical_time_spent",
	"verified",
	"reservation_links",
	"booking_appointment_link",
	"menu_link",
	"order_links",
	"location_link",
	"updated_at",
}
