package types

import "time"

// Marketplace identifies one of the two upstream marketplaces.
type Marketplace string

const (
	MarketplaceBuff   Marketplace = "buff"
	MarketplaceYoupin Marketplace = "youpin"
)

// Valid reports whether m names a known marketplace.
func (m Marketplace) Valid() bool {
	return m == MarketplaceBuff || m == MarketplaceYoupin
}

// Item is a single sell listing normalized from either marketplace.
type Item struct {
	// ID is the marketplace-local identifier of the listing.
	ID string `json:"id"`

	// Key is the canonical matching key (market hash name). May be empty
	// when the marketplace did not provide one.
	Key string `json:"key"`

	// Name is the display name in the marketplace's locale.
	Name string `json:"name"`

	// Price is the lowest sell price in CNY.
	Price float64 `json:"price"`

	// SellCount is the number of listings at the marketplace, when known.
	SellCount int `json:"sell_count,omitempty"`

	// IconURL points at the item artwork, when known.
	IconURL string `json:"icon_url,omitempty"`

	// URL is the marketplace listing page, when the marketplace exposes
	// stable listing links.
	URL string `json:"url,omitempty"`
}

// CataloguePage is one fetched page of listings. TotalPages and TotalItems
// are zero when the marketplace does not advertise totals.
type CataloguePage struct {
	Items      []Item
	TotalPages int
	TotalItems int
}

// MatchKey returns the key used for cross-marketplace matching: the hash
// name when present, otherwise the display name.
func (i Item) MatchKey() string {
	if i.Key != "" {
		return i.Key
	}
	return i.Name
}

// Catalogue is one marketplace's full set of fetched listings together with
// fetch bookkeeping.
type Catalogue struct {
	Marketplace     Marketplace `json:"marketplace"`
	Items           []Item      `json:"items"`
	SuccessfulPages int         `json:"successful_pages"`
	FailedPages     int         `json:"failed_pages"`
	FetchedAt       time.Time   `json:"fetched_at"`
}
