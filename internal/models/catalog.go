package models

// CatalogItem is a card as returned by the external catalog service.
// It is read-only from this system's point of view: fetched by id or search
// expression, cached, and never mutated.
type CatalogItem struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Supertype string         `json:"supertype,omitempty"`
	Subtypes  []string       `json:"subtypes,omitempty"`
	Types     []string       `json:"types,omitempty"`
	Rarity    string         `json:"rarity,omitempty"`
	Number    string         `json:"number,omitempty"`
	Set       CatalogSet     `json:"set"`
	Images    CatalogImages  `json:"images"`
	TCGPlayer *MarketListing `json:"tcgplayer,omitempty"`
}

// CatalogSet identifies the set/series a card belongs to.
type CatalogSet struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Series string `json:"series,omitempty"`
}

// CatalogImages holds artwork URLs.
type CatalogImages struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// MarketListing carries market-price hints per printing variant
// (e.g. "normal", "holofoil").
type MarketListing struct {
	URL       string                `json:"url,omitempty"`
	UpdatedAt string                `json:"updatedAt,omitempty"`
	Prices    map[string]PriceRange `json:"prices,omitempty"`
}

// PriceRange is a low/mid/high/market quote for one printing variant.
type PriceRange struct {
	Low    *float64 `json:"low,omitempty"`
	Mid    *float64 `json:"mid,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Market *float64 `json:"market,omitempty"`
}
