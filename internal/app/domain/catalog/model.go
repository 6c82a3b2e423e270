package catalog

import "time"

// Rarity labels how hard an item is to draw. It is informational; the draw
// itself is driven by BoxItem weights.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityHidden    Rarity = "hidden"
)

// ValidRarity reports whether r is a known rarity.
func ValidRarity(r Rarity) bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary, RarityHidden:
		return true
	}
	return false
}

// Box is a purchasable blind box. Price is in cents.
type Box struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CoverImage  string    `json:"cover_image,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	OnSale      bool      `json:"on_sale"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item is a collectible that can be drawn from a box.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Rarity      Rarity    `json:"rarity"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BoxItem is one row of a box's probability table.
type BoxItem struct {
	BoxID  string  `json:"box_id"`
	ItemID string  `json:"item_id"`
	Weight float64 `json:"weight"`
}

// DrawEntry is a probability table row joined with the item's live stock.
type DrawEntry struct {
	ItemID string
	Weight float64
	Stock  int
}

// Odds is a BoxItem enriched for display.
type Odds struct {
	Item        Item    `json:"item"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
}

// BoxDetail is a box plus its probability table.
type BoxDetail struct {
	Box   Box    `json:"box"`
	Items []Odds `json:"items"`
}

// BoxSort orders box listings.
type BoxSort string

const (
	SortLatest    BoxSort = "latest"
	SortPriceAsc  BoxSort = "price_asc"
	SortPriceDesc BoxSort = "price_desc"
)

// BoxFilter narrows box listings.
type BoxFilter struct {
	Query      string
	Category   string
	OnSaleOnly bool
	Sort       BoxSort
}

// ComputeOdds normalises weights into probabilities over positive entries.
func ComputeOdds(items map[string]Item, table []BoxItem) []Odds {
	var total float64
	for _, row := range table {
		if row.Weight > 0 {
			total += row.Weight
		}
	}
	out := make([]Odds, 0, len(table))
	for _, row := range table {
		item, ok := items[row.ItemID]
		if !ok {
			continue
		}
		o := Odds{Item: item, Weight: row.Weight}
		if total > 0 && row.Weight > 0 {
			o.Probability = row.Weight / total
		}
		out = append(out, o)
	}
	return out
}
