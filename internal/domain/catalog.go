package domain

// Option is a value/label pair rendered in catalog filter controls
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PriceRange bounds the catalog price slider
type PriceRange struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// CatalogFilters is the full set of catalog facets exposed to the storefront
type CatalogFilters struct {
	Sizes         []string   `json:"sizes"`
	Colors        []string   `json:"colors"`
	SubCategories []string   `json:"sub_categories"`
	Availability  []Option   `json:"availability"`
	Types         []Option   `json:"types"`
	Fabrics       []Option   `json:"fabrics"`
	Pieces        []Option   `json:"pieces"`
	PriceRange    PriceRange `json:"price_range"`
	SortOptions   []Option   `json:"sort_options"`
}

// Catalog sort values
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortPopular   = "popular"
)

// Catalog returns a fresh copy of the catalog facets; callers may mutate it freely.
func Catalog() CatalogFilters {
	return CatalogFilters{
		Sizes:         []string{"XS", "S", "M", "L", "XL", "XXL"},
		Colors:        []string{"Black", "White", "Red", "Blue", "Green", "Pink", "Purple", "Yellow"},
		SubCategories: []string{"GenZ", "Jhalak", "Sada"},
		Availability: []Option{
			{Value: "in-stock", Label: "In Stock"},
			{Value: "out-of-stock", Label: "Out of Stock"},
			{Value: "pre-order", Label: "Pre-Order"},
		},
		Types: []Option{
			{Value: "shirt", Label: "Shirt"},
			{Value: "trouser", Label: "Trouser"},
			{Value: "suit", Label: "Suit"},
			{Value: "dress", Label: "Dress"},
			{Value: "kurta", Label: "Kurta"},
			{Value: "dupatta", Label: "Dupatta"},
		},
		Fabrics: []Option{
			{Value: "cotton", Label: "Cotton"},
			{Value: "silk", Label: "Silk"},
			{Value: "chiffon", Label: "Chiffon"},
			{Value: "lawn", Label: "Lawn"},
			{Value: "linen", Label: "Linen"},
			{Value: "georgette", Label: "Georgette"},
			{Value: "organza", Label: "Organza"},
		},
		Pieces: []Option{
			{Value: "1-piece", Label: "1 Piece"},
			{Value: "2-piece", Label: "2 Piece"},
			{Value: "3-piece", Label: "3 Piece"},
			{Value: "4-piece", Label: "4 Piece"},
		},
		PriceRange: PriceRange{Min: 0, Max: 50000, Step: 1000},
		SortOptions: []Option{
			{Value: SortNewest, Label: "Newest First"},
			{Value: SortPriceLow, Label: "Price: Low to High"},
			{Value: SortPriceHigh, Label: "Price: High to Low"},
			{Value: SortPopular, Label: "Most Popular"},
		},
	}
}
