package domain

type CartMode string

const (
	CartModeGuest         CartMode = "GUEST"
	CartModeAuthenticated CartMode = "AUTHENTICATED"
)

type LineItem struct {
	LineID     string  `json:"line_id"`
	ProductRef string  `json:"product_ref"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}

// CartSnapshot represents the full cart state at a point in time
type CartSnapshot struct {
	Items []LineItem `json:"items"`
	Mode  CartMode   `json:"mode"`
}

func (s CartSnapshot) Subtotal() float64 {
	var sum float64
	for _, item := range s.Items {
		if item.Quantity <= 0 {
			continue
		}
		sum += item.UnitPrice * float64(item.Quantity)
	}
	return sum
}

// FilterValid drops line items without a product reference or with a
// non-positive quantity. Applied on every load/save boundary, so a
// partially hydrated persisted cart never leaks bad rows into the store.
func FilterValid(items []LineItem) []LineItem {
	var out []LineItem
	for _, item := range items {
		if item.ProductRef == "" || item.Quantity <= 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}
