package types

// PartySnapshot freezes the display fields of a customer or vendor at order
// creation, so later profile edits never rewrite historical orders.
type PartySnapshot struct {
	DisplayName string      `json:"display_name"`
	Address     string      `json:"address,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Email       string      `json:"email,omitempty"`
	Location    Coordinates `json:"location"`
}
