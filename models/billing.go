package models

type BillingCategory string

const (
	BillingBasic    BillingCategory = "basic"
	BillingAdvanced BillingCategory = "advanced"
	BillingCombined BillingCategory = "combined"
)

// Valid reports whether c is a known category.
func (c BillingCategory) Valid() bool {
	switch c {
	case BillingBasic, BillingAdvanced, BillingCombined:
		return true
	}
	return false
}

// BillingOption is one invoicing strategy of the static catalog.
type BillingOption struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       BillingCategory `json:"category"`
	AllowsComments bool            `json:"allowsComments"`
}
