package billing

import "mia/models"

// catalog is the fixed set of invoicing strategies, grouped by category.
var catalog = [...]models.BillingOption{
	{ID: "purchase", Title: "Facturación por compra", Description: "Factura el monto total de la compra", Category: models.BillingBasic},
	{ID: "purchase_with_comments", Title: "Facturación por compra con comentarios", Description: "Factura el monto total con comentarios personalizados", Category: models.BillingBasic, AllowsComments: true},
	{ID: "reservation", Title: "Facturación por reserva", Description: "Factura el monto total de la reserva", Category: models.BillingBasic},
	{ID: "reservation_with_comments", Title: "Facturación por reserva con comentarios", Description: "Factura la reserva con comentarios personalizados", Category: models.BillingBasic, AllowsComments: true},

	{ID: "partial_purchase", Title: "Facturación por parcialidad", Description: "Factura una parte del monto total", Category: models.BillingAdvanced},
	{ID: "partial_nights", Title: "Facturación por noches", Description: "Factura por noches específicas de la estancia", Category: models.BillingAdvanced},
	{ID: "per_traveler", Title: "Facturación por viajero", Description: "Factura separada por cada viajero", Category: models.BillingAdvanced},
	{ID: "per_service", Title: "Facturación por servicio", Description: "Factura separada por tipo de servicio", Category: models.BillingAdvanced},
	{ID: "custom_tax", Title: "IVA personalizado", Description: "Factura con IVA diferente al 16%", Category: models.BillingAdvanced},

	{ID: "combined_traveler_service", Title: "Viajero + Servicio", Description: "Combina facturación por viajero y servicio", Category: models.BillingCombined},
	{ID: "combined_provider", Title: "Por proveedor", Description: "Facturación combinada por proveedor", Category: models.BillingCombined},
}

// ListOptions returns the catalog, optionally narrowed to one category.
// The result is a fresh slice; callers cannot alter the catalog.
func ListOptions(category *models.BillingCategory) []models.BillingOption {
	out := make([]models.BillingOption, 0, len(catalog))
	for _, opt := range catalog {
		if category != nil && opt.Category != *category {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// LookupOption finds a catalog entry by id.
func LookupOption(id string) (models.BillingOption, bool) {
	for _, opt := range catalog {
		if opt.ID == id {
			return opt, true
		}
	}
	return models.BillingOption{}, false
}
