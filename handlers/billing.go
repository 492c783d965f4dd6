package handlers

import (
	"net/http"

	"mia/middleware"
	"mia/models"
	"mia/services/billing"
	"mia/utils"

	"github.com/gin-gonic/gin"
)

// BillingOptionsHandler lists the invoicing catalog, optionally for one category.
func (hb *HandlerBundle) BillingOptionsHandler(c *gin.Context) {
	var category *models.BillingCategory
	if raw := c.Query("category"); raw != "" {
		cat := models.BillingCategory(raw)
		if !cat.Valid() {
			utils.JSONError(c, http.StatusBadRequest, "Unknown billing category", raw)
			return
		}
		category = &cat
	}
	c.JSON(http.StatusOK, gin.H{"options": hb.Billing.ListOptions(category)})
}

// CreateInvoiceHandler requests an invoice for one of the caller's paid bookings.
func (hb *HandlerBundle) CreateInvoiceHandler(c *gin.Context) {
	var in billing.CreateInvoiceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := hb.Billing.CreateInvoice(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListInvoicesHandler lists the caller's invoices, newest first.
func (hb *HandlerBundle) ListInvoicesHandler(c *gin.Context) {
	list, err := hb.Billing.ListInvoices(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.InvoiceWithBooking{}
	}
	c.JSON(http.StatusOK, gin.H{"invoices": list})
}

// UpdateInvoiceStatusHandler moves an invoice to issued or cancelled.
func (hb *HandlerBundle) UpdateInvoiceStatusHandler(c *gin.Context) {
	var req struct {
		Status models.InvoiceStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := hb.Billing.TransitionInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
