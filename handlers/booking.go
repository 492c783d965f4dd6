package handlers

import (
	"net/http"

	"mia/middleware"
	"mia/models"

	"github.com/gin-gonic/gin"
)

// ActiveBookingHandler returns the lifecycle state of the session's booking.
func (hb *HandlerBundle) ActiveBookingHandler(c *gin.Context) {
	st, err := hb.Bookings.Snapshot(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CheckoutHandler persists the drafted booking and opens a processor checkout.
// The client must redirect to the returned URL.
func (hb *HandlerBundle) CheckoutHandler(c *gin.Context) {
	var req struct {
		CancelURL string `json:"cancelUrl"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	ps, err := hb.Bookings.RequestPayment(c.Request.Context(), middleware.SessionID(c), middleware.UserID(c), req.CancelURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// AbandonCheckoutHandler returns an awaiting payment session to its draft.
func (hb *HandlerBundle) AbandonCheckoutHandler(c *gin.Context) {
	st, err := hb.Bookings.AbandonPayment(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListBookingsHandler lists the caller's bookings, optionally filtered.
func (hb *HandlerBundle) ListBookingsHandler(c *gin.Context) {
	filter := models.BookingFilter{
		Search: c.Query("search"),
		Status: models.BookingStatus(c.Query("status")),
	}
	list, err := hb.Bookings.ListBookings(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

// DeleteBookingHandler permanently removes one of the caller's bookings.
func (hb *HandlerBundle) DeleteBookingHandler(c *gin.Context) {
	if err := hb.Bookings.DeleteBooking(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelBookingHandler cancels one of the caller's pending bookings.
func (hb *HandlerBundle) CancelBookingHandler(c *gin.Context) {
	b, err := hb.Bookings.CancelBooking(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
