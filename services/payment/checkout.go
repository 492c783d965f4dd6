package payment

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"mia/models"
)

// maxAmount keeps minor units far from int64 overflow.
const maxAmount = 1e12

// CheckoutSessionPlaceholder is substituted by the processor with the real session id.
const CheckoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// MinorUnits converts a price to integer cents. It rounds half away from zero
// on the shortest decimal representation of amount, so 10.005 becomes 1001
// even though the float is slightly below 10.005.
func MinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 || amount > maxAmount {
		return 0, fmt.Errorf("%w: invalid amount %v", ErrInvalidBookingForCheckout, amount)
	}

	whole, frac, _ := strings.Cut(strconv.FormatFloat(amount, 'f', -1, 64), ".")
	frac += "000"
	units, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBookingForCheckout, err)
	}
	if frac[2] >= '5' {
		units++
	}
	if units <= 0 {
		return 0, fmt.Errorf("%w: amount rounds to zero", ErrInvalidBookingForCheckout)
	}
	return units, nil
}

// ValidateForCheckout reports whether b carries everything a checkout needs.
func ValidateForCheckout(b models.Booking) error {
	switch {
	case strings.TrimSpace(b.HotelName) == "":
		return fmt.Errorf("%w: missing hotel name", ErrInvalidBookingForCheckout)
	case strings.TrimSpace(b.CheckIn) == "" || strings.TrimSpace(b.CheckOut) == "":
		return fmt.Errorf("%w: missing dates", ErrInvalidBookingForCheckout)
	case b.TotalPrice <= 0:
		return fmt.Errorf("%w: total price must be positive", ErrInvalidBookingForCheckout)
	}
	return nil
}

// successURL encodes booking id and confirmation code; the session placeholder stays unescaped.
func successURL(base string, b models.Booking) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep +
		"success=true" +
		"&booking_id=" + url.QueryEscape(b.ID) +
		"&confirmation_code=" + url.QueryEscape(b.ConfirmationCode) +
		"&session=" + CheckoutSessionPlaceholder
}

// BuildCheckoutRequest derives the deterministic checkout payload for b.
// cancelURL is the page the user came from; the configured default is used when empty.
func (h *Handoff) BuildCheckoutRequest(b models.Booking, cancelURL string) (models.CheckoutRequest, error) {
	if err := ValidateForCheckout(b); err != nil {
		return models.CheckoutRequest{}, err
	}
	amount, err := MinorUnits(b.TotalPrice)
	if err != nil {
		return models.CheckoutRequest{}, err
	}
	if cancelURL == "" {
		cancelURL = h.cfg.CancelURL
	}

	return models.CheckoutRequest{
		LineItems: []models.LineItem{{
			PriceData: models.PriceData{
				Currency: h.cfg.Currency,
				ProductData: models.ProductData{
					Name:        b.HotelName,
					Description: fmt.Sprintf("Reservación en %s - %s", b.HotelName, b.RoomType.Label()),
				},
				UnitAmount: amount,
			},
			Quantity: 1,
		}},
		Mode:       "payment",
		SuccessURL: successURL(h.cfg.SuccessURL, b),
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			"booking_id":        b.ID,
			"confirmation_code": b.ConfirmationCode,
			"user_id":           b.UserID,
		},
	}, nil
}
