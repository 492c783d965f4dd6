package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mia/models"
	"mia/services/payment"
	"mia/services/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	o        *DefaultOrchestrator
	bookings *memBookingRepo
	payments *memPaymentRepo
	proc     *fakeProcessor

	mu     sync.Mutex
	events []Event
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		bookings: newMemBookingRepo(),
		payments: newMemPaymentRepo(),
		proc:     newFakeProcessor(),
	}
	handoff := payment.NewHandoff(r.proc, payment.Config{
		SuccessURL: "https://mia.example",
		CancelURL:  "https://mia.example/",
	})
	r.o = NewOrchestrator(r.bookings, r.payments, NewMemoryStateStore(), handoff)
	r.o.Subscribe(func(_ context.Context, evt Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, evt)
	})
	return r
}

func (r *testRig) recorded() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func hotelX() models.BookingDraft {
	return models.BookingDraft{
		Hotel: models.DraftHotel{Name: "Hotel X"},
		Dates: models.DraftDates{CheckIn: "2026-12-01", CheckOut: "2026-12-04"},
		Room:  models.DraftRoom{Type: models.RoomDouble, TotalPrice: 2500},
	}
}

func (r *testRig) awaitingPayment(t *testing.T, sessionID, userID string) *models.PaymentSession {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.o.ReceiveDraft(ctx, sessionID, hotelX()))
	ps, err := r.o.RequestPayment(ctx, sessionID, userID, "https://mia.example/chat")
	require.NoError(t, err)
	return ps
}

func TestSnapshotDefaultsToNoBooking(t *testing.T) {
	r := newRig(t)
	st, err := r.o.Snapshot(context.Background(), "tab")
	require.NoError(t, err)
	assert.Equal(t, models.StateNoBooking, st.State)
	assert.Nil(t, st.Draft)

	_, err = r.o.Snapshot(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrMissingSessionID)
}

func TestReceiveDraft(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))
	st, err := r.o.Snapshot(ctx, "tab")
	require.NoError(t, err)
	assert.Equal(t, models.StateDrafted, st.State)
	assert.Equal(t, "Hotel X", st.Draft.Hotel.Name)

	// Redelivery of the same draft is not a transition.
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))
	assert.Len(t, r.recorded(), 1)

	other := hotelX()
	other.Room.TotalPrice = 3100
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", other))
	st, _ = r.o.Snapshot(ctx, "tab")
	assert.Equal(t, 3100.0, st.Draft.Room.TotalPrice)
	assert.Len(t, r.recorded(), 2)
}

func TestNewDraftDropsPendingPayment(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.awaitingPayment(t, "tab", "u-1")

	other := hotelX()
	other.Hotel.Name = "Hotel Y"
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", other))

	st, err := r.o.Snapshot(ctx, "tab")
	require.NoError(t, err)
	assert.Equal(t, models.StateDrafted, st.State)
	assert.Nil(t, st.Payment)
	assert.Empty(t, st.BookingID)
}

func TestRequestPaymentRequiresUser(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))

	_, err := r.o.RequestPayment(ctx, "tab", "", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, r.bookings.count())
	assert.Zero(t, r.proc.createdCount())
}

func TestRequestPaymentWithoutDraft(t *testing.T) {
	r := newRig(t)
	_, err := r.o.RequestPayment(context.Background(), "tab", "u-1", "")
	assert.True(t, IsTransitionError(err), "got %v", err)
}

func TestRequestPaymentRejectsIncompleteDrafts(t *testing.T) {
	cases := map[string]func(d *models.BookingDraft){
		"no hotel":     func(d *models.BookingDraft) { d.Hotel.Name = "" },
		"no check in":  func(d *models.BookingDraft) { d.Dates.CheckIn = "" },
		"no check out": func(d *models.BookingDraft) { d.Dates.CheckOut = " " },
		"room type":    func(d *models.BookingDraft) { d.Room.Type = "suite" },
		"zero price":   func(d *models.BookingDraft) { d.Room.TotalPrice = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRig(t)
			ctx := context.Background()
			d := hotelX()
			mutate(&d)
			require.NoError(t, r.o.ReceiveDraft(ctx, "tab", d))

			_, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
			assert.ErrorIs(t, err, ErrIncompleteBooking)

			st, _ := r.o.Snapshot(ctx, "tab")
			assert.Equal(t, models.StateDrafted, st.State)
			assert.Zero(t, r.bookings.count())
			assert.Zero(t, r.proc.createdCount())
		})
	}
}

func TestRequestPayment(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")

	assert.Equal(t, "cs_1", ps.ExternalSessionID)
	assert.Equal(t, "https://pay.example/cs_1", ps.RedirectURL)
	assert.Equal(t, int64(250000), ps.LineItemAmount)
	assert.Equal(t, "https://mia.example/chat", ps.CancelURL)

	st, err := r.o.Snapshot(ctx, "tab")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingPayment, st.State)
	assert.Equal(t, ps.BookingID, st.BookingID)
	require.NotNil(t, st.Payment)
	assert.Equal(t, "cs_1", st.Payment.ExternalSessionID)

	b, err := r.bookings.GetByID(ctx, ps.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, "u-1", b.UserID)
	assert.Equal(t, "Hotel X", b.HotelName)
	assert.Regexp(t, `^MIA-[0-9A-Z]{8}$`, b.ConfirmationCode)
}

func TestRequestPaymentAgainReplacesReference(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	first := r.awaitingPayment(t, "tab", "u-1")

	second, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	require.NoError(t, err)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, "cs_2", second.ExternalSessionID)
	assert.Equal(t, 1, r.bookings.count())

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, "cs_2", st.Payment.ExternalSessionID)
}

func TestRequestPaymentProcessorFailureLeavesStateUntouched(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))
	before, _ := r.o.Snapshot(ctx, "tab")

	r.proc.createErr = payment.ErrProcessorUnavailable
	_, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	assert.ErrorIs(t, err, payment.ErrProcessorUnavailable)

	after, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, before, after)
	assert.Zero(t, r.bookings.count())
}

func TestRequestPaymentStoreFailure(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))

	r.bookings.createErr = errors.New("mongo down")
	_, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	require.Error(t, err)
	assert.Zero(t, r.proc.createdCount())

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDrafted, st.State)
}

func TestAbandonPayment(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")

	st, err := r.o.AbandonPayment(ctx, "tab")
	require.NoError(t, err)
	assert.Equal(t, models.StateDrafted, st.State)
	assert.Nil(t, st.Payment)
	assert.Equal(t, ps.BookingID, st.BookingID)

	_, err = r.o.AbandonPayment(ctx, "tab")
	assert.True(t, IsTransitionError(err))

	// Paying again reuses the still pending booking.
	again, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	require.NoError(t, err)
	assert.Equal(t, ps.BookingID, again.BookingID)
}

func TestReconcilePaidIsIdempotent(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")
	r.proc.set("cs_1", models.SettlementPaid)

	first, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.True(t, first.Transitioned)
	assert.True(t, first.InvoiceEligible)
	assert.Equal(t, models.BookingCompleted, first.Booking.Status)

	second, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.False(t, second.Transitioned)
	assert.False(t, second.InvoiceEligible)
	assert.Equal(t, models.BookingCompleted, second.Booking.Status)

	b, _ := r.bookings.GetByID(ctx, ps.BookingID)
	assert.Equal(t, models.BookingCompleted, b.Status)

	records, _ := r.payments.ListWithBooking(ctx, "u-1")
	require.Len(t, records, 1)
	assert.Equal(t, 2500.0, records[0].Amount)
	assert.Equal(t, "cs_1", records[0].ExternalSessionID)

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateCompleted, st.State)

	completed := 0
	for _, evt := range r.recorded() {
		if evt.To == models.StateCompleted {
			completed++
			require.NotNil(t, evt.Booking)
			assert.Equal(t, "tab", evt.SessionID)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestConcurrentReconcileCompletesOnce(t *testing.T) {
	r := newRig(t)
	r.awaitingPayment(t, "tab", "u-1")
	r.proc.set("cs_1", models.SettlementPaid)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		transitioned int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.o.ReconcilePayment(context.Background(), "cs_1")
			if !assert.NoError(t, err) {
				return
			}
			if res.Transitioned {
				mu.Lock()
				transitioned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, transitioned)
}

func TestReconcilePaymentRecordFailureIsRepairedOnRetry(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")
	r.proc.set("cs_1", models.SettlementPaid)

	r.payments.err = errors.New("mongo down")
	_, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.Error(t, err)
	b, _ := r.bookings.GetByID(ctx, ps.BookingID)
	assert.Equal(t, models.BookingPending, b.Status)

	r.payments.err = nil
	res, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
}

func TestReconcileExpiredReturnsToDrafted(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")
	r.proc.set("cs_1", models.SettlementExpired)

	res, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.False(t, res.Transitioned)

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDrafted, st.State)
	assert.Nil(t, st.Payment)
	assert.Equal(t, ps.BookingID, st.BookingID)

	b, _ := r.bookings.GetByID(ctx, ps.BookingID)
	assert.Equal(t, models.BookingPending, b.Status)
}

func TestReconcileIgnoresSupersededCheckout(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.awaitingPayment(t, "tab", "u-1")
	_, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	require.NoError(t, err)

	r.proc.set("cs_1", models.SettlementExpired)
	_, err = r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateAwaitingPayment, st.State)
	assert.Equal(t, "cs_2", st.Payment.ExternalSessionID)
}

func TestReconcileOpenChangesNothing(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.awaitingPayment(t, "tab", "u-1")

	res, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementOpen, res.Settlement.Status)
	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateAwaitingPayment, st.State)
}

func TestReconcileErrors(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.o.ReconcilePayment(ctx, "cs_404")
	assert.ErrorIs(t, err, payment.ErrUnknownSession)

	_, err = r.o.ReconcilePayment(ctx, payment.CheckoutSessionPlaceholder)
	assert.ErrorIs(t, err, payment.ErrUnknownSession)

	r.proc.getErr = payment.ErrReconciliationUnavailable
	_, err = r.o.ReconcilePayment(ctx, "cs_1")
	assert.ErrorIs(t, err, payment.ErrReconciliationUnavailable)
}

func TestDeleteBooking(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")

	err := r.o.DeleteBooking(ctx, "u-2", ps.BookingID)
	assert.ErrorIs(t, err, ErrNotOwner)
	err = r.o.DeleteBooking(ctx, "", ps.BookingID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, r.o.DeleteBooking(ctx, "u-1", ps.BookingID))
	list, err := r.o.ListBookings(ctx, "u-1", models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDeleted, st.State)
	assert.Empty(t, st.BookingID)

	err = r.o.DeleteBooking(ctx, "u-1", ps.BookingID)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	// A new draft starts over after deletion.
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab", hotelX()))
	st, _ = r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDrafted, st.State)
}

func TestDeleteCompletedBooking(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")
	r.proc.set("cs_1", models.SettlementPaid)
	_, err := r.o.ReconcilePayment(ctx, "cs_1")
	require.NoError(t, err)

	require.NoError(t, r.o.DeleteBooking(ctx, "u-1", ps.BookingID))
	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDeleted, st.State)
}

func TestCancelBooking(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	ps := r.awaitingPayment(t, "tab", "u-1")

	_, err := r.o.CancelBooking(ctx, "u-2", ps.BookingID)
	assert.ErrorIs(t, err, ErrNotOwner)

	b, err := r.o.CancelBooking(ctx, "u-1", ps.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)

	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateDrafted, st.State)
	assert.Empty(t, st.BookingID)
	assert.NotNil(t, st.Draft)

	_, err = r.o.CancelBooking(ctx, "u-1", ps.BookingID)
	assert.True(t, IsTransitionError(err))

	// Paying the same draft again creates a fresh booking.
	again, err := r.o.RequestPayment(ctx, "tab", "u-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, ps.BookingID, again.BookingID)
}

func TestListBookings(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.awaitingPayment(t, "tab-1", "u-1")

	other := hotelX()
	other.Hotel.Name = "Casa Azul"
	require.NoError(t, r.o.ReceiveDraft(ctx, "tab-2", other))
	_, err := r.o.RequestPayment(ctx, "tab-2", "u-1", "")
	require.NoError(t, err)
	r.proc.set("cs_2", models.SettlementPaid)
	_, err = r.o.ReconcilePayment(ctx, "cs_2")
	require.NoError(t, err)

	all, err := r.o.ListBookings(ctx, "u-1", models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hits, err := r.o.ListBookings(ctx, "u-1", models.BookingFilter{Search: "azul"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Casa Azul", hits[0].HotelName)

	pending, err := r.o.ListBookings(ctx, "u-1", models.BookingFilter{Status: models.BookingPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Hotel X", pending[0].HotelName)

	none, err := r.o.ListBookings(ctx, "u-2", models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = r.o.ListBookings(ctx, "u-1", models.BookingFilter{Status: "paid"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = r.o.ListBookings(ctx, "", models.BookingFilter{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignOutClearsActiveBooking(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.awaitingPayment(t, "tab", "u-1")

	r.o.HandleSessionChange(ctx, session.Change{
		Session: models.Session{ID: "tab"},
		Reason:  session.ReasonPrompt,
	})
	st, _ := r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateAwaitingPayment, st.State)

	r.o.HandleSessionChange(ctx, session.Change{
		Session: models.Session{ID: "tab", Epoch: 1},
		Reason:  session.ReasonSignedOut,
	})
	st, _ = r.o.Snapshot(ctx, "tab")
	assert.Equal(t, models.StateNoBooking, st.State)
	assert.Nil(t, st.Draft)
}

func TestUnsubscribe(t *testing.T) {
	r := newRig(t)
	calls := 0
	unsubscribe := r.o.Subscribe(func(context.Context, Event) { calls++ })
	require.NoError(t, r.o.ReceiveDraft(context.Background(), "tab", hotelX()))
	unsubscribe()
	unsubscribe()

	other := hotelX()
	other.Hotel.Name = "Hotel Y"
	require.NoError(t, r.o.ReceiveDraft(context.Background(), "tab", other))
	assert.Equal(t, 1, calls)
}
