package appointments

// Transition names a lifecycle action on an appointment.
type Transition string

const (
	TransitionCancel      Transition = "cancel"
	TransitionComplete    Transition = "complete"
	TransitionCashPayment Transition = "cash_payment"
	TransitionCardPending Transition = "card_pending"
	TransitionCardPaid    Transition = "card_paid"
	TransitionRate        Transition = "rate"
)

// Guard checks whether the transition is legal for the appointment's current
// state. All lifecycle invariants are enforced here, in one place; the store
// additionally repeats each guard as a conditional UPDATE so that concurrent
// transitions cannot interleave.
func Guard(a *Appointment, tr Transition) error {
	if a == nil {
		return ErrNotFound
	}
	switch tr {
	case TransitionCancel:
		if a.Status == StatusCompleted {
			return ErrAlreadyCompleted
		}
		if a.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
	case TransitionComplete:
		if a.Status == StatusCompleted {
			return ErrAlreadyCompleted
		}
		if a.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if !a.PaymentState.Paid() {
			return ErrPaymentRequired
		}
	case TransitionCashPayment, TransitionCardPending:
		if a.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
	case TransitionCardPaid:
		if a.PaymentState == PaymentCard {
			return ErrAlreadyPaid
		}
	case TransitionRate:
		if a.Status != StatusCompleted {
			return ErrNotCompleted
		}
		if a.Rating != nil {
			return ErrAlreadyRated
		}
	}
	return nil
}
