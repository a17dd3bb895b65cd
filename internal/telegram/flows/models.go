package flows

// Callback data кнопок покупки.
const (
	CallbackYookassaPayment = "yocassa_payment"
	CallbackCancel          = "cancel_action"
	CallbackConfirmPayment  = "confirm_payment"
)
