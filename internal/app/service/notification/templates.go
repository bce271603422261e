package notification

import (
	"fmt"

	"github.com/fatflowers/partypay/pkg/types"
)

func PaymentReceived(txID, amount string) Message {
	return Message{
		Type:          types.NotificationTypePayment,
		Title:         "Payment received",
		Content:       fmt.Sprintf("A client paid %s for your service. Please accept the booking.", amount),
		TransactionID: txID,
	}
}

func PaymentAuthorized(txID, amount string) Message {
	return Message{
		Type:          types.NotificationTypeBooking,
		Title:         "New booking to review",
		Content:       fmt.Sprintf("A client authorized a payment of %s. Approve or reject the booking.", amount),
		TransactionID: txID,
	}
}

func BookingAccepted(txID string) Message {
	return Message{
		Type:          types.NotificationTypeBooking,
		Title:         "Booking accepted",
		Content:       "The provider accepted your booking.",
		TransactionID: txID,
	}
}

func BookingApproved(txID string, escrowEnd string) Message {
	content := "The provider approved your booking. Your payment is held in escrow."
	if escrowEnd != "" {
		content = fmt.Sprintf("The provider approved your booking. Your payment is held in escrow until %s.", escrowEnd)
	}
	return Message{
		Type:          types.NotificationTypeBooking,
		Title:         "Booking approved",
		Content:       content,
		TransactionID: txID,
	}
}

func BookingRejected(txID, reason string) Message {
	content := "The provider rejected your booking."
	if reason != "" {
		content += " Reason: " + reason
	}
	return Message{
		Type:          types.NotificationTypeBooking,
		Title:         "Booking rejected",
		Content:       content,
		TransactionID: txID,
	}
}

func BookingCancelled(txID string) Message {
	return Message{
		Type:          types.NotificationTypeBooking,
		Title:         "Booking cancelled",
		Content:       "The booking was cancelled.",
		TransactionID: txID,
	}
}

func PayoutSent(txID, amount string) Message {
	return Message{
		Type:          types.NotificationTypePayment,
		Title:         "Payout sent",
		Content:       fmt.Sprintf("%s was released to your PayPal account.", amount),
		TransactionID: txID,
	}
}

func PaymentRefunded(txID, amount string) Message {
	return Message{
		Type:          types.NotificationTypePayment,
		Title:         "Payment refunded",
		Content:       fmt.Sprintf("%s was refunded to your payment method.", amount),
		TransactionID: txID,
	}
}

func AdminAlert(txID, title, content string) Message {
	return Message{
		Type:          types.NotificationTypeSystem,
		Title:         title,
		Content:       content,
		TransactionID: txID,
	}
}
