package models

// All lists every table owned by the service, in migration order.
func All() []any {
	return []any{
		&User{},
		&Service{},
		&Offer{},
		&Provider{},
		&Setting{},
		&Transaction{},
		&TransactionLog{},
		&Notification{},
		&PayoutJob{},
		&PaymentNotificationLog{},
	}
}
