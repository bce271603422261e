package types

import (
	"fmt"

	"github.com/samber/lo"
)

// TransactionStatus is the single lifecycle enum shared by every payment component.
type TransactionStatus string

const (
	TransactionStatusPending                       TransactionStatus = "PENDING"
	TransactionStatusPendingPayment                TransactionStatus = "PENDING_PAYMENT"
	TransactionStatusProviderReview                TransactionStatus = "PROVIDER_REVIEW"
	TransactionStatusPaidPendingProviderAcceptance TransactionStatus = "PAID_PENDING_PROVIDER_ACCEPTANCE"
	TransactionStatusEscrow                        TransactionStatus = "ESCROW"
	TransactionStatusCompleted                     TransactionStatus = "COMPLETED"
	TransactionStatusRejected                      TransactionStatus = "REJECTED"
	TransactionStatusCancelled                     TransactionStatus = "CANCELLED"
	TransactionStatusRefunded                      TransactionStatus = "REFUNDED"
)

var allTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusPendingPayment,
	TransactionStatusProviderReview,
	TransactionStatusPaidPendingProviderAcceptance,
	TransactionStatusEscrow,
	TransactionStatusCompleted,
	TransactionStatusRejected,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
}

// PROVIDER_REVIEW means the buyer approved the gateway order but nothing was captured yet.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusPendingPayment,
		TransactionStatusCancelled,
	},
	TransactionStatusPendingPayment: {
		TransactionStatusPaidPendingProviderAcceptance,
		TransactionStatusProviderReview,
		TransactionStatusCancelled,
	},
	TransactionStatusProviderReview: {
		TransactionStatusEscrow,
		TransactionStatusRejected,
		TransactionStatusCancelled,
	},
	TransactionStatusPaidPendingProviderAcceptance: {
		TransactionStatusCompleted,
		TransactionStatusEscrow,
		TransactionStatusRejected,
		TransactionStatusCancelled,
	},
	TransactionStatusEscrow: {
		TransactionStatusCompleted,
		TransactionStatusCancelled,
	},
	TransactionStatusRejected:  {TransactionStatusRefunded},
	TransactionStatusCompleted: {TransactionStatusRefunded},
	TransactionStatusCancelled: {TransactionStatusRefunded},
}

func (s TransactionStatus) IsValid() bool {
	return lo.Contains(allTransactionStatuses, s)
}

// IsTerminal reports whether no further business transition is expected.
// Terminal transactions can still be refunded by an admin.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// IsCaptured reports whether the gateway holds captured funds for a transaction in this status.
func (s TransactionStatus) IsCaptured() bool {
	switch s {
	case TransactionStatusPaidPendingProviderAcceptance, TransactionStatusEscrow, TransactionStatusCompleted:
		return true
	}
	return false
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return lo.Contains(transactionTransitions[s], next)
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	s := TransactionStatus(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid transaction status %q", value)
	}
	return s, nil
}
