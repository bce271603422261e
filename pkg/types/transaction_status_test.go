package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionStatus_Transitions(t *testing.T) {
	require.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusPendingPayment))
	require.True(t, TransactionStatusPendingPayment.CanTransitionTo(TransactionStatusPaidPendingProviderAcceptance))
	require.True(t, TransactionStatusPendingPayment.CanTransitionTo(TransactionStatusProviderReview))
	require.True(t, TransactionStatusProviderReview.CanTransitionTo(TransactionStatusEscrow))
	require.True(t, TransactionStatusPaidPendingProviderAcceptance.CanTransitionTo(TransactionStatusCompleted))
	require.True(t, TransactionStatusEscrow.CanTransitionTo(TransactionStatusCompleted))
	require.True(t, TransactionStatusCompleted.CanTransitionTo(TransactionStatusRefunded))
	require.True(t, TransactionStatusCancelled.CanTransitionTo(TransactionStatusRefunded))

	require.False(t, TransactionStatusCompleted.CanTransitionTo(TransactionStatusEscrow))
	require.False(t, TransactionStatusRefunded.CanTransitionTo(TransactionStatusCompleted))
	require.False(t, TransactionStatusPending.CanTransitionTo(TransactionStatusCompleted))
	require.False(t, TransactionStatusEscrow.CanTransitionTo(TransactionStatusPendingPayment))
}

func TestTransactionStatus_NoTransitionLeavesRefunded(t *testing.T) {
	for _, s := range allTransactionStatuses {
		require.False(t, TransactionStatusRefunded.CanTransitionTo(s), s)
	}
}

func TestParseTransactionStatus(t *testing.T) {
	s, err := ParseTransactionStatus("ESCROW")
	require.NoError(t, err)
	require.Equal(t, TransactionStatusEscrow, s)

	_, err = ParseTransactionStatus("PAID")
	require.Error(t, err)
}

func TestTransactionStatus_Terminal(t *testing.T) {
	require.True(t, TransactionStatusCompleted.IsTerminal())
	require.True(t, TransactionStatusCancelled.IsTerminal())
	require.True(t, TransactionStatusRefunded.IsTerminal())
	require.False(t, TransactionStatusEscrow.IsTerminal())
	require.False(t, TransactionStatusRejected.IsTerminal())
}
