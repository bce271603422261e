package payment

import (
	"github.com/shopspring/decimal"

	"github.com/fatflowers/partypay/internal/app/service/fees"
	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/internal/platform/paypal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the money split of one booking, in cents.
//
//	client_fee        = round(amount * client% / 100)
//	total_client_pays = amount + client_fee
//	provider_fee      = round(amount * provider% / 100)
//	provider_receives = amount - provider_fee
//	platform          = client_fee + provider_fee
type Breakdown struct {
	ServiceAmountCents      int64           `json:"service_amount_cents"`
	ClientFeeCents          int64           `json:"client_fee_cents"`
	TotalClientPaysCents    int64           `json:"total_client_pays_cents"`
	ProviderFeeCents        int64           `json:"provider_fee_cents"`
	ProviderReceivesCents   int64           `json:"provider_receives_cents"`
	PlatformCommissionCents int64           `json:"platform_commission_cents"`
	ClientFeePercent        decimal.Decimal `json:"client_fee_percent"`
	ProviderFeePercent      decimal.Decimal `json:"provider_fee_percent"`
	Currency                string          `json:"currency"`
}

// CalculateBreakdown applies fee percentages to amount. Each fee is rounded half-up once.
func CalculateBreakdown(amount decimal.Decimal, settings fees.FeeSettings, currency string) Breakdown {
	clientPct := decimal.NewFromFloat(settings.ClientFeePercent)
	providerPct := decimal.NewFromFloat(settings.ProviderFeePercent)

	amountCents := toCents(amount)
	clientFee := toCents(amount.Mul(clientPct).Div(hundred))
	providerFee := toCents(amount.Mul(providerPct).Div(hundred))

	return Breakdown{
		ServiceAmountCents:      amountCents,
		ClientFeeCents:          clientFee,
		TotalClientPaysCents:    amountCents + clientFee,
		ProviderFeeCents:        providerFee,
		ProviderReceivesCents:   amountCents - providerFee,
		PlatformCommissionCents: clientFee + providerFee,
		ClientFeePercent:        clientPct,
		ProviderFeePercent:      providerPct,
		Currency:                currency,
	}
}

// BreakdownOf rebuilds the breakdown from the snapshot stored on t.
func BreakdownOf(t *models.Transaction) Breakdown {
	amountCents := toCents(t.Amount)
	clientFee := t.TotalClientPaysCents - amountCents
	providerFee := amountCents - t.ProviderReceivesCents
	return Breakdown{
		ServiceAmountCents:      amountCents,
		ClientFeeCents:          clientFee,
		TotalClientPaysCents:    t.TotalClientPaysCents,
		ProviderFeeCents:        providerFee,
		ProviderReceivesCents:   t.ProviderReceivesCents,
		PlatformCommissionCents: t.PlatformCommissionCents,
		ClientFeePercent:        t.ClientFeePercent,
		ProviderFeePercent:      t.ProviderFeePercent,
		Currency:                t.Currency,
	}
}

// snapshot returns the transaction columns that freeze the breakdown.
func (b Breakdown) snapshot() map[string]any {
	return map[string]any{
		"client_fee_percent":        b.ClientFeePercent,
		"provider_fee_percent":      b.ProviderFeePercent,
		"total_client_pays_cents":   b.TotalClientPaysCents,
		"provider_receives_cents":   b.ProviderReceivesCents,
		"platform_commission_cents": b.PlatformCommissionCents,
	}
}

// TotalClientPays is the display form of the buyer total, e.g. "105.00".
func (b Breakdown) TotalClientPays() string { return paypal.FormatCents(b.TotalClientPaysCents) }

func (b Breakdown) ProviderReceives() string { return paypal.FormatCents(b.ProviderReceivesCents) }

func (b Breakdown) PlatformCommission() string { return paypal.FormatCents(b.PlatformCommissionCents) }

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func formatAmount(cents int64, currency string) string {
	return paypal.FormatCents(cents) + " " + currency
}
