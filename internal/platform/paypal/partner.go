package paypal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"

	"github.com/fatflowers/partypay/pkg/logctx"
)

var errPartnerMerchantIDMissing = errors.New("paypal: partner merchant id not configured")

// CreatePartnerReferral starts seller onboarding. The SDK has no partner referrals helper, so
// the payload is local and the call goes through do. The seller follows ActionURL and comes back
// to seller.ReturnURL with merchantIdInPayPal and the tracking id.
func (c *Client) CreatePartnerReferral(ctx context.Context, seller SellerData) (*PartnerReferral, error) {
	body := map[string]any{
		"tracking_id": seller.TrackingID,
		"operations": []map[string]any{{
			"operation": "API_INTEGRATION",
			"api_integration_preference": map[string]any{
				"rest_api_integration": map[string]any{
					"integration_method": "PAYPAL",
					"integration_type":   "THIRD_PARTY",
					"third_party_details": map[string]any{
						"features": []string{"PAYMENT", "REFUND", "PARTNER_FEE", "DELAY_FUNDS_DISBURSEMENT"},
					},
				},
			},
		}},
		"products": []string{"EXPRESS_CHECKOUT"},
		"legal_consents": []map[string]any{{
			"type":    "SHARE_DATA_CONSENT",
			"granted": true,
		}},
		"partner_config_override": map[string]string{
			"return_url": seller.ReturnURL,
		},
	}
	if seller.Email != "" {
		body["email"] = seller.Email
	}

	var resp struct {
		Links []Link `json:"links"`
	}
	if err := c.do(ctx, request{
		op:     "create_partner_referral",
		method: http.MethodPost,
		path:   "/v2/customer/partner-referrals",
		body:   body,
	}, &resp); err != nil {
		return nil, err
	}

	ref := &PartnerReferral{Links: resp.Links, ActionURL: findLink(resp.Links, "action_url")}
	if self := findLink(resp.Links, "self"); self != "" {
		if u, err := url.Parse(self); err == nil {
			ref.PartnerReferralID = path.Base(u.Path)
		}
	}
	return ref, nil
}

func (c *Client) GetMerchantStatus(ctx context.Context, merchantID string) (*MerchantStatus, error) {
	if c.opts.PartnerMerchantID == "" {
		return nil, errPartnerMerchantIDMissing
	}
	var resp MerchantStatus
	if err := c.do(ctx, request{
		op:     "get_merchant_status",
		method: http.MethodGet,
		path: "/v1/customer/partners/" + url.PathEscape(c.opts.PartnerMerchantID) +
			"/merchant-integrations/" + url.PathEscape(merchantID),
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckSellerStatus never fails: a status lookup error reports the seller as unable to
// receive payments with a STATUS_CHECK_FAILED issue.
func (c *Client) CheckSellerStatus(ctx context.Context, merchantID string) SellerStatus {
	st, err := c.GetMerchantStatus(ctx, merchantID)
	if err != nil {
		logctx.FromCtx(ctx, c.logger).Warnw("paypal_seller_status_check_failed", "merchant_id", merchantID, "err", err)
		return SellerStatus{
			CanReceivePayments: false,
			Issues:             []StatusIssue{{Code: IssueStatusCheckFailed, Message: err.Error()}},
		}
	}
	return SellerStatusFrom(st)
}

// SellerStatusFrom derives the issues list from a merchant integration record.
func SellerStatusFrom(st *MerchantStatus) SellerStatus {
	var issues []StatusIssue
	if !st.PrimaryEmailConfirmed {
		issues = append(issues, StatusIssue{Code: IssueEmailNotConfirmed, Message: "primary email is not confirmed"})
	}
	if !st.PaymentsReceivable {
		issues = append(issues, StatusIssue{Code: IssueCannotReceivePayments, Message: "account cannot receive payments"})
	}
	if len(st.OAuthIntegrations) == 0 {
		issues = append(issues, StatusIssue{Code: IssueNoOAuthPermissions, Message: "third-party permissions were not granted"})
	}
	return SellerStatus{
		CanReceivePayments: len(issues) == 0,
		Issues:             issues,
		PrimaryEmail:       st.PrimaryEmail,
	}
}
