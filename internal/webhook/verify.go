package webhook

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"

	"github.com/example/payment-integration-service/internal/gateway"
	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/signature"
	perr "github.com/example/payment-integration-service/pkg/errors"
)

// event is a verified callback reduced to what idempotency and
// reconciliation need. status holds a gateway.Status* value.
type event struct {
	id           string
	kind         string
	reference    string
	providerTxID string
	status       string
}

func (e *Engine) verifyHMAC(provider ledger.Provider, secret string, payload []byte, sig, ts string) (event, error) {
	if strings.TrimSpace(sig) == "" {
		return event{}, perr.New(perr.CodeBadPayload, "missing signature")
	}
	switch err := signature.Verify([]byte(secret), payload, sig); {
	case errors.Is(err, signature.ErrNoSecret):
		return event{}, perr.Wrap(perr.CodeCryptography, string(provider)+" webhook secret not configured", err)
	case errors.Is(err, signature.ErrBadFormat):
		return event{}, perr.Wrap(perr.CodeInvalidSignature, "bad signature format", err)
	case err != nil:
		return event{}, perr.Wrap(perr.CodeInvalidSignature, "invalid "+string(provider)+" signature", err)
	}
	if err := e.checkFreshness(ts); err != nil {
		return event{}, err
	}

	ev := parseOperatorPayload(payload)
	ev.id = extractEventID(payload)
	return ev, nil
}

func (e *Engine) verifyStripe(payload []byte, sig string) (event, error) {
	if strings.TrimSpace(sig) == "" {
		return event{}, perr.New(perr.CodeBadPayload, "missing signature")
	}
	if e.cfg.Secrets.Stripe == "" {
		return event{}, perr.New(perr.CodeCryptography, "stripe webhook secret not configured")
	}
	se, err := stripewebhook.ConstructEventWithOptions(payload, sig, e.cfg.Secrets.Stripe, stripewebhook.ConstructEventOptions{
		Tolerance:                e.cfg.Skew,
		IgnoreAPIVersionMismatch: true,
	})
	switch {
	case errors.Is(err, stripewebhook.ErrTooOld):
		return event{}, perr.Wrap(perr.CodeBadPayload, "stale stripe event", err)
	case errors.Is(err, stripewebhook.ErrNoValidSignature),
		errors.Is(err, stripewebhook.ErrNotSigned),
		errors.Is(err, stripewebhook.ErrInvalidHeader):
		return event{}, perr.Wrap(perr.CodeInvalidSignature, "invalid stripe signature", err)
	case err != nil:
		return event{}, perr.Wrap(perr.CodeBadPayload, "invalid stripe payload", err)
	}
	return stripeEvent(se), nil
}

// checkFreshness accepts a missing header; otherwise the timestamp must be
// Unix seconds or RFC 3339 and within the configured skew.
func (e *Engine) checkFreshness(header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	var ts time.Time
	if secs, err := strconv.ParseInt(header, 10, 64); err == nil {
		ts = time.Unix(secs, 0)
	} else if t, err := time.Parse(time.RFC3339Nano, header); err == nil {
		ts = t
	} else {
		return perr.New(perr.CodeBadPayload, "unparseable timestamp")
	}
	delta := e.now().Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > e.cfg.Skew {
		return perr.New(perr.CodeBadPayload, "stale timestamp")
	}
	return nil
}

var eventIDFields = []string{"id", "eventId", "reference", "transactionId"}

// extractEventID returns the first present id field. Non-JSON payloads and
// non-scalar values yield no id.
func extractEventID(payload []byte) string {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(payload, &root); err != nil {
		return ""
	}
	for _, f := range eventIDFields {
		raw, ok := root[f]
		if !ok {
			continue
		}
		return scalar(raw)
	}
	return ""
}

func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// operatorPayload covers the MTN callback body and Airtel's nested
// transaction object.
type operatorPayload struct {
	ExternalID             string `json:"externalId"`
	Reference              string `json:"reference"`
	ReferenceID            string `json:"referenceId"`
	FinancialTransactionID string `json:"financialTransactionId"`
	TransactionID          string `json:"transactionId"`
	Status                 string `json:"status"`
	Transaction            struct {
		ID            string `json:"id"`
		AirtelMoneyID string `json:"airtel_money_id"`
		StatusCode    string `json:"status_code"`
		Status        string `json:"status"`
	} `json:"transaction"`
}

func parseOperatorPayload(payload []byte) event {
	var p operatorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return event{}
	}
	return event{
		reference:    first(p.ExternalID, p.Reference, p.Transaction.ID),
		providerTxID: first(p.ReferenceID, p.FinancialTransactionID, p.TransactionID, p.Transaction.AirtelMoneyID),
		status:       gateway.NormalizeStatus(first(p.Status, p.Transaction.StatusCode, p.Transaction.Status)),
	}
}

type stripeObject struct {
	ID       string            `json:"id"`
	Object   string            `json:"object"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

var stripeOutcomes = map[stripe.EventType]string{
	"payment_intent.succeeded":      gateway.StatusSuccess,
	"payment_intent.payment_failed": gateway.StatusFailed,
	"payment_intent.canceled":       gateway.StatusFailed,
	"payout.paid":                   gateway.StatusSuccess,
	"payout.failed":                 gateway.StatusFailed,
	"payout.canceled":               gateway.StatusFailed,
}

func stripeEvent(se stripe.Event) event {
	ev := event{id: se.ID, kind: string(se.Type), status: stripeOutcomes[se.Type]}
	if se.Data == nil {
		return ev
	}
	var obj stripeObject
	if err := json.Unmarshal(se.Data.Raw, &obj); err == nil {
		ev.providerTxID = obj.ID
		ev.reference = obj.Metadata["reference"]
	}
	return ev
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
