package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single upstream exchange when none is configured.
const DefaultTimeout = 30 * time.Second

type party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type transferBody struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        *party `json:"payer,omitempty"`
	Payee        *party `json:"payee,omitempty"`
	PayerMessage string `json:"payerMessage,omitempty"`
	PayeeNote    string `json:"payeeNote,omitempty"`
}

func newTransferBody(req MobileMoneyRequest, collect bool) transferBody {
	b := transferBody{
		Amount:     strconv.FormatInt(req.Amount, 10),
		Currency:   req.Currency,
		ExternalID: req.Reference,
	}
	p := &party{PartyIDType: "MSISDN", PartyID: req.Phone}
	if collect {
		b.Payer = p
		b.PayerMessage = "Payment " + req.Reference
		b.PayeeNote = req.Reference
	} else {
		b.Payee = p
	}
	return b
}

// postJSON sends body and turns the answer into a Result. Answers >= 500 are
// ProviderErrors, 4xx answers are FAILED results.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any, providerTxID string) (Result, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 500 {
		return Result{}, &ProviderError{Provider: provider, HTTPStatus: resp.StatusCode, Body: string(raw)}
	}
	res := Result{
		HTTPStatus:            resp.StatusCode,
		Body:                  string(raw),
		ProviderTransactionID: providerTxID,
	}
	if resp.StatusCode >= 400 {
		res.Status = StatusFailed
		return res, nil
	}
	res.Status = statusFromBody(resp.StatusCode, raw)
	return res, nil
}

// statusFromBody reads "status" or Airtel's data.transaction.status.
func statusFromBody(code int, raw []byte) string {
	var body struct {
		Status json.RawMessage `json:"status"`
		Data   struct {
			Transaction struct {
				Status string `json:"status"`
			} `json:"transaction"`
		} `json:"data"`
	}
	s := ""
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &body) == nil {
		s = body.Data.Transaction.Status
		if s == "" {
			// Airtel nests an object under "status"; only strings count here.
			_ = json.Unmarshal(body.Status, &s)
		}
	}
	if s == "" {
		if code == http.StatusAccepted {
			return StatusAccepted
		}
		return StatusPending
	}
	return NormalizeStatus(s)
}

// NormalizeStatus maps operator vocabularies (MTN words, Airtel TS/TF/TIP/TA
// codes) onto the normalized strings. Unknown values are returned uppercased.
func NormalizeStatus(s string) string {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "SUCCESS", "SUCCESSFUL", "TS":
		return StatusSuccess
	case "PENDING", "TIP", "TA":
		return StatusPending
	case "ACCEPTED":
		return StatusAccepted
	case "FAILED", "REJECTED", "TIMEOUT", "TF":
		return StatusFailed
	default:
		return v
	}
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
