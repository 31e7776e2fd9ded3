package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/signature"
	"github.com/example/payment-integration-service/internal/webhook"
)

type operator string

const (
	mtn    operator = "mtn"
	airtel operator = "airtel"
)

// transferIn is the subset of the request-to-pay / transfer body the sandbox reads.
type transferIn struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	ExternalID string `json:"externalId"`
}

// sandbox emulates the MTN and Airtel token, collection and disbursement
// endpoints and answers each accepted request with a signed callback.
type sandbox struct {
	failRate    float64 // upstream 500s
	declineRate float64 // callbacks that report failure
	delay       time.Duration
	secrets     map[operator]string

	rand   func() float64
	newID  func() string
	now    func() time.Time
	client *http.Client
	log    *zap.Logger

	pending sync.WaitGroup
}

func (s *sandbox) routes(r *mux.Router) {
	m := r.PathPrefix("/mtn").Subrouter()
	m.HandleFunc("/token/", s.token(mtn)).Methods(http.MethodPost)
	m.HandleFunc("/requesttopay", s.transfer(mtn)).Methods(http.MethodPost)
	m.HandleFunc("/disbursement", s.transfer(mtn)).Methods(http.MethodPost)

	a := r.PathPrefix("/airtel").Subrouter()
	a.HandleFunc("/v1/oauth/token", s.token(airtel)).Methods(http.MethodPost)
	a.HandleFunc("/collection/v1_0/requesttopay", s.transfer(airtel)).Methods(http.MethodPost)
	a.HandleFunc("/disbursement/v1_0/transfer", s.transfer(airtel)).Methods(http.MethodPost)
}

func (s *sandbox) token(op operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, secret, ok := r.BasicAuth(); !ok || id == "" || secret == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
			return
		}
		// MTN sends expires_in as a number, Airtel as a string
		var expires any = 3600
		if op == airtel {
			expires = "3600"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": s.newID(),
			"token_type":   "Bearer",
			"expires_in":   expires,
		})
	}
}

func (s *sandbox) transfer(op operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer token"})
			return
		}
		refID := r.Header.Get("X-Reference-Id")
		var in transferIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || refID == "" || in.ExternalID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "FAILED", "reason": "bad_request"})
			return
		}

		if s.rand() < s.failRate {
			http.Error(w, `{"status":"error","message":"upstream failed"}`, http.StatusInternalServerError)
			return
		}

		s.scheduleCallback(op, r.Header.Get("X-Callback-Url"), refID, in)

		if op == mtn {
			// MTN acknowledges with an empty 202
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"transaction": map[string]any{"id": in.ExternalID, "status": "TIP"},
			},
			"status": map[string]any{"code": "200", "success": true, "message": "SUCCESS"},
		})
	}
}

func (s *sandbox) scheduleCallback(op operator, url, refID string, in transferIn) {
	if url == "" {
		return
	}
	success := s.rand() >= s.declineRate
	body := callbackBody(op, s.newID(), refID, in.ExternalID, success)

	s.pending.Add(1)
	time.AfterFunc(s.delay, func() {
		defer s.pending.Done()
		s.deliver(op, url, body)
	})
}

func callbackBody(op operator, eventID, refID, externalID string, success bool) []byte {
	var v map[string]any
	switch op {
	case mtn:
		status := "SUCCESSFUL"
		if !success {
			status = "FAILED"
		}
		v = map[string]any{
			"eventId":                eventID,
			"referenceId":            refID,
			"externalId":             externalID,
			"financialTransactionId": "FT-" + refID,
			"status":                 status,
		}
	default:
		code := "TS"
		if !success {
			code = "TF"
		}
		v = map[string]any{
			"eventId": eventID,
			"transaction": map[string]any{
				"id":              externalID,
				"airtel_money_id": refID,
				"status_code":     code,
			},
		}
	}
	b, _ := json.Marshal(v)
	return b
}

func (s *sandbox) deliver(op operator, url string, body []byte) {
	log := s.log.With(zap.String("operator", string(op)), zap.String("callback_url", url))
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn("bad callback url", zap.Error(err))
		return
	}
	header := webhook.HeaderMTNSignature
	if op == airtel {
		header = webhook.HeaderAirtelSignature
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, signature.Sign([]byte(s.secrets[op]), body))
	req.Header.Set(webhook.HeaderTimestamp, strconv.FormatInt(s.now().Unix(), 10))

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn("callback delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	log.Info("callback delivered", zap.Int("status", resp.StatusCode))
}

func newSandbox(failRate, declineRate float64, delay time.Duration, secrets map[operator]string, rnd func() float64, log *zap.Logger) *sandbox {
	return &sandbox{
		failRate:    failRate,
		declineRate: declineRate,
		delay:       delay,
		secrets:     secrets,
		rand:        rnd,
		newID:       uuid.NewString,
		now:         time.Now,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
