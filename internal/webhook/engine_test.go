package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/payment-integration-service/internal/idempotency"
	"github.com/example/payment-integration-service/internal/ledger"
	"github.com/example/payment-integration-service/internal/signature"
	perr "github.com/example/payment-integration-service/pkg/errors"
)

var secrets = Secrets{Stripe: "whsec_test", MTN: "mtn-secret", Airtel: "airtel-secret"}

func newEngine(repo ledger.Repository, guard idempotency.Guard, pub Publisher) *Engine {
	return NewEngine(Config{Secrets: secrets, Skew: 300 * time.Second}, guard, repo, pub, zap.NewNop())
}

func seed(t *testing.T, repo ledger.Repository, tx ledger.Transaction) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &tx))
}

func hmacHeaders(name, secret string, body []byte, ts string) http.Header {
	h := http.Header{}
	h.Set(name, signature.Sign([]byte(secret), body))
	if ts != "" {
		h.Set(HeaderTimestamp, ts)
	}
	return h
}

func stripeHeaders(body []byte, at time.Time) http.Header {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   body,
		Secret:    secrets.Stripe,
		Timestamp: at,
	})
	h := http.Header{}
	h.Set(HeaderStripeSignature, signed.Header)
	return h
}

func TestEngine_Rejections(t *testing.T) {
	body := []byte(`{"externalId":"C-1","status":"SUCCESSFUL"}`)
	now := time.Now()

	var tests = []struct {
		name         string
		provider     ledger.Provider
		payload      []byte
		headers      http.Header
		expectedCode string
	}{
		{
			name:         "empty payload",
			provider:     ledger.ProviderMTN,
			headers:      hmacHeaders(HeaderMTNSignature, secrets.MTN, body, ""),
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "missing signature",
			provider:     ledger.ProviderMTN,
			payload:      body,
			headers:      http.Header{},
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "stale airtel timestamp",
			provider:     ledger.ProviderAirtel,
			payload:      body,
			headers:      hmacHeaders(HeaderAirtelSignature, secrets.Airtel, body, strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)),
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "future timestamp",
			provider:     ledger.ProviderAirtel,
			payload:      body,
			headers:      hmacHeaders(HeaderAirtelSignature, secrets.Airtel, body, now.Add(time.Hour).UTC().Format(time.RFC3339)),
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "unparseable timestamp",
			provider:     ledger.ProviderMTN,
			payload:      body,
			headers:      hmacHeaders(HeaderMTNSignature, secrets.MTN, body, "yesterday"),
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "bad signature encoding",
			provider:     ledger.ProviderMTN,
			payload:      body,
			headers:      http.Header{HeaderMTNSignature: []string{"!!!not-base64!!!"}},
			expectedCode: perr.CodeInvalidSignature,
		},
		{
			name:         "signature from another secret",
			provider:     ledger.ProviderAirtel,
			payload:      body,
			headers:      hmacHeaders(HeaderAirtelSignature, secrets.MTN, body, ""),
			expectedCode: perr.CodeInvalidSignature,
		},
		{
			name:         "stripe wrong secret",
			provider:     ledger.ProviderStripe,
			payload:      []byte(`{"id":"evt_1","object":"event"}`),
			headers:      http.Header{HeaderStripeSignature: []string{"t=" + strconv.FormatInt(now.Unix(), 10) + ",v1=deadbeef"}},
			expectedCode: perr.CodeInvalidSignature,
		},
		{
			name:         "stripe stale",
			provider:     ledger.ProviderStripe,
			payload:      []byte(`{"id":"evt_1","object":"event"}`),
			headers:      stripeHeaders([]byte(`{"id":"evt_1","object":"event"}`), now.Add(-time.Hour)),
			expectedCode: perr.CodeBadPayload,
		},
		{
			name:         "stripe signed garbage",
			provider:     ledger.ProviderStripe,
			payload:      []byte(`not json`),
			headers:      stripeHeaders([]byte(`not json`), now),
			expectedCode: perr.CodeBadPayload,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			guard := idempotency.NewMemoryGuard(time.Hour)
			e := newEngine(ledger.NewInMemoryRepository(), guard, nil)

			out, err := e.Handle(context.Background(), tt.provider, tt.payload, tt.headers)
			require.Error(t, err)
			require.Empty(t, out)
			require.Equal(t, tt.expectedCode, perr.CodeOf(err))

			// nothing is marked before verification succeeds
			seen, _ := guard.IsProcessed(context.Background(), "C-1")
			require.False(t, seen)
			seen, _ = guard.IsProcessed(context.Background(), "evt_1")
			require.False(t, seen)
		})
	}
}

func TestEngine_MissingSecret(t *testing.T) {
	body := []byte(`{"reference":"C-1"}`)
	e := NewEngine(Config{}, idempotency.NewMemoryGuard(0), ledger.NewInMemoryRepository(), nil, zap.NewNop())

	_, err := e.Handle(context.Background(), ledger.ProviderMTN, body, hmacHeaders(HeaderMTNSignature, "x", body, ""))
	require.Equal(t, perr.CodeCryptography, perr.CodeOf(err))

	_, err = e.Handle(context.Background(), ledger.ProviderStripe, body, stripeHeaders(body, time.Now()))
	require.Equal(t, perr.CodeCryptography, perr.CodeOf(err))
}

func TestEngine_StripeDuplicateEventAppliedOnce(t *testing.T) {
	ctx := context.Background()
	repo := ledger.NewInMemoryRepository()
	seed(t, repo, ledger.Transaction{
		ID: "id-1", Reference: "INV-1", Provider: ledger.ProviderStripe, Operation: ledger.OperationIntent,
		ProviderTransactionID: "pi_1", Amount: 5000, Currency: "USD", Status: ledger.StatusCreated,
	})
	pub := new(PublisherMock)
	pub.On("PublishSettlement", ctx, mock.MatchedBy(func(s Settlement) bool {
		return s.Reference == "INV-1" && s.Status == "SUCCESS" && s.EventID == "evt_123"
	})).Return(nil).Once()
	e := newEngine(repo, idempotency.NewMemoryGuard(time.Hour), pub)

	body := []byte(`{"id":"evt_123","object":"event","type":"payment_intent.succeeded","api_version":"2024-06-20",` +
		`"data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"reference":"INV-1"}}}}`)

	out, err := e.Handle(ctx, ledger.ProviderStripe, body, stripeHeaders(body, time.Now()))
	require.NoError(t, err)
	require.Equal(t, Accepted, out)

	out, err = e.Handle(ctx, ledger.ProviderStripe, body, stripeHeaders(body, time.Now()))
	require.NoError(t, err)
	require.Equal(t, AlreadyProcessed, out)

	stored, err := repo.FindByReference(ctx, "INV-1")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusSuccess, stored.Status)
	pub.AssertExpectations(t)
}

func TestEngine_OperatorReconciliation(t *testing.T) {
	ctx := context.Background()
	fresh := strconv.FormatInt(time.Now().Unix(), 10)

	var tests = []struct {
		name           string
		provider       ledger.Provider
		header         string
		secret         string
		body           string
		ts             string
		expectedStatus ledger.Status
	}{
		{
			name: "mtn success by reference", provider: ledger.ProviderMTN, header: HeaderMTNSignature, secret: secrets.MTN,
			body: `{"externalId":"R-1","referenceId":"mtn-ref-1","status":"SUCCESSFUL"}`, ts: fresh,
			expectedStatus: ledger.StatusSuccess,
		},
		{
			name: "airtel failure by provider id", provider: ledger.ProviderAirtel, header: HeaderAirtelSignature, secret: secrets.Airtel,
			body:           `{"transaction":{"airtel_money_id":"mtn-ref-1","status_code":"TF"}}`,
			ts:             time.Now().UTC().Format(time.RFC3339),
			expectedStatus: ledger.StatusInitiated,
		},
		{
			name: "airtel failure on own row", provider: ledger.ProviderAirtel, header: HeaderAirtelSignature, secret: secrets.Airtel,
			body:           `{"transaction":{"airtel_money_id":"air-ref-1","status_code":"TF"}}`,
			expectedStatus: ledger.StatusFailed,
		},
		{
			name: "pending status leaves row", provider: ledger.ProviderMTN, header: HeaderMTNSignature, secret: secrets.MTN,
			body:           `{"externalId":"R-1","status":"PENDING"}`,
			expectedStatus: ledger.StatusInitiated,
		},
		{
			name: "unknown row is accepted", provider: ledger.ProviderMTN, header: HeaderMTNSignature, secret: secrets.MTN,
			body:           `{"externalId":"R-404","status":"SUCCESSFUL"}`,
			expectedStatus: ledger.StatusInitiated,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := ledger.NewInMemoryRepository()
			seed(t, repo, ledger.Transaction{ID: "1", Reference: "R-1", Provider: ledger.ProviderMTN, Operation: ledger.OperationCollect,
				ProviderTransactionID: "mtn-ref-1", Amount: 10, Currency: "UGX", Status: ledger.StatusInitiated})
			seed(t, repo, ledger.Transaction{ID: "2", Reference: "A-1", Provider: ledger.ProviderAirtel, Operation: ledger.OperationWithdraw,
				ProviderTransactionID: "air-ref-1", Amount: 10, Currency: "UGX", Status: ledger.StatusInitiated})
			e := newEngine(repo, idempotency.NewMemoryGuard(time.Hour), nil)

			body := []byte(tt.body)
			out, err := e.Handle(ctx, tt.provider, body, hmacHeaders(tt.header, tt.secret, body, tt.ts))
			require.NoError(t, err)
			require.Equal(t, Accepted, out)

			ref := "R-1"
			if tt.provider == ledger.ProviderAirtel {
				ref = "A-1"
			}
			stored, err := repo.FindByReference(ctx, ref)
			require.NoError(t, err)
			require.Equal(t, tt.expectedStatus, stored.Status)
		})
	}
}

func TestEngine_ReconcileFailureReleasesMark(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewInMemoryRepository()
	seed(t, mem, ledger.Transaction{ID: "1", Reference: "R-9", Provider: ledger.ProviderMTN, Operation: ledger.OperationCollect,
		Amount: 10, Currency: "UGX", Status: ledger.StatusInitiated})
	repo := &RepositoryMock{Repository: mem}
	repo.On("Save", ctx, mock.Anything, ledger.StatusInitiated).Return(errors.New("connection reset")).Once()
	repo.On("Save", ctx, mock.Anything, ledger.StatusInitiated).Return(nil).Once()
	guard := idempotency.NewMemoryGuard(time.Hour)
	e := newEngine(repo, guard, nil)

	body := []byte(`{"reference":"R-9","status":"SUCCESSFUL"}`)
	headers := hmacHeaders(HeaderMTNSignature, secrets.MTN, body, "")

	_, err := e.Handle(ctx, ledger.ProviderMTN, body, headers)
	require.Equal(t, perr.CodeInternal, perr.CodeOf(err))
	require.Equal(t, http.StatusInternalServerError, perr.HTTPStatus(perr.CodeOf(err)))
	seen, err := guard.IsProcessed(ctx, "R-9")
	require.NoError(t, err)
	require.False(t, seen)

	// the provider's retry goes through
	out, err := e.Handle(ctx, ledger.ProviderMTN, body, headers)
	require.NoError(t, err)
	require.Equal(t, Accepted, out)
	repo.AssertExpectations(t)
}

func TestEngine_PendingRowIsRetried(t *testing.T) {
	ctx := context.Background()
	repo := ledger.NewInMemoryRepository()
	seed(t, repo, ledger.Transaction{ID: "1", Reference: "R-2", Provider: ledger.ProviderMTN, Operation: ledger.OperationCollect,
		Amount: 10, Currency: "UGX", Status: ledger.StatusPending})
	guard := idempotency.NewMemoryGuard(time.Hour)
	e := newEngine(repo, guard, nil)

	body := []byte(`{"reference":"R-2","status":"SUCCESSFUL"}`)
	_, err := e.Handle(ctx, ledger.ProviderMTN, body, hmacHeaders(HeaderMTNSignature, secrets.MTN, body, ""))
	require.Equal(t, perr.CodeInternal, perr.CodeOf(err))

	seen, _ := guard.IsProcessed(ctx, "R-2")
	require.False(t, seen)
}

func TestEngine_GuardUnavailable(t *testing.T) {
	ctx := context.Background()
	guard := new(GuardMock)
	guard.On("MarkIfAbsent", ctx, "R-1").Return(false, errors.New("redis: connection refused"))
	e := newEngine(ledger.NewInMemoryRepository(), guard, nil)

	body := []byte(`{"reference":"R-1","status":"SUCCESSFUL"}`)
	_, err := e.Handle(ctx, ledger.ProviderMTN, body, hmacHeaders(HeaderMTNSignature, secrets.MTN, body, ""))
	require.Equal(t, perr.CodeInternal, perr.CodeOf(err))
}

func TestEngine_NonJSONPayloadHasNoID(t *testing.T) {
	ctx := context.Background()
	guard := new(GuardMock)
	e := newEngine(ledger.NewInMemoryRepository(), guard, nil)

	body := []byte(`status=SUCCESSFUL`)
	for i := 0; i < 2; i++ {
		out, err := e.Handle(ctx, ledger.ProviderAirtel, body, hmacHeaders(HeaderAirtelSignature, secrets.Airtel, body, ""))
		require.NoError(t, err)
		require.Equal(t, Accepted, out)
	}
	guard.AssertNotCalled(t, "MarkIfAbsent", mock.Anything, mock.Anything)
}

func TestEngine_ConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	repo := ledger.NewInMemoryRepository()
	seed(t, repo, ledger.Transaction{ID: "1", Reference: "R-5", Provider: ledger.ProviderMTN, Operation: ledger.OperationCollect,
		Amount: 10, Currency: "UGX", Status: ledger.StatusInitiated})
	e := newEngine(repo, idempotency.NewMemoryGuard(time.Hour), nil)

	body := []byte(`{"eventId":"evt-5","externalId":"R-5","status":"SUCCESSFUL"}`)
	headers := hmacHeaders(HeaderMTNSignature, secrets.MTN, body, "")

	var (
		wg       sync.WaitGroup
		accepted int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Handle(ctx, ledger.ProviderMTN, body, headers)
			if err == nil && out == Accepted {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), accepted)
}

func TestEngine_ConflictingDeliveriesSettleOnce(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewInMemoryRepository()
	seed(t, mem, ledger.Transaction{ID: "1", Reference: "R-7", Provider: ledger.ProviderMTN, Operation: ledger.OperationCollect,
		Amount: 10, Currency: "UGX", Status: ledger.StatusInitiated})
	repo := newBarrierRepository(mem, 2)

	var (
		mu        sync.Mutex
		published []Settlement
	)
	pub := new(PublisherMock)
	pub.On("PublishSettlement", ctx, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		published = append(published, args.Get(1).(Settlement))
		mu.Unlock()
	}).Return(nil)
	e := newEngine(repo, idempotency.NewMemoryGuard(time.Hour), pub)

	bodies := [][]byte{
		[]byte(`{"eventId":"evt-a","externalId":"R-7","status":"SUCCESSFUL"}`),
		[]byte(`{"eventId":"evt-b","externalId":"R-7","status":"FAILED"}`),
	}
	var wg sync.WaitGroup
	for _, body := range bodies {
		wg.Add(1)
		go func(body []byte) {
			defer wg.Done()
			out, err := e.Handle(ctx, ledger.ProviderMTN, body, hmacHeaders(HeaderMTNSignature, secrets.MTN, body, ""))
			require.NoError(t, err)
			require.Equal(t, Accepted, out)
		}(body)
	}
	wg.Wait()

	stored, err := mem.FindByReference(ctx, "R-7")
	require.NoError(t, err)
	require.True(t, stored.Status.IsTerminal())
	require.Len(t, published, 1)
	require.Equal(t, string(stored.Status), published[0].Status)
}

func TestExtractEventID(t *testing.T) {
	var tests = []struct {
		name     string
		payload  string
		expected string
	}{
		{name: "id wins", payload: `{"reference":"r","id":"evt"}`, expected: "evt"},
		{name: "eventId", payload: `{"transactionId":"t","eventId":"e"}`, expected: "e"},
		{name: "reference", payload: `{"transactionId":"t","reference":"r"}`, expected: "r"},
		{name: "transactionId", payload: `{"transactionId":"t"}`, expected: "t"},
		{name: "numeric", payload: `{"id":12345}`, expected: "12345"},
		{name: "object value", payload: `{"id":{"x":1}}`, expected: ""},
		{name: "none", payload: `{"status":"ok"}`, expected: ""},
		{name: "not json", payload: `<xml/>`, expected: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, extractEventID([]byte(tt.payload)))
		})
	}
}
