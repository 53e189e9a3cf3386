package handler_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessservice "certtrace/internal/access/service"
	accessstore "certtrace/internal/access/store"
	"certtrace/internal/outbox"
	outboxstore "certtrace/internal/outbox/store"
	"certtrace/internal/traceability/handler"
	"certtrace/internal/traceability/service"
	"certtrace/internal/traceability/store"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/tx"
	"certtrace/pkg/testutil"
)

var (
	admin    = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	stranger = domain.MustParseAddress("0x00000000000000000000000000000000000000ff")
	digestH  = "0x" + strings.Repeat("ab", 32)
	digestH2 = "0x" + strings.Repeat("ab", 31) + "ac"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	runner := tx.NewSerial()
	publisher := outbox.NewPublisher(outboxstore.NewInMemory())
	access, err := accessservice.New(admin, accessstore.NewInMemory(), runner, publisher)
	require.NoError(t, err)

	svc := service.New(store.NewInMemory(), access, runner, publisher)
	h := handler.New(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAuthenticated(r)
	return r
}

func record(t *testing.T, router http.Handler, caller domain.Address, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/operations", body)
	return testutil.DoRequest(router, testutil.WithActor(req, caller))
}

func recordBody(digest string) map[string]any {
	return map[string]any{
		"event_type":      "TransactionEvent",
		"action":          "add",
		"epc":             "urn:epc:id:sgtin:0614141.107346.2017",
		"certificate_ref": 1,
		"document_digest": digest,
	}
}

func TestRecordAndVerify(t *testing.T) {
	router := newRouter(t)

	rr := record(t, router, admin, recordBody(digestH))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	op := testutil.UnmarshalResponse[handler.OperationResponse](t, rr)
	assert.Equal(t, uint64(1), op.ID)
	assert.Equal(t, "ADD", op.Action)
	assert.Equal(t, digestH, op.DocumentDigest)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/operations/1/verify", map[string]string{"digest": digestH})
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "match", true)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/operations/1/verify", map[string]string{"digest": digestH2})
	rr = testutil.DoRequest(router, req)
	testutil.AssertJSONContains(t, rr, "match", false)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/operations/2/verify", map[string]string{"digest": digestH})
	testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/operations/1"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "event_type", "TransactionEvent")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/operations/total"))
	testutil.AssertJSONContains(t, rr, "total", float64(1))
}

func TestRecordRejections(t *testing.T) {
	router := newRouter(t)

	rr := record(t, router, stranger, recordBody(digestH))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	body := recordBody(digestH)
	body["epc"] = ""
	testutil.AssertStatusAndError(t, record(t, router, admin, body), http.StatusBadRequest, "validation_error")

	body = recordBody(digestH)
	body["event_type"] = "QuantityEvent"
	testutil.AssertStatusAndError(t, record(t, router, admin, body), http.StatusBadRequest, "validation_error")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/operations", recordBody(digestH))
	testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusUnauthorized)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/operations/total"))
	testutil.AssertJSONContains(t, rr, "total", float64(0))
}
