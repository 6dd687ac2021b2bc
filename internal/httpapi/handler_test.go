package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"leadchat_backend/internal/store"
	"leadchat_backend/platform/apperr"
	"leadchat_backend/platform/logger"
	"leadchat_backend/platform/validator"
)

type fakeMessageStore struct {
	last store.InsertMessageParams
	err  error
	id   uuid.UUID
	byID map[uuid.UUID]store.RawMessage
}

func (f *fakeMessageStore) Insert(_ context.Context, params store.InsertMessageParams) (uuid.UUID, error) {
	f.last = params
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if f.id == uuid.Nil {
		f.id = uuid.New()
	}
	return f.id, nil
}

func (f *fakeMessageStore) GetByID(_ context.Context, id uuid.UUID) (store.RawMessage, error) {
	msg, ok := f.byID[id]
	if !ok {
		return store.RawMessage{}, apperr.NotFound("message not found")
	}
	return msg, nil
}

type fakeLeadReader struct {
	lead      *store.Lead
	qualified *store.QualifiedLead
}

func (f *fakeLeadReader) GetLead(_ context.Context, _ string) (*store.Lead, error) {
	return f.lead, nil
}

func (f *fakeLeadReader) GetQualified(_ context.Context, _ string) (*store.QualifiedLead, error) {
	return f.qualified, nil
}

type fakeNotifier struct {
	stored []uuid.UUID
	err    error
}

func (f *fakeNotifier) MessageStored(_ context.Context, id uuid.UUID) error {
	f.stored = append(f.stored, id)
	return f.err
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("no connection") }

func newTestRouter(messages *fakeMessageStore, notify Notifier, db Pinger) http.Handler {
	return newLeadRouter(messages, &fakeLeadReader{}, notify, db)
}

func newLeadRouter(messages *fakeMessageStore, leads *fakeLeadReader, notify Notifier, db Pinger) http.Handler {
	log := logger.New("test")
	h := NewHandler(messages, leads, validator.New(), notify, "US", log)
	return NewRouter("test", h, db, log)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestStoresPlaintextMessage(t *testing.T) {
	messages := &fakeMessageStore{}
	notify := &fakeNotifier{}
	router := newTestRouter(messages, notify, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{
		Sender: "(202) 555-0187",
		Body:   "Hi, I'd like to know more about study visas",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if messages.last.SenderKey != "+12025550187" {
		t.Fatalf("expected normalized sender key, got %q", messages.last.SenderKey)
	}
	if len(notify.stored) != 1 {
		t.Fatalf("expected one notification, got %d", len(notify.stored))
	}

	var resp IngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != messages.id {
		t.Fatalf("expected stored id in response, got %s", resp.ID)
	}
}

func TestIngestStoresEncryptedTriple(t *testing.T) {
	messages := &fakeMessageStore{}
	router := newTestRouter(messages, nil, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{
		Sender:  "webchat:session-42",
		Cipher:  "deadbeef",
		IV:      "0102030405060708090a0b0c",
		AuthTag: "00112233445566778899aabbccddeeff",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if messages.last.Cipher != "deadbeef" || messages.last.Body != "" {
		t.Fatalf("unexpected stored params: %+v", messages.last)
	}
}

func TestIngestRejectsMissingSender(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{Body: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{Sender: "+12025550187", Body: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestRejectsPartialTriple(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{
		Sender: "+12025550187",
		Cipher: "deadbeef",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestRejectsNonHexCipher(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{
		Sender:  "+12025550187",
		Cipher:  "not-hex!",
		IV:      "0102030405060708090a0b0c",
		AuthTag: "00112233445566778899aabbccddeeff",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestSurvivesNotifierFailure(t *testing.T) {
	messages := &fakeMessageStore{}
	notify := &fakeNotifier{err: errors.New("redis down")}
	router := newTestRouter(messages, notify, okPinger{})

	rec := postJSON(t, router, "/api/v1/messages", IngestRequest{
		Sender: "+12025550187",
		Body:   "hello",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite notifier failure, got %d", rec.Code)
	}
}

func TestReadyzReflectsDatabaseHealth(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	router = newTestRouter(&fakeMessageStore{}, nil, downPinger{})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func getJSON(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetMessageReturnsProcessingStatus(t *testing.T) {
	id := uuid.New()
	reply := "Thanks for reaching out!"
	isLead := true
	messages := &fakeMessageStore{byID: map[uuid.UUID]store.RawMessage{
		id: {
			ID:            id,
			SenderKey:     "+12025550187",
			Processed:     true,
			AutoReplyText: &reply,
			IsLead:        &isLead,
		},
	}}
	router := newTestRouter(messages, nil, okPinger{})

	rec := getJSON(t, router, "/api/v1/messages/"+id.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp MessageStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != id || !resp.Processed {
		t.Fatalf("unexpected status: %+v", resp)
	}
	if resp.AutoReplyText == nil || *resp.AutoReplyText != reply {
		t.Fatalf("expected composed reply in response, got %+v", resp.AutoReplyText)
	}
	if resp.IsLead == nil || !*resp.IsLead {
		t.Fatalf("expected lead verdict in response, got %+v", resp.IsLead)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := getJSON(t, router, "/api/v1/messages/"+uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetMessageRejectsMalformedID(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := getJSON(t, router, "/api/v1/messages/not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetLeadMergesQualifiedState(t *testing.T) {
	name := "Jane"
	leads := &fakeLeadReader{
		lead: &store.Lead{
			SenderKey:    "+12025550187",
			Intent:       "visa inquiry",
			MessageCount: 3,
		},
		qualified: &store.QualifiedLead{
			SenderKey: "+12025550187",
			Name:      &name,
			Priority:  "High",
		},
	}
	router := newLeadRouter(&fakeMessageStore{}, leads, nil, okPinger{})

	rec := getJSON(t, router, "/api/v1/leads/+12025550187")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LeadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Qualified {
		t.Fatal("expected qualified lead")
	}
	if resp.Name == nil || *resp.Name != "Jane" {
		t.Fatalf("expected name from qualified row, got %+v", resp.Name)
	}
	if resp.Priority == nil || *resp.Priority != "High" {
		t.Fatalf("expected priority from qualified row, got %+v", resp.Priority)
	}
	if resp.Intent != "visa inquiry" || resp.MessageCount != 3 {
		t.Fatalf("unexpected lead fields: %+v", resp)
	}
}

func TestGetLeadNotFound(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, okPinger{})

	rec := getJSON(t, router, "/api/v1/leads/+12025550187")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthzAlwaysOK(t *testing.T) {
	router := newTestRouter(&fakeMessageStore{}, nil, downPinger{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
