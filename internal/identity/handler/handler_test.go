package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"gsid-registry/internal/center/match"
	"gsid-registry/internal/identity/gsid"
	"gsid-registry/internal/identity/service"
	"gsid-registry/internal/identity/store"
	"gsid-registry/internal/identity/validate"
	"gsid-registry/pkg/domain"
)

func newRouter(t *testing.T) (http.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := service.New(mem, gsid.New(), validate.New(validate.Config{}), logger)

	matcher := match.New([]match.Center{
		{ID: 5, Name: "University Hospital North"},
	})
	h := New(svc, logger, WithCenterMatcher(matcher))
	r := chi.NewRouter()
	h.Register(r)
	return r, mem
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "SUBJ-0001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a new identity, got %d: %s", rec.Code, rec.Body.String())
	}

	var decision struct {
		GSID          string  `json:"gsid"`
		Action        string  `json:"action"`
		MatchStrategy string  `json:"match_strategy"`
		Confidence    float64 `json:"confidence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Action != "create_new" || decision.GSID == "" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	// Same identifier again resolves to the same identity with 200.
	rec = postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "SUBJ-0001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an existing identity, got %d", rec.Code)
	}
	var second struct {
		GSID   string `json:"gsid"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if second.GSID != decision.GSID || second.Action != "link_existing" {
		t.Fatalf("expected stable gsid and link_existing, got %+v", second)
	}
}

func TestRegisterRejectsMissingIdentifier(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{"center_id": 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing local_subject_id, got %d", rec.Code)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error == "" {
		t.Fatalf("expected error code in envelope")
	}
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "SUBJ-0002",
		"unexpected":       true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestBatchEndpoint(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register/batch", map[string]any{
		"items": []map[string]any{
			{"center_id": 5, "local_subject_id": "BAT-001"},
			{"center_id": 5, "local_subject_id": "BAT-002"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp BatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if resp.Total != 2 || resp.Errors != 0 {
		t.Fatalf("expected 2 items and no errors, got %+v", resp)
	}
}

func TestBatchRejectsEmpty(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register/batch", map[string]any{"items": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestSubjectEndpoint(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/subjects", map[string]any{
		"center_id": 5,
		"candidates": []map[string]any{
			{"local_subject_id": "MRN-001"},
			{"local_subject_id": "STUDY-001", "identifier_type": "study"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReviewWorkflowViaHandlers(t *testing.T) {
	router, mem := newRouter(t)

	// Create, withdraw, and re-register to land an identity in the queue.
	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "RV-001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var decision struct {
		GSID string `json:"gsid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if err := mem.SetWithdrawn(context.Background(), domain.GSID(decision.GSID), true); err != nil {
		t.Fatalf("withdraw identity: %v", err)
	}
	rec = postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "RV-001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	queueReq := httptest.NewRequest(http.MethodGet, "/identity/review-queue", nil)
	queueRec := httptest.NewRecorder()
	router.ServeHTTP(queueRec, queueReq)
	if queueRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing queue, got %d", queueRec.Code)
	}
	var queue ReviewQueueResponse
	if err := json.NewDecoder(queueRec.Body).Decode(&queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if queue.Total != 1 {
		t.Fatalf("expected one review case, got %d", queue.Total)
	}

	rec = postJSON(t, router, "/identity/review/"+decision.GSID+"/resolve", map[string]any{
		"reviewed_by": "dr.jones",
		"notes":       "verified withdrawal",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resolving review, got %d: %s", rec.Code, rec.Body.String())
	}

	queueRec = httptest.NewRecorder()
	router.ServeHTTP(queueRec, httptest.NewRequest(http.MethodGet, "/identity/review-queue", nil))
	var emptied ReviewQueueResponse
	if err := json.NewDecoder(queueRec.Body).Decode(&emptied); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if emptied.Total != 0 {
		t.Fatalf("expected empty queue after resolution, got %d", emptied.Total)
	}
}

func TestUpdateCenterEndpoint(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        0,
		"local_subject_id": "UC-001",
	})
	var decision struct {
		GSID string `json:"gsid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"center_id": 7})
	req := httptest.NewRequest(http.MethodPut, "/identity/"+decision.GSID+"/center", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	updateRec := httptest.NewRecorder()
	router.ServeHTTP(updateRec, req)
	if updateRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", updateRec.Code, updateRec.Body.String())
	}

	var identity IdentityResponse
	if err := json.NewDecoder(updateRec.Body).Decode(&identity); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if identity.CenterID != 7 {
		t.Fatalf("expected center 7, got %d", identity.CenterID)
	}
}

func TestRegisterResolvesCenterName(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_name":      "Universty Hospital North", // misspelled on purpose
		"local_subject_id": "CN-001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The identifier must be stored under the resolved center's id.
	rec = postJSON(t, router, "/identity/register", map[string]any{
		"center_id":        5,
		"local_subject_id": "CN-001",
	})
	var decision struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Action != "link_existing" {
		t.Fatalf("expected link_existing under resolved center, got %q", decision.Action)
	}
}

func TestRegisterUnknownCenterName(t *testing.T) {
	router, _ := newRouter(t)

	rec := postJSON(t, router, "/identity/register", map[string]any{
		"center_name":      "No Such Site",
		"local_subject_id": "CN-002",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown center name, got %d", rec.Code)
	}
}

func TestUpdateCenterUnknownGSID(t *testing.T) {
	router, _ := newRouter(t)

	body, _ := json.Marshal(map[string]any{"center_id": 7})
	req := httptest.NewRequest(http.MethodPut, "/identity/NOPE/center", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
