package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"gsid-registry/internal/identity/handler/mocks"
	"gsid-registry/internal/identity/models"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/testutil"
)

// The happy paths run against the real engine elsewhere in this package; the
// mock exists to force service failures and pin down the error-to-status
// translation.
func newMockedRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r, svc
}

func registerBody() map[string]any {
	return map[string]any{"center_id": 5, "local_subject_id": "SUBJ-1"}
}

func TestRegisterConflictMapsTo409(t *testing.T) {
	router, svc := newMockedRouter(t)
	svc.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(models.Decision{}, dErrors.New(dErrors.CodeConflict, "registration conflicted twice"))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identity/register", registerBody()))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertJSONHasKey(t, rr, "error_description")
}

func TestRegisterInternalErrorHidesDetail(t *testing.T) {
	router, svc := newMockedRouter(t)
	svc.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(models.Decision{}, errors.New("pq: connection reset"))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identity/register", registerBody()))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)

	body := testutil.UnmarshalResponse[map[string]string](t, rr)
	if _, leaked := (*body)["error_description"]; leaked {
		t.Error("internal error detail must not reach the client")
	}
}

func TestReviewQueueTimeoutMapsTo504(t *testing.T) {
	router, svc := newMockedRouter(t)
	svc.EXPECT().ListReviewQueue(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeTimeout, "store timed out"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/identity/review-queue"))
	testutil.AssertStatus(t, rr, http.StatusGatewayTimeout)
}

func TestResolveReviewUnknownGSIDMapsTo404(t *testing.T) {
	router, svc := newMockedRouter(t)
	svc.EXPECT().ResolveReview(gomock.Any(), "GSID-MISSING", "dr.jones", "").
		Return(dErrors.New(dErrors.CodeNotFound, "identity not found"))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/identity/review/GSID-MISSING/resolve",
		map[string]any{"reviewed_by": "dr.jones"}))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
