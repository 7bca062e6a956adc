package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/internal/courses"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/pagination"
)

type stubCourseService struct {
	catalog *courses.CatalogPage
	detail  *courses.CourseDetail
	err     error

	enrolled  []uuid.UUID
	completed []uuid.UUID
	saved     []uuid.UUID
	lastRef   string
}

func (s *stubCourseService) ListCatalog(_ context.Context, _ uuid.UUID, _ pagination.Params) (*courses.CatalogPage, error) {
	return s.catalog, s.err
}

func (s *stubCourseService) GetCourse(_ context.Context, _ uuid.UUID, ref string) (*courses.CourseDetail, error) {
	s.lastRef = ref
	return s.detail, s.err
}

func (s *stubCourseService) Enroll(_ context.Context, _ uuid.UUID, courseID uuid.UUID) error {
	s.enrolled = append(s.enrolled, courseID)
	return s.err
}

func (s *stubCourseService) CompleteLesson(_ context.Context, _ uuid.UUID, courseID, _ uuid.UUID) (*courses.Progress, error) {
	s.completed = append(s.completed, courseID)
	if s.err != nil {
		return nil, s.err
	}
	return &courses.Progress{CourseID: courseID}, nil
}

func (s *stubCourseService) ListEnrollments(_ context.Context, _ uuid.UUID) ([]courses.Progress, error) {
	return nil, s.err
}

func (s *stubCourseService) SaveCourse(_ context.Context, _ uuid.UUID, courseID uuid.UUID) error {
	s.saved = append(s.saved, courseID)
	return s.err
}

func (s *stubCourseService) UnsaveCourse(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return s.err
}

func (s *stubCourseService) ListSaved(_ context.Context, _ uuid.UUID) ([]courses.CatalogEntry, error) {
	return nil, s.err
}

func (s *stubCourseService) ListCertificates(_ context.Context, _ uuid.UUID) ([]courses.CertificateView, error) {
	return nil, s.err
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCourseListBadLimit(t *testing.T) {
	svc := &stubCourseService{catalog: &courses.CatalogPage{}}
	handler := CourseList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses?limit=oops", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric limit, got %d", rec.Code)
	}
}

func TestCourseDetailPassesRef(t *testing.T) {
	svc := &stubCourseService{detail: &courses.CourseDetail{}}
	handler := CourseDetail(svc, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/courses/first-touch-basics", nil), "courseId", "first-touch-basics")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastRef != "first-touch-basics" {
		t.Fatalf("expected slug to reach the service, got %q", svc.lastRef)
	}
}

func TestCourseEnrollCreated(t *testing.T) {
	courseID := uuid.New()
	svc := &stubCourseService{}
	handler := CourseEnroll(svc, nil)

	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/enroll", "", uuid.New()), "courseId", courseID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.enrolled) != 1 || svc.enrolled[0] != courseID {
		t.Fatalf("expected one enrollment for %s, got %v", courseID, svc.enrolled)
	}
}

func TestCourseEnrollTierTooLow(t *testing.T) {
	svc := &stubCourseService{err: pkgerrors.New(pkgerrors.CodeForbidden, "course requires the premium plan")}
	handler := CourseEnroll(svc, nil)

	courseID := uuid.New()
	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/enroll", "", uuid.New()), "courseId", courseID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCourseEnrollBadCourseID(t *testing.T) {
	svc := &stubCourseService{}
	handler := CourseEnroll(svc, nil)

	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/courses/nope/enroll", "", uuid.New()), "courseId", "nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed course id, got %d", rec.Code)
	}
	if len(svc.enrolled) != 0 {
		t.Fatalf("service should not be reached on bad input")
	}
}

func TestCourseProgressRecordsLesson(t *testing.T) {
	courseID := uuid.New()
	svc := &stubCourseService{}
	handler := CourseProgress(svc, nil)

	body := `{"lesson_id":"` + uuid.NewString() + `"}`
	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/progress", body, uuid.New()), "courseId", courseID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.completed) != 1 {
		t.Fatalf("expected one lesson completion call, got %d", len(svc.completed))
	}
}

func TestCourseProgressRejectsBadLessonID(t *testing.T) {
	courseID := uuid.New()
	svc := &stubCourseService{}
	handler := CourseProgress(svc, nil)

	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/progress", `{"lesson_id":"not-a-uuid"}`, uuid.New()), "courseId", courseID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSavedCourseAddAndRemove(t *testing.T) {
	courseID := uuid.New()
	svc := &stubCourseService{}

	req := withURLParam(authedRequest(http.MethodPost, "/api/v1/me/saved-courses/"+courseID.String(), "", uuid.New()), "courseId", courseID.String())
	rec := httptest.NewRecorder()
	SavedCourseAdd(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on save, got %d", rec.Code)
	}
	if len(svc.saved) != 1 || svc.saved[0] != courseID {
		t.Fatalf("expected save call for %s", courseID)
	}

	req = withURLParam(authedRequest(http.MethodDelete, "/api/v1/me/saved-courses/"+courseID.String(), "", uuid.New()), "courseId", courseID.String())
	rec = httptest.NewRecorder()
	SavedCourseRemove(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on remove, got %d", rec.Code)
	}
}

func TestMyEnrollmentsRequiresIdentity(t *testing.T) {
	svc := &stubCourseService{}
	handler := MyEnrollments(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/enrollments", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}

var _ courses.Service = (*stubCourseService)(nil)
