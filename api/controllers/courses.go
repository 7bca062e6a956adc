package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kickoffclub/hq-backend/api/middleware"
	"github.com/kickoffclub/hq-backend/api/responses"
	"github.com/kickoffclub/hq-backend/api/validators"
	"github.com/kickoffclub/hq-backend/internal/courses"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/pagination"
)

// CourseList returns the published catalog with an access flag per row.
func CourseList(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.ListCatalog(ctx, middleware.UserIDFromContext(ctx), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// CourseDetail returns a course page; locked lessons carry no video URL.
// The path segment accepts either a course id or its slug.
func CourseDetail(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		detail, err := svc.GetCourse(ctx, middleware.UserIDFromContext(ctx), chi.URLParam(r, "courseId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// CourseEnroll creates an enrollment when the member's tier reaches the
// course's required tier.
func CourseEnroll(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		courseID, err := validators.ParsePathUUID(chi.URLParam(r, "courseId"), "courseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		if logg != nil {
			ctx = logg.WithCourseID(ctx, courseID.String())
		}

		if err := svc.Enroll(ctx, userID, courseID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "enrolled"})
	}
}

type progressRequest struct {
	LessonID string `json:"lesson_id" validate:"required,uuid"`
}

// CourseProgress records a completed lesson; finishing the course issues a
// certificate in the same call.
func CourseProgress(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		courseID, err := validators.ParsePathUUID(chi.URLParam(r, "courseId"), "courseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		var req progressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		lessonID, err := uuid.Parse(req.LessonID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lesson_id must be a uuid"))
			return
		}

		if logg != nil {
			ctx = logg.WithCourseID(ctx, courseID.String())
		}

		progress, err := svc.CompleteLesson(ctx, userID, courseID, lessonID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, progress)
	}
}

// MyEnrollments lists the member's enrollments with progress.
func MyEnrollments(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		items, err := svc.ListEnrollments(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"enrollments": items})
	}
}

// MyCertificates lists the member's earned certificates.
func MyCertificates(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		items, err := svc.ListCertificates(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"certificates": items})
	}
}

// SavedCourseAdd bookmarks a course.
func SavedCourseAdd(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		courseID, err := validators.ParsePathUUID(chi.URLParam(r, "courseId"), "courseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		if err := svc.SaveCourse(ctx, userID, courseID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "saved"})
	}
}

// SavedCourseRemove removes a bookmark. Removing an absent bookmark is a
// no-op success.
func SavedCourseRemove(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		courseID, err := validators.ParsePathUUID(chi.URLParam(r, "courseId"), "courseId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		if err := svc.UnsaveCourse(ctx, userID, courseID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// SavedCourseList lists the member's bookmarks.
func SavedCourseList(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing member identity"))
			return
		}

		items, err := svc.ListSaved(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"courses": items})
	}
}
