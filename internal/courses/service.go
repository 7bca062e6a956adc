package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/internal/entitlements"
	"github.com/kickoffclub/hq-backend/internal/profiles"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	"github.com/kickoffclub/hq-backend/pkg/enums"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}

type certificateNotifier interface {
	SendCertificateIssued(ctx context.Context, toEmail, toName, courseTitle, serial string) error
}

// Service exposes the member-facing course catalog, enrollment, progress
// tracking, saved courses, and certificates.
type Service interface {
	ListCatalog(ctx context.Context, userID uuid.UUID, params pagination.Params) (*CatalogPage, error)
	GetCourse(ctx context.Context, userID uuid.UUID, ref string) (*CourseDetail, error)
	Enroll(ctx context.Context, userID, courseID uuid.UUID) error
	CompleteLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*Progress, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]Progress, error)
	SaveCourse(ctx context.Context, userID, courseID uuid.UUID) error
	UnsaveCourse(ctx context.Context, userID, courseID uuid.UUID) error
	ListSaved(ctx context.Context, userID uuid.UUID) ([]CatalogEntry, error)
	ListCertificates(ctx context.Context, userID uuid.UUID) ([]CertificateView, error)
}

type service struct {
	repo        Repository
	profileRepo profileLoader
	tx          txRunner
	notifier    certificateNotifier
	logg        *logger.Logger
}

// ServiceParams wires the course service dependencies. Notifier is optional;
// without it certificate emails are simply not sent.
type ServiceParams struct {
	Repo        Repository
	ProfileRepo profiles.Repository
	Tx          txRunner
	Notifier    certificateNotifier
	Logger      *logger.Logger
}

// NewService builds a course service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("course repository required")
	}
	if params.ProfileRepo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		profileRepo: params.ProfileRepo,
		tx:          params.Tx,
		notifier:    params.Notifier,
		logg:        params.Logger,
	}, nil
}

func (s *service) ListCatalog(ctx context.Context, userID uuid.UUID, params pagination.Params) (*CatalogPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	tier, err := s.effectiveTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListPublished(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, err
	}

	page := &CatalogPage{Courses: make([]CatalogEntry, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, course := range rows {
		page.Courses = append(page.Courses, toCatalogEntry(&course, tier))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// GetCourse resolves ref as a course id when it parses as a UUID, and as a
// slug otherwise.
func (s *service) GetCourse(ctx context.Context, userID uuid.UUID, ref string) (*CourseDetail, error) {
	ref = strings.TrimSpace(strings.ToLower(ref))
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course reference is required")
	}

	var course *models.Course
	var err error
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		course, err = s.repo.GetByID(ctx, id)
	} else {
		course, err = s.repo.GetBySlug(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, err
	}
	if !course.Published {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}

	tier, err := s.effectiveTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	lessons, err := s.repo.ListLessons(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	unlocked := entitlements.HasAccess(tier, course.TierRequired)
	detail := &CourseDetail{
		CatalogEntry: toCatalogEntry(course, tier),
		Lessons:      make([]LessonView, 0, len(lessons)),
	}
	for _, lesson := range lessons {
		view := LessonView{
			ID:       lesson.ID,
			Title:    lesson.Title,
			Position: lesson.Position,
			Duration: lesson.Duration,
			Locked:   !unlocked,
		}
		if unlocked {
			view.VideoURL = lesson.VideoURL
		}
		detail.Lessons = append(detail.Lessons, view)
	}
	return detail, nil
}

func (s *service) Enroll(ctx context.Context, userID, courseID uuid.UUID) error {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and course id are required")
	}

	course, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return err
	}
	if !course.Published {
		return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}

	tier, err := s.effectiveTier(ctx, userID)
	if err != nil {
		return err
	}
	if !entitlements.HasAccess(tier, course.TierRequired) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "course requires a higher plan").
			WithDetails(map[string]any{"required_tier": course.TierRequired})
	}

	return s.repo.CreateEnrollment(ctx, &models.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   enums.EnrollmentStatusActive,
	})
}

// CompleteLesson records progress and, when the last lesson lands, flips the
// enrollment to completed and issues the certificate in the same transaction.
func (s *service) CompleteLesson(ctx context.Context, userID, courseID, lessonID uuid.UUID) (*Progress, error) {
	if userID == uuid.Nil || courseID == uuid.Nil || lessonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id, course id and lesson id are required")
	}

	course, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, err
	}

	if _, err := s.repo.GetLesson(ctx, courseID, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lesson not found in course")
		}
		return nil, err
	}

	var progress *Progress
	var issuedSerial string

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		enrollment, err := repo.GetEnrollment(ctx, userID, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "not enrolled in this course")
			}
			return err
		}

		lessonKey := lessonID.String()
		already := false
		for _, id := range enrollment.CompletedLessonIDs {
			if id == lessonKey {
				already = true
				break
			}
		}
		if !already {
			enrollment.CompletedLessonIDs = append(enrollment.CompletedLessonIDs, lessonKey)
		}

		total := course.LessonCount
		done := len(enrollment.CompletedLessonIDs)

		if done >= total && total > 0 && enrollment.Status != enums.EnrollmentStatusCompleted {
			now := time.Now().UTC()
			enrollment.Status = enums.EnrollmentStatusCompleted
			enrollment.CompletedAt = &now

			certificate := &models.Certificate{
				UserID:   userID,
				CourseID: courseID,
				Serial:   newCertificateSerial(),
			}
			if err := repo.CreateCertificate(ctx, certificate); err != nil {
				// replayed completion, the certificate already exists
				appErr := pkgerrors.As(err)
				if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
					return err
				}
			} else {
				issuedSerial = certificate.Serial
			}
		}

		if err := repo.UpdateEnrollment(ctx, enrollment); err != nil {
			return err
		}

		progress = &Progress{
			CourseID:          courseID,
			Status:            enrollment.Status,
			CompletedLessons:  done,
			TotalLessons:      total,
			CertificateSerial: issuedSerial,
			CompletedAt:       enrollment.CompletedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if issuedSerial != "" {
		s.notifyCertificate(ctx, userID, course.Title, issuedSerial)
	}

	return progress, nil
}

func (s *service) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]Progress, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	enrollments, err := s.repo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]Progress, 0, len(enrollments))
	for _, enrollment := range enrollments {
		total := 0
		if course, err := s.repo.GetByID(ctx, enrollment.CourseID); err == nil {
			total = course.LessonCount
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		items = append(items, Progress{
			CourseID:         enrollment.CourseID,
			Status:           enrollment.Status,
			CompletedLessons: len(enrollment.CompletedLessonIDs),
			TotalLessons:     total,
			CompletedAt:      enrollment.CompletedAt,
		})
	}
	return items, nil
}

func (s *service) SaveCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and course id are required")
	}
	if _, err := s.repo.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return err
	}
	return s.repo.SaveCourse(ctx, &models.SavedCourse{UserID: userID, CourseID: courseID})
}

func (s *service) UnsaveCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and course id are required")
	}
	return s.repo.UnsaveCourse(ctx, userID, courseID)
}

func (s *service) ListSaved(ctx context.Context, userID uuid.UUID) ([]CatalogEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	tier, err := s.effectiveTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.ListSavedCourses(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(saved))
	for _, row := range saved {
		course, err := s.repo.GetByID(ctx, row.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, toCatalogEntry(course, tier))
	}
	return entries, nil
}

func (s *service) ListCertificates(ctx context.Context, userID uuid.UUID) ([]CertificateView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	rows, err := s.repo.ListCertificates(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]CertificateView, 0, len(rows))
	for _, row := range rows {
		views = append(views, CertificateView{
			CourseID: row.CourseID,
			Serial:   row.Serial,
			IssuedAt: row.IssuedAt,
		})
	}
	return views, nil
}

func (s *service) effectiveTier(ctx context.Context, userID uuid.UUID) (enums.SubscriptionTier, error) {
	if userID == uuid.Nil {
		// anonymous catalog browsing sees the free view
		return enums.SubscriptionTierFree, nil
	}
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enums.SubscriptionTierFree, nil
		}
		return "", err
	}
	return entitlements.EffectiveTier(profile), nil
}

func (s *service) notifyCertificate(ctx context.Context, userID uuid.UUID, courseTitle, serial string) {
	if s.notifier == nil {
		return
	}
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "loading profile for certificate email", err)
		return
	}
	if err := s.notifier.SendCertificateIssued(ctx, profile.Email, profile.FullName, courseTitle, serial); err != nil {
		s.logg.Error(ctx, "sending certificate email", err)
	}
}

func toCatalogEntry(course *models.Course, tier enums.SubscriptionTier) CatalogEntry {
	return CatalogEntry{
		ID:           course.ID,
		Slug:         course.Slug,
		Title:        course.Title,
		Description:  course.Description,
		TierRequired: course.TierRequired,
		Tags:         []string(course.Tags),
		LessonCount:  course.LessonCount,
		Locked:       !entitlements.HasAccess(tier, course.TierRequired),
	}
}

func newCertificateSerial() string {
	return "KC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
