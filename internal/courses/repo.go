package courses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kickoffclub/hq-backend/pkg/db"
	"github.com/kickoffclub/hq-backend/pkg/db/models"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/pagination"
)

// Repository manages persistence for the course catalog and member progress.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListPublished(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Course, error)
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	ListLessons(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error)
	GetLesson(ctx context.Context, courseID, lessonID uuid.UUID) (*models.Lesson, error)

	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)

	SaveCourse(ctx context.Context, saved *models.SavedCourse) error
	UnsaveCourse(ctx context.Context, userID, courseID uuid.UUID) error
	ListSavedCourses(ctx context.Context, userID uuid.UUID) ([]models.SavedCourse, error)

	CreateCertificate(ctx context.Context, certificate *models.Certificate) error
	GetCertificate(ctx context.Context, userID, courseID uuid.UUID) (*models.Certificate, error)
	ListCertificates(ctx context.Context, userID uuid.UUID) ([]models.Certificate, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a course repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListPublished(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Course, error) {
	query := r.db.WithContext(ctx).
		Where("published = ?", true).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var courses []models.Course
	if err := query.Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repository) ListLessons(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *repository) GetLesson(ctx context.Context, courseID, lessonID uuid.UUID) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND id = ?", courseID, lessonID).
		First(&lesson).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *repository) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if err := r.db.WithContext(ctx).Create(enrollment).Error; err != nil {
		if db.IsUniqueViolation(err, "uq_enrollments_user_course") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already enrolled")
		}
		return err
	}
	return nil
}

func (r *repository) GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *repository) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Save(enrollment).Error
}

func (r *repository) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

// SaveCourse is idempotent: saving an already-saved course is a no-op.
func (r *repository) SaveCourse(ctx context.Context, saved *models.SavedCourse) error {
	err := r.db.WithContext(ctx).Create(saved).Error
	if err != nil && db.IsUniqueViolation(err, "") {
		return nil
	}
	return err
}

func (r *repository) UnsaveCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.SavedCourse{}).Error
}

func (r *repository) ListSavedCourses(ctx context.Context, userID uuid.UUID) ([]models.SavedCourse, error) {
	var saved []models.SavedCourse
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&saved).Error; err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *repository) CreateCertificate(ctx context.Context, certificate *models.Certificate) error {
	if err := r.db.WithContext(ctx).Create(certificate).Error; err != nil {
		if db.IsUniqueViolation(err, "uq_certificates_user_course") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "certificate already issued")
		}
		return err
	}
	return nil
}

func (r *repository) GetCertificate(ctx context.Context, userID, courseID uuid.UUID) (*models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&certificate).Error; err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *repository) ListCertificates(ctx context.Context, userID uuid.UUID) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}
