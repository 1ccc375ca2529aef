package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/legacy"
	"github.com/justsurfingit/resume-builder/internal/models"
	"github.com/justsurfingit/resume-builder/pkg/resume"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sort orders accepted by List.
const (
	SortLastUpdated = "lastUpdatedAt"
	SortCreated     = "createdAt"
	SortName        = "name"
)

type ResumeService struct {
	DB     *gorm.DB
	Grants *auth.Signer
	Log    *zap.Logger
}

func NewResumeService(db *gorm.DB, grants *auth.Signer, log *zap.Logger) *ResumeService {
	return &ResumeService{
		DB:     db,
		Grants: grants,
		Log:    log,
	}
}

// List returns the user's resumes without their documents. Only resumes
// carrying every tag in tags are returned.
func (s *ResumeService) List(ctx context.Context, userID string, tags []string, sort string) ([]models.Resume, error) {
	q := s.DB.WithContext(ctx).Omit("data").Where("user_id = ?", userID)
	switch sort {
	case SortCreated:
		q = q.Order("created_at DESC")
	case SortName:
		q = q.Order("name ASC")
	default:
		q = q.Order("updated_at DESC")
	}

	var resumes []models.Resume
	if err := q.Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}
	if len(tags) == 0 {
		return resumes, nil
	}
	return slices.DeleteFunc(resumes, func(r models.Resume) bool {
		for _, t := range tags {
			if !slices.Contains(r.Tags, t) {
				return true
			}
		}
		return false
	}), nil
}

// Tags returns the sorted distinct tags used across the user's resumes.
func (s *ResumeService) Tags(ctx context.Context, userID string) ([]string, error) {
	var resumes []models.Resume
	if err := s.DB.WithContext(ctx).Select("id", "tags").Where("user_id = ?", userID).Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tags := []string{}
	for _, r := range resumes {
		tags = append(tags, r.Tags...)
	}
	slices.Sort(tags)
	return slices.Compact(tags), nil
}

func (s *ResumeService) GetByID(ctx context.Context, id, userID string) (*models.Resume, error) {
	return s.getOwned(s.DB.WithContext(ctx), id, userID)
}

func (s *ResumeService) getOwned(tx *gorm.DB, id, userID string) (*models.Resume, error) {
	var r models.Resume
	err := tx.Where("id = ? AND user_id = ?", id, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting resume: %w", err)
	}
	return &r, nil
}

func (s *ResumeService) Create(ctx context.Context, userID string, req *dtos.CreateResumeRequest) (*models.Resume, error) {
	slug := resume.Slugify(req.Slug)
	if slug == "" {
		slug = resume.Slugify(req.Name)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: slug must contain letters or digits", ErrInvalidInput)
	}

	data := resume.Default()
	if req.WithSampleData {
		data = resume.Sample()
	}

	r := &models.Resume{
		Name:   strings.TrimSpace(req.Name),
		Slug:   slug,
		Tags:   normalizeTags(req.Tags),
		Data:   data,
		UserID: userID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := slugTaken(tx, userID, slug, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrSlugTaken
		}
		return createWithStatistics(tx, r)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("resume created", zap.String("resume_id", r.ID), zap.String("user_id", userID))
	return r, nil
}

// Import creates a resume from an exported document. A taken slug gets a
// numeric suffix instead of failing.
func (s *ResumeService) Import(ctx context.Context, userID string, req *dtos.ImportResumeRequest) (*models.Resume, error) {
	var data *resume.ResumeData
	var err error
	switch req.Format {
	case dtos.ImportFormatJSON:
		data, err = resume.Unmarshal(req.Data)
		if err == nil {
			err = resume.Validate(data)
		}
	case dtos.ImportFormatV4, "":
		data, err = legacy.ImportV4(req.Data)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, req.Format)
	}
	if err != nil {
		var verr *resume.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	base := resume.Slugify(req.Slug)
	if base == "" {
		base = resume.Slugify(req.Name)
	}
	if base == "" {
		return nil, fmt.Errorf("%w: slug must contain letters or digits", ErrInvalidInput)
	}

	r := &models.Resume{
		Name:   strings.TrimSpace(req.Name),
		Tags:   normalizeTags(req.Tags),
		Data:   data,
		UserID: userID,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, userID, base)
		if err != nil {
			return err
		}
		r.Slug = slug
		return createWithStatistics(tx, r)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("resume imported", zap.String("resume_id", r.ID), zap.String("user_id", userID), zap.String("format", req.Format))
	return r, nil
}

func createWithStatistics(tx *gorm.DB, r *models.Resume) error {
	if err := tx.Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return fmt.Errorf("creating resume: %w", err)
	}
	if err := tx.Create(&models.ResumeStatistics{ResumeID: r.ID}).Error; err != nil {
		return fmt.Errorf("creating resume statistics: %w", err)
	}
	return nil
}

func slugTaken(tx *gorm.DB, userID, slug, exceptID string) (bool, error) {
	q := tx.Model(&models.Resume{}).Where("user_id = ? AND slug = ?", userID, slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return count > 0, nil
}

// Update applies the attributes set in req. A locked resume only accepts
// requests that unlock it.
func (s *ResumeService) Update(ctx context.Context, id, userID string, req *dtos.UpdateResumeRequest) (*models.Resume, error) {
	var r *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = s.getOwned(tx, id, userID)
		if err != nil {
			return err
		}
		if r.IsLocked && (req.IsLocked == nil || *req.IsLocked) {
			return ErrResumeLocked
		}

		var cols []string
		if req.Name != nil {
			r.Name = strings.TrimSpace(*req.Name)
			cols = append(cols, "name")
		}
		if req.Slug != nil {
			slug := resume.Slugify(*req.Slug)
			if slug == "" {
				return fmt.Errorf("%w: slug must contain letters or digits", ErrInvalidInput)
			}
			taken, err := slugTaken(tx, userID, slug, r.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlugTaken
			}
			r.Slug = slug
			cols = append(cols, "slug")
		}
		if req.Tags != nil {
			r.Tags = normalizeTags(*req.Tags)
			cols = append(cols, "tags")
		}
		if req.IsPublic != nil {
			r.IsPublic = *req.IsPublic
			cols = append(cols, "is_public")
		}
		if req.IsLocked != nil {
			r.IsLocked = *req.IsLocked
			cols = append(cols, "is_locked")
		}
		if req.Password.Set {
			if req.Password.Null {
				r.Password = nil
			} else {
				hash, err := auth.HashPassword(req.Password.Value)
				if err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidInput, err)
				}
				r.Password = &hash
			}
			cols = append(cols, "password")
		}
		if len(cols) == 0 {
			return nil
		}
		return saveColumns(tx, r, cols...)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func saveColumns(tx *gorm.DB, r *models.Resume, cols ...string) error {
	err := tx.Model(r).Select(append(cols, "updated_at")).Updates(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("updating resume: %w", err)
	}
	return nil
}

// UpdateData validates and stores a new document for the resume.
func (s *ResumeService) UpdateData(ctx context.Context, id, userID string, data *resume.ResumeData) (*models.Resume, error) {
	if err := resume.Validate(data); err != nil {
		return nil, err
	}
	return s.mutateData(ctx, id, userID, func(d *resume.ResumeData) (*resume.ResumeData, error) {
		return data, nil
	})
}

// mutateData loads the document of an unlocked resume, applies fn and
// stores the result.
func (s *ResumeService) mutateData(ctx context.Context, id, userID string, fn func(*resume.ResumeData) (*resume.ResumeData, error)) (*models.Resume, error) {
	var r *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = s.getOwned(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), id, userID)
		if err != nil {
			return err
		}
		if r.IsLocked {
			return ErrResumeLocked
		}
		data, err := fn(r.Data)
		if err != nil {
			return err
		}
		r.Data = data
		return saveColumns(tx, r, "data")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ResumeService) SetLocked(ctx context.Context, id, userID string, locked bool) (*models.Resume, error) {
	var r *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = s.getOwned(tx, id, userID)
		if err != nil {
			return err
		}
		r.IsLocked = locked
		return saveColumns(tx, r, "is_locked")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Duplicate copies a resume and its document. The copy is private,
// unlocked and has no password.
func (s *ResumeService) Duplicate(ctx context.Context, id, userID string, req *dtos.DuplicateResumeRequest) (*models.Resume, error) {
	var dup *models.Resume
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := s.getOwned(tx, id, userID)
		if err != nil {
			return err
		}
		data, err := src.Data.Clone()
		if err != nil {
			return err
		}

		dup = &models.Resume{
			Name:   src.Name + " (Copy)",
			Tags:   slices.Clone(src.Tags),
			Data:   data,
			UserID: userID,
		}
		if req.Name != nil {
			dup.Name = strings.TrimSpace(*req.Name)
		}
		if req.Tags != nil {
			dup.Tags = normalizeTags(*req.Tags)
		}

		if req.Slug != nil {
			dup.Slug = resume.Slugify(*req.Slug)
			if dup.Slug == "" {
				return fmt.Errorf("%w: slug must contain letters or digits", ErrInvalidInput)
			}
			taken, err := slugTaken(tx, userID, dup.Slug, "")
			if err != nil {
				return err
			}
			if taken {
				return ErrSlugTaken
			}
		} else {
			dup.Slug, err = uniqueSlug(tx, userID, src.Slug+"-copy")
			if err != nil {
				return err
			}
		}
		return createWithStatistics(tx, dup)
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

// uniqueSlug returns base, or base-2, base-3 and so on, whichever is free.
func uniqueSlug(tx *gorm.DB, userID, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		taken, err := slugTaken(tx, userID, slug, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *ResumeService) Delete(ctx context.Context, id, userID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.getOwned(tx, id, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("resume_id = ?", r.ID).Delete(&models.ResumeStatistics{}).Error; err != nil {
			return fmt.Errorf("deleting resume statistics: %w", err)
		}
		if err := tx.Delete(r).Error; err != nil {
			return fmt.Errorf("deleting resume: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Log.Info("resume deleted", zap.String("resume_id", id), zap.String("user_id", userID))
	return nil
}

// MoveSection performs a drag-and-drop move on the stored layout.
func (s *ResumeService) MoveSection(ctx context.Context, id, userID string, req *dtos.MoveSectionRequest) (*models.Resume, error) {
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	return s.mutateData(ctx, id, userID, func(d *resume.ResumeData) (*resume.ResumeData, error) {
		if err := d.Metadata.Layout.MoveSection(req.SectionID, req.Page, req.Column, index); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return d, nil
	})
}

func (s *ResumeService) AddPage(ctx context.Context, id, userID string) (*models.Resume, error) {
	return s.mutateData(ctx, id, userID, func(d *resume.ResumeData) (*resume.ResumeData, error) {
		d.Metadata.Layout.AddPage()
		return d, nil
	})
}

func (s *ResumeService) RemovePage(ctx context.Context, id, userID string, index int) (*models.Resume, error) {
	return s.mutateData(ctx, id, userID, func(d *resume.ResumeData) (*resume.ResumeData, error) {
		if err := d.Metadata.Layout.RemovePage(index); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return d, nil
	})
}

// GetBySlug returns the public resume at /<username>/<slug>. The owner can
// always see it; other viewers need it to be public and, when it has a
// password, a valid access grant.
func (s *ResumeService) GetBySlug(ctx context.Context, username, slug, viewerID, grant string) (*models.Resume, error) {
	var r models.Resume
	err := s.DB.WithContext(ctx).
		Joins("JOIN users ON users.id = resumes.user_id").
		Where("users.username = ? AND resumes.slug = ?", resume.ToUsername(username), slug).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting public resume: %w", err)
	}

	if viewerID != "" && viewerID == r.UserID {
		return &r, nil
	}
	if !r.IsPublic {
		return nil, ErrNotFound
	}
	if r.Password != nil && s.Grants.Verify(grant, GrantSubject(&r)) != nil {
		return nil, &NeedPasswordError{Username: resume.ToUsername(username), Slug: slug}
	}
	return &r, nil
}

// GrantSubject binds an access grant to the resume and its current
// password, so changing the password revokes earlier grants.
func GrantSubject(r *models.Resume) string {
	if r.Password == nil {
		return r.ID
	}
	return r.ID + ":" + auth.HashToken(*r.Password)[:16]
}

func (s *ResumeService) GetStatistics(ctx context.Context, id, userID string) (*dtos.ResumeStatisticsResponse, error) {
	r, err := s.getOwned(s.DB.WithContext(ctx).Omit("data"), id, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.statistics(s.DB.WithContext(ctx), r.ID)
	if err != nil {
		return nil, err
	}
	return &dtos.ResumeStatisticsResponse{
		Views:            stats.Views,
		Downloads:        stats.Downloads,
		LastViewedAt:     stats.LastViewedAt,
		LastDownloadedAt: stats.LastDownloadedAt,
		IsPublic:         r.IsPublic,
	}, nil
}

func (s *ResumeService) statistics(tx *gorm.DB, resumeID string) (*models.ResumeStatistics, error) {
	var stats models.ResumeStatistics
	err := tx.Where(models.ResumeStatistics{ResumeID: resumeID}).FirstOrCreate(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("getting resume statistics: %w", err)
	}
	return &stats, nil
}

// IncrementStatistics counts a view and/or a download of a public resume.
// Private resumes are ignored.
func (s *ResumeService) IncrementStatistics(ctx context.Context, id string, views, downloads bool) error {
	if !views && !downloads {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Resume
		err := tx.Omit("data").Where("id = ?", id).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("getting resume: %w", err)
		}
		if !r.IsPublic {
			return nil
		}

		stats, err := s.statistics(tx, r.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		updates := map[string]any{}
		if views {
			updates["views"] = gorm.Expr("views + ?", 1)
			updates["last_viewed_at"] = now
		}
		if downloads {
			updates["downloads"] = gorm.Expr("downloads + ?", 1)
			updates["last_downloaded_at"] = now
		}
		if err := tx.Model(stats).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating resume statistics: %w", err)
		}
		return nil
	})
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
