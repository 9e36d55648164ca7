package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"scholarai/internal/model"
)

type PaperRepository struct {
	db *gorm.DB
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// Create returns ErrDuplicate when (owner, doi) already exists.
func (r *PaperRepository) Create(p *model.Paper) error {
	if err := r.db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create paper failed: %w", err)
	}
	return nil
}

func (r *PaperRepository) GetByOwnerAndDOI(ownerID uint, doi string) (*model.Paper, error) {
	var p model.Paper
	if err := r.db.Where("owner_id = ? AND doi = ?", ownerID, doi).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get paper by doi failed: %w", err)
	}
	return &p, nil
}

func (r *PaperRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Paper, error) {
	var p model.Paper
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get paper failed: %w", err)
	}
	return &p, nil
}

func (r *PaperRepository) ListByOwnerID(ownerID uint, offset, limit int) ([]model.Paper, int64, error) {
	var total int64
	if err := r.db.Model(&model.Paper{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count papers failed: %w", err)
	}
	var list []model.Paper
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list papers failed: %w", err)
	}
	return list, total, nil
}

// ListRecent returns the owner's newest papers first.
func (r *PaperRepository) ListRecent(ownerID uint, limit int) ([]model.Paper, error) {
	list, _, err := r.ListByOwnerID(ownerID, 0, limit)
	return list, err
}

// ListByIDsAndOwnerID silently drops ids the owner does not hold.
func (r *PaperRepository) ListByIDsAndOwnerID(ids []uint, ownerID uint) ([]model.Paper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []model.Paper
	if err := r.db.Where("owner_id = ? AND id IN ?", ownerID, ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list papers by ids failed: %w", err)
	}
	return list, nil
}

// SearchTitle is a case-insensitive substring match on title.
func (r *PaperRepository) SearchTitle(ownerID uint, query string, limit int) ([]model.Paper, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var list []model.Paper
	err := r.db.Where("owner_id = ? AND LOWER(title) LIKE ? ESCAPE '!'", ownerID, pattern).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("search paper titles failed: %w", err)
	}
	return list, nil
}

func (r *PaperRepository) SetVectorKey(id uint, key string) error {
	if err := r.db.Model(&model.Paper{}).Where("id = ?", id).Update("vector_key", key).Error; err != nil {
		return fmt.Errorf("set paper vector key failed: %w", err)
	}
	return nil
}

func (r *PaperRepository) DeleteByIDAndOwnerID(id, ownerID uint) error {
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Paper{}).Error; err != nil {
		return fmt.Errorf("delete paper failed: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
