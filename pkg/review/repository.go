package review

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository 评测存储
type Repository interface {
	Create(ctx context.Context, r *Review) error
	CreateBatch(ctx context.Context, rs []*Review) error
	Get(ctx context.Context, id uint) (*Review, error)
	List(ctx context.Context, q ListQuery) ([]Review, int64, error)
	Save(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id uint) error
	IDs(ctx context.Context) ([]uint, error)
	Count(ctx context.Context) (int64, error)
}

// GormRepository 基于 GORM 的存储
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建存储
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate 建表与索引
func (r *GormRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Review{})
}

func (r *GormRepository) Create(ctx context.Context, rv *Review) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

// CreateBatch 在同一事务内写入
func (r *GormRepository) CreateBatch(ctx context.Context, rs []*Review) error {
	if len(rs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rs, 100).Error
	})
}

// Get 不存在时返回 ErrReviewNotFound
func (r *GormRepository) Get(ctx context.Context, id uint) (*Review, error) {
	var rv Review
	err := r.db.WithContext(ctx).First(&rv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// List 按 created_at 倒序分页，total 为过滤后的总数
func (r *GormRepository) List(ctx context.Context, q ListQuery) ([]Review, int64, error) {
	tx := r.db.WithContext(ctx).Model(&Review{})
	if q.ContentType != "" {
		tx = tx.Where("content_type = ?", q.ContentType)
	}
	if q.Rating != 0 {
		tx = tx.Where("rating = ?", q.Rating)
	}
	// Count 与 Find 共用过滤条件，Session 保证两次查询的 Statement 互不影响
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	reviews := make([]Review, 0, q.Limit)
	err := tx.Order("created_at DESC").Order("id DESC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// Save 写入全部字段
func (r *GormRepository) Save(ctx context.Context, rv *Review) error {
	return r.db.WithContext(ctx).Save(rv).Error
}

// Delete 不存在时返回 ErrReviewNotFound
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Review{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// IDs 全部评测 id，用于重建 id 过滤器
func (r *GormRepository) IDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&Review{}).Pluck("id", &ids).Error
	return ids, err
}

func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Review{}).Count(&n).Error
	return n, err
}
