// Package review 评测目录：模型、存储、缓存读取与写入通知。
package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tokmz/reviewhub/utils/pointer"
)

// Rating 评分 1..5
type Rating int

const (
	RatingAbismo      Rating = 1
	RatingNaoEPraMim  Rating = 2
	RatingEsquecivel  Rating = 3
	RatingManeiro     Rating = 4
	RatingPeakFiction Rating = 5
)

var ratingNames = map[Rating]string{
	RatingAbismo:      "ABISMO",
	RatingNaoEPraMim:  "NAO_E_PRA_MIM",
	RatingEsquecivel:  "ESQUECIVEL",
	RatingManeiro:     "MANEIRO",
	RatingPeakFiction: "PEAK_FICTION",
}

// Valid 是否在 1..5 范围内
func (r Rating) Valid() bool {
	return r >= RatingAbismo && r <= RatingPeakFiction
}

func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return "Rating(" + strconv.Itoa(int(r)) + ")"
}

// ParseRating 接受数字或名称（不区分大小写）
func ParseRating(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		r := Rating(n)
		if !r.Valid() {
			return 0, ErrInvalidRating.WithMessagef("rating must be 1..5, got %d", n)
		}
		return r, nil
	}
	upper := strings.ToUpper(s)
	for r, name := range ratingNames {
		if name == upper {
			return r, nil
		}
	}
	return 0, ErrInvalidRating.WithMessagef("unknown rating %q", s)
}

// UnmarshalJSON 接受 4 或 "MANEIRO"
// 序列化始终输出数字。
func (r *Rating) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseRating(s)
		if err != nil {
			return err
		}
		*r = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	*r = Rating(n)
	return nil
}

// UnmarshalYAML 种子文件中同样接受数字或名称
func (r *Rating) UnmarshalYAML(data []byte) error {
	v, err := ParseRating(strings.Trim(string(data), `"' `))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Review 评测
type Review struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:255;not null;index" json:"title"`
	ContentType    string    `gorm:"size:64;not null;index" json:"content_type"` // filme, série, jogo, livro
	CoverImageURL  string    `gorm:"size:1024;not null" json:"cover_image_url"`
	ReactionGIFURL *string   `gorm:"size:1024" json:"reaction_gif_url"`
	ReviewMarkdown string    `gorm:"type:text;not null" json:"review_markdown"`
	Rating         Rating    `gorm:"not null;index" json:"rating"`
	TagsList       string    `gorm:"size:512" json:"tags_list"` // 逗号分隔
	ExternalLink   *string   `gorm:"size:1024" json:"external_link"`
	TimeSpent      *string   `gorm:"size:64" json:"time_spent"`
	Published      bool      `gorm:"not null" json:"published"`
	CreatedAt      time.Time `gorm:"index;autoCreateTime:false" json:"created_at"` // 由 Service 写入
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// Tags 拆分 TagsList，去除空白与空项
func (r *Review) Tags() []string {
	var tags []string
	for _, t := range strings.Split(r.TagsList, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// CreateInput 创建参数，也是种子文件的条目格式
type CreateInput struct {
	Title          string     `json:"title" yaml:"title" binding:"required,max=255"`
	ContentType    string     `json:"content_type" yaml:"content_type" binding:"required,max=64"`
	CoverImageURL  string     `json:"cover_image_url" yaml:"cover_image_url" binding:"required"`
	ReactionGIFURL *string    `json:"reaction_gif_url" yaml:"reaction_gif_url"`
	ReviewMarkdown string     `json:"review_markdown" yaml:"review_markdown" binding:"required"`
	Rating         Rating     `json:"rating" yaml:"rating"`
	TagsList       string     `json:"tags_list" yaml:"tags_list"`
	ExternalLink   *string    `json:"external_link" yaml:"external_link"`
	TimeSpent      *string    `json:"time_spent" yaml:"time_spent"`
	Published      *bool      `json:"published" yaml:"published"` // 缺省为 true
	CreatedAt      *time.Time `json:"created_at" yaml:"created_at"`
}

// UpdateInput 部分更新，只修改非 nil 字段
type UpdateInput struct {
	Title          *string    `json:"title"`
	ContentType    *string    `json:"content_type"`
	CoverImageURL  *string    `json:"cover_image_url"`
	ReactionGIFURL *string    `json:"reaction_gif_url"`
	ReviewMarkdown *string    `json:"review_markdown"`
	Rating         *Rating    `json:"rating"`
	TagsList       *string    `json:"tags_list"`
	ExternalLink   *string    `json:"external_link"`
	TimeSpent      *string    `json:"time_spent"`
	Published      *bool      `json:"published"`
	CreatedAt      *time.Time `json:"created_at"`
}

// ListQuery 列表查询
type ListQuery struct {
	Offset      int    `form:"offset"`
	Limit       int    `form:"limit"` // 0 表示默认值
	ContentType string `form:"content_type"`
	Rating      int    `form:"rating"` // 0 表示不过滤
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// normalize 校验并填充默认值
func (q *ListQuery) normalize() error {
	if q.Offset < 0 {
		return ErrInvalidPage.WithMessage("offset must not be negative")
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultLimit
	case q.Limit < 0 || q.Limit > MaxLimit:
		return ErrInvalidPage.WithMessagef("limit must be within 1..%d", MaxLimit)
	}
	if q.Rating != 0 && !Rating(q.Rating).Valid() {
		return ErrInvalidRating.WithMessagef("rating must be 1..5, got %d", q.Rating)
	}
	return nil
}

func (in *CreateInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return ErrInvalidReview.WithMessage("title is required")
	case strings.TrimSpace(in.ContentType) == "":
		return ErrInvalidReview.WithMessage("content_type is required")
	case !in.Rating.Valid():
		return ErrInvalidRating.WithMessagef("rating must be 1..5, got %d", in.Rating)
	}
	return nil
}

// toReview 构建待写入的 Review
func (in *CreateInput) toReview(now time.Time) *Review {
	r := &Review{
		Title:          in.Title,
		ContentType:    in.ContentType,
		CoverImageURL:  in.CoverImageURL,
		ReactionGIFURL: in.ReactionGIFURL,
		ReviewMarkdown: in.ReviewMarkdown,
		Rating:         in.Rating,
		TagsList:       in.TagsList,
		ExternalLink:   in.ExternalLink,
		TimeSpent:      in.TimeSpent,
		Published:      pointer.GetOrDefault(in.Published, true),
		CreatedAt:      pointer.GetOrDefault(in.CreatedAt, now),
		UpdatedAt:      now,
	}
	return r
}

func (in *UpdateInput) validate() error {
	if in.Rating != nil && !in.Rating.Valid() {
		return ErrInvalidRating.WithMessagef("rating must be 1..5, got %d", *in.Rating)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return ErrInvalidReview.WithMessage("title must not be empty")
	}
	if in.ContentType != nil && strings.TrimSpace(*in.ContentType) == "" {
		return ErrInvalidReview.WithMessage("content_type must not be empty")
	}
	return nil
}

// apply 写入非 nil 字段
func (in *UpdateInput) apply(r *Review) {
	pointer.Assign(&r.Title, in.Title)
	pointer.Assign(&r.ContentType, in.ContentType)
	pointer.Assign(&r.CoverImageURL, in.CoverImageURL)
	pointer.Assign(&r.ReviewMarkdown, in.ReviewMarkdown)
	pointer.Assign(&r.Rating, in.Rating)
	pointer.Assign(&r.TagsList, in.TagsList)
	pointer.Assign(&r.Published, in.Published)
	pointer.Assign(&r.CreatedAt, in.CreatedAt)
	pointer.AssignPtr(&r.ReactionGIFURL, in.ReactionGIFURL)
	pointer.AssignPtr(&r.ExternalLink, in.ExternalLink)
	pointer.AssignPtr(&r.TimeSpent, in.TimeSpent)
}
