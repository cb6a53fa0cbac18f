package review

import (
	"net/http"

	"github.com/tokmz/reviewhub/pkg/errors"
)

// 评测错误码 2xxx
var (
	ErrReviewNotFound = errors.New(2001, "评测不存在", http.StatusNotFound)
	ErrInvalidRating  = errors.New(2002, "评分非法", http.StatusBadRequest)
	ErrInvalidPage    = errors.New(2003, "分页参数非法", http.StatusBadRequest)
	ErrInvalidReview  = errors.New(2004, "评测内容非法", http.StatusBadRequest)
)
