// Package pointer 可选字段的指针辅助函数
package pointer

// Of 返回值的指针
func Of[T any](v T) *T {
	return &v
}

// GetOrDefault 获取指针的值，nil 时返回默认值
func GetOrDefault[T any](p *T, defaultValue T) T {
	if p == nil {
		return defaultValue
	}
	return *p
}

// Assign src 非 nil 时写入 dst，返回是否写入
func Assign[T any](dst *T, src *T) bool {
	if src == nil {
		return false
	}
	*dst = *src
	return true
}

// AssignPtr src 非 nil 时令 *dst 指向 src，用于可空字段的部分更新
func AssignPtr[T any](dst **T, src *T) bool {
	if src == nil {
		return false
	}
	*dst = src
	return true
}
