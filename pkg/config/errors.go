package config

import (
	"errors"
	"io/fs"

	apperrors "github.com/tokmz/reviewhub/pkg/errors"
)

// 配置错误码 4xxx
var (
	// ErrConfigNotFound 配置文件未找到
	ErrConfigNotFound = apperrors.New(4001, "配置文件未找到")
	// ErrConfigReadFailed 配置读取失败
	ErrConfigReadFailed = apperrors.New(4002, "配置读取失败")
	// ErrConfigInvalid 配置值非法
	ErrConfigInvalid = apperrors.New(4003, "配置值非法")
)

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
