package cache

import (
	apperr "sweepcache/pkg/error"
)

const (
	// ErrCacheMiss 表示在缓存中未找到请求的条目。
	ErrCacheMiss apperr.ErrorCode = "CACHE_MISS"
	// ErrSizeReadOnly 表示试图写入只读的 size 属性。
	ErrSizeReadOnly apperr.ErrorCode = "SIZE_READONLY"
	// ErrConfigInvalid 表示缓存配置无效。
	ErrConfigInvalid apperr.ErrorCode = "CONFIG_INVALID"
)

var (
	ErrCacheMissNotFound = apperr.NewError(ErrCacheMiss, "cache entry not found")
	ErrSizeNotWritable   = apperr.NewError(ErrSizeReadOnly, "cache size is read-only")
)
