// Package sizer 提供按名称选择的字符串大小函数，供服务配置 cache.sizer 使用。
package sizer

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"sweepcache/pkg/cache"
	apperr "sweepcache/pkg/error"
)

// ErrUnknownSizer 未注册的大小函数名
const ErrUnknownSizer apperr.ErrorCode = "UNKNOWN_SIZER"

var sizers = map[string]cache.SizeFunc[string]{
	"unit":    cache.UnitSize[string],
	"bytes":   Bytes,
	"runes":   Runes,
	"gbk":     GBK,
	"gb18030": GB18030,
}

// Bytes 按 UTF-8 字节数计算大小
func Bytes(v string) int64 {
	return int64(len(v))
}

// Runes 按字符数计算大小
func Runes(v string) int64 {
	return int64(utf8.RuneCountInString(v))
}

// GBK 按 GBK 编码后的字节数计算大小，无法编码时退回 UTF-8 字节数。
func GBK(v string) int64 {
	return encodedLen(simplifiedchinese.GBK, v)
}

// GB18030 按 GB18030 编码后的字节数计算大小，无法编码时退回 UTF-8 字节数。
func GB18030(v string) int64 {
	return encodedLen(simplifiedchinese.GB18030, v)
}

func encodedLen(enc encoding.Encoding, v string) int64 {
	out, _, err := transform.String(enc.NewEncoder(), v)
	if err != nil {
		return int64(len(v))
	}
	return int64(len(out))
}

// Lookup 按名称查找大小函数
func Lookup(name string) (cache.SizeFunc[string], error) {
	fn, ok := sizers[name]
	if !ok {
		return nil, apperr.NewError(ErrUnknownSizer, fmt.Sprintf("unknown sizer %q", name)).
			WithContext("available", Names())
	}
	return fn, nil
}

// Names 返回所有已注册的名称（已排序）
func Names() []string {
	names := make([]string, 0, len(sizers))
	for name := range sizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
