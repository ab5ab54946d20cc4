package domain

import "errors"

// ErrInvalidInput 入库请求既没有原始文本也没有可用重量，或字段取值非法
var ErrInvalidInput = errors.New("invalid input")
