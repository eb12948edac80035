package protocol

import "github.com/pkg/errors"

// ErrMalformed 载荷能解码，但不是合法消息
var ErrMalformed = errors.New("malformed message")
