package transport

import "github.com/pkg/errors"

// ErrUnknownChannel 收发使用了未配置的通道
var ErrUnknownChannel = errors.New("unknown channel")

// ErrChannelFull 超出通道内存预算
var ErrChannelFull = errors.New("channel memory budget exceeded")

// ErrDisconnected 连接已不可用
var ErrDisconnected = errors.New("disconnected")

// ErrUnknownClient 该 ClientID 没有存活的连接
var ErrUnknownClient = errors.New("unknown client")

// ErrMalformedPacket 入站数据报无法解码
var ErrMalformedPacket = errors.New("malformed packet")

// ErrLinkSaturated 链路出站队列已满，数据报被丢弃
var ErrLinkSaturated = errors.New("link outbound queue full")
