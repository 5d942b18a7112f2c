package plugin

import (
	"context"
	"errors"
	"fmt"
)

// UpstreamError 定价钩子（外部插件）调用失败
type UpstreamError struct {
	Plugin    string
	Hook      string
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("plugin %s %s failed (%s): %v", e.Plugin, e.Hook, kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable 构造可重试错误（超时、5xx、网络中断）
func Retryable(err error) *UpstreamError {
	return &UpstreamError{Retryable: true, Err: err}
}

// Fatal 构造不可重试错误（配置错误、4xx、响应非法）
func Fatal(err error) *UpstreamError {
	return &UpstreamError{Retryable: false, Err: err}
}

// AsUpstream 判断是否为上游错误
func AsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// classify 统一包装插件返回的错误并补齐插件与钩子名称
func classify(pluginID, hook string, err error) error {
	if err == nil {
		return nil
	}
	if upstream, ok := AsUpstream(err); ok {
		wrapped := *upstream
		if wrapped.Plugin == "" {
			wrapped.Plugin = pluginID
		}
		if wrapped.Hook == "" {
			wrapped.Hook = hook
		}
		return &wrapped
	}
	retryable := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	return &UpstreamError{Plugin: pluginID, Hook: hook, Retryable: retryable, Err: err}
}
