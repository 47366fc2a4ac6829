package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		l, err := New(level)
		if err != nil {
			t.Fatalf("New(%q) 返回错误: %v", level, err)
		}
		if l == nil {
			t.Fatalf("New(%q) 返回 nil", level)
		}
	}

	if _, err := New("loud"); err == nil {
		t.Error("未知级别应返回错误")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	if got := FromContext(ctx, nil); got != l {
		t.Error("应取回放入 context 的 logger")
	}

	fallback := zap.NewNop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("context 中没有 logger 时应返回 fallback")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("fallback 为 nil 时不应返回 nil")
	}
}
