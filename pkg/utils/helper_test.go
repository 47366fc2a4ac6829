package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	if err != nil {
		t.Fatalf("GenerateRandomString 失败: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("长度 = %d, 期望 32", len(a))
	}
	b, _ := GenerateRandomString(16)
	if a == b {
		t.Error("两次生成的随机串不应相同")
	}
}

func TestParsePage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query       string
		wantCurrent int
		wantSize    int
	}{
		{"", 1, DefaultPageSize},
		{"?current=3&size=20", 3, 20},
		{"?current=0&size=0", 1, DefaultPageSize},
		{"?current=abc&size=-5", 1, DefaultPageSize},
		{"?size=1000", 1, DefaultPageSize},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/alarms"+tt.query, nil)

		current, size := ParsePage(c)
		if current != tt.wantCurrent || size != tt.wantSize {
			t.Errorf("ParsePage(%q) = (%d, %d), 期望 (%d, %d)",
				tt.query, current, size, tt.wantCurrent, tt.wantSize)
		}
	}
}
