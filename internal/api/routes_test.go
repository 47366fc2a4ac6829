package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-sysdash/internal/api/middleware"
	"go-sysdash/internal/models"
	"go-sysdash/internal/monitor"
	"go-sysdash/internal/service"
	"go-sysdash/pkg/database"
	"go-sysdash/pkg/utils"
)

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"message"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestRouterWithRestart(t, nil)
}

// newTestRouterWithRestart 创建测试路由，restart 作为采集器重启函数
func newTestRouterWithRestart(t *testing.T, restart func() error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.InitJWT("test-secret", time.Hour)

	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"), "admin123", nil)
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	store := monitor.NewStore(3)
	store.Publish(&models.Snapshot{
		Timestamp:      time.Now(),
		CPU:            &models.CPUStat{Count: 1, PerCorePercent: []float64{12}},
		Memory:         &models.MemoryStat{Total: 1073741824, Percent: 40},
		Swap:           &models.SwapStat{},
		Processes:      []models.ProcessStat{{Pid: 1, Name: "init"}, {Pid: 2, Name: "kthreadd"}},
		ProcessesTotal: 2,
	})
	m := monitor.NewMonitor(store, nil, monitor.DefaultStalenessPolicy())

	return NewRouter(Dependencies{
		DB:               db,
		MonitorService:   service.NewMonitorService(m, nil),
		RestartCollector: restart,
		StreamInterval:   10 * time.Millisecond,
	})
}

func token(t *testing.T, role models.UserRole) string {
	t.Helper()
	tok, err := utils.GenerateToken(1, "admin", string(role))
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}
	return tok
}

func do(t *testing.T, router http.Handler, method, path, tok string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s 响应不是 JSON: %s", method, path, w.Body.String())
		}
	}
	return w, env
}

// TestPublicHealth 测试健康检查无需认证
func TestPublicHealth(t *testing.T) {
	router := newTestRouter(t)

	w, env := do(t, router, "GET", "/api/v1/health", "", nil)
	if w.Code != http.StatusOK || env.Code != utils.SUCCESS {
		t.Fatalf("status=%d code=%d", w.Code, env.Code)
	}
	var data map[string]any
	json.Unmarshal(env.Data, &data)
	if data["collector"] != "stopped" || data["status"] != "degraded" {
		t.Errorf("health = %v", data)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("响应应带有 X-Request-ID")
	}
}

// TestSystemRoutesRequireAdmin 测试主机指标接口的认证和权限
func TestSystemRoutesRequireAdmin(t *testing.T) {
	router := newTestRouter(t)

	if w, _ := do(t, router, "GET", "/api/v1/system/dashboard", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("无令牌 status = %d, 期望 401", w.Code)
	}
	if w, _ := do(t, router, "GET", "/api/v1/system/dashboard", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("无效令牌 status = %d, 期望 401", w.Code)
	}
	if w, _ := do(t, router, "GET", "/api/v1/system/dashboard", token(t, models.RoleUser), nil); w.Code != http.StatusForbidden {
		t.Errorf("普通用户 status = %d, 期望 403", w.Code)
	}

	refresh, err := utils.GenerateRefreshToken(1, "admin", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if w, _ := do(t, router, "GET", "/api/v1/system/dashboard", refresh, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("刷新令牌 status = %d, 期望 401", w.Code)
	}
}

// TestDashboardRoute 测试管理员读取仪表盘
func TestDashboardRoute(t *testing.T) {
	router := newTestRouter(t)

	w, env := do(t, router, "GET", "/api/v1/system/dashboard", token(t, models.RoleAdmin), nil)
	if w.Code != http.StatusOK || env.Code != utils.SUCCESS {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var dash models.DashboardView
	if err := json.Unmarshal(env.Data, &dash); err != nil {
		t.Fatalf("解析仪表盘失败: %v", err)
	}
	if dash.Memory.Total != "1.0 GiB" {
		t.Errorf("memory_info.total = %q", dash.Memory.Total)
	}
	if dash.CPU.Count != 1 || dash.Stale {
		t.Errorf("dashboard = %+v", dash)
	}
	// 磁盘分区在快照中为空，仍返回可用的空数组
	if !dash.Disks.Available || dash.Disks.Records == nil {
		t.Errorf("disks_info = %+v", dash.Disks)
	}
}

// TestProcessesRoute 测试进程列表分页参数
func TestProcessesRoute(t *testing.T) {
	router := newTestRouter(t)

	_, env := do(t, router, "GET", "/api/v1/system/processes?current=2&size=1", token(t, models.RoleAdmin), nil)
	var list models.ListView[models.ProcessView]
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("解析进程列表失败: %v", err)
	}
	if len(list.Records) != 1 || list.Records[0].Pid != 2 || list.Total != 2 {
		t.Errorf("processes = %+v", list)
	}
}

// TestRefreshAndRestartRoutes 测试没有采集器时的刷新和重启
func TestRefreshAndRestartRoutes(t *testing.T) {
	router := newTestRouter(t)
	admin := token(t, models.RoleAdmin)

	w, env := do(t, router, "POST", "/api/v1/system/refresh", admin, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"accepted":false`) {
		t.Errorf("refresh = %d %s", w.Code, env.Data)
	}

	_, env = do(t, router, "POST", "/api/v1/system/collector/restart", admin, nil)
	if env.Code != utils.ERROR {
		t.Errorf("没有重启函数时 code = %d, 期望 %d", env.Code, utils.ERROR)
	}

	w, env = do(t, router, "GET", "/api/v1/system/health", admin, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"state":"stopped"`) {
		t.Errorf("system health = %d %s", w.Code, env.Data)
	}
}

// TestRestartCollectorFailure 测试重启失败时返回错误和当前采集器状态
func TestRestartCollectorFailure(t *testing.T) {
	router := newTestRouterWithRestart(t, func() error { return monitor.ErrCollectorRunning })

	w, env := do(t, router, "POST", "/api/v1/system/collector/restart", token(t, models.RoleAdmin), nil)
	if w.Code != http.StatusBadRequest || env.Code != utils.VALIDATION_ERROR {
		t.Fatalf("restart = %d %s", w.Code, w.Body.String())
	}
	if env.Msg != monitor.ErrCollectorRunning.Error() {
		t.Errorf("message = %q", env.Msg)
	}
	if !strings.Contains(string(env.Data), `"state":"stopped"`) {
		t.Errorf("失败响应应带采集器状态, data = %s", env.Data)
	}
}

// TestLoginFlow 测试登录、获取当前用户和刷新令牌
func TestLoginFlow(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, "POST", "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("错误密码 status = %d, 期望 401", w.Code)
	}

	w, env := do(t, router, "POST", "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "admin123"})
	if w.Code != http.StatusOK {
		t.Fatalf("登录失败: %s", w.Body.String())
	}
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	json.Unmarshal(env.Data, &tokens)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.ExpiresIn != 3600 {
		t.Fatalf("tokens = %+v", tokens)
	}

	_, env = do(t, router, "GET", "/api/v1/auth/me", tokens.AccessToken, nil)
	var me models.User
	json.Unmarshal(env.Data, &me)
	if me.Username != "admin" || me.Password != "" {
		t.Errorf("me = %+v", me)
	}

	w, env = do(t, router, "POST", "/api/v1/auth/refresh", tokens.RefreshToken, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), "access_token") {
		t.Errorf("refresh = %d %s", w.Code, w.Body.String())
	}
	if w, _ := do(t, router, "POST", "/api/v1/auth/refresh", tokens.AccessToken, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("用访问令牌刷新 status = %d, 期望 401", w.Code)
	}

	// 登录令牌可以访问主机指标
	if w, _ := do(t, router, "GET", "/api/v1/system/cpu", tokens.AccessToken, nil); w.Code != http.StatusOK {
		t.Errorf("cpu status = %d", w.Code)
	}
}

// TestAlarmRoutes 测试告警列表和统计
func TestAlarmRoutes(t *testing.T) {
	router := newTestRouter(t)
	admin := token(t, models.RoleAdmin)

	w, env := do(t, router, "GET", "/api/v1/alarms?event_type=cpu", admin, nil)
	if w.Code != http.StatusOK || env.Code != utils.SUCCESS {
		t.Errorf("alarms = %d %s", w.Code, w.Body.String())
	}
	w, _ = do(t, router, "GET", "/api/v1/alarms/stats", admin, nil)
	if w.Code != http.StatusOK {
		t.Errorf("stats = %d", w.Code)
	}
	w, env = do(t, router, "GET", "/api/v1/alarms/recent?limit=5", admin, nil)
	var recent []models.Alarm
	if w.Code != http.StatusOK || json.Unmarshal(env.Data, &recent) != nil || len(recent) != 0 {
		t.Errorf("recent = %d %s", w.Code, env.Data)
	}
	w, _ = do(t, router, "GET", "/api/v1/alarms/recent?limit=abc", admin, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法 limit status = %d, 期望 400", w.Code)
	}
	w, _ = do(t, router, "GET", "/api/v1/alarms/999", admin, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("不存在的告警 status = %d, 期望 404", w.Code)
	}
}

// TestStreamRoute 测试 websocket 推送仪表盘，浏览器可以用 ?token= 认证
func TestStreamRoute(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/system/stream?token=" + token(t, models.RoleAdmin)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("websocket 连接失败: %v (status %d)", err, status)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var dash models.DashboardView
	if err := conn.ReadJSON(&dash); err != nil {
		t.Fatalf("读取推送失败: %v", err)
	}
	if dash.Memory.Total != "1.0 GiB" {
		t.Errorf("推送的仪表盘 = %+v", dash)
	}

	// 没有令牌时握手被拒绝
	bare := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/system/stream"
	if _, resp, err := websocket.DefaultDialer.Dial(bare, nil); err == nil {
		t.Error("没有令牌时不应建立连接")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, 期望 401", resp.StatusCode)
	}
}
