package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/service"
)

func testAuthService() *service.AuthService {
	return service.NewAuthService(&config.Config{
		JWTSecret:      "test-secret",
		JWTExpiry:      time.Hour,
		ExamTokenGrace: 15 * time.Minute,
	})
}

func testRouter(authService *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/me", RequireAuth(authService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetClaims(c).UserID})
	})
	r.GET("/admin", RequireAuth(authService), RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/attempts/:attempt_id", RequireExamToken(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/reset", RequireResetToken(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	authService := testAuthService()
	r := testRouter(authService)

	t.Run("missing token", func(t *testing.T) {
		if w := doRequest(r, "/me", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if w := doRequest(r, "/me", "garbage"); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("valid access token", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/me", token); w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("exam token rejected on durable routes", func(t *testing.T) {
		token, err := authService.GenerateExamToken(uuid.New(), uuid.New(), model.RoleStudent, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/me", token); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("token via query fallback", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/me?token="+token, ""); w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestRequireRole(t *testing.T) {
	authService := testAuthService()
	r := testRouter(authService)

	t.Run("student denied on admin route", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/admin", token); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleAdmin})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/admin", token); w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestRequireExamToken(t *testing.T) {
	authService := testAuthService()
	r := testRouter(authService)
	attemptID := uuid.New()

	t.Run("matching attempt passes", func(t *testing.T) {
		token, err := authService.GenerateExamToken(uuid.New(), attemptID, model.RoleStudent, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/attempts/"+attemptID.String(), token); w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("token bound to another attempt rejected", func(t *testing.T) {
		token, err := authService.GenerateExamToken(uuid.New(), uuid.New(), model.RoleStudent, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/attempts/"+attemptID.String(), token); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("durable token rejected on attempt routes", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/attempts/"+attemptID.String(), token); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("expired exam token rejected", func(t *testing.T) {
		token, err := authService.GenerateExamToken(uuid.New(), attemptID, model.RoleStudent, time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/attempts/"+attemptID.String(), token); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRequireResetToken(t *testing.T) {
	authService := testAuthService()
	r := testRouter(authService)

	t.Run("reset token passes", func(t *testing.T) {
		token, err := authService.GenerateResetToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/reset", token); w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("durable token rejected", func(t *testing.T) {
		token, err := authService.GenerateAccessToken(&model.User{ID: uuid.New(), Role: model.RoleStudent})
		if err != nil {
			t.Fatal(err)
		}
		if w := doRequest(r, "/reset", token); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		if w := doRequest(r, "/reset", "not-a-token"); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}
