package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/warepulse/stockwatch_backend/utils"
)

func authTestRouter(capture *map[string]interface{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)
		(*capture)["userId"] = userId
		(*capture)["isAdmin"] = utils.IsAdminFromContext(ctx)
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token, err := utils.JwtGenerate("user-42", "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	capture := map[string]interface{}{}
	r := authTestRouter(&capture)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if capture["userId"] != "user-42" {
		t.Errorf("expected userId user-42, got %v", capture["userId"])
	}
	if capture["isAdmin"] != true {
		t.Errorf("expected admin claim to be carried into context")
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	capture := map[string]interface{}{}
	r := authTestRouter(&capture)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if _, seen := capture["userId"]; seen {
		t.Errorf("handler should not run for an invalid token")
	}
}

func TestAuthMiddlewareAllowsAnonymous(t *testing.T) {
	capture := map[string]interface{}{}
	r := authTestRouter(&capture)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass through, got %d", w.Code)
	}
	if capture["userId"] != "" {
		t.Errorf("expected empty userId for anonymous request, got %v", capture["userId"])
	}
}
