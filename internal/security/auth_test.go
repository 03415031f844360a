package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestResolveBearerTokenAsUserID(t *testing.T) {
	cfg := config.DefaultConfig()
	resolver := NewTokenResolver(&cfg)

	id, err := resolver.Resolve(context.Background(), "some-user", "", "")
	require.NoError(t, err)
	require.Equal(t, "some-user", id.UserID)
	require.False(t, id.IsAdmin)
}

func TestResolveAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKeys = map[string]string{"sk-valid": "alice"}
	resolver := NewTokenResolver(&cfg)

	id, err := resolver.Resolve(context.Background(), "ignored", "sk-valid", "")
	require.NoError(t, err)
	require.Equal(t, "alice", id.UserID)

	// An unknown key falls through to bearer-token resolution.
	id, err = resolver.Resolve(context.Background(), "bob", "sk-bogus", "")
	require.NoError(t, err)
	require.Equal(t, "bob", id.UserID)
}

func TestResolveAdminUsers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AdminUsers = "root, ops"
	resolver := NewTokenResolver(&cfg)

	id, err := resolver.Resolve(context.Background(), "ops", "", "")
	require.NoError(t, err)
	require.True(t, id.IsAdmin)

	id, err = resolver.Resolve(context.Background(), "alice", "", "")
	require.NoError(t, err)
	require.False(t, id.IsAdmin)
}

func TestResolveUserIDHeaderOnlyInTestingMode(t *testing.T) {
	cfg := config.DefaultConfig()
	resolver := NewTokenResolver(&cfg)

	id, err := resolver.Resolve(context.Background(), "token-user", "", "header-user")
	require.NoError(t, err)
	require.Equal(t, "token-user", id.UserID)

	cfg.Mode = config.ModeTesting
	resolver = NewTokenResolver(&cfg)
	id, err = resolver.Resolve(context.Background(), "token-user", "", "header-user")
	require.NoError(t, err)
	require.Equal(t, "header-user", id.UserID)
}

func TestAuthMiddlewareRejectsNonBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	router := gin.New()
	router.GET("/probe", AuthMiddleware(NewTokenResolver(&cfg)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetUserID(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtractTokenRoles(t *testing.T) {
	roles := extractTokenRoles(map[string]any{
		"roles": []any{"admin", "user"},
		"scope": "openid profile",
		"realm_access": map[string]any{
			"roles": []any{"realm-admin"},
		},
	})
	require.True(t, roles["admin"])
	require.True(t, roles["user"])
	require.True(t, roles["profile"])
	require.True(t, roles["realm-admin"])
	require.False(t, roles["missing"])
}
