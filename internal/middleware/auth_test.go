package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Property: protected endpoints reject requests without a token
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			logger, _ := zap.NewDevelopment()
			middleware := AuthMiddleware("test-secret", logger)

			// Create a test handler
			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			// Ensure path starts with /
			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			// Create request without authorization header
			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Should return 401 Unauthorized
			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: expired tokens are rejected; the console must log in again
func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(userID string, role string) bool {
			logger, _ := zap.NewDevelopment()
			secret := "test-secret"
			middleware := AuthMiddleware(secret, logger)

			// Create expired token
			claims := jwt.MapClaims{
				"user_id": userID,
				"role":    role,
				"exp":     time.Now().Add(-1 * time.Hour).Unix(), // Expired 1 hour ago
			}

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			tokenString, _ := token.SignedString([]byte(secret))

			// Create test handler
			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			// Create request with expired token
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+tokenString)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Should return 401 Unauthorized
			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
		gen.OneConstOf("customer", "vendor", "admin", "checker"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: valid tokens reach the handler with user_id and role in context
func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens allow request processing", prop.ForAll(
		func(userID string, role string) bool {
			logger, _ := zap.NewDevelopment()
			secret := "test-secret"
			middleware := AuthMiddleware(secret, logger)

			// Create valid token
			claims := jwt.MapClaims{
				"user_id": userID,
				"role":    role,
				"exp":     time.Now().Add(1 * time.Hour).Unix(), // Expires in 1 hour
			}

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			tokenString, _ := token.SignedString([]byte(secret))

			// Track if handler was called
			handlerCalled := false

			// Create test handler
			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true

				// Verify user ID and role are in context
				ctxUserID, ok1 := GetUserID(r.Context())
				ctxRole, ok2 := GetUserRole(r.Context())

				if !ok1 || !ok2 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}

				if ctxUserID != userID || ctxRole != role {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}

				w.WriteHeader(http.StatusOK)
			}))

			// Create request with valid token
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+tokenString)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Handler should be called and return 200
			return handlerCalled && w.Code == http.StatusOK
		},
		gen.AnyString(),
		gen.OneConstOf("customer", "vendor", "admin", "checker"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Test invalid token format
func TestProperty_InvalidTokenFormatRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("invalid token formats are rejected", prop.ForAll(
		func(invalidToken string) bool {
			logger, _ := zap.NewDevelopment()
			middleware := AuthMiddleware("test-secret", logger)

			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			// Create request with invalid token
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+invalidToken)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Should return 401 Unauthorized
			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Test missing Bearer prefix
func TestProperty_MissingBearerPrefixRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tokens without Bearer prefix are rejected", prop.ForAll(
		func(token string) bool {
			logger, _ := zap.NewDevelopment()
			middleware := AuthMiddleware("test-secret", logger)

			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			// Create request without Bearer prefix
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", token)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			// Should return 401 Unauthorized
			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func signed(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func TestAuthMiddleware_RejectsBadClaims(t *testing.T) {
	secret := "test-secret"
	handler := AuthMiddleware(secret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"no expiry":       signed(t, secret, jwt.MapClaims{"user_id": "u1", "role": "admin"}, jwt.SigningMethodHS256),
		"no role":         signed(t, secret, jwt.MapClaims{"user_id": "u1", "exp": exp}, jwt.SigningMethodHS256),
		"wrong secret":    signed(t, "other", jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": exp}, jwt.SigningMethodHS256),
		"wrong algorithm": signed(t, secret, jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": exp}, jwt.SigningMethodHS512),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	logger := zap.NewNop()

	cases := []struct {
		name    string
		role    string
		allowed []string
		want    int
	}{
		{"admin on admin route", "admin", []string{"admin"}, http.StatusNoContent},
		{"vendor on admin route", "vendor", []string{"admin"}, http.StatusForbidden},
		{"checker on inspection route", "checker", []string{"checker", "admin"}, http.StatusNoContent},
		{"any authenticated role", "customer", nil, http.StatusNoContent},
		{"no identity", "", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/api/categories/c1", nil)
			if tc.role != "" {
				req = req.WithContext(WithUser(req.Context(), "u1", tc.role))
			}
			w := httptest.NewRecorder()
			RequireRole(logger, tc.allowed...)(ok).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/coupons", nil)
	RequireAdmin(logger)(ok).ServeHTTP(w, req.WithContext(WithUser(req.Context(), "u2", "vendor")))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
