// Package middleware содержит HTTP middleware для сервиса бронирования.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

const (
	authCookieName = "auth_token"
	authCookieTTL  = 30 * 24 * time.Hour

	// Панель администрируется одним пользователем, поэтому cookie несёт
	// фиксированный субъект, а не идентификатор из таблицы пользователей.
	sessionSubject = "admin"
)

// AuthMiddleware выполняет проверку сессии администратора по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware пропускает запрос дальше только при действительном cookie сессии.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if !a.verifyCookie(cookie.Value) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetAuthCookie устанавливает cookie сессии администратора.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(sessionSubject),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// ClearAuthCookie завершает сессию администратора.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(subject string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(subject))
	signature := mac.Sum(nil)
	return subject + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) verifyCookie(cookieValue string) bool {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return false
	}

	if parts[0] != sessionSubject {
		return false
	}

	expected := a.sign(parts[0])
	expectedParts := strings.Split(expected, ".")
	if len(expectedParts) != 2 {
		return false
	}

	return hmac.Equal([]byte(parts[1]), []byte(expectedParts[1]))
}
