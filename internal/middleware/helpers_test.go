package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/creditgate/creditgate/internal/model"
	"github.com/creditgate/creditgate/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedUser registers a user holding balance credits and returns its token.
func seedUser(t *testing.T, users *repository.UserRepository, ip string, balance int) string {
	t.Helper()

	user := &model.User{
		ID:             "user-" + ip,
		Token:          "token-" + ip,
		RequestsNumber: balance,
		IP:             ip,
	}
	if err := users.Register(context.Background(), user); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return user.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}
