package password_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jrsteele09/learnlink-client/client/clientfake"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/password"
	"github.com/stretchr/testify/require"
)

func TestChange_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   password.ChangeRequest
		field string
	}{
		{"weak", password.ChangeRequest{CurrentPassword: "Old12345", NewPassword: "weak", ConfirmPassword: "weak"}, "newPassword"},
		{"same", password.ChangeRequest{CurrentPassword: "Secret123", NewPassword: "Secret123", ConfirmPassword: "Secret123"}, "newPassword"},
		{"mismatch", password.ChangeRequest{CurrentPassword: "Old12345", NewPassword: "Secret123", ConfirmPassword: "Secret12"}, "confirmPassword"},
		{"no current", password.ChangeRequest{NewPassword: "Secret123", ConfirmPassword: "Secret123"}, "currentPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.ErrorIs(t, err, apperrors.ErrValidation)
			require.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestFlows(t *testing.T) {
	srv := clientfake.NewServer(t)
	srv.Handle(http.MethodPost, "/password/change", http.StatusNoContent, nil)
	srv.Handle(http.MethodPost, "/password/forgot", http.StatusOK, map[string]string{"message": "sent"})
	srv.Handle(http.MethodPost, "/password/reset", http.StatusBadRequest, map[string]string{"message": "Reset link expired"})
	svc := password.NewService(srv.Client())
	ctx := context.Background()

	require.NoError(t, svc.Change(ctx, password.ChangeRequest{CurrentPassword: "Old12345", NewPassword: "Secret123", ConfirmPassword: "Secret123"}))

	require.NoError(t, svc.Forgot(ctx, password.ForgotRequest{Email: " Hoa@LearnLink.test"}))
	var forgot password.ForgotRequest
	srv.Last().JSON(t, &forgot)
	require.Equal(t, "hoa@learnlink.test", forgot.Email)

	err := svc.Reset(ctx, password.ResetRequest{Email: "hoa@learnlink.test", Token: "t", NewPassword: "Secret123", ConfirmPassword: "Secret123"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Contains(t, err.Error(), "Reset link expired")
}
