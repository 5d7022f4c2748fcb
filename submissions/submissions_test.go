package submissions_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/client/clientfake"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/submissions"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	require.True(t, submissions.StatusPending.CanTransitionTo(submissions.StatusApproved))
	require.True(t, submissions.StatusPending.CanTransitionTo(submissions.StatusRejected))
	require.False(t, submissions.StatusApproved.CanTransitionTo(submissions.StatusRejected))
	require.False(t, submissions.StatusPending.CanTransitionTo(submissions.StatusPending))
	require.True(t, submissions.StatusRejected.Valid())
	require.Equal(t, "Pending review", submissions.StatusPending.Badge().Label)
}

func TestReviewRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   submissions.ReviewRequest
		field string
	}{
		{"approve without score", submissions.ReviewRequest{Status: submissions.StatusApproved}, "score"},
		{"score out of range", submissions.Approve(11, ""), "score"},
		{"reject without feedback", submissions.Reject(""), "feedback"},
		{"pending is not a decision", submissions.ReviewRequest{Status: submissions.StatusPending}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.ErrorIs(t, err, apperrors.ErrValidation)
			require.Contains(t, err.Error(), tt.field)
		})
	}
	require.NoError(t, submissions.Approve(8, "Nice work").Validate())
}

func TestSubmit(t *testing.T) {
	srv := clientfake.NewServer(t)
	srv.Handle(http.MethodPost, "/submission", http.StatusCreated, map[string]any{"id": "s-1", "missionId": "m-1", "status": "Pending"})
	svc := submissions.NewService(srv.Client())

	_, err := svc.Submit(context.Background(), submissions.SubmitRequest{MissionID: "m-1"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	sub, err := svc.Submit(context.Background(), submissions.SubmitRequest{
		MissionID: "m-1",
		File:      &client.File{Name: "drawing.png", ContentType: "image/png", Content: strings.NewReader("png")},
	})
	require.NoError(t, err)
	require.Equal(t, submissions.StatusPending, sub.Status)

	form := srv.Last().Form(t)
	require.Equal(t, []string{"m-1"}, form.Value["missionId"])
	require.Equal(t, "drawing.png", form.File["file"][0].Filename)
}

func TestReview(t *testing.T) {
	srv := clientfake.NewServer(t)
	srv.Handle(http.MethodPut, "/submission/s-1/review", http.StatusOK, map[string]any{
		"id": "s-1", "status": "Approved", "score": 9, "reviewedAt": "2026-03-01T10:00:00Z",
	})
	srv.Handle(http.MethodGet, "/submission/pending", http.StatusOK, []map[string]any{{"id": "s-1", "status": 0}})
	svc := submissions.NewService(srv.Client())
	ctx := context.Background()

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, submissions.StatusPending, pending[0].Status)

	sub, err := svc.Review(ctx, "s-1", pending[0].Status, submissions.Approve(9, "Great"))
	require.NoError(t, err)
	require.True(t, sub.Reviewed())
	require.Equal(t, 9, *sub.Score)

	var sent submissions.ReviewRequest
	srv.Last().JSON(t, &sent)
	require.Equal(t, submissions.StatusApproved, sent.Status)
	require.Equal(t, "Great", sent.Feedback)

	_, err = svc.Review(ctx, "s-1", submissions.StatusApproved, submissions.Reject("again"))
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.Len(t, srv.Requests(), 2)
}
