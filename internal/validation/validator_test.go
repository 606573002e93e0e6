package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/apperr"
)

type billingRequest struct {
	Month string `json:"month" validate:"required,yyyymm"`
	Email string `json:"email" validate:"omitempty,email"`
	Kind  string `json:"kind" validate:"oneof=rent maintenance"`
	Name  string `json:"name" validate:"min=3"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Validate(&billingRequest{Month: "2025-06", Kind: "rent", Name: "abc"}))

	tests := []struct {
		name string
		req  billingRequest
		want string
	}{
		{"missing month", billingRequest{Kind: "rent", Name: "abc"}, "month is required"},
		{"bad month", billingRequest{Month: "2025-13", Kind: "rent", Name: "abc"}, "month must be a month in YYYY-MM format"},
		{"bad email", billingRequest{Month: "2025-06", Email: "nope", Kind: "rent", Name: "abc"}, "email must be a valid email address"},
		{"bad kind", billingRequest{Month: "2025-06", Kind: "water", Name: "abc"}, "kind must be one of: rent, maintenance"},
		{"short name", billingRequest{Month: "2025-06", Kind: "rent", Name: "ab"}, "name must be at least 3 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
			assert.Equal(t, tt.want, apperr.From(err).Message)
		})
	}
}

func TestValidateReportsAllFields(t *testing.T) {
	err := NewValidator().Validate(&billingRequest{})
	require.Error(t, err)

	msg := apperr.From(err).Message
	assert.Contains(t, msg, "month is required")
	assert.Contains(t, msg, "kind must be one of")
	assert.Contains(t, msg, "name must be at least 3 characters")
}
