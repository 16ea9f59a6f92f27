package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email    string    `validate:"required,email"`
	Phone    string    `validate:"phone"`
	Kind     string    `validate:"itemtype"`
	Slug     string    `validate:"slug"`
	Color    string    `validate:"hexcolor"`
	Count    int       `validate:"positive"`
	StartsAt time.Time `validate:"future"`
}

func valid() sample {
	return sample{
		Email:    "sara@example.com",
		Phone:    "09121234567",
		Kind:     "presentation",
		Slug:     "mobile-app",
		Color:    "#1a2b3c",
		Count:    2,
		StartsAt: time.Now().Add(time.Hour),
	}
}

func TestValidatePasses(t *testing.T) {
	assert.NoError(t, Validate(context.Background(), valid()))
}

func TestValidateReportsFirstFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *sample)
		want   string
	}{
		{"missing email", func(s *sample) { s.Email = "" }, "Field is required: sample.Email"},
		{"bad email", func(s *sample) { s.Email = "nope" }, "Invalid format: sample.Email"},
		{"landline", func(s *sample) { s.Phone = "02188888888" }, "Invalid format: sample.Phone"},
		{"unknown item", func(s *sample) { s.Kind = "workshop" }, "Invalid format: sample.Kind"},
		{"slug with spaces", func(s *sample) { s.Slug = "Mobile App" }, "Invalid format: sample.Slug"},
		{"named color", func(s *sample) { s.Color = "red" }, "Invalid format: sample.Color"},
		{"zero count", func(s *sample) { s.Count = 0 }, "Value must be positive: sample.Count"},
		{"past date", func(s *sample) { s.StartsAt = time.Now().Add(-time.Hour) }, "Date must be in the future: sample.StartsAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := Validate(context.Background(), s)
			if assert.Error(t, err) {
				assert.Equal(t, tt.want, err.Error())
			}
		})
	}
}

func TestPhoneAcceptsInternationalPrefix(t *testing.T) {
	s := valid()
	s.Phone = "+989121234567"
	assert.NoError(t, Validate(context.Background(), s))
}
