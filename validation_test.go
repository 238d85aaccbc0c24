package identity_test

import (
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "strong password", password: "Str0ngPW!"},
		{name: "letters and digits", password: "goodpass1"},
		{name: "letters and symbol", password: "goodpass!"},
		{name: "empty", password: "", wantErr: true},
		{name: "too short", password: "short1", wantErr: true},
		{name: "letters only", password: "alllettersnodigit", wantErr: true},
		{name: "digits only", password: "12345678", wantErr: true},
		{name: "symbols only", password: "!!!!!!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.ValidatePasswordStrength(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, identity.HasTextCode(err, identity.TextCodeWeakPassword))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain digits", raw: "5551234567", want: "5551234567"},
		{name: "leading plus", raw: "+15551234567", want: "15551234567"},
		{name: "spaces and dashes", raw: "+1 555-123-4567", want: "15551234567"},
		{name: "surrounding whitespace", raw: "  555 123 4567  ", want: "5551234567"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.NormalizePhone(tt.raw))
		})
	}
}
