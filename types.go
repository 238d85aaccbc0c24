package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer delivers a plaintext one-time code to an address. Implementations
// report transport failures, retries belong to the gateway not to this core.
type Mailer interface {
	SendOTP(ctx context.Context, toAddress, code string) error
}

// Config holds the options the identity core recognizes. Durations are
// expressed in minutes to match the persisted configuration surface.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetOTPExpiration() int
	GetActionTokenExpiration() int
	GetSessionTokenExpiration() int
	GetOTPDevBypass() bool
}

const (
	// DefaultOTPExpiration is the OTP time-to-live in minutes.
	DefaultOTPExpiration = 10
	// DefaultActionTokenExpiration is the action token lifetime in minutes.
	DefaultActionTokenExpiration = 15
	// DefaultSessionTokenExpiration is the session token lifetime in minutes.
	DefaultSessionTokenExpiration = 60
)

func minutesOrDefault(minutes, def int) time.Duration {
	if minutes <= 0 {
		minutes = def
	}
	return time.Duration(minutes) * time.Minute
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
