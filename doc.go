// Package identity implements the registration, verification, and credential
// core of a small multi-user application: email OTP sign-up, password
// lifecycle (initial set and reset), and bearer session issuance.
//
// Account lifecycle:
//   - Accounts move through pending-verification, verified-pending-password,
//     and active states driven by the email_verified and is_active flags.
//     Registrar centralizes every transition; repositories persist accounts
//     and OTP records via Bun inside request-scoped transactions.
//   - OTP codes are issued by OTPCodec, salted and hashed before storage, and
//     expire lazily. Resending never invalidates a still-live code.
//
// Tokens:
//   - ActionTokenIssuer mints short-lived purpose-bound tokens that bridge a
//     successful OTP verification to the password-setting step. Decode
//     collapses every failure into an empty claim set so callers cannot tell
//     an expired token from a forged one.
//   - SessionTokenIssuer mints bearer tokens for authenticated requests;
//     Auther resolves them back to an Account on every request.
//
// Mail:
//   - Mailer is an injected capability. When no transport is configured and
//     the development bypass is enabled, the raw OTP code is returned to the
//     caller instead of being mailed. The bypass defaults to off.
package identity
