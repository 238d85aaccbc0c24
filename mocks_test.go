package identity_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/uptrace/bun"
)

// testConfig implements identity.Config with fixed values.
type testConfig struct {
	signingKey     string
	issuer         string
	otpMinutes     int
	actionMinutes  int
	sessionMinutes int
	devBypass      bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:     "test-signing-secret",
		issuer:         "identity-test",
		otpMinutes:     10,
		actionMinutes:  15,
		sessionMinutes: 60,
		devBypass:      true,
	}
}

func (c *testConfig) GetSigningKey() string          { return c.signingKey }
func (c *testConfig) GetSigningMethod() string       { return "HS256" }
func (c *testConfig) GetIssuer() string              { return c.issuer }
func (c *testConfig) GetOTPExpiration() int          { return c.otpMinutes }
func (c *testConfig) GetActionTokenExpiration() int  { return c.actionMinutes }
func (c *testConfig) GetSessionTokenExpiration() int { return c.sessionMinutes }
func (c *testConfig) GetOTPDevBypass() bool          { return c.devBypass }

// fakeClock is a settable time source shared by codec, issuers, and tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memAccounts is an in-memory identity.Accounts. Reads hand out copies so a
// caller mutation only lands after an explicit update, mirroring a real store.
type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*identity.Account
}

var _ identity.Accounts = (*memAccounts)(nil)

func newMemAccounts() *memAccounts {
	return &memAccounts{rows: map[int64]*identity.Account{}}
}

func (m *memAccounts) GetByID(ctx context.Context, id int64) (*identity.Account, error) {
	return m.GetByIDTx(ctx, nil, id)
}

func (m *memAccounts) GetByIDTx(_ context.Context, _ bun.IDB, id int64) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[id]; ok {
		return copyAccount(row), nil
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memAccounts) GetByEmailTx(_ context.Context, _ bun.IDB, email string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if strings.EqualFold(row.Email, strings.TrimSpace(email)) {
			return copyAccount(row), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memAccounts) GetByUsernameTx(_ context.Context, _ bun.IDB, username string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Username == strings.TrimSpace(username) {
			return copyAccount(row), nil
		}
	}
	return nil, identity.ErrAccountNotFound
}

func (m *memAccounts) GetByIdentifier(ctx context.Context, identifier string) (*identity.Account, error) {
	return m.GetByIdentifierTx(ctx, nil, identifier)
}

func (m *memAccounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*identity.Account, error) {
	if strings.Contains(identifier, "@") {
		if row, err := m.GetByEmailTx(ctx, tx, identifier); err == nil {
			return row, nil
		}
	}
	return m.GetByUsernameTx(ctx, tx, identifier)
}

func (m *memAccounts) CreateTx(_ context.Context, _ bun.IDB, record *identity.Account) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if strings.EqualFold(row.Email, record.Email) || row.Username == record.Username {
			return nil, identity.ErrAccountExists
		}
	}

	m.nextID++
	record.ID = m.nextID
	m.rows[record.ID] = copyAccount(record)
	return record, nil
}

func (m *memAccounts) UpdateTx(_ context.Context, _ bun.IDB, record *identity.Account) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[record.ID]; !ok {
		return nil, identity.ErrAccountNotFound
	}

	for _, row := range m.rows {
		if row.ID == record.ID {
			continue
		}
		if strings.EqualFold(row.Email, record.Email) || row.Username == record.Username {
			return nil, identity.ErrAccountExists
		}
	}

	m.rows[record.ID] = copyAccount(record)
	return record, nil
}

func (m *memAccounts) SetPasswordTx(_ context.Context, _ bun.IDB, id int64, passwordHash string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return identity.ErrAccountNotFound
	}

	row.PasswordHash = passwordHash
	row.IsActive = active
	return nil
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func copyAccount(a *identity.Account) *identity.Account {
	clone := *a
	return &clone
}

// memOTPs is an in-memory identity.EmailOTPs.
type memOTPs struct {
	mu     sync.Mutex
	nextID int64
	rows   []*identity.EmailOTP
}

var _ identity.EmailOTPs = (*memOTPs)(nil)

func newMemOTPs() *memOTPs {
	return &memOTPs{}
}

func (m *memOTPs) CreateTx(_ context.Context, _ bun.IDB, record *identity.EmailOTP) (*identity.EmailOTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID
	clone := *record
	m.rows = append(m.rows, &clone)
	return record, nil
}

func (m *memOTPs) LiveForAccountTx(_ context.Context, _ bun.IDB, accountID int64, now time.Time) ([]*identity.EmailOTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var live []*identity.EmailOTP
	// rows append in id order, walk backwards for newest first
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if row.AccountID == accountID && row.Live(now) {
			clone := *row
			live = append(live, &clone)
		}
	}
	return live, nil
}

func (m *memOTPs) ConsumeTx(_ context.Context, _ bun.IDB, record *identity.EmailOTP, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.ID != record.ID {
			continue
		}
		if row.ConsumedAt != nil {
			return identity.ErrOTPInvalid
		}
		row.ConsumedAt = &at
		record.ConsumedAt = &at
		return nil
	}
	return identity.ErrOTPInvalid
}

func (m *memOTPs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memRepo bundles the fakes behind identity.RepositoryManager. RunInTx has no
// rollback, the fakes only persist through explicit writes.
type memRepo struct {
	accounts *memAccounts
	otps     *memOTPs
}

var _ identity.RepositoryManager = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: newMemAccounts(),
		otps:     newMemOTPs(),
	}
}

func (m *memRepo) Validate() error {
	if m.accounts == nil || m.otps == nil {
		return errors.New("repositories should be initialized")
	}
	return nil
}

func (m *memRepo) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

func (m *memRepo) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

func (m *memRepo) Accounts() identity.Accounts { return m.accounts }
func (m *memRepo) OTPs() identity.EmailOTPs    { return m.otps }

// recordingMailer captures dispatched codes and can simulate an outage.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

type sentMail struct {
	to   string
	code string
}

func (m *recordingMailer) SendOTP(_ context.Context, toAddress, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	m.sent = append(m.sent, sentMail{to: toAddress, code: code})
	return nil
}

func (m *recordingMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}
