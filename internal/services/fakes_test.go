package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"phoneotp/internal/models"
	"phoneotp/internal/utils"
)

type memStore struct {
	mu   sync.Mutex
	rows []*models.PhoneOTP
	seq  int

	existsErr error
	createErr error
	latestErr error
	deleteErr error

	// beforeExists, when set, runs inside ExistsSince before the lookup.
	beforeExists func()
}

func (m *memStore) Create(_ context.Context, otp *models.PhoneOTP) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	otp.ID = "row-" + strconv.Itoa(m.seq)
	cp := *otp
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memStore) ExistsSince(_ context.Context, phone string, since time.Time) (bool, error) {
	if m.beforeExists != nil {
		m.beforeExists()
	}
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Phone == phone && !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetLatestByPhone(_ context.Context, phone string) (*models.PhoneOTP, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []*models.PhoneOTP
	for _, r := range m.rows {
		if r.Phone == phone {
			mine = append(mine, r)
		}
	}
	if len(mine) == 0 {
		return nil, nil
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	cp := *mine[0]
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) count(phone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Phone == phone {
			n++
		}
	}
	return n
}

func (m *memStore) latest(phone string) *models.PhoneOTP {
	otp, _ := m.GetLatestByPhone(context.Background(), phone)
	return otp
}

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSender) SendSMS(_ context.Context, to, text string) (*utils.SendSMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, to+"|"+text)
	if f.err != nil {
		return nil, f.err
	}
	return &utils.SendSMSResponse{MessageID: "M" + strconv.Itoa(len(f.calls)), To: to}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeProfiles map[string]string

func (p fakeProfiles) AccountIDByPhone(_ context.Context, phone string) (string, error) {
	if phone == "01000000000" {
		return "", errors.New("profiles unavailable")
	}
	return p[phone], nil
}

type fakeIdentities map[string]string

func (f fakeIdentities) EmailByAccountID(_ context.Context, id string) (string, error) {
	if id == "broken" {
		return "", errors.New("admin api down")
	}
	return f[id], nil
}

func newTestOTPService(store *memStore, sender *fakeSender, clock *fakeClock, opts OTPOptions) *OTPService {
	s := NewOTPService(store, sender, nil, opts)
	s.Now = clock.Now
	return s
}
