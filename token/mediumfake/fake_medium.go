package mediumfake

import (
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/token"
)

var _ token.Medium = (*FakeMedium)(nil)

// Entry is a stored value with the expiry it was written with
type Entry struct {
	Value   string
	Expires time.Time
}

// FakeMedium is an in-memory token.Medium. Entries past their expiry read as absent.
type FakeMedium struct {
	lock    sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
	failGet error
	failSet error
}

func NewFakeMedium(now func() time.Time) *FakeMedium {
	if now == nil {
		now = time.Now
	}
	return &FakeMedium{
		entries: make(map[string]Entry),
		now:     now,
	}
}

func (m *FakeMedium) Set(name, value string, expires time.Time) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.entries[name] = Entry{Value: value, Expires: expires}
	return nil
}

func (m *FakeMedium) Get(name string) (*string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	e, ok := m.entries[name]
	if !ok || !m.now().Before(e.Expires) {
		return nil, nil
	}
	v := e.Value
	return &v, nil
}

func (m *FakeMedium) Remove(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, name)
	return nil
}

// Entry returns the raw entry, ignoring expiry
func (m *FakeMedium) Entry(name string) (Entry, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

// FailReads makes every Get return err
func (m *FakeMedium) FailReads(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failGet = err
}

// FailWrites makes every Set return err
func (m *FakeMedium) FailWrites(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failSet = err
}

var ErrFake = errors.New("fake medium failure")
