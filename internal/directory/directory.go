package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
)

// ErrContactNotFound is returned for unknown contact ids or numbers
var ErrContactNotFound = errors.New("contact not found")

// Directory is the contact store the engine consults. The engine never
// creates or edits contacts; it resolves them and stamps LastCalled.
type Directory interface {
	ResolveContact(ctx context.Context, contactID string) (types.Contact, error)
	FindByPhone(ctx context.Context, phone string) (types.Contact, error)
	StampLastCalled(ctx context.Context, contactID string, at time.Time) error
}

// Memory is an in-process Directory
type Memory struct {
	mu       sync.RWMutex
	contacts map[string]*types.Contact // contactID -> contact
	byPhone  map[string]string         // E.164 -> contactID
}

// NewMemory creates a directory holding contacts. Contacts with an
// invalid phone number are rejected.
func NewMemory(contacts []types.Contact) (*Memory, error) {
	m := &Memory{
		contacts: make(map[string]*types.Contact),
		byPhone:  make(map[string]string),
	}
	for _, c := range contacts {
		if err := m.Put(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Put inserts or replaces a contact
func (m *Memory) Put(c types.Contact) error {
	if c.ContactID == "" {
		return fmt.Errorf("contact id is required")
	}
	phone, err := NormalizePhone(c.Phone)
	if err != nil {
		return fmt.Errorf("contact %s: %w", c.ContactID, err)
	}
	c.Phone = phone
	if c.Status == "" {
		c.Status = types.ContactActive
	}
	if c.Origin == "" {
		c.Origin = types.OriginManual
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.contacts[c.ContactID]; ok {
		delete(m.byPhone, old.Phone)
	}
	m.contacts[c.ContactID] = &c
	m.byPhone[phone] = c.ContactID
	return nil
}

// ResolveContact returns a copy of the contact
func (m *Memory) ResolveContact(ctx context.Context, contactID string) (types.Contact, error) {
	if err := ctx.Err(); err != nil {
		return types.Contact{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[contactID]
	if !ok {
		return types.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, contactID)
	}
	return copyContact(c), nil
}

// FindByPhone looks a contact up by number in any common notation
func (m *Memory) FindByPhone(ctx context.Context, phone string) (types.Contact, error) {
	if err := ctx.Err(); err != nil {
		return types.Contact{}, err
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return types.Contact{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPhone[normalized]
	if !ok {
		return types.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, normalized)
	}
	return copyContact(m.contacts[id]), nil
}

// StampLastCalled records when the contact was last called. Older
// timestamps never overwrite newer ones.
func (m *Memory) StampLastCalled(ctx context.Context, contactID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[contactID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrContactNotFound, contactID)
	}
	if c.LastCalled == nil || at.After(*c.LastCalled) {
		t := at
		c.LastCalled = &t
	}
	return nil
}

// List returns all contacts ordered by id
func (m *Memory) List() []types.Contact {
	m.mu.RLock()
	out := make([]types.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, copyContact(c))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ContactID < out[j].ContactID })
	return out
}

func copyContact(c *types.Contact) types.Contact {
	out := *c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.LastCalled != nil {
		t := *c.LastCalled
		out.LastCalled = &t
	}
	return out
}

// NormalizePhone converts a number to E.164. Separators are stripped and
// an international 00 prefix becomes +.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' || r == '/':
		default:
			return "", fmt.Errorf("invalid phone number %q", raw)
		}
	}

	n := b.String()
	if strings.HasPrefix(n, "00") {
		n = "+" + n[2:]
	}
	if !strings.HasPrefix(n, "+") {
		return "", fmt.Errorf("phone number %q lacks a country code", raw)
	}
	digits := len(n) - 1
	if digits < 8 || digits > 15 || n[1] == '0' {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return n, nil
}
