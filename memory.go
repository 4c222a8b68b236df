package demobank

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var errTxClosed = errors.New("unit of work already closed")

// MemoryEndpoint implements Repository entirely in process. It backs tests
// and dev mode, where running Postgres would be overkill.
//
// Locking model: every account row carries its own mutex, acquired by
// AccountForUpdate and held until the unit of work commits or rolls back,
// mirroring a row-level SELECT ... FOR UPDATE. The store-wide mutex guards
// the maps and row contents; it is only ever held briefly and never while
// waiting on a row, so it cannot participate in a lock cycle. Commit
// applies all staged writes of a unit of work under the store mutex, which
// makes a multi-account commit visible to readers atomically.
type MemoryEndpoint struct {
	mu          sync.RWMutex
	accounts    map[snowflake.ID]*memRow
	customers   map[snowflake.ID]Customer
	byNumber    map[string]snowflake.ID
	byEmail     map[string]snowflake.ID
	ledger      map[snowflake.ID][]Entry
	nextEntryID int64
}

type memRow struct {
	mu   sync.Mutex
	acct Account
}

var (
	_ Repository = (*MemoryEndpoint)(nil)
)

func NewMemoryEndpoint() *MemoryEndpoint {
	return &MemoryEndpoint{
		accounts:  make(map[snowflake.ID]*memRow),
		customers: make(map[snowflake.ID]Customer),
		byNumber:  make(map[string]snowflake.ID),
		byEmail:   make(map[string]snowflake.ID),
		ledger:    make(map[snowflake.ID][]Entry),
	}
}

func (m *MemoryEndpoint) CreateCustomer(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[c.Email]; ok {
		return ErrBadRequest{Fields: map[string]string{"email": "already registered"}}
	}
	m.customers[c.ID] = *c
	m.byEmail[c.Email] = c.ID
	return nil
}

func (m *MemoryEndpoint) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound{ID: id}
	}
	return &c, nil
}

func (m *MemoryEndpoint) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrCustomerNotFound{Email: email}
	}
	c := m.customers[id]
	return &c, nil
}

func (m *MemoryEndpoint) SaveCustomer(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return ErrCustomerNotFound{ID: c.ID}
	}
	m.customers[c.ID] = *c
	return nil
}

func (m *MemoryEndpoint) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound{ID: id}
	}
	acct := row.acct
	return &acct, nil
}

func (m *MemoryEndpoint) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNumber[number]
	if !ok {
		return nil, ErrAccountNotFound{}
	}
	acct := m.accounts[id].acct
	return &acct, nil
}

func (m *MemoryEndpoint) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accts []Account
	for _, row := range m.accounts {
		if row.acct.CustomerID == customerID {
			accts = append(accts, row.acct)
		}
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].ID < accts[j].ID })
	return accts, nil
}

func (m *MemoryEndpoint) ListAccounts(ctx context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accts := make([]Account, 0, len(m.accounts))
	for _, row := range m.accounts {
		accts = append(accts, row.acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].ID < accts[j].ID })
	return accts, nil
}

// ListEntries returns the account's ledger newest first.
func (m *MemoryEndpoint) ListEntries(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.ledger[acctID]
	entries := make([]Entry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		entries = append(entries, stored[i])
	}
	return entries, nil
}

// ListAllEntries returns every ledger entry across accounts, newest first.
func (m *MemoryEndpoint) ListAllEntries(ctx context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []Entry
	for _, stored := range m.ledger {
		entries = append(entries, stored...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

func (m *MemoryEndpoint) Begin(ctx context.Context) (Tx, error) {
	return &memTx{
		store: m,
		dirty: make(map[snowflake.ID]*Account),
	}, nil
}

// memTx stages writes until Commit. Row mutexes acquired through
// AccountForUpdate are recorded in acquisition order and released on
// Commit/Rollback only, so the engine's ordered acquisition carries
// through to release.
type memTx struct {
	store   *MemoryEndpoint
	locked  []*memRow
	dirty   map[snowflake.ID]*Account
	created []Account
	entries []Entry
	done    bool
}

func (t *memTx) AccountForUpdate(ctx context.Context, id snowflake.ID) (*Account, error) {
	if t.done {
		return nil, errTxClosed
	}
	if staged, ok := t.dirty[id]; ok {
		return staged, nil
	}
	t.store.mu.RLock()
	row, ok := t.store.accounts[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound{ID: id}
	}

	// Blocks until the row is free. The engine acquires rows in ascending
	// id order, which rules out wait cycles.
	row.mu.Lock()
	t.locked = append(t.locked, row)

	t.store.mu.RLock()
	acct := row.acct
	t.store.mu.RUnlock()
	staged := &acct
	t.dirty[id] = staged
	return staged, nil
}

func (t *memTx) CreateAccount(ctx context.Context, a *Account) error {
	if t.done {
		return errTxClosed
	}
	t.store.mu.RLock()
	_, dupID := t.store.accounts[a.ID]
	_, dupNum := t.store.byNumber[a.Number]
	t.store.mu.RUnlock()
	if dupID || dupNum {
		return ErrBadRequest{Fields: map[string]string{"accountNumber": "already in use"}}
	}
	t.created = append(t.created, *a)
	return nil
}

func (t *memTx) SaveAccount(ctx context.Context, a *Account) error {
	if t.done {
		return errTxClosed
	}
	if _, ok := t.dirty[a.ID]; !ok {
		return ErrAccountNotFound{ID: a.ID}
	}
	cp := *a
	t.dirty[a.ID] = &cp
	return nil
}

func (t *memTx) AppendEntry(ctx context.Context, e *Entry) error {
	if t.done {
		return errTxClosed
	}
	cp := *e
	if cp.Time.IsZero() {
		cp.Time = time.Now().UTC()
	}
	t.entries = append(t.entries, cp)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.store.mu.Lock()
	// The stage-time uniqueness check in CreateAccount cannot see other
	// uncommitted units of work, so staged creations are checked again
	// before anything is applied.
	for _, a := range t.created {
		_, dupID := t.store.accounts[a.ID]
		_, dupNum := t.store.byNumber[a.Number]
		if dupID || dupNum {
			t.store.mu.Unlock()
			t.release()
			return ErrBadRequest{Fields: map[string]string{"accountNumber": "already in use"}}
		}
	}
	for _, a := range t.created {
		t.store.accounts[a.ID] = &memRow{acct: a}
		t.store.byNumber[a.Number] = a.ID
	}
	for id, staged := range t.dirty {
		if row, ok := t.store.accounts[id]; ok {
			row.acct = *staged
		}
	}
	for _, e := range t.entries {
		t.store.nextEntryID++
		e.ID = t.store.nextEntryID
		t.store.ledger[e.AccountID] = append(t.store.ledger[e.AccountID], e)
	}
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].mu.Unlock()
	}
	t.locked = nil
	t.done = true
}
