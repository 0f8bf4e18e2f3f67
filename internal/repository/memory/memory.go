// Package memory provides an in-memory repository.Store used by tests. It
// honors the same unit-of-work contract as the postgres store: WithinTx
// snapshots the dataset and restores it when the closure fails, so rollback
// behavior is observable without a database.
package memory

import (
	"context"
	"sync"

	"lexpay-backend/internal/domain"
	"lexpay-backend/internal/repository"
)

type dataset struct {
	trustAccounts  map[string]domain.TrustAccount
	clientLedgers  map[string]domain.ClientLedger
	transactions   map[string]domain.TrustTransaction
	plans          map[string]domain.PaymentPlan
	installments   map[string]domain.Installment
	applications   map[string]domain.FinancingApplication
	invoices       map[string]domain.Invoice
	timeEntries    map[string]domain.TimeEntry
	expenseEntries map[string]domain.ExpenseEntry
	reports        map[string]domain.ReconciliationReport

	// insertion order tiebreak for listings
	seq     int64
	seqByID map[string]int64
}

func newDataset() *dataset {
	return &dataset{
		trustAccounts:  make(map[string]domain.TrustAccount),
		clientLedgers:  make(map[string]domain.ClientLedger),
		transactions:   make(map[string]domain.TrustTransaction),
		plans:          make(map[string]domain.PaymentPlan),
		installments:   make(map[string]domain.Installment),
		applications:   make(map[string]domain.FinancingApplication),
		invoices:       make(map[string]domain.Invoice),
		timeEntries:    make(map[string]domain.TimeEntry),
		expenseEntries: make(map[string]domain.ExpenseEntry),
		reports:        make(map[string]domain.ReconciliationReport),
		seqByID:        make(map[string]int64),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	c.seq = d.seq
	for k, v := range d.trustAccounts {
		c.trustAccounts[k] = v
	}
	for k, v := range d.clientLedgers {
		c.clientLedgers[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.plans {
		c.plans[k] = v
	}
	for k, v := range d.installments {
		c.installments[k] = v
	}
	for k, v := range d.applications {
		c.applications[k] = v
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.timeEntries {
		c.timeEntries[k] = v
	}
	for k, v := range d.expenseEntries {
		c.expenseEntries[k] = v
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	for k, v := range d.seqByID {
		c.seqByID[k] = v
	}
	return c
}

func (d *dataset) track(id string) {
	d.seq++
	d.seqByID[id] = d.seq
}

// Store is an in-memory repository.Store safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data *dataset
	inTx bool
}

func NewStore() *Store {
	return &Store{data: newDataset()}
}

// lock is a no-op inside a transaction: the enclosing WithinTx already holds
// the store mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Trust() repository.TrustRepository {
	return &trustRepo{s: s}
}

func (s *Store) PaymentPlans() repository.PaymentPlanRepository {
	return &planRepo{s: s}
}

func (s *Store) Financing() repository.FinancingRepository {
	return &financingRepo{s: s}
}

func (s *Store) Invoices() repository.InvoiceRepository {
	return &invoiceRepo{s: s}
}

func (s *Store) Billing() repository.BillingRepository {
	return &billingRepo{s: s}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{data: s.data, inTx: true}

	if err := fn(tx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}
