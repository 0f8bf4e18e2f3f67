package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"lexpay-backend/internal/domain"
)

type trustRepo struct {
	s *Store
}

func (r *trustRepo) CreateTrustAccount(ctx context.Context, account *domain.TrustAccount) error {
	defer r.s.lock()()
	r.s.data.trustAccounts[account.ID] = *account
	r.s.data.track(account.ID)
	return nil
}

func (r *trustRepo) GetTrustAccount(ctx context.Context, id string) (*domain.TrustAccount, error) {
	defer r.s.lock()()
	a, ok := r.s.data.trustAccounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: trust account %s", domain.ErrNotFound, id)
	}
	return &a, nil
}

func (r *trustRepo) ListTrustAccounts(ctx context.Context) ([]domain.TrustAccount, error) {
	defer r.s.lock()()
	var out []domain.TrustAccount
	for _, a := range r.s.data.trustAccounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *trustRepo) UpdateTrustAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	defer r.s.lock()()
	a, ok := r.s.data.trustAccounts[id]
	if !ok {
		return fmt.Errorf("%w: trust account %s", domain.ErrNotFound, id)
	}
	a.Balance = balance
	a.UpdatedAt = time.Now()
	r.s.data.trustAccounts[id] = a
	return nil
}

func (r *trustRepo) CreateClientLedger(ctx context.Context, ledger *domain.ClientLedger) error {
	defer r.s.lock()()
	r.s.data.clientLedgers[ledger.ID] = *ledger
	r.s.data.track(ledger.ID)
	return nil
}

func (r *trustRepo) GetClientLedger(ctx context.Context, id string) (*domain.ClientLedger, error) {
	defer r.s.lock()()
	l, ok := r.s.data.clientLedgers[id]
	if !ok {
		return nil, fmt.Errorf("%w: client ledger %s", domain.ErrNotFound, id)
	}
	return &l, nil
}

func (r *trustRepo) ListClientLedgers(ctx context.Context, trustAccountID string) ([]domain.ClientLedger, error) {
	defer r.s.lock()()
	var out []domain.ClientLedger
	for _, l := range r.s.data.clientLedgers {
		if l.TrustAccountID == trustAccountID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *trustRepo) UpdateClientLedgerBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	defer r.s.lock()()
	l, ok := r.s.data.clientLedgers[id]
	if !ok {
		return fmt.Errorf("%w: client ledger %s", domain.ErrNotFound, id)
	}
	l.Balance = balance
	l.UpdatedAt = time.Now()
	r.s.data.clientLedgers[id] = l
	return nil
}

func (r *trustRepo) CreateTransaction(ctx context.Context, tx *domain.TrustTransaction) error {
	defer r.s.lock()()
	r.s.data.transactions[tx.ID] = *tx
	r.s.data.track(tx.ID)
	return nil
}

func (r *trustRepo) ListTransactions(ctx context.Context, clientLedgerID string, from, to time.Time) ([]domain.TrustTransaction, error) {
	defer r.s.lock()()
	var out []domain.TrustTransaction
	for _, t := range r.s.data.transactions {
		if t.ClientLedgerID != clientLedgerID {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *trustRepo) SumTransactions(ctx context.Context, clientLedgerID string, asOf time.Time) (decimal.Decimal, error) {
	defer r.s.lock()()
	sum := decimal.Zero
	for _, t := range r.s.data.transactions {
		if t.ClientLedgerID == clientLedgerID && !t.CreatedAt.After(asOf) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (r *trustRepo) SaveReconciliationReport(ctx context.Context, report *domain.ReconciliationReport) error {
	defer r.s.lock()()
	r.s.data.reports[report.ID] = *report
	r.s.data.track(report.ID)
	return nil
}

type planRepo struct {
	s *Store
}

func (r *planRepo) CreatePlan(ctx context.Context, plan *domain.PaymentPlan) error {
	defer r.s.lock()()
	r.s.data.plans[plan.ID] = *plan
	r.s.data.track(plan.ID)
	return nil
}

func (r *planRepo) GetPlan(ctx context.Context, id string) (*domain.PaymentPlan, error) {
	defer r.s.lock()()
	p, ok := r.s.data.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment plan %s", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (r *planRepo) UpdatePlan(ctx context.Context, plan *domain.PaymentPlan) error {
	defer r.s.lock()()
	if _, ok := r.s.data.plans[plan.ID]; !ok {
		return fmt.Errorf("%w: payment plan %s", domain.ErrNotFound, plan.ID)
	}
	plan.UpdatedAt = time.Now()
	r.s.data.plans[plan.ID] = *plan
	return nil
}

func (r *planRepo) CreateInstallment(ctx context.Context, inst *domain.Installment) error {
	defer r.s.lock()()
	r.s.data.installments[inst.ID] = *inst
	r.s.data.track(inst.ID)
	return nil
}

func (r *planRepo) GetInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	defer r.s.lock()()
	i, ok := r.s.data.installments[id]
	if !ok {
		return nil, fmt.Errorf("%w: installment %s", domain.ErrNotFound, id)
	}
	return &i, nil
}

func (r *planRepo) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	defer r.s.lock()()
	if _, ok := r.s.data.installments[inst.ID]; !ok {
		return fmt.Errorf("%w: installment %s", domain.ErrNotFound, inst.ID)
	}
	inst.UpdatedAt = time.Now()
	r.s.data.installments[inst.ID] = *inst
	return nil
}

func (r *planRepo) ClaimInstallment(ctx context.Context, id string, from, to domain.InstallmentStatus) error {
	defer r.s.lock()()
	i, ok := r.s.data.installments[id]
	if !ok {
		return fmt.Errorf("%w: installment %s", domain.ErrNotFound, id)
	}
	if i.Status != from {
		return fmt.Errorf("%w: installment %s is no longer %s", domain.ErrInvalidState, id, from)
	}
	i.Status = to
	i.UpdatedAt = time.Now()
	r.s.data.installments[id] = i
	return nil
}

func (r *planRepo) ListInstallments(ctx context.Context, planID string) ([]domain.Installment, error) {
	defer r.s.lock()()
	var out []domain.Installment
	for _, i := range r.s.data.installments {
		if i.PlanID == planID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlannedDate.Equal(out[j].PlannedDate) {
			return out[i].PlannedDate.Before(out[j].PlannedDate)
		}
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *planRepo) ListDuePlans(ctx context.Context, merchantID string, asOf time.Time) ([]domain.PaymentPlan, error) {
	defer r.s.lock()()
	var out []domain.PaymentPlan
	for _, p := range r.s.data.plans {
		if p.MerchantID != merchantID || p.Status != domain.PlanStatusActive || !p.AutoProcess {
			continue
		}
		if p.NextPaymentDate == nil || p.NextPaymentDate.After(asOf) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextPaymentDate.Before(*out[j].NextPaymentDate)
	})
	return out, nil
}

func (r *planRepo) ListRetryableInstallments(ctx context.Context, merchantID string, asOf time.Time, maxRetries int) ([]domain.Installment, error) {
	defer r.s.lock()()
	var out []domain.Installment
	for _, i := range r.s.data.installments {
		if i.Status != domain.InstallmentStatusFailed || i.RetryCount > maxRetries {
			continue
		}
		if i.NextRetryDate == nil || i.NextRetryDate.After(asOf) {
			continue
		}
		p, ok := r.s.data.plans[i.PlanID]
		if !ok || p.MerchantID != merchantID || p.Status != domain.PlanStatusActive {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlannedDate.Before(out[j].PlannedDate)
	})
	return out, nil
}

func (r *planRepo) ListMerchantsWithDuePlans(ctx context.Context, asOf time.Time) ([]string, error) {
	defer r.s.lock()()
	seen := make(map[string]bool)
	for _, p := range r.s.data.plans {
		if p.Status == domain.PlanStatusActive && p.AutoProcess &&
			p.NextPaymentDate != nil && !p.NextPaymentDate.After(asOf) {
			seen[p.MerchantID] = true
		}
	}
	return sortedKeys(seen), nil
}

func (r *planRepo) ListMerchantsWithRetryableInstallments(ctx context.Context, asOf time.Time, maxRetries int) ([]string, error) {
	defer r.s.lock()()
	seen := make(map[string]bool)
	for _, i := range r.s.data.installments {
		if i.Status != domain.InstallmentStatusFailed || i.RetryCount > maxRetries {
			continue
		}
		if i.NextRetryDate == nil || i.NextRetryDate.After(asOf) {
			continue
		}
		if p, ok := r.s.data.plans[i.PlanID]; ok && p.Status == domain.PlanStatusActive {
			seen[p.MerchantID] = true
		}
	}
	return sortedKeys(seen), nil
}

type financingRepo struct {
	s *Store
}

func (r *financingRepo) CreateApplication(ctx context.Context, app *domain.FinancingApplication) error {
	defer r.s.lock()()
	r.s.data.applications[app.ID] = *app
	r.s.data.track(app.ID)
	return nil
}

func (r *financingRepo) GetApplication(ctx context.Context, id string) (*domain.FinancingApplication, error) {
	defer r.s.lock()()
	a, ok := r.s.data.applications[id]
	if !ok {
		return nil, fmt.Errorf("%w: financing application %s", domain.ErrNotFound, id)
	}
	return &a, nil
}

func (r *financingRepo) UpdateApplication(ctx context.Context, app *domain.FinancingApplication) error {
	defer r.s.lock()()
	if _, ok := r.s.data.applications[app.ID]; !ok {
		return fmt.Errorf("%w: financing application %s", domain.ErrNotFound, app.ID)
	}
	app.UpdatedAt = time.Now()
	r.s.data.applications[app.ID] = *app
	return nil
}

type invoiceRepo struct {
	s *Store
}

func (r *invoiceRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	defer r.s.lock()()
	r.s.data.invoices[inv.ID] = *inv
	r.s.data.track(inv.ID)
	return nil
}

func (r *invoiceRepo) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	defer r.s.lock()()
	i, ok := r.s.data.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %s", domain.ErrNotFound, id)
	}
	return &i, nil
}

func (r *invoiceRepo) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	defer r.s.lock()()
	if _, ok := r.s.data.invoices[inv.ID]; !ok {
		return fmt.Errorf("%w: invoice %s", domain.ErrNotFound, inv.ID)
	}
	inv.UpdatedAt = time.Now()
	r.s.data.invoices[inv.ID] = *inv
	return nil
}

type billingRepo struct {
	s *Store
}

func (r *billingRepo) CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	defer r.s.lock()()
	r.s.data.timeEntries[entry.ID] = *entry
	r.s.data.track(entry.ID)
	return nil
}

func (r *billingRepo) CreateExpenseEntry(ctx context.Context, entry *domain.ExpenseEntry) error {
	defer r.s.lock()()
	r.s.data.expenseEntries[entry.ID] = *entry
	r.s.data.track(entry.ID)
	return nil
}

func (r *billingRepo) ListUnbilledTimeEntries(ctx context.Context, merchantID string, ids []string) ([]domain.TimeEntry, error) {
	defer r.s.lock()()
	want := toSet(ids)
	var out []domain.TimeEntry
	for _, e := range r.s.data.timeEntries {
		if e.MerchantID == merchantID && want[e.ID] && e.Status == domain.EntryStatusActive && e.InvoiceID == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *billingRepo) ListUnbilledExpenseEntries(ctx context.Context, merchantID string, ids []string) ([]domain.ExpenseEntry, error) {
	defer r.s.lock()()
	want := toSet(ids)
	var out []domain.ExpenseEntry
	for _, e := range r.s.data.expenseEntries {
		if e.MerchantID == merchantID && want[e.ID] && e.Status == domain.EntryStatusActive && e.InvoiceID == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *billingRepo) MarkTimeEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	defer r.s.lock()()
	now := time.Now()
	for _, id := range ids {
		e, ok := r.s.data.timeEntries[id]
		if !ok || e.Status != domain.EntryStatusActive || e.InvoiceID != nil {
			continue
		}
		inv := invoiceID
		e.Status = domain.EntryStatusInvoiced
		e.InvoiceID = &inv
		e.UpdatedAt = now
		r.s.data.timeEntries[id] = e
	}
	return nil
}

func (r *billingRepo) MarkExpenseEntriesInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	defer r.s.lock()()
	now := time.Now()
	for _, id := range ids {
		e, ok := r.s.data.expenseEntries[id]
		if !ok || e.Status != domain.EntryStatusActive || e.InvoiceID != nil {
			continue
		}
		inv := invoiceID
		e.Status = domain.EntryStatusInvoiced
		e.InvoiceID = &inv
		e.UpdatedAt = now
		r.s.data.expenseEntries[id] = e
	}
	return nil
}

func (r *billingRepo) ListInvoiceTimeEntries(ctx context.Context, invoiceID string) ([]domain.TimeEntry, error) {
	defer r.s.lock()()
	var out []domain.TimeEntry
	for _, e := range r.s.data.timeEntries {
		if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func (r *billingRepo) ListInvoiceExpenseEntries(ctx context.Context, invoiceID string) ([]domain.ExpenseEntry, error) {
	defer r.s.lock()()
	var out []domain.ExpenseEntry
	for _, e := range r.s.data.expenseEntries {
		if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.seqByID[out[i].ID] < r.s.data.seqByID[out[j].ID]
	})
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
