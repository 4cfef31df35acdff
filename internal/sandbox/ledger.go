package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Deal codes returned by the sandbox.
const (
	DealSuccess           = "0000"
	DealInvalidField      = "E1000"
	DealInsufficientFunds = "E1001"
	DealDuplicateOrder    = "E1002"
	DealUnknownAccount    = "E1003"
	DealUnknownOrder      = "E1004"
)

// Account is a sandbox account. Balances are held in fen.
type Account struct {
	No      string
	Name    string
	Balance int64
}

// Transfer is a completed single transfer.
type Transfer struct {
	OrderNo   string
	BankSeqNo string
	WorkDate  string
	PayAcctNo string
	RcvAcctNo string
	Amount    int64
}

// Ledger is an in-memory account store, safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	transfers map[string]*Transfer
}

// NewLedger returns a ledger holding accounts.
func NewLedger(accounts ...Account) *Ledger {
	l := &Ledger{
		accounts:  make(map[string]*Account),
		transfers: make(map[string]*Transfer),
	}
	for _, a := range accounts {
		l.accounts[a.No] = &a
	}
	return l
}

// Account returns a copy of the account.
func (l *Ledger) Account(no string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[no]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// Transfer returns a completed transfer by order number.
func (l *Ledger) Transfer(orderNo string) (Transfer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.transfers[orderNo]
	if !ok {
		return Transfer{}, false
	}
	return *t, true
}

// ledgerError carries the deal code of a rejected transfer.
type ledgerError struct {
	dealCode string
	msg      string
}

func (e *ledgerError) Error() string { return e.msg }

// debit books t against the paying account. Receiving accounts are credited only when
// they are held by the sandbox.
func (l *Ledger) debit(t Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.Amount <= 0 {
		return &ledgerError{DealInvalidField, "transAmt must be positive"}
	}
	if _, ok := l.transfers[t.OrderNo]; ok {
		return &ledgerError{DealDuplicateOrder, fmt.Sprintf("order %s already exists", t.OrderNo)}
	}
	payer, ok := l.accounts[t.PayAcctNo]
	if !ok {
		return &ledgerError{DealUnknownAccount, fmt.Sprintf("account %s not found", t.PayAcctNo)}
	}
	if payer.Balance < t.Amount {
		return &ledgerError{DealInsufficientFunds, "insufficient funds"}
	}

	payer.Balance -= t.Amount
	if payee, ok := l.accounts[t.RcvAcctNo]; ok {
		payee.Balance += t.Amount
	}
	l.transfers[t.OrderNo] = &t
	return nil
}

// parseAmount converts a yuan amount with at most two decimals to fen.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	yuan, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || yuan < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if yuan > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("amount %q is too large", s)
	}
	fen, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || fen < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return yuan*100 + fen, nil
}

func formatAmount(fen int64) string {
	sign := ""
	if fen < 0 {
		sign = "-"
		fen = -fen
	}
	return fmt.Sprintf("%s%d.%02d", sign, fen/100, fen%100)
}
