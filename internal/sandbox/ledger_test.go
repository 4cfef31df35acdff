package sandbox

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "100", want: 10000},
		{in: "100.5", want: 10050},
		{in: "0.01", want: 1},
		{in: " 12.34 ", want: 1234},
		{in: "1.234", wantErr: true},
		{in: "1.", wantErr: true},
		{in: ".5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1.-5", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "92233720368547757.99", want: math.MaxInt64 - 8},
		{in: "92233720368547758", wantErr: true},
		{in: "100000000000000000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	for fen, want := range map[int64]string{0: "0.00", 1: "0.01", 10050: "100.50", -250: "-2.50"} {
		if got := formatAmount(fen); got != want {
			t.Errorf("formatAmount(%d) = %q, want %q", fen, got, want)
		}
	}
}

func TestLedgerDebit(t *testing.T) {
	l := NewLedger(Account{No: "a", Balance: 500}, Account{No: "b"})

	if err := l.debit(Transfer{OrderNo: "1", PayAcctNo: "a", RcvAcctNo: "b", Amount: 200}); err != nil {
		t.Fatalf("debit() error: %v", err)
	}

	tests := []struct {
		name string
		t    Transfer
		want string
	}{
		{"duplicate order", Transfer{OrderNo: "1", PayAcctNo: "a", Amount: 1}, DealDuplicateOrder},
		{"unknown payer", Transfer{OrderNo: "2", PayAcctNo: "x", Amount: 1}, DealUnknownAccount},
		{"insufficient funds", Transfer{OrderNo: "3", PayAcctNo: "a", Amount: 301}, DealInsufficientFunds},
		{"negative amount", Transfer{OrderNo: "4", PayAcctNo: "a", RcvAcctNo: "b", Amount: -8446744073709551616}, DealInvalidField},
		{"zero amount", Transfer{OrderNo: "5", PayAcctNo: "a", RcvAcctNo: "b"}, DealInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.debit(tt.t)
			le, ok := err.(*ledgerError)
			if !ok || le.dealCode != tt.want {
				t.Fatalf("got %v, want deal code %s", err, tt.want)
			}
		})
	}

	a, _ := l.Account("a")
	b, _ := l.Account("b")
	if a.Balance != 300 || b.Balance != 200 {
		t.Errorf("balances a=%d b=%d", a.Balance, b.Balance)
	}
	if _, ok := l.Transfer("1"); !ok {
		t.Error("transfer not recorded")
	}
}
