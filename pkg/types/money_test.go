package types

import "testing"

func TestMoneyFromCents(t *testing.T) {
	cases := []struct {
		name  string
		cents int64
		want  string
	}{
		{name: "whole dollars", cents: 2500, want: "25.00"},
		{name: "with cents", cents: 1999, want: "19.99"},
		{name: "zero", cents: 0, want: "0.00"},
		{name: "negative", cents: -450, want: "-4.50"},
		{name: "sub dollar", cents: 7, want: "0.07"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MoneyFromCents(tc.cents, "USD")
			if got.Amount != tc.want {
				t.Fatalf("MoneyFromCents(%d) = %q, want %q", tc.cents, got.Amount, tc.want)
			}
			if got.Currency != "USD" {
				t.Fatalf("currency = %q, want USD", got.Currency)
			}
		})
	}
}

func TestCentsFromAmount(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		want    int64
		wantErr bool
	}{
		{name: "two decimals", amount: "19.99", want: 1999},
		{name: "no decimals", amount: "25", want: 2500},
		{name: "one decimal", amount: "4.5", want: 450},
		{name: "zero", amount: "0", want: 0},
		{name: "three decimals rejected", amount: "1.999", wantErr: true},
		{name: "not a number", amount: "ten", wantErr: true},
		{name: "empty", amount: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CentsFromAmount(tc.amount)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("CentsFromAmount(%q) expected error", tc.amount)
				}
				return
			}
			if err != nil {
				t.Fatalf("CentsFromAmount(%q): %v", tc.amount, err)
			}
			if got != tc.want {
				t.Fatalf("CentsFromAmount(%q) = %d, want %d", tc.amount, got, tc.want)
			}
		})
	}
}
