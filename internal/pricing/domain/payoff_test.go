package domain

import (
	"errors"
	"testing"
)

func TestNewOptionContract_Validation(t *testing.T) {
	valid := atmParams()
	tests := []struct {
		name   string
		mutate func(p *ContractParams)
	}{
		{"zero steps", func(p *ContractParams) { p.StepCount = 0 }},
		{"negative steps", func(p *ContractParams) { p.StepCount = -3 }},
		{"zero expiry", func(p *ContractParams) { p.Expiry = 0 }},
		{"negative expiry", func(p *ContractParams) { p.Expiry = -1 }},
		{"zero spot", func(p *ContractParams) { p.Spot = 0 }},
		{"negative volatility", func(p *ContractParams) { p.Volatility = -0.1 }},
		{"negative strike", func(p *ContractParams) { p.Strike = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewOptionContract(p)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	c := mustContract(t, valid)
	if c.Params() != valid {
		t.Fatalf("params round trip mismatch: %+v", c.Params())
	}
}

func TestSelectAveraging(t *testing.T) {
	tests := []struct {
		averaging, option byte
		want              PayoffKind
		wantErr           bool
	}{
		{'A', 'C', PayoffArithmeticCall, false},
		{'A', 'P', PayoffArithmeticPut, false},
		{'G', 'C', PayoffGeometricCall, false},
		{'G', 'P', PayoffGeometricPut, false},
		{'X', 'Y', "", true},
		{'A', 'X', "", true},
		{'a', 'c', "", true},
	}
	for _, tt := range tests {
		got, err := SelectAveraging(tt.averaging, tt.option)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSelector) {
				t.Fatalf("(%c,%c): expected ErrInvalidSelector, got %v", tt.averaging, tt.option, err)
			}
			if ErrorCode(err) != ErrorCodeInvalidSelector {
				t.Fatalf("(%c,%c): unexpected code %q", tt.averaging, tt.option, ErrorCode(err))
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("(%c,%c): got=%v err=%v want=%v", tt.averaging, tt.option, got, err, tt.want)
		}
	}
}

func TestParsePayoffKind(t *testing.T) {
	for _, s := range []string{"arithmetic_call", "ARITHMETIC-CALL", " up_and_in_call "} {
		if _, err := ParsePayoffKind(s); err != nil {
			t.Fatalf("ParsePayoffKind(%q): %v", s, err)
		}
	}
	if _, err := ParsePayoffKind("digital"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	for _, k := range PayoffKinds() {
		if !k.Valid() {
			t.Fatalf("kind %s reported invalid", k)
		}
	}
}

func TestPayoff_Formulas(t *testing.T) {
	c := mustContract(t, ContractParams{StepCount: 3, Strike: 100, Spot: 100, Expiry: 1, Barrier: 115})

	// 算术平均 105，几何平均约 104.89，最大值 120，到期价格 90
	knockedOut := Path{105, 120, 90}
	// 最大值 110 未触及障碍
	neverHit := Path{100, 110, 108}
	// 触及障碍且到期价格在行权价之上
	knockedIn := Path{110, 118, 112}

	tests := []struct {
		kind PayoffKind
		path Path
		want float64
	}{
		{PayoffArithmeticCall, knockedOut, 5},
		{PayoffArithmeticPut, knockedOut, 0},
		{PayoffArithmeticPut, Path{90, 95, 100}, 5},
		{PayoffGeometricCall, Path{100, 100, 100}, 0},
		{PayoffGeometricPut, Path{50, 50, 50}, 50},
		{PayoffUpAndInCall, knockedOut, 0},
		{PayoffUpAndInCall, neverHit, 0},
		{PayoffUpAndInCall, knockedIn, 12},
		{PayoffEuropeanCall, neverHit, 8},
		{PayoffEuropeanPut, knockedOut, 10},
	}
	for _, tt := range tests {
		got, err := tt.kind.Payoff(c, tt.path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.kind, err)
		}
		if !almostEqual(got, tt.want, 1e-9) {
			t.Fatalf("%s %v: got=%v want=%v", tt.kind, tt.path, got, tt.want)
		}
	}

	if _, err := PayoffKind("BOGUS").Payoff(c, knockedOut); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for unknown kind, got %v", err)
	}
}
