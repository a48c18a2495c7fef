package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		amount  int64
		display string
	}{
		{"Minor", Minor(5833), 5833, "58.33"},
		{"Units", Units(300), 30000, "300.00"},
		{"Zero", Zero(), 0, "0.00"},
		{"Negative", Minor(-150), -150, "-1.50"},
		{"Small", Minor(7), 7, "0.07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return Units(100).Add(Units(200)) }, Units(300)},
		{"Subtract", func() Money { return Units(500).Subtract(Units(200)) }, Units(300)},
		{"Multiply", func() Money { return Minor(5833).Multiply(3) }, Minor(17499)},
		{"Negate", func() Money { return Units(1).Negate() }, Minor(-100)},
		{"Sum", func() Money { return Sum(Units(100), Units(200), Units(300)) }, Units(600)},
		{"Sum empty", func() Money { return Sum() }, Zero()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyCheckedArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		op     func() (Money, bool)
		want   Money
		wantOK bool
	}{
		{"multiply", func() (Money, bool) { return Minor(5833).MultiplyChecked(3) }, Minor(17499), true},
		{"multiply by zero", func() (Money, bool) { return Minor(math.MaxInt64).MultiplyChecked(0) }, Zero(), true},
		{"multiply overflow", func() (Money, bool) { return Minor(math.MaxInt64 / 2).MultiplyChecked(3) }, Zero(), false},
		{"multiply min by -1", func() (Money, bool) { return Minor(math.MinInt64).MultiplyChecked(-1) }, Zero(), false},
		{"add", func() (Money, bool) { return Units(1).AddChecked(Units(2)) }, Units(3), true},
		{"add overflow", func() (Money, bool) { return Minor(math.MaxInt64).AddChecked(Minor(1)) }, Zero(), false},
		{"add underflow", func() (Money, bool) { return Minor(math.MinInt64).AddChecked(Minor(-1)) }, Zero(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.op()
			if ok != tt.wantOK || !got.Equal(tt.want) {
				t.Errorf("got (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFloorToUnit(t *testing.T) {
	tests := []struct {
		in   Money
		want Money
	}{
		{Minor(17499), Units(174)},
		{Minor(30000), Units(300)},
		{Minor(99), Zero()},
		{Minor(0), Zero()},
		{Minor(-1), Units(-1)},
		{Minor(-100), Units(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := tt.in.FloorToUnit(); !got.Equal(tt.want) {
				t.Errorf("FloorToUnit(%v): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoneyDecimalConversion(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"58.33", Minor(5833)},
		{"58.335", Minor(5834)},
		{"58.3333333", Minor(5833)},
		{"100", Units(100)},
		{"-1.5", Minor(-150)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if err != nil {
				t.Fatalf("ParseMoney: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ParseMoney("abc"); err == nil {
		t.Error("expected parse error for non-numeric input")
	}

	if got := Minor(5833).Decimal(); !got.Equal(decimal.RequireFromString("58.33")) {
		t.Errorf("Decimal: got %s, want 58.33", got)
	}
}

func TestMoneyScale(t *testing.T) {
	factor := decimal.NewFromInt(1).Sub(decimal.RequireFromString("0.4166666666666667"))
	if got := Units(100).Scale(factor); got.Amount != 5833 {
		t.Errorf("Scale: got %d, want 5833", got.Amount)
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: Units(174)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"total":174.00}` {
		t.Errorf("marshal: got %s", data)
	}

	var decoded struct {
		Total Money `json:"total"`
	}
	if err := json.Unmarshal([]byte(`{"total":"58.33"}`), &decoded); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if decoded.Total.Amount != 5833 {
		t.Errorf("unmarshal string: got %d, want 5833", decoded.Total.Amount)
	}
	if err := json.Unmarshal([]byte(`{"total":12.5}`), &decoded); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if decoded.Total.Amount != 1250 {
		t.Errorf("unmarshal number: got %d, want 1250", decoded.Total.Amount)
	}
}
