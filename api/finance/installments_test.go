package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGenerateScheduleCeilingWithRemainder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(decimal.NewFromInt(1000), 3, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedule) != 3 {
		t.Fatalf("got %d installments, want 3", len(schedule))
	}
	wantAmounts := []int64{334, 334, 332}
	sum := decimal.Zero
	for i, inst := range schedule {
		if !inst.Amount.Equal(decimal.NewFromInt(wantAmounts[i])) {
			t.Errorf("installment %d: got amount %s, want %d", i+1, inst.Amount, wantAmounts[i])
		}
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("amounts sum to %s, want 1000", sum)
	}
	if !schedule[len(schedule)-1].Remaining.IsZero() {
		t.Errorf("final remaining is %s, want 0", schedule[len(schedule)-1].Remaining)
	}
}

func TestGenerateScheduleSumsExactly(t *testing.T) {
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		total string
		count int
	}{
		{"1000", 3},
		{"1000", 1},
		{"999", 12},
		{"1500.50", 7},
		{"100", 100},
	}
	for _, tc := range cases {
		total, _ := decimal.NewFromString(tc.total)
		schedule, err := GenerateSchedule(total, tc.count, start)
		if err != nil {
			t.Fatalf("GenerateSchedule(%s, %d): %v", tc.total, tc.count, err)
		}
		if len(schedule) != tc.count {
			t.Errorf("GenerateSchedule(%s, %d): got %d installments", tc.total, tc.count, len(schedule))
		}
		sum := decimal.Zero
		for _, inst := range schedule {
			if !inst.Amount.IsPositive() {
				t.Errorf("GenerateSchedule(%s, %d): installment %d amount %s is not positive", tc.total, tc.count, inst.Number, inst.Amount)
			}
			if inst.Remaining.IsNegative() {
				t.Errorf("GenerateSchedule(%s, %d): installment %d remaining %s is negative", tc.total, tc.count, inst.Number, inst.Remaining)
			}
			sum = sum.Add(inst.Amount)
		}
		if !sum.Equal(total) {
			t.Errorf("GenerateSchedule(%s, %d): amounts sum to %s", tc.total, tc.count, sum)
		}
	}
}

func TestGenerateScheduleMonthlyDueDates(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(decimal.NewFromInt(1200), 6, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prev := schedule[0].DueDate
	if !prev.Equal(start) {
		t.Errorf("first due date is %v, want %v", prev, start)
	}
	for _, inst := range schedule[1:] {
		if !inst.DueDate.After(prev) {
			t.Errorf("installment %d due %v not after installment %d due %v", inst.Number, inst.DueDate, inst.Number-1, prev)
		}
		prev = inst.DueDate
	}
	// due dates advance by calendar months from start
	if got, want := schedule[3].DueDate, start.AddDate(0, 3, 0); !got.Equal(want) {
		t.Errorf("installment 4 due %v, want %v", got, want)
	}
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	start := time.Now()
	if _, err := GenerateSchedule(decimal.NewFromInt(1000), 0, start); err == nil {
		t.Error("expected error for zero count")
	}
	if _, err := GenerateSchedule(decimal.Zero, 3, start); err == nil {
		t.Error("expected error for zero total")
	}
	if _, err := GenerateSchedule(decimal.NewFromInt(-5), 3, start); err == nil {
		t.Error("expected error for negative total")
	}
}

func TestGenerateScheduleRejectsOversizedCount(t *testing.T) {
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	// ceil(10/100) = 1 per installment; 99 of those already exceed the total
	if _, err := GenerateSchedule(decimal.NewFromInt(10), 100, start); err == nil {
		t.Error("expected error when count is too large for the total")
	}
	if _, err := GenerateSchedule(decimal.RequireFromString("0.50"), 2, start); err == nil {
		t.Error("expected error for sub-unit total split across installments")
	}
	// the exact even split stays valid
	schedule, err := GenerateSchedule(decimal.NewFromInt(100), 100, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, inst := range schedule {
		if !inst.Amount.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("installment %d amount %s, want 1", inst.Number, inst.Amount)
		}
	}
}

func TestPartialStatus(t *testing.T) {
	full := decimal.RequireFromString("334")
	cases := []struct {
		amount string
		want   string
	}{
		{"100", StatusPartial},
		{"333.99", StatusPartial},
		{"334", StatusPaid},
		{"334.00", StatusPaid},
	}
	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.amount)
		if got := partialStatus(amount, full); got != tc.want {
			t.Errorf("partialStatus(%s, %s) = %s, want %s", tc.amount, full, got, tc.want)
		}
	}
}

func TestComputeFinancialStatus(t *testing.T) {
	cases := []struct {
		name                  string
		paid, partial, total  int
		want                  string
	}{
		{"all paid", 6, 0, 6, StatusPaid},
		{"last unpaid becomes paid", 6, 0, 6, StatusPaid},
		{"one paid of many", 1, 0, 6, StatusPartial},
		{"only partial", 0, 1, 6, StatusPartial},
		{"none touched", 0, 0, 6, StatusUnpaid},
		{"no installments", 0, 0, 0, StatusUnpaid},
	}
	for _, tc := range cases {
		if got := ComputeFinancialStatus(tc.paid, tc.partial, tc.total); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}
