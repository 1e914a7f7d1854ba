package synth

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/liamcoop/greenscore/trainer"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(200, DefaultSeed)
	b := Generate(200, DefaultSeed)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different samples")
	}

	c := Generate(200, DefaultSeed+1)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical samples")
	}
}

func TestGenerateRanges(t *testing.T) {
	samples := Generate(1000, DefaultSeed)
	if len(samples) != 1000 {
		t.Fatalf("len = %d, want 1000", len(samples))
	}

	defaults := 0
	for _, s := range samples {
		r := s.Record
		for name, v := range map[string]float64{
			"annual_income":         r.AnnualIncome,
			"existing_debt":         r.ExistingDebt,
			"mobile_payment_volume": r.MobilePaymentVolume,
		} {
			if v < 0 {
				t.Fatalf("%s: %s = %v, want >= 0", s.UserID, name, v)
			}
		}
		if r.AnnualIncome != float64(int64(r.AnnualIncome)) {
			t.Fatalf("%s: annual_income %v is not whole", s.UserID, r.AnnualIncome)
		}
		if r.PaymentHistoryScore < 0 || r.PaymentHistoryScore > 9 {
			t.Fatalf("%s: payment_history_score = %v", s.UserID, r.PaymentHistoryScore)
		}
		if r.TransactionRegularity < 0.1 || r.TransactionRegularity >= 1 {
			t.Fatalf("%s: transaction_regularity = %v", s.UserID, r.TransactionRegularity)
		}
		if r.CropYieldIndex < 0.5 || r.CropYieldIndex >= 1.5 {
			t.Fatalf("%s: crop_yield_index = %v", s.UserID, r.CropYieldIndex)
		}
		if r.RenewableEnergyUsage != 0 && r.RenewableEnergyUsage != 1 {
			t.Fatalf("%s: renewable_energy_usage = %v", s.UserID, r.RenewableEnergyUsage)
		}
		if r.WasteManagementScore < 1 || r.WasteManagementScore > 4 {
			t.Fatalf("%s: waste_management_score = %v", s.UserID, r.WasteManagementScore)
		}
		if r.WaterEfficiencyScore < 1 || r.WaterEfficiencyScore > 9 {
			t.Fatalf("%s: water_efficiency_score = %v", s.UserID, r.WaterEfficiencyScore)
		}
		if s.Age < 18 || s.Age > 69 || s.LocationRuralTier < 1 || s.LocationRuralTier > 3 {
			t.Fatalf("%s: age %d tier %d out of range", s.UserID, s.Age, s.LocationRuralTier)
		}
		defaults += s.IsDefault
	}

	if rate := float64(defaults) / float64(len(samples)); rate < 0.02 || rate > 0.6 {
		t.Errorf("default rate = %.3f, want a mix of both classes", rate)
	}
}

// TestDefaultProbabilityMonotone verifies more debt means more risk and a
// better payment history means less.
func TestDefaultProbabilityMonotone(t *testing.T) {
	base := Generate(1, DefaultSeed)[0].Record

	more := base
	more.ExistingDebt += 50000
	if DefaultProbability(more) <= DefaultProbability(base) {
		t.Error("raising debt did not raise default probability")
	}

	better := base
	better.PaymentHistoryScore += 5
	if DefaultProbability(better) >= DefaultProbability(base) {
		t.Error("raising payment history did not lower default probability")
	}
}

func TestWriteCSVReadsBack(t *testing.T) {
	samples := Generate(50, 7)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}
	if first := strings.SplitN(buf.String(), "\n", 2)[0]; !strings.HasPrefix(first, "user_id,age,location_rural_tier,annual_income") {
		t.Errorf("header = %q", first)
	}

	records, labels, err := trainer.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() failed: %v", err)
	}
	wantRecords, wantLabels := Split(samples)
	if !reflect.DeepEqual(records, wantRecords) {
		t.Error("records did not survive the CSV round trip")
	}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Error("labels did not survive the CSV round trip")
	}
}
