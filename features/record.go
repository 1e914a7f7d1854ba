// Package features turns a raw applicant record into the fixed, ordered
// feature vector the risk model is trained and served on. Training and
// inference share Process so the two paths cannot drift.
package features

// Record is the raw applicant input. Fields are float64 so the derived
// arithmetic is plain double precision regardless of how the caller
// supplied the numbers.
type Record struct {
	AnnualIncome          float64 `json:"annual_income"`
	ExistingDebt          float64 `json:"existing_debt"`
	PaymentHistoryScore   float64 `json:"payment_history_score"`
	MobilePaymentVolume   float64 `json:"mobile_payment_volume"`
	TransactionRegularity float64 `json:"transaction_regularity"`
	CropYieldIndex        float64 `json:"crop_yield_index"`
	RenewableEnergyUsage  float64 `json:"renewable_energy_usage"`
	WasteManagementScore  float64 `json:"waste_management_score"`
	WaterEfficiencyScore  float64 `json:"water_efficiency_score"`
}

// Vector is a Record plus the derived signals.
type Vector struct {
	Record

	DTIRatio     float64 `json:"dti_ratio"`
	SDGIndex     float64 `json:"sdg_index"`
	DigitalTrust float64 `json:"digital_trust"`
}

// Feature names, in the column order the model consumes.
const (
	AnnualIncome         = "annual_income"
	ExistingDebt         = "existing_debt"
	PaymentHistoryScore  = "payment_history_score"
	MobilePaymentVolume  = "mobile_payment_volume"
	CropYieldIndex       = "crop_yield_index"
	SDGIndex             = "sdg_index"
	DTIRatio             = "dti_ratio"
	DigitalTrust         = "digital_trust"
	WaterEfficiencyScore = "water_efficiency_score"

	TransactionRegularity = "transaction_regularity"
	RenewableEnergyUsage  = "renewable_energy_usage"
	WasteManagementScore  = "waste_management_score"
)

var names = [...]string{
	AnnualIncome,
	ExistingDebt,
	PaymentHistoryScore,
	MobilePaymentVolume,
	CropYieldIndex,
	SDGIndex,
	DTIRatio,
	DigitalTrust,
	WaterEfficiencyScore,
}

// Count is the width of the model input.
const Count = len(names)

// Names returns a copy of the model's ordered feature names.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// MatchesNames reports whether got is exactly the model feature order.
func MatchesNames(got []string) bool {
	if len(got) != Count {
		return false
	}
	for i, n := range names {
		if got[i] != n {
			return false
		}
	}
	return true
}

// Process derives the engineered vector from r. The +1 on income keeps the
// debt ratio finite for zero income.
func Process(r Record) Vector {
	return Vector{
		Record:       r,
		DTIRatio:     r.ExistingDebt / (r.AnnualIncome + 1),
		SDGIndex:     r.RenewableEnergyUsage*20 + r.WasteManagementScore*10 + r.WaterEfficiencyScore*7,
		DigitalTrust: r.MobilePaymentVolume * r.TransactionRegularity,
	}
}

// Values returns the vector restricted to Names() order.
func (v Vector) Values() []float64 {
	return []float64{
		v.AnnualIncome,
		v.ExistingDebt,
		v.PaymentHistoryScore,
		v.MobilePaymentVolume,
		v.CropYieldIndex,
		v.SDGIndex,
		v.DTIRatio,
		v.DigitalTrust,
		v.WaterEfficiencyScore,
	}
}

// Table engineers every record and returns the model input matrix.
func Table(records []Record) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		out[i] = Process(r).Values()
	}
	return out
}
