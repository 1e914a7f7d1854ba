package features

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/liamcoop/greenscore/failure"
)

// RawFields lists the attributes a request record must carry.
var RawFields = []string{
	AnnualIncome,
	ExistingDebt,
	PaymentHistoryScore,
	MobilePaymentVolume,
	TransactionRegularity,
	CropYieldIndex,
	RenewableEnergyUsage,
	WasteManagementScore,
	WaterEfficiencyScore,
}

// FromMap decodes an untyped request body into a Record.
// Unknown keys are ignored. A missing field, a non-numeric value, or a
// non-finite or negative number is a malformed input naming the field.
// Declared upper ranges are not enforced here.
func FromMap(m map[string]any) (Record, error) {
	if len(m) == 0 {
		return Record{}, failure.MalformedInput("decode record", fmt.Errorf("record is empty"))
	}

	vals := make(map[string]float64, len(RawFields))
	for _, field := range RawFields {
		raw, ok := m[field]
		if !ok || raw == nil {
			return Record{}, failure.MalformedInput("decode record", fmt.Errorf("missing required field %q", field))
		}
		v, err := toNumber(field, raw)
		if err != nil {
			return Record{}, failure.MalformedInput("decode record", err)
		}
		vals[field] = v
	}

	return FromFields(vals), nil
}

// FromFields builds a Record from values keyed by raw field name. Absent
// fields are zero.
func FromFields(vals map[string]float64) Record {
	return Record{
		AnnualIncome:          vals[AnnualIncome],
		ExistingDebt:          vals[ExistingDebt],
		PaymentHistoryScore:   vals[PaymentHistoryScore],
		MobilePaymentVolume:   vals[MobilePaymentVolume],
		TransactionRegularity: vals[TransactionRegularity],
		CropYieldIndex:        vals[CropYieldIndex],
		RenewableEnergyUsage:  vals[RenewableEnergyUsage],
		WasteManagementScore:  vals[WasteManagementScore],
		WaterEfficiencyScore:  vals[WaterEfficiencyScore],
	}
}

// Validate rejects only non-finite values. Range checks belong to FromMap.
func Validate(r Record) error {
	for i, v := range []float64{
		r.AnnualIncome,
		r.ExistingDebt,
		r.PaymentHistoryScore,
		r.MobilePaymentVolume,
		r.TransactionRegularity,
		r.CropYieldIndex,
		r.RenewableEnergyUsage,
		r.WasteManagementScore,
		r.WaterEfficiencyScore,
	} {
		if err := checkFinite(RawFields[i], v); err != nil {
			return failure.MalformedInput("validate record", err)
		}
	}
	return nil
}

func toNumber(field string, raw any) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %q is not a number", field, n.String())
		}
		v = f
	case bool:
		if field != RenewableEnergyUsage {
			return 0, fmt.Errorf("field %q: expected a number, got bool", field)
		}
		if n {
			v = 1
		}
	default:
		return 0, fmt.Errorf("field %q: expected a number, got %T", field, raw)
	}
	return v, checkNumber(field, v)
}

func checkFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("field %q: value must be finite", field)
	}
	return nil
}

func checkNumber(field string, v float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("field %q: value %v must not be negative", field, v)
	}
	return nil
}
