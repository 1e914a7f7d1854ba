// Package synth generates labelled applicant records for training and
// demos. Defaults are simulated from a latent financial health score so a
// model trained on the output has a real signal to learn.
package synth

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/trainer"
)

// DefaultSeed matches the seed the reference dataset was generated with.
const DefaultSeed = 42

// Sample is one generated applicant.
type Sample struct {
	UserID            string
	Age               int
	LocationRuralTier int
	Record            features.Record
	IsDefault         int
}

// Header is the CSV column order written by WriteCSV.
var Header = append(append([]string{"user_id", "age", "location_rural_tier"}, features.RawFields...), trainer.LabelColumn)

// Generate returns n samples. The same seed always yields the same samples.
func Generate(n int, seed uint64) []Sample {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]Sample, n)

	for i := range out {
		r := features.Record{
			AnnualIncome:          clip(math.Trunc(normal(rng, 150000, 50000))),
			ExistingDebt:          clip(math.Trunc(normal(rng, 20000, 10000))),
			PaymentHistoryScore:   float64(rng.IntN(10)),
			MobilePaymentVolume:   clip(normal(rng, 5000, 2000)),
			TransactionRegularity: uniform(rng, 0.1, 1.0),
			CropYieldIndex:        uniform(rng, 0.5, 1.5),
			WasteManagementScore:  float64(1 + rng.IntN(4)),
			WaterEfficiencyScore:  float64(1 + rng.IntN(9)),
		}
		if rng.Float64() < 0.3 {
			r.RenewableEnergyUsage = 1
		}

		out[i] = Sample{
			UserID:            fmt.Sprintf("UID_%d", i),
			Age:               18 + rng.IntN(52),
			LocationRuralTier: 1 + rng.IntN(3),
			Record:            r,
		}
		if DefaultProbability(r) > uniform(rng, 0.3, 0.7) {
			out[i].IsDefault = 1
		}
	}
	return out
}

// DefaultProbability is the latent default probability of r: a logistic
// curve over income, digital payments, repayment history and debt.
func DefaultProbability(r features.Record) float64 {
	health := r.AnnualIncome*0.4 + r.MobilePaymentVolume*2 + r.PaymentHistoryScore*1000 - r.ExistingDebt
	return 1 / (1 + math.Exp(health/50000))
}

// Split separates samples into records and labels for training.
func Split(samples []Sample) ([]features.Record, []int) {
	records := make([]features.Record, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		records[i] = s.Record
		labels[i] = s.IsDefault
	}
	return records, labels
}

// WriteCSV writes samples with a Header row. Floats use the shortest
// representation that parses back to the same value.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, s := range samples {
		r := s.Record
		row := []string{
			s.UserID,
			strconv.Itoa(s.Age),
			strconv.Itoa(s.LocationRuralTier),
			formatFloat(r.AnnualIncome),
			formatFloat(r.ExistingDebt),
			formatFloat(r.PaymentHistoryScore),
			formatFloat(r.MobilePaymentVolume),
			formatFloat(r.TransactionRegularity),
			formatFloat(r.CropYieldIndex),
			formatFloat(r.RenewableEnergyUsage),
			formatFloat(r.WasteManagementScore),
			formatFloat(r.WaterEfficiencyScore),
			strconv.Itoa(s.IsDefault),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func normal(rng *rand.Rand, mean, stddev float64) float64 {
	return mean + stddev*rng.NormFloat64()
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func clip(v float64) float64 {
	return math.Max(v, 0)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
