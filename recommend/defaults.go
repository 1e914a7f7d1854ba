package recommend

// DefaultRules returns the built-in product rules: one credit tier per
// score band, plus green incentives for a strong SDG score.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:             "tier-1-micro-loan",
			Name:           "Tier 1 micro-loan",
			Expression:     `assessment.credit_score > 750`,
			Recommendation: "Tier 1 Micro-Loan: ₹50,000 @ 8% interest",
			Priority:       10,
			Active:         true,
		},
		{
			ID:             "tier-2-micro-loan",
			Name:           "Tier 2 micro-loan",
			Expression:     `assessment.credit_score > 600 && assessment.credit_score <= 750`,
			Recommendation: "Tier 2 Micro-Loan: ₹25,000 @ 12% interest",
			Priority:       20,
			Active:         true,
		},
		{
			ID:             "credit-builder-loan",
			Name:           "Credit builder loan",
			Expression:     `assessment.credit_score <= 600`,
			Recommendation: "Credit Builder Loan: ₹5,000 (Secured)",
			Priority:       30,
			Active:         true,
		},
		{
			ID:             "green-solar-rebate",
			Name:           "Solar pump rebate",
			Expression:     `assessment.sdg_score > 70`,
			Recommendation: "Green Subsidy: Eligible for 20% Solar Pump Rebate",
			Priority:       40,
			Active:         true,
		},
		{
			ID:             "green-pm-kusum",
			Name:           "PM-KUSUM priority",
			Expression:     `assessment.sdg_score > 70`,
			Recommendation: "Government Scheme: PM-KUSUM Yojana Priority",
			Priority:       41,
			Active:         true,
		},
	}
}
