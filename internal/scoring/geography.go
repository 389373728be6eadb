package scoring

// GeographyScore is 1 when the target's HQ country is one of the investor's target
// countries and 0 otherwise. There is no partial credit.
func GeographyScore(investorCountries []string, targetHQ string) DimensionResult {
	switch {
	case len(investorCountries) == 0 && targetHQ == "":
		return result(DimGeography, 0, "No geography data on either side")
	case len(investorCountries) == 0:
		return result(DimGeography, 0, "Investor has no target countries")
	case targetHQ == "":
		return result(DimGeography, 0, "Target has no HQ country")
	}
	for _, c := range investorCountries {
		if c == targetHQ {
			return result(DimGeography, 1, "Target HQ country is in investor's target countries")
		}
	}
	return result(DimGeography, 0, "Target HQ country is outside investor's target countries")
}
