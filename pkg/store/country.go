package store

// mccCountry maps mobile country codes to ISO 3166-1 alpha-2 codes for
// the markets the gateway serves. Unknown MCCs store an empty country.
var mccCountry = map[string]string{
	"255": "UA",
	"310": "US",
	"311": "US",
	"250": "RU",
	"234": "GB",
	"262": "DE",
	"208": "FR",
}

// CountryFromMCC resolves the country for an MCC. Longer strings are
// truncated to the three-digit MCC prefix first.
func CountryFromMCC(mcc string) string {
	if len(mcc) > 3 {
		mcc = mcc[:3]
	}
	return mccCountry[mcc]
}
