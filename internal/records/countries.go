package records

import "strings"

// countryNames maps ISO 3166-1 alpha-2 codes to the display names used across
// the dashboard. Platform APIs report codes; sample data uses names.
var countryNames = map[string]string{
	"AE": "United Arab Emirates",
	"AO": "Angola",
	"AR": "Argentina",
	"AU": "Australia",
	"BE": "Belgium",
	"BJ": "Benin",
	"BR": "Brazil",
	"BW": "Botswana",
	"CA": "Canada",
	"CD": "Democratic Republic of the Congo",
	"CH": "Switzerland",
	"CI": "Côte d’Ivoire",
	"CM": "Cameroon",
	"CN": "China",
	"DE": "Germany",
	"DK": "Denmark",
	"EG": "Egypt",
	"ES": "Spain",
	"ET": "Ethiopia",
	"FR": "France",
	"GB": "United Kingdom",
	"GH": "Ghana",
	"GM": "Gambia",
	"IE": "Ireland",
	"IN": "India",
	"IT": "Italy",
	"JM": "Jamaica",
	"JP": "Japan",
	"KE": "Kenya",
	"LR": "Liberia",
	"MA": "Morocco",
	"MX": "Mexico",
	"MZ": "Mozambique",
	"NA": "Namibia",
	"NG": "Nigeria",
	"NL": "Netherlands",
	"NO": "Norway",
	"PT": "Portugal",
	"RW": "Rwanda",
	"SE": "Sweden",
	"SL": "Sierra Leone",
	"SN": "Senegal",
	"TG": "Togo",
	"TT": "Trinidad and Tobago",
	"TZ": "Tanzania",
	"UG": "Uganda",
	"US": "United States",
	"ZA": "South Africa",
	"ZM": "Zambia",
	"ZW": "Zimbabwe",
}

// DisplayCountry converts a two-letter country code to its display name.
// Anything else, including unknown codes, is returned trimmed.
func DisplayCountry(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 2 {
		if name, ok := countryNames[strings.ToUpper(s)]; ok {
			return name
		}
	}
	return s
}
