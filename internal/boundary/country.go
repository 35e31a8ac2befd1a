package boundary

import (
	"strings"

	"github.com/reliefscope/needscan/internal/apperr"
)

// iso3ByName maps normalized country names (and common aliases) to ISO 3166-1
// alpha-3 codes. Coverage leans toward countries with active humanitarian
// operations; ISO3 codes themselves also pass through ResolveCountry.
var iso3ByName = map[string]string{
	"afghanistan":                      "AFG",
	"albania":                          "ALB",
	"algeria":                          "DZA",
	"angola":                          "AGO",
	"armenia":                          "ARM",
	"azerbaijan":                       "AZE",
	"bangladesh":                       "BGD",
	"benin":                            "BEN",
	"bolivia":                          "BOL",
	"bosnia and herzegovina":           "BIH",
	"botswana":                         "BWA",
	"brazil":                           "BRA",
	"burkina faso":                     "BFA",
	"burundi":                          "BDI",
	"cambodia":                         "KHM",
	"cameroon":                         "CMR",
	"central african republic":         "CAF",
	"chad":                             "TCD",
	"chile":                            "CHL",
	"china":                            "CHN",
	"colombia":                         "COL",
	"democratic republic of the congo": "COD",
	"dr congo":                         "COD",
	"drc":                              "COD",
	"republic of the congo":            "COG",
	"congo":                            "COG",
	"costa rica":                       "CRI",
	"cote divoire":                     "CIV",
	"ivory coast":                      "CIV",
	"cuba":                             "CUB",
	"djibouti":                         "DJI",
	"dominican republic":               "DOM",
	"ecuador":                          "ECU",
	"egypt":                            "EGY",
	"el salvador":                      "SLV",
	"eritrea":                          "ERI",
	"ethiopia":                         "ETH",
	"france":                           "FRA",
	"gambia":                           "GMB",
	"georgia":                          "GEO",
	"germany":                          "DEU",
	"ghana":                            "GHA",
	"guatemala":                        "GTM",
	"guinea":                           "GIN",
	"guinea-bissau":                    "GNB",
	"haiti":                            "HTI",
	"honduras":                         "HND",
	"india":                            "IND",
	"indonesia":                        "IDN",
	"iran":                             "IRN",
	"iraq":                             "IRQ",
	"jordan":                           "JOR",
	"kenya":                            "KEN",
	"kyrgyzstan":                       "KGZ",
	"laos":                             "LAO",
	"lebanon":                          "LBN",
	"lesotho":                          "LSO",
	"liberia":                          "LBR",
	"libya":                            "LBY",
	"madagascar":                       "MDG",
	"malawi":                           "MWI",
	"malaysia":                         "MYS",
	"mali":                             "MLI",
	"mauritania":                       "MRT",
	"mexico":                           "MEX",
	"moldova":                          "MDA",
	"mongolia":                         "MNG",
	"morocco":                          "MAR",
	"mozambique":                       "MOZ",
	"myanmar":                          "MMR",
	"burma":                            "MMR",
	"namibia":                          "NAM",
	"nepal":                            "NPL",
	"nicaragua":                        "NIC",
	"niger":                            "NER",
	"nigeria":                          "NGA",
	"north korea":                      "PRK",
	"pakistan":                         "PAK",
	"palestine":                        "PSE",
	"panama":                           "PAN",
	"papua new guinea":                 "PNG",
	"paraguay":                         "PRY",
	"peru":                             "PER",
	"philippines":                      "PHL",
	"rwanda":                           "RWA",
	"senegal":                          "SEN",
	"sierra leone":                     "SLE",
	"somalia":                          "SOM",
	"south africa":                     "ZAF",
	"south sudan":                      "SSD",
	"sri lanka":                        "LKA",
	"sudan":                            "SDN",
	"syria":                            "SYR",
	"syrian arab republic":             "SYR",
	"tajikistan":                       "TJK",
	"tanzania":                         "TZA",
	"thailand":                         "THA",
	"timor-leste":                      "TLS",
	"east timor":                       "TLS",
	"togo":                             "TGO",
	"tunisia":                          "TUN",
	"turkey":                           "TUR",
	"turkiye":                          "TUR",
	"turkmenistan":                     "TKM",
	"uganda":                           "UGA",
	"ukraine":                          "UKR",
	"united states":                    "USA",
	"uruguay":                          "URY",
	"uzbekistan":                       "UZB",
	"venezuela":                        "VEN",
	"vietnam":                          "VNM",
	"yemen":                            "YEM",
	"zambia":                           "ZMB",
	"zimbabwe":                         "ZWE",
}

// iso3Codes is the set of known alpha-3 codes, for pass-through input.
var iso3Codes = func() map[string]bool {
	set := make(map[string]bool, len(iso3ByName))
	for _, code := range iso3ByName {
		set[code] = true
	}
	return set
}()

// ResolveCountry maps a country name (or an alpha-3 code) to its ISO3 code.
// A pure lookup: unrecognized names are a configuration error, never guessed.
func ResolveCountry(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperr.New(apperr.KindConfiguration, "country name is empty")
	}

	if len(trimmed) == 3 && iso3Codes[strings.ToUpper(trimmed)] {
		return strings.ToUpper(trimmed), nil
	}

	normalized := strings.ToLower(trimmed)
	normalized = strings.NewReplacer("'", "", "’", "", ".", "").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	if code, ok := iso3ByName[normalized]; ok {
		return code, nil
	}
	return "", apperr.New(apperr.KindConfiguration, "could not resolve country name to ISO3: %s", name)
}
