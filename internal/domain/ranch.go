package domain

import "time"

// Country enumerates registration countries in the ledger program's variant
// order. The numeric values are part of the on-chain encoding and must not be
// reordered.
type Country uint8

const (
	CountryOther Country = iota
	CountryUnitedStates
	CountryBrazil
	CountryArgentina
	CountryMexico
	CountryCanada
	CountryColombia
	CountryUruguay
	CountryParaguay
	CountryFrance
	CountryGermany
	CountryUnitedKingdom
	CountryIreland
	CountrySpain
	CountryItaly
	CountryPoland
	CountryNetherlands
	CountryRussia
	CountryChina
	CountryIndia
	CountryAustralia
	CountryPakistan
	CountryJapan
	CountrySouthKorea
)

var countryNames = map[Country]string{
	CountryOther:         "Other",
	CountryUnitedStates:  "UnitedStates",
	CountryBrazil:        "Brazil",
	CountryArgentina:     "Argentina",
	CountryMexico:        "Mexico",
	CountryCanada:        "Canada",
	CountryColombia:      "Colombia",
	CountryUruguay:       "Uruguay",
	CountryParaguay:      "Paraguay",
	CountryFrance:        "France",
	CountryGermany:       "Germany",
	CountryUnitedKingdom: "UnitedKingdom",
	CountryIreland:       "Ireland",
	CountrySpain:         "Spain",
	CountryItaly:         "Italy",
	CountryPoland:        "Poland",
	CountryNetherlands:   "Netherlands",
	CountryRussia:        "Russia",
	CountryChina:         "China",
	CountryIndia:         "India",
	CountryAustralia:     "Australia",
	CountryPakistan:      "Pakistan",
	CountryJapan:         "Japan",
	CountrySouthKorea:    "SouthKorea",
}

func (c Country) String() string {
	if name, ok := countryNames[c]; ok {
		return name
	}
	return "Other"
}

// ParseCountry resolves a country name to its variant; unknown names map to
// Other.
func ParseCountry(name string) Country {
	for c, n := range countryNames {
		if n == name {
			return c
		}
	}
	return CountryOther
}

// Ranch mirrors an on-chain ranch account.
type Ranch struct {
	PDA         string
	Authority   string
	Name        string
	Country     Country
	IsVerified  bool
	AnimalCount uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RanchFilter narrows ranch listings.
type RanchFilter struct {
	Name     string
	Country  *Country
	Verified *bool
	Page     int
	Limit    int
}

// RanchListResult captures paginated ranch list results.
type RanchListResult struct {
	Items []Ranch
	Total int64
}
