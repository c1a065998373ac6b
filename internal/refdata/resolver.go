package refdata

import (
	"regexp"
	"strings"

	"github.com/Checker-Finance/screener/pkg/model"
)

// Resolution is the canonical identity derived for an instrument: the venue
// MIC, the geographic region bucket, and the exact symbol to send to the
// market-data provider.
type Resolution struct {
	Venue         string
	Region        model.Region
	RequestSymbol string
}

// noSuffixVenues are deep US venues whose symbols the provider resolves bare,
// without a ":VENUE" qualifier.
var noSuffixVenues = map[string]bool{
	"XNAS": true,
	"XNYS": true,
	"ARCX": true,
	"BATS": true,
	"XASE": true,
}

// PrimaryVenue reports whether venue is in the deep major-exchange set. The
// liquidity calculator skips the time-series volume fallback for these: their
// reported average volume is reliable and the extra sub-query costs credits.
func PrimaryVenue(venue string) bool {
	return noSuffixVenues[strings.ToUpper(venue)]
}

// exchangeNameToMIC maps free-text exchange names seen in universe files to
// canonical MICs.
var exchangeNameToMIC = map[string]string{
	"NASDAQ":           "XNAS",
	"NYSE":             "XNYS",
	"NYSE ARCA":        "ARCX",
	"AMEX":             "XASE",
	"CBOE":             "BATS",
	"LSE":              "XLON",
	"LONDON":           "XLON",
	"XETRA":            "XETR",
	"EURONEXT":         "XPAR",
	"EURONEXT PARIS":   "XPAR",
	"EURONEXT AMS":     "XAMS",
	"AMSTERDAM":        "XAMS",
	"BORSA ITALIANA":   "XMIL",
	"SIX":              "XSWX",
	"SWISS":            "XSWX",
	"MADRID":           "XMAD",
	"STOCKHOLM":        "XSTO",
	"OSLO":             "XOSL",
	"COPENHAGEN":       "XCSE",
	"HELSINKI":         "XHEL",
	"TOKYO":            "XTKS",
	"TSE":              "XTKS",
	"HONG KONG":        "XHKG",
	"HKEX":             "XHKG",
	"SHANGHAI":         "XSHG",
	"SHENZHEN":         "XSHE",
	"SINGAPORE":        "XSES",
	"SGX":              "XSES",
	"KOREA":            "XKRX",
	"KRX":              "XKRX",
	"TAIWAN":           "XTAI",
	"NSE":              "XNSE",
	"BSE":              "XBOM",
	"ASX":              "XASX",
	"NZX":              "XNZE",
	"TSX":              "XTSE",
	"TORONTO":          "XTSE",
	"B3":               "BVMF",
	"BOVESPA":          "BVMF",
	"BMV":              "XMEX",
	"MEXICO":           "XMEX",
	"SANTIAGO":         "XSGO",
	"BUENOS AIRES":     "XBUE",
	"JSE":              "XJSE",
	"JOHANNESBURG":     "XJSE",
	"EGX":              "XCAI",
	"NIGERIAN":         "XNSA",
}

// countryToRegion maps country names (upper-cased) to region buckets.
var countryToRegion = map[string]model.Region{
	"UNITED STATES": model.RegionUS,
	"USA":           model.RegionUS,
	"US":            model.RegionUS,

	"UNITED KINGDOM": model.RegionEurope,
	"UK":             model.RegionEurope,
	"GERMANY":        model.RegionEurope,
	"FRANCE":         model.RegionEurope,
	"NETHERLANDS":    model.RegionEurope,
	"ITALY":          model.RegionEurope,
	"SPAIN":          model.RegionEurope,
	"SWITZERLAND":    model.RegionEurope,
	"SWEDEN":         model.RegionEurope,
	"NORWAY":         model.RegionEurope,
	"DENMARK":        model.RegionEurope,
	"FINLAND":        model.RegionEurope,
	"IRELAND":        model.RegionEurope,
	"BELGIUM":        model.RegionEurope,
	"AUSTRIA":        model.RegionEurope,
	"PORTUGAL":       model.RegionEurope,
	"POLAND":         model.RegionEurope,
	"GREECE":         model.RegionEurope,

	"JAPAN":       model.RegionAsia,
	"CHINA":       model.RegionAsia,
	"HONG KONG":   model.RegionAsia,
	"SINGAPORE":   model.RegionAsia,
	"SOUTH KOREA": model.RegionAsia,
	"KOREA":       model.RegionAsia,
	"TAIWAN":      model.RegionAsia,
	"INDIA":       model.RegionAsia,
	"INDONESIA":   model.RegionAsia,
	"MALAYSIA":    model.RegionAsia,
	"THAILAND":    model.RegionAsia,
	"PHILIPPINES": model.RegionAsia,
	"VIETNAM":     model.RegionAsia,
	"ISRAEL":      model.RegionAsia,

	"BRAZIL":    model.RegionLatam,
	"MEXICO":    model.RegionLatam,
	"CHILE":     model.RegionLatam,
	"ARGENTINA": model.RegionLatam,
	"COLOMBIA":  model.RegionLatam,
	"PERU":      model.RegionLatam,

	"SOUTH AFRICA": model.RegionAfrica,
	"EGYPT":        model.RegionAfrica,
	"NIGERIA":      model.RegionAfrica,
	"KENYA":        model.RegionAfrica,
	"MOROCCO":      model.RegionAfrica,

	"AUSTRALIA":   model.RegionOceania,
	"NEW ZEALAND": model.RegionOceania,

	// Canada trades like the US bucket for threshold purposes.
	"CANADA": model.RegionUS,
}

// micToRegion resolves regions for venues whose country is missing. This is
// the last heuristic before UNKNOWN.
var micToRegion = map[string]model.Region{
	"XNAS": model.RegionUS, "XNYS": model.RegionUS, "ARCX": model.RegionUS,
	"BATS": model.RegionUS, "XASE": model.RegionUS, "XTSE": model.RegionUS,

	"XTKS": model.RegionAsia, "XHKG": model.RegionAsia, "XSHG": model.RegionAsia,
	"XSHE": model.RegionAsia, "XSES": model.RegionAsia, "XKRX": model.RegionAsia,
	"XTAI": model.RegionAsia, "XNSE": model.RegionAsia, "XBOM": model.RegionAsia,
	"XIDX": model.RegionAsia, "XKLS": model.RegionAsia, "XBKK": model.RegionAsia,

	"BVMF": model.RegionLatam, "XMEX": model.RegionLatam, "XSGO": model.RegionLatam,
	"XBUE": model.RegionLatam, "XBOG": model.RegionLatam, "XLIM": model.RegionLatam,

	"XJSE": model.RegionAfrica, "XCAI": model.RegionAfrica, "XNSA": model.RegionAfrica,
	"XNAI": model.RegionAfrica,

	"XASX": model.RegionOceania, "XNZE": model.RegionOceania,
}

// tickerSuffix matches trailing market/currency qualifiers like ".L", ".PA",
// ".DE" on raw universe symbols.
var tickerSuffix = regexp.MustCompile(`\.[A-Z0-9]{1,4}$`)

// Resolve derives the canonical venue, region and provider request symbol for
// an instrument. Pure function: no network, no mutable state.
//
// Region resolution order: explicit tag on the record, country mapping,
// exchange-code heuristic, then UNKNOWN.
func Resolve(inst model.Instrument) Resolution {
	symbol := NormalizeSymbol(inst.Symbol)
	venue := resolveVenue(inst)
	region := resolveRegion(inst, venue)

	requestSymbol := symbol
	if venue != "" && !noSuffixVenues[venue] {
		requestSymbol = symbol + ":" + venue
	}

	return Resolution{
		Venue:         venue,
		Region:        region,
		RequestSymbol: requestSymbol,
	}
}

// NormalizeSymbol strips known trailing suffix patterns from a raw symbol.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return tickerSuffix.ReplaceAllString(s, "")
}

func resolveVenue(inst model.Instrument) string {
	if inst.Venue != "" {
		return strings.ToUpper(strings.TrimSpace(inst.Venue))
	}

	ex := strings.ToUpper(strings.TrimSpace(inst.Exchange))
	if ex == "" {
		return ""
	}
	if mic, ok := exchangeNameToMIC[ex]; ok {
		return mic
	}
	// Already MIC-shaped: 4 upper-case alphanumerics.
	if len(ex) == 4 && strings.IndexFunc(ex, func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9')
	}) == -1 {
		return ex
	}
	return ""
}

func resolveRegion(inst model.Instrument, venue string) model.Region {
	if inst.Region != "" && inst.Region != model.RegionUnknown {
		return inst.Region
	}

	country := strings.ToUpper(strings.TrimSpace(inst.Country))
	if region, ok := countryToRegion[country]; ok {
		return region
	}

	if venue != "" {
		if region, ok := micToRegion[venue]; ok {
			return region
		}
		// Remaining X-prefixed MICs are overwhelmingly European venues.
		if strings.HasPrefix(venue, "X") {
			return model.RegionEurope
		}
	}

	return model.RegionUnknown
}
