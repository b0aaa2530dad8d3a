package tables

import "strings"

// Bundeslaender maps lowercase state spellings, including ISO 3166-2:DE
// suffixes and ASCII transliterations, to the canonical German name.
var Bundeslaender = map[string]string{
	"baden-württemberg":      "Baden-Württemberg",
	"baden-wuerttemberg":     "Baden-Württemberg",
	"bw":                     "Baden-Württemberg",
	"bayern":                 "Bayern",
	"by":                     "Bayern",
	"berlin":                 "Berlin",
	"be":                     "Berlin",
	"brandenburg":            "Brandenburg",
	"bb":                     "Brandenburg",
	"bremen":                 "Bremen",
	"hb":                     "Bremen",
	"hamburg":                "Hamburg",
	"hh":                     "Hamburg",
	"hessen":                 "Hessen",
	"he":                     "Hessen",
	"mecklenburg-vorpommern": "Mecklenburg-Vorpommern",
	"mv":                     "Mecklenburg-Vorpommern",
	"niedersachsen":          "Niedersachsen",
	"ni":                     "Niedersachsen",
	"nordrhein-westfalen":    "Nordrhein-Westfalen",
	"nw":                     "Nordrhein-Westfalen",
	"nrw":                    "Nordrhein-Westfalen",
	"rheinland-pfalz":        "Rheinland-Pfalz",
	"rp":                     "Rheinland-Pfalz",
	"saarland":               "Saarland",
	"sl":                     "Saarland",
	"sachsen":                "Sachsen",
	"sn":                     "Sachsen",
	"sachsen-anhalt":         "Sachsen-Anhalt",
	"st":                     "Sachsen-Anhalt",
	"schleswig-holstein":     "Schleswig-Holstein",
	"sh":                     "Schleswig-Holstein",
	"thüringen":              "Thüringen",
	"thueringen":             "Thüringen",
	"th":                     "Thüringen",

	"ausschließliche wirtschaftszone":  "Ausschließliche Wirtschaftszone",
	"ausschliessliche wirtschaftszone": "Ausschließliche Wirtschaftszone",
	"awz":                              "Ausschließliche Wirtschaftszone",
}

// NormalizeBundesland converts state spellings to the canonical German name.
// Unrecognized values are returned trimmed but otherwise unchanged.
func NormalizeBundesland(s string) string {
	s = strings.TrimSpace(s)
	key := strings.ToLower(strings.TrimPrefix(strings.ToUpper(s), "DE-"))
	if name, ok := Bundeslaender[key]; ok {
		return name
	}
	return s
}
