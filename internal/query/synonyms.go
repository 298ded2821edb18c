// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

// partSynonyms maps a canonical part type to its expansion terms. The
// canonical type itself is always the first term. Expansion is scoped
// per part type: a multi-part query expands each detected type in its
// own intent only.
var partSynonyms = map[string][]string{
	"fuel filter": {"fuel filter", "fuel element", "fuel strainer", "fuel water separator"},
	"oil filter":  {"oil filter", "lube filter", "oil element", "engine oil filter"},
	"air filter":  {"air filter", "air cleaner", "air element", "intake filter"},
	"hydraulic filter": {"hydraulic filter", "hydraulic element", "return filter"},
	"fuel pump":      {"fuel pump", "lift pump", "transfer pump", "fuel supply pump"},
	"water pump":     {"water pump", "coolant pump"},
	"hydraulic pump": {"hydraulic pump", "main pump", "piston pump", "gear pump"},
	"alternator":     {"alternator", "generator", "charging unit"},
	"starter":        {"starter", "starter motor", "starting motor"},
	"injector":       {"injector", "fuel injector", "injection nozzle"},
	"turbocharger":   {"turbocharger", "turbo", "turbo charger"},
	"radiator":       {"radiator", "cooling core", "cooler core"},
	"seal kit":       {"seal kit", "gasket kit", "o-ring kit", "seal set"},
	"track roller":   {"track roller", "bottom roller", "lower roller"},
	"drive belt":     {"drive belt", "v-belt", "fan belt", "serpentine belt"},
	"bucket tooth":   {"bucket tooth", "bucket teeth", "digging tooth", "tooth point"},
	"cutting edge":   {"cutting edge", "blade edge", "grader blade"},
	"brake pad":      {"brake pad", "brake lining", "friction pad"},
	"wheel bearing":  {"wheel bearing", "hub bearing"},
	"glow plug":      {"glow plug", "heater plug"},
}

// attributeVocab is the fixed attribute vocabulary recognized by the
// rule-based analyzer.
var attributeVocab = []string{
	"oem", "aftermarket", "genuine", "heavy duty",
	"front", "rear", "left", "right",
	"upper", "lower", "inner", "outer",
	"new", "remanufactured", "used",
}

// urgentWords flag a query as urgent.
var urgentWords = []string{
	"urgent", "asap", "immediately", "emergency", "right away",
	"today", "down", "breakdown", "stranded",
}

// commerceWords indicate a price or supplier question, which the
// internal stores cannot answer well.
var commerceWords = []string{
	"price", "cost", "buy", "purchase", "order", "supplier",
	"vendor", "availability", "in stock", "cheapest", "quote",
	"where can i", "how much",
}

// ExpandTerms returns the synonym expansion for one part type, or a
// single-element slice with the type itself when no expansion is known.
func ExpandTerms(partType string) []string {
	if terms, ok := partSynonyms[partType]; ok {
		out := make([]string, len(terms))
		copy(out, terms)
		return out
	}
	return []string{partType}
}
