package textnorm

import "strings"

// Lemmatizer reduces a lower-case token to its dictionary form.
type Lemmatizer interface {
	Lemma(word string) string
}

// NounLemmatizer applies WordNet's noun detachment rules (plural suffixes)
// guarded by an exception table. Tokens that are not plural nouns come back
// unchanged, which matches a part-of-speech-unaware dictionary lookup that
// defaults to the noun sense: "breathing" stays, "exercises" becomes
// "exercise".
type NounLemmatizer struct{}

// Irregular plurals.
var nounExceptions = map[string]string{
	"men":        "man",
	"women":      "woman",
	"children":   "child",
	"feet":       "foot",
	"teeth":      "tooth",
	"mice":       "mouse",
	"geese":      "goose",
	"lives":      "life",
	"wives":      "wife",
	"knives":     "knife",
	"selves":     "self",
	"leaves":     "leaf",
	"halves":     "half",
	"wolves":     "wolf",
	"shelves":    "shelf",
	"thieves":    "thief",
	"crises":     "crisis",
	"analyses":   "analysis",
	"diagnoses":  "diagnosis",
	"prognoses":  "prognosis",
	"psychoses":  "psychosis",
	"neuroses":   "neurosis",
	"hypotheses": "hypothesis",
	"theses":     "thesis",
	"phenomena":  "phenomenon",
	"criteria":   "criterion",
	"movies":     "movie",
	"cookies":    "cookie",
	"calories":   "calorie",
	"goes":       "go",
}

// Words that end in "s" but are not plurals.
var nounInvariant = map[string]struct{}{
	"always": {}, "perhaps": {}, "sometimes": {}, "afterwards": {},
	"towards": {}, "besides": {}, "whereas": {}, "unless": {}, "less": {},
	"news": {}, "lens": {}, "bias": {}, "series": {}, "species": {},
	"mathematics": {}, "physics": {}, "politics": {}, "ethics": {},
	"economics": {}, "genetics": {}, "diabetes": {}, "herpes": {},
	"measles": {}, "mumps": {}, "rabies": {}, "kudos": {}, "chaos": {},
	"pathos": {}, "ethos": {}, "christmas": {}, "whatsoever": {},
	"nowadays": {}, "overseas": {},
}

// Lemma returns the noun lemma of word.
func (NounLemmatizer) Lemma(word string) string {
	if l, ok := nounExceptions[word]; ok {
		return l
	}
	if len(word) <= 3 || !strings.HasSuffix(word, "s") {
		return word
	}
	if _, ok := nounInvariant[word]; ok {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ss"),
		strings.HasSuffix(word, "us"),
		strings.HasSuffix(word, "is"),
		strings.HasSuffix(word, "ous"):
		return word
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "sses"),
		strings.HasSuffix(word, "xes"),
		strings.HasSuffix(word, "zes"),
		strings.HasSuffix(word, "ches"),
		strings.HasSuffix(word, "shes"):
		return word[:len(word)-2]
	default:
		return word[:len(word)-1]
	}
}
