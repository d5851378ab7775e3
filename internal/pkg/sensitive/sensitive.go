// Package sensitive flags personal data that should not be published in
// public post content.
package sensitive

import (
	"regexp"
	"sort"
)

type Kind string

const (
	Email          Kind = "email"
	Phone          Kind = "phone"
	IBAN           Kind = "iban"
	CreditCard     Kind = "credit_card"
	Address        Kind = "address"
	IDCard         Kind = "id_card"
	TaxID          Kind = "tax_id"
	SocialSecurity Kind = "social_security"
)

// Match is one detected fragment.
type Match struct {
	Kind  Kind   `json:"type"`
	Value string `json:"value"`
}

var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{Email, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{IBAN, regexp.MustCompile(`(?i)DE\d{2} ?(?:\d{4} ?){4}\d{2}`)},
	{CreditCard, regexp.MustCompile(`(?:\d{4}[ -]?){3}\d{4}`)},
	{Phone, regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?\(?\d{2,5}\)?[\s./-]?\d{3,4}[\s./-]?\d{3,5}`)},
	{Address, regexp.MustCompile(`\b\d{5}\s+[A-Za-zäöüÄÖÜß][A-Za-zäöüÄÖÜß\s-]+\b`)},
	{IDCard, regexp.MustCompile(`\b[CFGHJKLMNPRTVWXYZ][CFGHJKLMNPRTVWXYZ0-9]{8}\d\b`)},
	{TaxID, regexp.MustCompile(`\b\d{3}/\d{3}/\d{5}\b|\b\d{11}\b`)},
	{SocialSecurity, regexp.MustCompile(`\b\d{2}\d{6}[A-Z]\d{3}\b`)},
}

// Detect returns every fragment of text that looks like personal data.
func Detect(text string) []Match {
	var out []Match
	for _, p := range patterns {
		for _, v := range p.re.FindAllString(text, -1) {
			out = append(out, Match{Kind: p.kind, Value: v})
		}
	}
	return out
}

// Kinds returns the distinct kinds in ms, sorted.
func Kinds(ms []Match) []Kind {
	seen := map[Kind]bool{}
	var kinds []Kind
	for _, m := range ms {
		if !seen[m.Kind] {
			seen[m.Kind] = true
			kinds = append(kinds, m.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
