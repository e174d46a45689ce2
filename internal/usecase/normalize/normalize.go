// Package normalize cleans raw catalog text into deduplicated token strings.
//
// Normalization is a pure function of its input: no I/O, deterministic and
// idempotent. The French locale is stop-word aware: promotional boilerplate,
// dimensions, elisions and stop words are removed in addition to the generic
// cleaning applied to every locale.
package normalize

import (
	_ "embed"
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

//go:embed stopwords_fr.txt
var stopwordsFR string

var (
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	longSpaceRe = regexp.MustCompile(` {2,}`)
	dimensionRe = regexp.MustCompile(`[0-9]+ ?[xX] ?[0-9]+(?: ?cm)?`)
	elisionRe   = regexp.MustCompile(`^(?:[cdjlmnst]|qu|jusqu|lorsqu|puisqu|quoiqu)['’]`)
	nonWordRe   = regexp.MustCompile(`\W+`)
	digitsRe    = regexp.MustCompile(`[0-9]+`)

	// Boilerplate injected by the merchant back-office into product descriptions.
	promoRe = regexp.MustCompile(strings.Join([]string{
		`\* Offre de bienvenue 5% de réduction sur votre 1ère commande avec le code: PROMO5`,
		`- Offre -5%`,
		`A partir (?:de )?[0-9]+ € D'ACHAT = [0-9]+% DE REMISE-code promo OFFRE[0-9]+`,
		`Offre de Bienvenue : 5% avec le code promo : PROMO5`,
		`DERNIÈRE DEMARQUE -10% SUPPLEMENTAIRES.*AVEC LE CODE PROMO : 10`,
	}, "|"))

	ligatures = strings.NewReplacer(
		"œ", "oe",
		"æ", "ae",
		"ß", "ss",
		"ø", "o",
		"ł", "l",
		"đ", "d",
		"ð", "d",
		"þ", "th",
		"ı", "i",
	)

	frenchStopwords = buildStopwords(stopwordsFR)
)

// Text normalizes text. localeAware enables the French stop-word mode.
func Text(text string, localeAware bool) string {
	if localeAware {
		return clean(text, frenchStopwords)
	}
	return clean(text, nil)
}

// LocaleAware reports whether a locale has a stop-word aware mode.
func LocaleAware(loc domain.Locale) bool {
	return loc == domain.LocaleFR
}

// Record normalizes every field and locale of a record.
// Locales whose normalized text is empty are left out.
func Record(r *domain.Record) domain.NormalizedRecord {
	out := domain.NormalizedRecord{
		GUID:    r.GUID,
		Channel: r.Channel,
		Fields:  make(map[domain.TextField]domain.LocalizedText, len(r.Fields)),
	}
	for field, texts := range r.Fields {
		normalized := make(domain.LocalizedText, len(texts))
		for loc, text := range texts {
			if text == "" {
				continue
			}
			if cleaned := Text(text, LocaleAware(loc)); cleaned != "" {
				normalized[loc] = cleaned
			}
		}
		out.Fields[field] = normalized
	}
	return out
}

func clean(text string, stop map[string]struct{}) string {
	localeAware := stop != nil

	// A space, not "", so adjacent words around a tag stay apart.
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = longSpaceRe.ReplaceAllString(text, " ")
	if localeAware {
		text = promoRe.ReplaceAllString(text, "")
		text = dimensionRe.ReplaceAllString(text, "")
	}

	raw := strings.Fields(text)
	tokens := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, tok := range raw {
		tok = strings.ToLower(tok)
		if localeAware {
			tok = elisionRe.ReplaceAllString(tok, "")
			if _, ok := stop[tok]; ok {
				continue
			}
		}
		tok = fold(tok)
		tok = nonWordRe.ReplaceAllString(tok, "")
		tok = digitsRe.ReplaceAllString(tok, "")
		if tok == "" {
			continue
		}
		// Folding can turn a token into a stop word ("où" -> "ou").
		if _, ok := stop[tok]; ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	return strings.Join(tokens, " ")
}

// fold transliterates accented letters and ligatures to their ASCII base.
func fold(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func buildStopwords(list string) map[string]struct{} {
	words := strings.Fields(list)
	set := make(map[string]struct{}, len(words)*2)
	for _, w := range words {
		set[w] = struct{}{}
		set[fold(w)] = struct{}{}
	}
	return set
}
