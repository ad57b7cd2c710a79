// Package signals holds the pure text-analysis functions that derive
// structured signals from raw email text. Extractors are stateless and
// deterministic: same input, same output, empty input yields empty results.
package signals

import (
	"regexp"
	"strings"

	"intake_server/core/domain"
)

// =============================================================================
// Entity Extraction
// =============================================================================

// DefaultProductVocabulary is the fragment list matched against email text
// when no vocabulary is configured. Fragments match as word prefixes, so
// "glycol" also catches "glycols".
var DefaultProductVocabulary = []string{
	"acetone", "toluene", "xylene", "methanol", "ethanol", "isopropyl",
	"ipa", "glycol", "glycerin", "naphtha", "heptane", "hexane",
	"mek", "mineral spirits", "citric acid", "sulfuric acid",
	"hydrochloric acid", "phosphoric acid", "sodium hydroxide",
	"potassium hydroxide", "hydrogen peroxide", "bleach", "surfactant",
	"solvent", "resin", "caustic",
}

// DefaultOrderPrefixes are the document-number prefixes recognized in
// addition to the spelled-out "order #"/"invoice #"/"po #" forms.
var DefaultOrderPrefixes = []string{"SO", "PO", "INV", "ORD", "QT", "RMA"}

var (
	casNumberRe = regexp.MustCompile(`\b\d{2,7}-\d{2}-\d\b`)
	unNumberRe  = regexp.MustCompile(`(?i)\bUN ?\d{4}\b`)

	// "5 drums", "300 gallons", "1,000 kg"
	quantityRe = regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s*(?:drums?|gallons?|gal\b|liters?|litres?|kgs?|kilograms?|lbs?|pounds?|totes?|pails?|cases?|pallets?|barrels?|buckets?)`)

	// composite "4 x 55 gal" / "12x1L"
	compositeQtyRe = regexp.MustCompile(`(?i)\b\d+\s*x\s*\d[\d,]*(?:\.\d+)?\s*(?:gal(?:lons?)?|l\b|liters?|litres?|kgs?|lbs?|oz|ml|drums?|pails?)`)

	// "order #12345", "invoice# 884", "po 5521"
	orderPhraseRe = regexp.MustCompile(`(?i)\b(?:order|invoice|p\.?o\.?)\s*#?\s*\d{3,}\b`)

	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[2-9]\d{2}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`)
)

// EntityExtractor pulls product, quantity, order-number and phone-number
// mentions out of bounded email text.
type EntityExtractor struct {
	productRe *regexp.Regexp
	orderRe   *regexp.Regexp
}

// NewEntityExtractor compiles the configured vocabulary and order prefixes.
// Nil slices fall back to the defaults.
func NewEntityExtractor(vocabulary, orderPrefixes []string) *EntityExtractor {
	if len(vocabulary) == 0 {
		vocabulary = DefaultProductVocabulary
	}
	if len(orderPrefixes) == 0 {
		orderPrefixes = DefaultOrderPrefixes
	}

	vocabAlts := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		v = strings.TrimSpace(strings.ToLower(v))
		if v != "" {
			vocabAlts = append(vocabAlts, regexp.QuoteMeta(v))
		}
	}
	prefixAlts := make([]string, 0, len(orderPrefixes))
	for _, p := range orderPrefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			prefixAlts = append(prefixAlts, regexp.QuoteMeta(p))
		}
	}

	return &EntityExtractor{
		productRe: regexp.MustCompile(`(?i)\b(?:` + strings.Join(vocabAlts, "|") + `)[a-z]*`),
		orderRe:   regexp.MustCompile(`(?i)\b(?:` + strings.Join(prefixAlts, "|") + `)-?\d{3,}\b`),
	}
}

// Extract runs all entity extractors over text. Match order is preserved
// per category and duplicates are removed.
func (e *EntityExtractor) Extract(text string) domain.DetectedEntities {
	if text == "" {
		return domain.DetectedEntities{}
	}

	products := collect(e.productRe.FindAllString(text, -1), strings.ToLower)
	products = appendUnique(products, collect(casNumberRe.FindAllString(text, -1), nil)...)
	products = appendUnique(products, collect(unNumberRe.FindAllString(text, -1), strings.ToUpper)...)

	quantities := collect(quantityRe.FindAllString(text, -1), strings.ToLower)
	quantities = appendUnique(quantities, collect(compositeQtyRe.FindAllString(text, -1), strings.ToLower)...)

	orders := collect(orderPhraseRe.FindAllString(text, -1), nil)
	orders = appendUnique(orders, collect(e.orderRe.FindAllString(text, -1), strings.ToUpper)...)

	return domain.DetectedEntities{
		Products:     products,
		Quantities:   quantities,
		OrderNumbers: orders,
		PhoneNumbers: collect(phoneRe.FindAllString(text, -1), nil),
	}
}

// collect dedupes matches preserving first-seen order, applying norm first
// when given.
func collect(matches []string, norm func(string) string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if norm != nil {
			m = norm(m)
		}
		m = strings.TrimSpace(m)
		if _, ok := seen[m]; ok || m == "" {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func appendUnique(dst []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(extra))
	for _, d := range dst {
		seen[d] = struct{}{}
	}
	for _, e := range extra {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		dst = append(dst, e)
	}
	return dst
}
