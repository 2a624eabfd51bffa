package classification

import (
	"regexp"
	"strings"
)

// signaturePatterns are tried in this order; the first match wins.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`【.*?】`),
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`（.*?）`),
	regexp.MustCompile(`\(.*?\)`),
}

// every delimiter glyph is stripped, whichever pattern matched
var bracketStripper = strings.NewReplacer(
	"【", "", "】", "",
	"[", "", "]", "",
	"（", "", "）", "",
	"(", "", ")", "",
)

// SignatureExtractor pulls the bracketed brand tag out of message content.
type SignatureExtractor struct{}

// NewSignatureExtractor creates a signature extractor.
func NewSignatureExtractor() *SignatureExtractor {
	return &SignatureExtractor{}
}

// Extract returns the signature of content. A match that is empty once the
// brackets are removed counts as no signature.
func (e *SignatureExtractor) Extract(content string) (string, bool) {
	for _, p := range signaturePatterns {
		match := p.FindString(content)
		if match == "" {
			continue
		}
		signature := bracketStripper.Replace(match)
		if signature == "" {
			return "", false
		}
		return signature, true
	}
	return "", false
}
