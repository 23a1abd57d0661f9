package deployer

import (
	"regexp"
	"strings"
)

// The deploy and activation tools have no structured output channel:
// addresses, transaction hashes, and "already done" conditions all
// arrive as free text whose phrasing is unversioned. Every rule for
// interpreting that text lives in this file and nowhere else.

var (
	// Trailing \b keeps a 40-digit prefix of a 64-digit transaction
	// hash from matching as an address.
	addressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	txHashPattern  = regexp.MustCompile(`\b0x[0-9a-fA-F]{64}\b`)
)

// ExtractAddress finds the first 0x-prefixed 40-hex-digit token in the
// text and returns it unchanged in case. This is the authoritative
// success signal for the deploy step.
func ExtractAddress(text string) (string, bool) {
	m := addressPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// ExtractTxHash finds the first 0x-prefixed 64-hex-digit token in the
// text, used to poll for transaction confirmation.
func ExtractTxHash(text string) (string, bool) {
	m := txHashPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// benignPatterns lists, per stage, the tool phrasings that mean "the
// desired end state was already reached". Matching is case-insensitive
// substring search. Stages absent from the map have no benign
// failures: any non-zero exit is fatal.
var benignPatterns = map[Stage][]string{
	StageActivate: {
		"already up to date",
		"already activated",
	},
	StageFactoryActivate: {
		"already up to date",
		"already activated",
	},
	StageCacheBid: {
		"already cached",
	},
}

// Verdict is the result of classifying a failed step's output.
type Verdict struct {
	Benign bool
	Reason string
}

// Classify decides whether a step's failure output denotes a benign,
// continuable condition or a fatal one. Pure: the same text and stage
// always produce the same verdict.
func Classify(stage Stage, stderr string) Verdict {
	lowered := strings.ToLower(stderr)
	for _, pattern := range benignPatterns[stage] {
		if strings.Contains(lowered, pattern) {
			return Verdict{Benign: true, Reason: pattern}
		}
	}
	return Verdict{}
}
