package usecase

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"qbank/internal/domain"
)

type answerKind int

const (
	answerAbsent answerKind = iota
	answerNumeric
	answerOptionText
	answerPassthrough
)

// answerCase is the classified form of a raw answer. option is 1-based and
// only set for answerNumeric and answerOptionText.
type answerCase struct {
	kind   answerKind
	option int
}

func classifyAnswer(raw *string, options [domain.NumOptions]*string) answerCase {
	if raw == nil {
		return answerCase{kind: answerAbsent}
	}
	if n, ok := optionIndex(*raw); ok {
		return answerCase{kind: answerNumeric, option: n}
	}
	want := strings.TrimSpace(*raw)
	for i, opt := range options {
		if opt != nil && strings.TrimSpace(*opt) == want {
			return answerCase{kind: answerOptionText, option: i + 1}
		}
	}
	return answerCase{kind: answerPassthrough}
}

// ResolveAnswer maps a stored answer to display text. A numeric code 1..5
// selects that option (nil if the option is empty), text equal to an option
// selects that option, anything else is returned unchanged. It never fails.
func ResolveAnswer(raw *string, rec domain.QuestionRecord) *string {
	c := classifyAnswer(raw, rec.Options)
	switch c.kind {
	case answerNumeric, answerOptionText:
		return rec.Option(c.option)
	case answerPassthrough:
		return raw
	default:
		return nil
	}
}

// optionIndex parses an option code in [1, NumOptions]. Decimal digits of
// any script count, so a Bengali "২" selects option 2.
func optionIndex(raw string) (int, bool) {
	n, err := strconv.Atoi(foldDigits(strings.TrimSpace(raw)))
	if err != nil || n < 1 || n > domain.NumOptions {
		return 0, false
	}
	return n, true
}

// foldDigits rewrites every Unicode decimal digit as its ASCII form.
func foldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf || !unicode.IsDigit(r) {
			return r
		}
		return '0' + digitValue(r)
	}, s)
}

// digitValue returns the value of a decimal digit. Decimal digits are
// assigned in contiguous runs of ten starting at zero, and adjacent runs
// stay aligned, so the offset from the start of the run gives the value.
func digitValue(r rune) rune {
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return (r - start) % 10
}
