package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

// uuidShape is deliberately loose: 36 hex digits or hyphens, in any arrangement.
var uuidShape = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

const (
	maxNicknameLength = 16
	maxNicknameDigits = 2
	maxNicknameSpaces = 1
	maxRepeatedRun    = 2
)

// IsUUID reports whether id has the shape of a user identifier.
func IsUUID(id string) bool {
	return uuidShape.MatchString(id)
}

func ValidateNickname(nickname string) ValidationErrors {
	errs := make(ValidationErrors)

	if nickname == "" {
		errs.Add("nickname", "Nickname required")
		return errs
	}

	switch {
	case utf8.RuneCountInString(nickname) > maxNicknameLength:
		errs.Add("nickname", "Max 16 characters")
	case countDigits(nickname) > maxNicknameDigits:
		errs.Add("nickname", "At most 2 digits")
	case strings.Count(nickname, " ") > maxNicknameSpaces:
		errs.Add("nickname", "Only one space allowed")
	case longestRun(nickname) > maxRepeatedRun:
		errs.Add("nickname", "No more than 3 identical letters in a row")
	}

	return errs
}

func ValidateReport(reason string) ValidationErrors {
	errs := make(ValidationErrors)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		errs.Add("reason", "Reason is required")
	} else if len(reason) > 500 {
		errs.Add("reason", "Reason is too long")
	}

	return errs
}

func countDigits(s string) int {
	n := 0
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			n++
		}
	}
	return n
}

func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, ch := range s {
		if ch == prev {
			run++
		} else {
			run = 1
			prev = ch
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
