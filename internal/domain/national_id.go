package domain

import "regexp"

// Account ids are 14-digit national ids: century digit (2|3), YYMMDD birth date, 7 digits.
var nationalIDPattern = regexp.MustCompile(`^([23])([0-9]{2})(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])([0-9]{7})$`)

// ValidAccountID reports whether id has the national id shape.
func ValidAccountID(id string) bool {
	return nationalIDPattern.MatchString(id)
}
