package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"posimport/internal"
	"posimport/internal/util"
)

type ValidationIssue struct {
	RowNumber int
	Field     internal.FieldName
	Message   string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("Row %d: %s", i.RowNumber, i.Message)
}

func ValidateRecord(rec NormalizedRecord) []ValidationIssue {
	issues := []ValidationIssue{}
	add := func(field internal.FieldName, msg string) {
		issues = append(issues, ValidationIssue{RowNumber: rec.RowNumber, Field: field, Message: msg})
	}

	if len([]rune(strings.TrimSpace(rec.Name))) < 2 {
		add(internal.FieldCustomerName, "name must have at least 2 characters")
	}
	if len(util.Digits(rec.Phone)) < 10 {
		add(internal.FieldPhone, "phone must have at least 10 digits")
	}
	if rec.Email != "" && !strings.Contains(rec.Email, "@") {
		add(internal.FieldEmail, fmt.Sprintf("invalid email %q", rec.Email))
	}

	if rec.BirthDay != "" {
		day, err := strconv.Atoi(rec.BirthDay)
		if err != nil || day < 1 || day > 31 {
			add(internal.FieldBirthDay, fmt.Sprintf("birth day %q must be between 1 and 31", rec.BirthDay))
		}
	}
	if rec.BirthMonth != "" {
		if _, ok := MonthNumber(rec.BirthMonth); !ok {
			add(internal.FieldBirthMonth, fmt.Sprintf("birth month %q must be between 1 and 12", rec.BirthMonth))
		}
	}
	if rec.BirthDay != "" && rec.BirthMonth == "" {
		add(internal.FieldBirthMonth, "birth day given without birth month")
	}
	if rec.BirthMonth != "" && rec.BirthDay == "" {
		add(internal.FieldBirthDay, "birth month given without birth day")
	}

	if rec.RawPoints != "" && rec.Points == nil {
		add(internal.FieldPoints, fmt.Sprintf("points %q is not a number", rec.RawPoints))
	}
	if rec.RawTotalSpent != "" && rec.TotalSpent == nil {
		add(internal.FieldTotalSpent, fmt.Sprintf("total spent %q is not a number", rec.RawTotalSpent))
	}

	return issues
}
