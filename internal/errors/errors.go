package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business error.
type Kind int

const (
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = iota + 1
	// KindValidation means the input is malformed or collides with a unique key.
	KindValidation
	// KindRuleViolation means a state-dependent business rule forbids the operation.
	KindRuleViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindRuleViolation:
		return "rule_violation"
	default:
		return "unknown"
	}
}

// BusinessError is the root of every error the core raises on purpose.
type BusinessError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Is matches on Code when the target carries one, otherwise on Kind.
func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// Error codes.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeValidation            = "VALIDATION_ERROR"
	CodeRuleViolation         = "RULE_VIOLATION"
	CodeBookNotFound          = "BOOK_NOT_FOUND"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeLoanNotFound          = "LOAN_NOT_FOUND"
	CodeInvalidBook           = "INVALID_BOOK"
	CodeInvalidUser           = "INVALID_USER"
	CodeInvalidLoan           = "INVALID_LOAN"
	CodeNotAStudent           = "NOT_A_STUDENT"
	CodeDuplicateBook         = "DUPLICATE_BOOK"
	CodeDuplicateUsername     = "DUPLICATE_USERNAME"
	CodeDuplicateEmail        = "DUPLICATE_EMAIL"
	CodeNoStock               = "NO_STOCK"
	CodeLoanAlreadyReturned   = "LOAN_ALREADY_RETURNED"
	CodeLoanStillActive       = "LOAN_STILL_ACTIVE"
	CodeDuplicateActiveLoan   = "DUPLICATE_ACTIVE_LOAN"
	CodeBorrowingLimitReached = "BORROWING_LIMIT_REACHED"
	CodeBookHasActiveLoans    = "BOOK_HAS_ACTIVE_LOANS"
	CodeUserHasActiveLoans    = "USER_HAS_ACTIVE_LOANS"
	CodeLastLibrarian         = "LAST_LIBRARIAN"
)

var (
	// ErrNotFound matches every not-found error.
	ErrNotFound = &BusinessError{Kind: KindNotFound}
	// ErrValidation matches every validation error.
	ErrValidation = &BusinessError{Kind: KindValidation}
	// ErrRuleViolation matches every rule violation.
	ErrRuleViolation = &BusinessError{Kind: KindRuleViolation}

	ErrBookNotFound          = &BusinessError{Kind: KindNotFound, Code: CodeBookNotFound}
	ErrUserNotFound          = &BusinessError{Kind: KindNotFound, Code: CodeUserNotFound}
	ErrLoanNotFound          = &BusinessError{Kind: KindNotFound, Code: CodeLoanNotFound}
	ErrNotAStudent           = &BusinessError{Kind: KindValidation, Code: CodeNotAStudent}
	ErrDuplicateBook         = &BusinessError{Kind: KindValidation, Code: CodeDuplicateBook}
	ErrDuplicateUsername     = &BusinessError{Kind: KindValidation, Code: CodeDuplicateUsername}
	ErrDuplicateEmail        = &BusinessError{Kind: KindValidation, Code: CodeDuplicateEmail}
	ErrNoStock               = &BusinessError{Kind: KindRuleViolation, Code: CodeNoStock}
	ErrLoanAlreadyReturned   = &BusinessError{Kind: KindRuleViolation, Code: CodeLoanAlreadyReturned}
	ErrLoanStillActive       = &BusinessError{Kind: KindRuleViolation, Code: CodeLoanStillActive}
	ErrDuplicateActiveLoan   = &BusinessError{Kind: KindRuleViolation, Code: CodeDuplicateActiveLoan}
	ErrBorrowingLimitReached = &BusinessError{Kind: KindRuleViolation, Code: CodeBorrowingLimitReached}
	ErrBookHasActiveLoans    = &BusinessError{Kind: KindRuleViolation, Code: CodeBookHasActiveLoans}
	ErrUserHasActiveLoans    = &BusinessError{Kind: KindRuleViolation, Code: CodeUserHasActiveLoans}
	ErrLastLibrarian         = &BusinessError{Kind: KindRuleViolation, Code: CodeLastLibrarian}
)

// NotFound builds a not-found error.
func NotFound(code, format string, args ...any) *BusinessError {
	return &BusinessError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error.
func Validation(code, format string, args ...any) *BusinessError {
	return &BusinessError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// RuleViolation builds a business rule violation.
func RuleViolation(code, format string, args ...any) *BusinessError {
	return &BusinessError{Kind: KindRuleViolation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a business error anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps business errors to HTTP errors. Anything that is not a
// BusinessError is reported as an opaque internal error.
func MapErrorToHTTP(err error) *HTTPError {
	var be *BusinessError
	if !errors.As(err, &be) {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	code := be.Code
	switch be.Kind {
	case KindNotFound:
		if code == "" {
			code = CodeNotFound
		}
		return NewHTTPError(http.StatusNotFound, be.Error(), code)
	case KindValidation:
		if code == "" {
			code = CodeValidation
		}
		return NewHTTPError(http.StatusBadRequest, be.Error(), code)
	case KindRuleViolation:
		if code == "" {
			code = CodeRuleViolation
		}
		return NewHTTPError(http.StatusConflict, be.Error(), code)
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
