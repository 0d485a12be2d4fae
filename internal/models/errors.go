package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes shared by services and HTTP handlers.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeSelfConversation        = "SELF_CONVERSATION"
	CodeNotFound                = "NOT_FOUND"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeNotAuthorized           = "NOT_AUTHORIZED"
	CodeBlocked                 = "BLOCKED"
	CodeSenderBlocked           = "SENDER_BLOCKED"
	CodeSenderMuted             = "SENDER_MUTED"
	CodePlayerBanned            = "PLAYER_BANNED"
	CodeConversationNotAccepted = "CONVERSATION_NOT_ACCEPTED"
	CodeReportAlreadyResolved   = "REPORT_ALREADY_RESOLVED"
	CodeNotEligible             = "NOT_ELIGIBLE"
	CodeDuplicateRating         = "DUPLICATE_RATING"
	CodeDuplicateConversation   = "DUPLICATE_CONVERSATION"
	CodeListingAlreadySold      = "LISTING_ALREADY_SOLD"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so the
// sentinels below can be matched with errors.Is regardless of message.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks. Constructors below return fresh values
// carrying a specific message.
var (
	ErrValidation              = &AppError{Code: CodeValidation, Message: "validation failed"}
	ErrSelfConversation        = &AppError{Code: CodeSelfConversation, Message: "cannot start a conversation with yourself"}
	ErrNotFound                = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrNotAuthorized           = &AppError{Code: CodeNotAuthorized, Message: "not authorized"}
	ErrBlocked                 = &AppError{Code: CodeBlocked, Message: "messaging is blocked between these players"}
	ErrSenderBlocked           = &AppError{Code: CodeSenderBlocked, Message: "you were blocked by the other participant"}
	ErrSenderMuted             = &AppError{Code: CodeSenderMuted, Message: "you are muted and cannot send messages"}
	ErrPlayerBanned            = &AppError{Code: CodePlayerBanned, Message: "your account is banned from the marketplace"}
	ErrConversationNotAccepted = &AppError{Code: CodeConversationNotAccepted, Message: "conversation has not been accepted"}
	ErrReportAlreadyResolved   = &AppError{Code: CodeReportAlreadyResolved, Message: "report has already been resolved"}
	ErrNotEligible             = &AppError{Code: CodeNotEligible, Message: "transaction is not eligible for rating"}
	ErrDuplicateRating         = &AppError{Code: CodeDuplicateRating, Message: "you have already rated this transaction"}
	ErrDuplicateConversation   = &AppError{Code: CodeDuplicateConversation, Message: "conversation already exists"}
	ErrListingAlreadySold      = &AppError{Code: CodeListingAlreadySold, Message: "listing has already been marked as sold"}
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewNotAuthorizedError reports an authenticated actor acting outside its role.
func NewNotAuthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeNotAuthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && status < fiber.StatusInternalServerError {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// IsSchemaMissingError reports errors raised against tables that have not
// been migrated yet.
func IsSchemaMissingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "does not exist")
}
