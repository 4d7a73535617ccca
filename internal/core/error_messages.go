package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// Codes are grouped by category:
//
//	VAL001 - Title missing           VAL002 - File missing
//	VAL003 - File too large          VAL004 - Missing Question/Answer column
//	VAL005 - No usable rows          VAL006 - Not a readable CSV
//	VAL007 - Invalid amount          VAL008 - Amount too large
//	VAL000 - Other validation failure
//
//	WS001  - Word set not found (or not yours)
//	WS002  - Word set belongs to another user
//
//	CHR001 - Character missing for user (data fault)
//	CHR002 - Character changed concurrently
//
//	DB001  - Store unavailable       DB002 - Deadlock / serialization
//	DB003  - Constraint violation
//
//	UPL001 - Too many uploads        UPL002 - Request cancelled
//	UPL003 - Request timed out
//
//	RATE001 - Rate limited
//	ERR000  - Unknown error
//
// Sentinel errors are matched first with errors.Is; raw driver errors that
// reach here unwrapped fall back to case-insensitive substring patterns.
// The first match wins, so specific entries come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/studyquest/internal/wordcsv"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrTitleRequired, UserMessage{"Word set title is required", "Enter a title for the word set", "VAL001"}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a CSV file to upload", "VAL002"}},
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the word list into smaller files", "VAL003"}},
	{wordcsv.ErrMissingColumn, UserMessage{"Required column is missing", "Use the template: the header must be Question,Answer", "VAL004"}},
	{wordcsv.ErrEmptyFile, UserMessage{"The uploaded file is empty", "Please upload a CSV file with data rows", "VAL005"}},
	{wordcsv.ErrNoRecords, UserMessage{"The file has no valid words", "Check the Question,Answer format", "VAL005"}},
	{wordcsv.ErrInvalidCSV, UserMessage{"File is not a valid CSV", "Save the sheet as comma-separated values", "VAL006"}},
	{ErrNegativeAmount, UserMessage{"Amount must not be negative", "Send a positive value", "VAL007"}},
	{ErrAmountTooLarge, UserMessage{"Amount is too large for a single grant", "Split it into smaller grants", "VAL008"}},
	{ErrValidation, UserMessage{"The request is invalid", "Check the submitted values", "VAL000"}},

	{ErrIntegrity, UserMessage{"Your character record is missing", "Please contact support", "CHR001"}},
	{ErrCharacterConflict, UserMessage{"Your character was updated at the same time", "Please try again", "CHR002"}},

	{ErrNotFound, UserMessage{"Word set not found", "It may have been deleted, or it belongs to someone else", "WS001"}},
	{ErrForbidden, UserMessage{"You do not have permission to delete this word set", "Only the owner can delete a word set", "WS002"}},

	{ErrTooManyUploads, UserMessage{"System is busy processing other uploads", "Please wait a moment and try again", "UPL001"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "UPL002"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL003"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"deadlock", UserMessage{"The store was busy with conflicting operations", "Please try again", "DB002"}},
	{"could not serialize", UserMessage{"The store was busy with conflicting operations", "Please try again", "DB002"}},
	{"database is locked", UserMessage{"The store was busy with conflicting operations", "Please try again", "DB002"}},
	{"violates", UserMessage{"The data conflicts with existing records", "Check your input and try again", "DB003"}},
	{"constraint", UserMessage{"The data conflicts with existing records", "Check your input and try again", "DB003"}},
	{"connection refused", UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB001"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// storeMessage is used for ErrStore when no more specific pattern matched.
var storeMessage = UserMessage{
	Message: "The service could not complete the operation",
	Action:  "Nothing was saved. Please try again",
	Code:    "DB001",
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the server log for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrStore) {
		return storeMessage
	}
	return defaultMessage
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
