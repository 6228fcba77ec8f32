package describe

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// User-facing refresh failure messages. Every failed Refresh carries exactly
// one of them.
const (
	MsgInvalidRecordType = "The survey record type is no longer available. Contact your administrator."
	MsgNoEditableFields  = "The survey layout has no editable fields. Contact your administrator."
	MsgUnexpected        = "An unexpected error occurred while downloading survey settings. Please try again."
)

// CategoryUnexpected labels refresh failures without a known remote code.
const CategoryUnexpected = "unexpected"

// RefreshError is returned by Cache.Refresh. Message is safe to show to a
// user; Err keeps the underlying cause.
type RefreshError struct {
	Category string
	Message  string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is matches ErrUnexpected for failures that have no known remote code.
func (e *RefreshError) Is(target error) bool {
	return target == types.ErrUnexpected && e.Category == CategoryUnexpected
}

// translate maps a refresh failure to its user-facing message. The two known
// remote codes get specific messages; everything else is unexpected.
func translate(err error) *RefreshError {
	switch code := types.RemoteCode(err); code {
	case types.CodeInvalidRecordType:
		return &RefreshError{Category: code, Message: MsgInvalidRecordType, Err: err}
	case types.CodeNoEditableFields:
		return &RefreshError{Category: code, Message: MsgNoEditableFields, Err: err}
	default:
		return &RefreshError{Category: CategoryUnexpected, Message: MsgUnexpected, Err: err}
	}
}

// UserMessage returns the message to show for a refresh failure.
func UserMessage(err error) string {
	var re *RefreshError
	if errors.As(err, &re) {
		return re.Message
	}
	return MsgUnexpected
}
