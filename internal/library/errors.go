package library

import (
	"errors"

	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

// Sentinel errors for catalog operations. The API layer maps these onto
// HTTP statuses; ErrFolderExists and MergeConflictError carry the exact
// messages clients match on, so their text must not change.
var (
	ErrNotFound       = errors.New("not found")
	ErrNotFolder      = errors.New("not a folder")
	ErrNotFile        = errors.New("not a file")
	ErrInvalidName    = errors.New("invalid name")
	ErrFolderExists   = errors.New(protocol.ErrMsgFolderExists)
	ErrFileExists     = errors.New("File already exists")
	ErrFolderNotEmpty = errors.New("Folder not empty")
	ErrIsRoot         = errors.New("operation not allowed on the root folder")
)

// MergeConflictError reports the destination paths a folder merge would
// overwrite. The merge is rejected wholesale; nothing is moved.
type MergeConflictError struct {
	Conflicts []string
}

func (e *MergeConflictError) Error() string { return protocol.ErrMsgMergeConflicts }

// AsMergeConflict extracts a MergeConflictError from an error chain.
func AsMergeConflict(err error) (*MergeConflictError, bool) {
	var mc *MergeConflictError
	if errors.As(err, &mc) {
		return mc, true
	}
	return nil, false
}
