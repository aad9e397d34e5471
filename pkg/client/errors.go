package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

// ErrOffline is returned when the server is offline.
var ErrOffline = errors.New("server is offline")

// FolderExistsError is returned when a folder rename or move targets a name
// that already exists and no merge was requested.
type FolderExistsError struct {
	Path string // the occupied destination path
}

func (e *FolderExistsError) Error() string {
	return fmt.Sprintf("%s: %s", protocol.ErrMsgFolderExists, e.Path)
}

// AsFolderExists checks if an error is a FolderExistsError and returns it.
func AsFolderExists(err error) (*FolderExistsError, bool) {
	var fe *FolderExistsError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// MergeConflictError is returned when a requested folder merge would
// overwrite files. Conflicts lists the destination-relative paths that clash.
type MergeConflictError struct {
	Path      string
	Conflicts []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("%s: %s [%s]", protocol.ErrMsgMergeConflicts, e.Path,
		strings.Join(e.Conflicts, ", "))
}

// AsMergeConflict checks if an error is a MergeConflictError and returns it.
func AsMergeConflict(err error) (*MergeConflictError, bool) {
	var me *MergeConflictError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
