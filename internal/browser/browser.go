// Package browser implements the client-side consistency engine behind the
// two synchronized explorer views: the folder tree and the file list. It
// mirrors remote state locally, keeps the two panes coherent across
// concurrent fetches, and coordinates rename, move, merge, and delete flows
// against the remote service.
package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
)

// PaneID identifies one of the two synchronized views.
type PaneID string

const (
	// PaneTree is the folder hierarchy pane.
	PaneTree PaneID = "tree"
	// PaneFiles is the file list pane for the selected folder.
	PaneFiles PaneID = "files"
)

// SortKey selects the file list ordering.
type SortKey string

const (
	SortByName SortKey = "name"
	SortByDate SortKey = "date"
	SortBySize SortKey = "size"
	SortByType SortKey = "type"
)

// Row is one visible entry in a pane.
type Row struct {
	Path        string
	Name        string
	IsDir       bool
	Size        int64
	ModTime     time.Time
	Depth       int  // tree pane indent level
	Expanded    bool // tree pane
	HasChildren bool // tree pane; true while unknown
}

// Service is the remote storage API the engine drives. *client.Client
// satisfies it.
type Service interface {
	ListRoot(ctx context.Context) ([]models.Node, error)
	ListChildren(ctx context.Context, path string) ([]models.Node, error)
	ListFiles(ctx context.Context, folderPath string) ([]models.Node, error)
	FolderStats(ctx context.Context, path string) (models.FolderStats, error)
	RenameFile(ctx context.Context, path, newName string) (string, error)
	RenameFolder(ctx context.Context, path, newName string, merge bool) (string, error)
	MoveFile(ctx context.Context, path, destination string, copy bool) (string, error)
	MoveFolder(ctx context.Context, path, destination string, merge, copy bool) (string, error)
	DeleteFile(ctx context.Context, path string) error
	DeleteFolder(ctx context.Context, path string, recursive bool) error
}

// Notifier receives view change notifications. Calls are made synchronously
// while the engine holds its lock, so implementations must not call back
// into the Browser.
type Notifier interface {
	SelectionChanged(pane PaneID, selected []string)
	ExpansionChanged(expanded []string)
	OperationProgress(done, total int)
}

type noopNotifier struct{}

func (noopNotifier) SelectionChanged(PaneID, []string) {}
func (noopNotifier) ExpansionChanged([]string)         {}
func (noopNotifier) OperationProgress(int, int)        {}

// Browser is the engine root. All exported methods are safe for concurrent
// use; remote calls run without the lock held so a later request can
// supersede an in-flight one.
type Browser struct {
	svc      Service
	notifier Notifier
	log      *zap.Logger
	seq      *sequencer

	mu sync.Mutex

	root           *models.Node    // folder tree, path "" at the root
	expanded       map[string]bool // folder path -> expanded in tree pane
	loadedChildren map[string]bool // folder path -> subfolder listing fetched

	treePane pane
	filePane pane

	fileItems []models.Node // current folder listing in server order
	filter    string
	sortKey   SortKey
	sortAsc   bool

	currentFolder string // folder whose files are listed; "" before load
	stats         models.FolderStats
	statsPath     string

	transfer transferState
	edit     editState
	drag     dragState
}

// New creates a Browser over the given remote service. A nil notifier is
// replaced with a no-op one.
func New(svc Service, n Notifier) *Browser {
	if n == nil {
		n = noopNotifier{}
	}
	return &Browser{
		svc:            svc,
		notifier:       n,
		log:            logging.Named("browser"),
		seq:            newSequencer(),
		expanded:       make(map[string]bool),
		loadedChildren: make(map[string]bool),
		treePane:       newPane(PaneTree),
		filePane:       newPane(PaneFiles),
		sortKey:        SortByName,
		sortAsc:        true,
	}
}

// Start performs the initial root load and selects the first visible folder.
func (b *Browser) Start(ctx context.Context) error {
	if err := b.loadRoot(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	var first string
	if len(b.treePane.rows) > 0 {
		first = b.treePane.rows[0].Path
	}
	b.mu.Unlock()

	if first == "" {
		return nil
	}
	return b.SelectFolder(ctx, first)
}

// TreeRows returns the visible folder rows.
func (b *Browser) TreeRows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.treePane.rows))
	copy(out, b.treePane.rows)
	return out
}

// FileRows returns the visible file rows after filter and sort.
func (b *Browser) FileRows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Row, len(b.filePane.rows))
	copy(out, b.filePane.rows)
	return out
}

// Selected returns the selected paths of a pane in visible order.
func (b *Browser) Selected(id PaneID) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pane(id).selectedInOrder()
}

// CurrentFolder returns the folder whose files are listed.
func (b *Browser) CurrentFolder() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentFolder
}

// Expanded returns the expanded folder paths in depth order.
func (b *Browser) Expanded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expandedListLocked()
}

// Stats returns the last loaded folder statistics and the folder they
// describe.
func (b *Browser) Stats() (models.FolderStats, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, b.statsPath
}

// Filter returns the current file list filter text.
func (b *Browser) Filter() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// Sort returns the current file list sort key and direction.
func (b *Browser) Sort() (SortKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortKey, b.sortAsc
}

// pane resolves a pane by id. Unknown ids resolve to the files pane.
func (b *Browser) pane(id PaneID) *pane {
	if id == PaneTree {
		return &b.treePane
	}
	return &b.filePane
}

// Click selects a single item. In the tree pane it also opens the folder,
// loading its file list and statistics.
func (b *Browser) Click(ctx context.Context, id PaneID, path string) error {
	if id == PaneTree {
		return b.SelectFolder(ctx, path)
	}

	b.mu.Lock()
	b.filePane.selectSingle(path, b.notifier)
	b.mu.Unlock()
	return nil
}

// CtrlClick toggles an item's membership in the pane selection.
func (b *Browser) CtrlClick(id PaneID, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pane(id).toggle(path, b.notifier)
}

// ShiftClick extends the selection from the anchor to the target. With
// additive set the range is added to the existing selection instead of
// replacing it.
func (b *Browser) ShiftClick(id PaneID, path string, additive bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pane(id).selectRange(path, additive, b.notifier)
}

// SelectAll selects every visible row of a pane.
func (b *Browser) SelectAll(id PaneID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pane(id).selectAll(b.notifier)
}

// ClearSelection empties a pane's selection.
func (b *Browser) ClearSelection(id PaneID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pane(id).clear(b.notifier)
}

// fold normalizes a name for case-insensitive matching and ordering.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// ext returns the lowercase extension of a name including the dot, or "".
func ext(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}
