// Command explorer is an interactive dual-pane shell for a metadata-remote
// server. It drives the same browser engine a graphical client would: a
// folder tree pane and a file list pane kept in sync, with selection,
// filtering, sorting, rename with merge confirmation, drag-style move/copy,
// and bulk delete with a preview.
//
// Authenticate once with "explorer login", then run "explorer" to start the
// shell. Type "help" at the prompt for the command list.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Vincenzoferrara/metadata-remote/internal/browser"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/pkg/client"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	token := flag.String("token", "", "JWT authentication token")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	logLevel := flag.String("log-level", "error", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "login":
			cmdLogin(args[1:])
			return
		case "logout":
			cmdLogout()
			return
		case "help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			printUsage()
			os.Exit(1)
		}
	}

	if err := logging.Init(logging.Config{Level: *logLevel, Format: "console"}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	base := strings.TrimSuffix(*serverURL, "/")

	if *token == "" {
		*token = os.Getenv("MDR_TOKEN")
	}
	if *token == "" {
		if tf, err := client.LoadToken(); err == nil {
			if tf.IsExpired(time.Minute) {
				fmt.Fprintln(os.Stderr, "Error: saved token has expired. Run 'explorer login' to authenticate.")
				os.Exit(1)
			}
			*token = tf.Token
			if tf.Server != "" && !flagWasSet("server") {
				base = strings.TrimSuffix(tf.Server, "/")
			}
		}
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: no token available. Use -token, MDR_TOKEN, or run 'explorer login'.")
		os.Exit(1)
	}

	cli := client.New(client.Config{
		BaseURL:   base,
		Timeout:   *timeout,
		AuthToken: *token,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := &shell{
		eng:    browser.New(cli, consoleNotifier{}),
		cli:    cli,
		server: base,
		token:  *token,
		out:    os.Stdout,
	}

	fmt.Printf("Connecting to %s...\n", base)
	if err := sh.eng.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading folder tree: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected. Type 'help' for commands, 'quit' to exit.")
	sh.cmdTree()
	sh.run(ctx)
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// ─── Login / logout ─────────────────────────────────────────────────────────

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "Server URL")
	fs.Parse(args)

	c := client.New(client.Config{
		BaseURL: strings.TrimSuffix(*serverURL, "/"),
		Timeout: 30 * time.Second,
	})

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}

	resp, err := c.Login(context.Background(), username, string(passwordBytes))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tf := &client.TokenFile{
		Token:     resp.Token,
		ExpiresAt: time.Unix(resp.ExpiresAt, 0),
		Server:    *serverURL,
		Username:  resp.Username,
	}
	if err := client.SaveToken(tf); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save token: %v\n", err)
	}
	fmt.Printf("Login successful! Token saved to %s\n", client.TokenFilePath())
}

func cmdLogout() {
	if err := client.DeleteToken(); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No saved token")
			return
		}
		fmt.Fprintf(os.Stderr, "Error removing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Token removed")
}

// ─── Shell ──────────────────────────────────────────────────────────────────

// shell owns the interactive session: the engine, the client, and the
// optional change-feed watcher.
type shell struct {
	eng    *browser.Browser
	cli    *client.Client
	server string
	token  string
	out    *os.File

	watchCancel context.CancelFunc
}

// consoleNotifier prints engine notifications as they arrive. The engine
// calls it while holding its lock, so it only writes to stdout.
type consoleNotifier struct{}

func (consoleNotifier) SelectionChanged(pane browser.PaneID, selected []string) {
	if len(selected) == 0 {
		return
	}
	fmt.Printf("  [%s] %d selected\n", pane, len(selected))
}

func (consoleNotifier) ExpansionChanged([]string) {}

func (consoleNotifier) OperationProgress(done, total int) {
	fmt.Printf("  progress %d/%d\n", done, total)
}

func (s *shell) run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "tree", "t":
			s.cmdTree()
		case "files", "ls":
			s.cmdFiles()
		case "cd":
			s.cmdCd(ctx, args)
		case "open":
			s.cmdExpand(ctx, args, true)
		case "close":
			s.cmdExpand(ctx, args, false)
		case "toggle":
			s.cmdToggle(ctx, args)
		case "click":
			s.cmdClick(ctx, args)
		case "ctrl":
			s.cmdCtrlClick(args)
		case "shift":
			s.cmdShiftClick(args)
		case "all":
			s.cmdSelectAll(args)
		case "none":
			s.cmdClearSelection(args)
		case "sel":
			s.cmdShowSelection(args)
		case "filter":
			s.cmdFilter(args)
		case "sort":
			s.cmdSort(args)
		case "rename":
			s.cmdRename(ctx, scanner, args)
		case "mv":
			s.cmdMove(ctx, scanner, args, false)
		case "cp":
			s.cmdMove(ctx, scanner, args, true)
		case "rm":
			s.cmdDelete(ctx, scanner, args)
		case "stats":
			s.cmdStats()
		case "refresh", "r":
			s.cmdRefresh(ctx)
		case "watch":
			s.cmdWatch(ctx)
		case "unwatch":
			s.cmdUnwatch()
		case "status":
			s.cmdStatus(ctx)
		case "help", "?":
			printShellHelp()
		case "quit", "exit", "q":
			s.cmdUnwatch()
			return
		default:
			fmt.Printf("Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

// ─── Pane rendering ─────────────────────────────────────────────────────────

func (s *shell) cmdTree() {
	rows := s.eng.TreeRows()
	if len(rows) == 0 {
		fmt.Println("(no folders)")
		return
	}
	current := s.eng.CurrentFolder()
	selected := toSet(s.eng.Selected(browser.PaneTree))

	for _, row := range rows {
		marker := "  "
		if row.Expanded {
			marker = "▾ "
		} else if row.HasChildren {
			marker = "▸ "
		}
		sel := " "
		if selected[row.Path] {
			sel = "*"
		}
		cur := " "
		if row.Path == current {
			cur = ">"
		}
		fmt.Printf("%s%s %s%s%s\n", cur, sel, strings.Repeat("  ", row.Depth), marker, row.Name)
	}
}

func (s *shell) cmdFiles() {
	folder := s.eng.CurrentFolder()
	rows := s.eng.FileRows()
	key, asc := s.eng.Sort()
	order := "asc"
	if !asc {
		order = "desc"
	}

	fmt.Printf("Folder: /%s  (sort: %s %s", folder, key, order)
	if f := s.eng.Filter(); f != "" {
		fmt.Printf(", filter: %q", f)
	}
	fmt.Println(")")

	if len(rows) == 0 {
		fmt.Println("(no files)")
		return
	}

	selected := toSet(s.eng.Selected(browser.PaneFiles))
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tNAME\tSIZE\tMODIFIED")
	fmt.Fprintln(w, " \t----\t----\t--------")
	for _, row := range rows {
		sel := ""
		if selected[row.Path] {
			sel = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			sel,
			row.Name,
			formatSize(row.Size),
			formatTime(row.ModTime))
	}
	w.Flush()
}

// ─── Navigation ─────────────────────────────────────────────────────────────

func (s *shell) cmdCd(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: cd <folder-path>")
		return
	}
	if err := s.eng.SelectFolder(ctx, cleanArg(args[0])); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.cmdFiles()
}

func (s *shell) cmdExpand(ctx context.Context, args []string, open bool) {
	if len(args) == 0 {
		verb := "close"
		if open {
			verb = "open"
		}
		fmt.Printf("Usage: %s <folder-path>\n", verb)
		return
	}
	path := cleanArg(args[0])
	if !open {
		s.eng.Collapse(path)
		s.cmdTree()
		return
	}
	if err := s.eng.Expand(ctx, path); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.cmdTree()
}

func (s *shell) cmdToggle(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: toggle <folder-path>")
		return
	}
	if err := s.eng.ToggleExpand(ctx, cleanArg(args[0])); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.cmdTree()
}

// ─── Selection ──────────────────────────────────────────────────────────────

func parsePane(arg string) (browser.PaneID, bool) {
	switch arg {
	case "tree", "t":
		return browser.PaneTree, true
	case "files", "f":
		return browser.PaneFiles, true
	}
	return "", false
}

func (s *shell) cmdClick(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: click <tree|files> <path>")
		return
	}
	pane, ok := parsePane(args[0])
	if !ok {
		fmt.Printf("Unknown pane: %s\n", args[0])
		return
	}
	if err := s.eng.Click(ctx, pane, cleanArg(args[1])); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

func (s *shell) cmdCtrlClick(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: ctrl <tree|files> <path>")
		return
	}
	pane, ok := parsePane(args[0])
	if !ok {
		fmt.Printf("Unknown pane: %s\n", args[0])
		return
	}
	s.eng.CtrlClick(pane, cleanArg(args[1]))
}

func (s *shell) cmdShiftClick(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: shift <tree|files> <path> [add]")
		return
	}
	pane, ok := parsePane(args[0])
	if !ok {
		fmt.Printf("Unknown pane: %s\n", args[0])
		return
	}
	additive := len(args) > 2 && args[2] == "add"
	s.eng.ShiftClick(pane, cleanArg(args[1]), additive)
}

func (s *shell) cmdSelectAll(args []string) {
	pane := browser.PaneFiles
	if len(args) > 0 {
		p, ok := parsePane(args[0])
		if !ok {
			fmt.Printf("Unknown pane: %s\n", args[0])
			return
		}
		pane = p
	}
	s.eng.SelectAll(pane)
}

func (s *shell) cmdClearSelection(args []string) {
	if len(args) > 0 {
		pane, ok := parsePane(args[0])
		if !ok {
			fmt.Printf("Unknown pane: %s\n", args[0])
			return
		}
		s.eng.ClearSelection(pane)
		return
	}
	s.eng.ClearSelection(browser.PaneTree)
	s.eng.ClearSelection(browser.PaneFiles)
}

func (s *shell) cmdShowSelection(args []string) {
	panes := []browser.PaneID{browser.PaneTree, browser.PaneFiles}
	if len(args) > 0 {
		pane, ok := parsePane(args[0])
		if !ok {
			fmt.Printf("Unknown pane: %s\n", args[0])
			return
		}
		panes = panes[:0]
		panes = append(panes, pane)
	}
	for _, pane := range panes {
		sel := s.eng.Selected(pane)
		fmt.Printf("[%s] %d selected\n", pane, len(sel))
		for _, p := range sel {
			fmt.Printf("  /%s\n", p)
		}
	}
}

// ─── Filter and sort ────────────────────────────────────────────────────────

func (s *shell) cmdFilter(args []string) {
	text := strings.Join(args, " ")
	s.eng.SetFilter(text)
	if text == "" {
		fmt.Println("Filter cleared")
	}
	s.cmdFiles()
}

func (s *shell) cmdSort(args []string) {
	if len(args) == 0 {
		key, asc := s.eng.Sort()
		order := "asc"
		if !asc {
			order = "desc"
		}
		fmt.Printf("Sort: %s %s\n", key, order)
		return
	}

	var key browser.SortKey
	switch args[0] {
	case "name":
		key = browser.SortByName
	case "date":
		key = browser.SortByDate
	case "size":
		key = browser.SortBySize
	case "type":
		key = browser.SortByType
	default:
		fmt.Printf("Unknown sort key: %s (name, date, size, type)\n", args[0])
		return
	}
	asc := true
	if len(args) > 1 {
		switch args[1] {
		case "asc":
		case "desc":
			asc = false
		default:
			fmt.Printf("Unknown order: %s (asc or desc)\n", args[1])
			return
		}
	}
	s.eng.SetSort(key, asc)
	s.cmdFiles()
}

// ─── Rename ─────────────────────────────────────────────────────────────────

func (s *shell) cmdRename(ctx context.Context, scanner *bufio.Scanner, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: rename <file|folder> <path> <new-name>")
		return
	}

	var kind browser.EditKind
	switch args[0] {
	case "file", "f":
		kind = browser.EditFile
	case "folder", "dir", "d":
		kind = browser.EditFolder
	default:
		fmt.Printf("Unknown kind: %s (file or folder)\n", args[0])
		return
	}

	path, newName := cleanArg(args[1]), args[2]
	if !s.eng.StartRename(kind, path) {
		fmt.Printf("Cannot rename /%s: not visible in its pane, or another edit is active\n", path)
		return
	}

	outcome, err := s.eng.SubmitRename(ctx, newName)
	s.reportOutcome(ctx, scanner, outcome, err)
}

// reportOutcome prints a transfer result and walks the user through the
// merge confirmation when the engine asks for one.
func (s *shell) reportOutcome(ctx context.Context, scanner *bufio.Scanner, outcome browser.TransferOutcome, err error) {
	switch outcome {
	case browser.TransferApplied:
		fmt.Println("Done")
	case browser.TransferNeedsMergeConfirm:
		fmt.Print("Destination folder already exists. Merge into it? [y/N] ")
		if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
			s.eng.CancelMerge()
			fmt.Println("Cancelled")
			return
		}
		outcome, err = s.eng.ConfirmMerge(ctx)
		s.reportOutcome(ctx, scanner, outcome, err)
	case browser.TransferConflictsReported:
		conflicts := s.eng.Conflicts()
		fmt.Printf("Merge refused: %d conflicting files\n", len(conflicts))
		for _, c := range conflicts {
			fmt.Printf("  /%s\n", c)
		}
	case browser.TransferCancelled:
		fmt.Println("Cancelled")
	default:
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Println("Failed")
		}
	}
}

// ─── Move / copy / delete ───────────────────────────────────────────────────

func (s *shell) cmdMove(ctx context.Context, scanner *bufio.Scanner, args []string, copy bool) {
	verb := "mv"
	if copy {
		verb = "cp"
	}
	if len(args) < 2 {
		fmt.Printf("Usage: %s <tree|files> <target-folder>  (moves the pane's selection)\n", verb)
		fmt.Printf("       %s <path> <target-folder>\n", verb)
		return
	}

	target := cleanArg(args[len(args)-1])

	// Two-argument form with a pane name drags the whole selection;
	// otherwise the first argument is a single item to drag.
	if pane, ok := parsePane(args[0]); ok && len(args) == 2 {
		sel := s.eng.Selected(pane)
		if len(sel) == 0 {
			fmt.Printf("Nothing selected in %s pane\n", pane)
			return
		}
		if !s.eng.DragStart(pane, sel[0]) {
			fmt.Println("Selection is no longer visible")
			return
		}
	} else {
		path := cleanArg(args[0])
		pane := browser.PaneFiles
		for _, row := range s.eng.TreeRows() {
			if row.Path == path {
				pane = browser.PaneTree
				break
			}
		}
		if !s.eng.DragStart(pane, path) {
			fmt.Printf("Cannot drag /%s: not visible\n", path)
			return
		}
	}

	if !s.eng.DragOver(target) {
		s.eng.DragCancel()
		fmt.Printf("Invalid target: /%s\n", target)
		return
	}

	outcome, err := s.eng.Drop(ctx, target, copy)
	s.reportOutcome(ctx, scanner, outcome, err)
}

func (s *shell) cmdDelete(ctx context.Context, scanner *bufio.Scanner, args []string) {
	pane := browser.PaneFiles
	if len(args) > 0 {
		p, ok := parsePane(args[0])
		if !ok {
			// Single-path form: select it, then delete.
			path := cleanArg(args[0])
			pane = browser.PaneFiles
			for _, row := range s.eng.TreeRows() {
				if row.Path == path {
					pane = browser.PaneTree
					break
				}
			}
			if err := s.eng.Click(ctx, pane, path); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
		} else {
			pane = p
		}
	}

	sel := s.eng.Selected(pane)
	if len(sel) == 0 {
		fmt.Printf("Nothing selected in %s pane\n", pane)
		return
	}

	pv, err := s.eng.BuildDeletePreview(ctx, pane, nil)
	if err != nil {
		fmt.Printf("Error building preview: %v\n", err)
		return
	}
	fmt.Printf("Will delete %d folders and %d files (%s). Continue? [y/N] ",
		pv.Folders, pv.Files, formatSize(pv.TotalSizeBytes))
	if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
		fmt.Println("Cancelled")
		return
	}

	if err := s.eng.DeleteSelected(ctx, pane); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Deleted")
}

// ─── Status ─────────────────────────────────────────────────────────────────

func (s *shell) cmdStats() {
	stats, path := s.eng.Stats()
	if path == "" && stats.FolderCount == 0 && stats.FileCount == 0 && stats.TotalSizeBytes == 0 {
		fmt.Println("No stats loaded yet (select a folder first)")
		return
	}
	fmt.Printf("Stats for /%s\n", path)
	fmt.Printf("  Folders:  %d\n", stats.FolderCount)
	fmt.Printf("  Files:    %d\n", stats.FileCount)
	fmt.Printf("  Size:     %s\n", formatSize(stats.TotalSizeBytes))
}

func (s *shell) cmdRefresh(ctx context.Context) {
	if err := s.eng.Refresh(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.cmdTree()
	s.cmdFiles()
}

func (s *shell) cmdWatch(ctx context.Context) {
	if s.watchCancel != nil {
		fmt.Println("Already watching")
		return
	}
	sse := client.NewSSEClient(s.server)
	sse.SetAuthToken(s.token)

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	events := sse.Subscribe(watchCtx)

	go func() {
		for ev := range events {
			if ev.NewPath != "" {
				fmt.Printf("  [change] %s /%s -> /%s\n", ev.Type, ev.Path, ev.NewPath)
			} else {
				fmt.Printf("  [change] %s /%s\n", ev.Type, ev.Path)
			}
		}
	}()
	fmt.Println("Watching server change feed (stop with 'unwatch')")
}

func (s *shell) cmdUnwatch() {
	if s.watchCancel == nil {
		return
	}
	s.watchCancel()
	s.watchCancel = nil
	fmt.Println("Stopped watching")
}

func (s *shell) cmdStatus(ctx context.Context) {
	if err := s.cli.Ping(ctx); err != nil {
		fmt.Printf("Server %s: unreachable (%v)\n", s.server, err)
		return
	}
	fmt.Printf("Server %s: online\n", s.server)
	fmt.Printf("Current folder: /%s\n", s.eng.CurrentFolder())
	fmt.Printf("Expanded folders: %d\n", len(s.eng.Expanded()))
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// cleanArg normalizes a user-typed path to the wire form: '/'-separated with
// no leading or trailing slash, "" for the root.
func cleanArg(arg string) string {
	return strings.Trim(arg, "/")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printUsage() {
	fmt.Print(`explorer - interactive shell for a metadata-remote server

Usage:
  explorer [flags]           Start the interactive shell
  explorer login [-server URL]   Authenticate and save a token
  explorer logout            Remove the saved token
  explorer help              Show this help

Flags:
  -server URL     Server URL (default http://localhost:8080)
  -token TOKEN    JWT token (default: MDR_TOKEN env or saved token file)
  -timeout DUR    Request timeout (default 30s)
  -log-level LVL  Log level (default error)

Examples:
  explorer login -server https://files.example.com
  explorer -server https://files.example.com
  MDR_TOKEN=eyJ... explorer
`)
}

func printShellHelp() {
	fmt.Print(`Commands:
  tree, t                     Show the folder tree pane
  files, ls                   Show the file list pane
  cd <folder>                 Select a folder and list its files
  open <folder>               Expand a folder in the tree
  close <folder>              Collapse a folder in the tree
  toggle <folder>             Expand or collapse a folder

  click <pane> <path>         Select a single item (pane: tree or files)
  ctrl <pane> <path>          Toggle an item in or out of the selection
  shift <pane> <path> [add]   Extend the selection to an item
  all [pane]                  Select everything in a pane (default files)
  none [pane]                 Clear selection (default both panes)
  sel [pane]                  Show the current selection

  filter [text]               Filter the file list (empty clears)
  sort [key] [asc|desc]       Sort the file list (name, date, size, type)

  rename <file|folder> <path> <new-name>
  mv <pane|path> <target>     Move the selection or one item into a folder
  cp <pane|path> <target>     Same as mv but copies
  rm [pane|path]              Delete the selection after a preview

  stats                       Show stats for the selected folder
  refresh, r                  Reload listings, keeping expansion and selection
  watch / unwatch             Stream or stop the server change feed
  status                      Server reachability and session info
  quit, q                     Exit
`)
}
