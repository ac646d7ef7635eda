package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/patchgate-project/patchgate/internal/proposal"
	"github.com/patchgate-project/patchgate/internal/session"
	"github.com/patchgate-project/patchgate/pkg/color"
	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/patchgate-project/patchgate/pkg/patchgate"
	"github.com/patchgate-project/patchgate/pkg/progress"
)

var (
	reviewAcceptAll  bool
	reviewRejectAll  bool
	reviewResolveAll bool
	reviewWatch      bool
	reviewNvim       bool
	reviewMessageID  string
)

var reviewCmd = &cobra.Command{
	Use:   "review <proposal-file>",
	Short: "Review a proposed multi-file edit",
	Long: `Review a proposed multi-file edit.

The proposal file is either the JSON wire format produced by agent
tools, or a markdown document whose fenced code blocks carry the new
file contents (each block preceded by a paragraph quoting the target
path in backticks).

Without a bulk flag the review is interactive: each file is shown in
turn and single-key commands decide it.

  a  accept the selected file     n      next file
  r  reject the selected file     p      previous file
  m  mark resolved manually       g <n>  jump to file n
  d  toggle the inline diff       A / R  accept / reject the rest
  q  quit without deciding the remaining files`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, cfg := requireWorkspace()
		ctx := context.Background()

		prop, err := proposal.ParseFile(args[0], ws.Root)
		if err != nil {
			fmtErr("parse proposal: %v", err)
			os.Exit(1)
		}
		if prop.SessionID == "" {
			prop.SessionID = uuid.NewString()
		}

		opts := patchgate.Options{Root: ws.Root, Config: cfg, WatchConflicts: reviewWatch}
		if reviewNvim {
			opts.Refresher = patchgate.NewRefresher(cfg)
		}
		eng, err := patchgate.New(opts)
		if err != nil {
			fmtErr("start engine: %v", err)
			os.Exit(1)
		}
		defer eng.Close()

		term := progress.NewTerminal("register", len(prop.Files), !jsonOutput)
		sess, err := eng.Register(ctx, prop.PermissionID, prop.SessionID, prop.Files, session.RegisterOptions{
			MessageID: firstNonEmpty(reviewMessageID, prop.MessageID),
			Progress:  term.Callback(),
		})
		if err != nil {
			fmtErr("register: %v", err)
			os.Exit(1)
		}
		term.Done(fmt.Sprintf("%d file(s)", len(sess.Files)))

		switch {
		case reviewAcceptAll:
			eng.AcceptAll(ctx, sess.PermissionID)
		case reviewRejectAll:
			eng.RejectAll(ctx, sess.PermissionID)
		case reviewResolveAll:
			eng.ResolveAll(ctx, sess.PermissionID)
		default:
			runInteractive(ctx, eng, sess.PermissionID, cmd)
		}

		eng.MarkSent(ctx, sess.PermissionID)
		printSummary(ctx, eng, sess.PermissionID)
	},
}

// runInteractive drives the per-file decision loop over stdin.
func runInteractive(ctx context.Context, eng *patchgate.Engine, permissionID string, cmd *cobra.Command) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if eng.AreAllResolved(ctx, permissionID) {
			return
		}
		entry, ok := eng.SelectedFile(ctx, permissionID)
		if !ok {
			return
		}
		printEntry(ctx, eng, permissionID, entry)

		fmt.Print("[a/r/m/d/n/p/g/A/R/q] > ")
		if !scanner.Scan() {
			return
		}
		input := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(input) == 0 {
			continue
		}

		switch input[0] {
		case "a":
			reportDecision(eng.AcceptFile(ctx, permissionID, entry.Index), "accepted", entry)
			eng.MoveSelection(ctx, permissionID, model.SelectionDown)
		case "r":
			reportDecision(eng.RejectFile(ctx, permissionID, entry.Index), "rejected", entry)
			eng.MoveSelection(ctx, permissionID, model.SelectionDown)
		case "m":
			reportDecision(eng.ResolveFile(ctx, permissionID, entry.Index), "resolved", entry)
			eng.MoveSelection(ctx, permissionID, model.SelectionDown)
		case "d":
			eng.ToggleInlineDiff(ctx, permissionID, entry.Index)
		case "n":
			eng.MoveSelection(ctx, permissionID, model.SelectionDown)
		case "p":
			eng.MoveSelection(ctx, permissionID, model.SelectionUp)
		case "g":
			if len(input) < 2 {
				fmtErr("usage: g <file-number>")
				continue
			}
			index, err := strconv.Atoi(input[1])
			if err != nil || !eng.MoveSelectionTo(ctx, permissionID, index) {
				fmtErr("no file %s", input[1])
			}
		case "A":
			eng.AcceptAll(ctx, permissionID)
			return
		case "R":
			eng.RejectAll(ctx, permissionID)
			return
		case "q":
			return
		}
	}
}

func reportDecision(err error, verb string, entry *model.FileEntry) {
	if err != nil {
		fmtErr("%s: %v", entry.RelativePath, err)
		return
	}
	fmt.Printf("%s %s\n", color.Status(verb), color.FilePath(entry.RelativePath))
}

// printEntry shows the selected file header, stats, and optionally the
// inline diff when the file is expanded.
func printEntry(ctx context.Context, eng *patchgate.Engine, permissionID string, entry *model.FileEntry) {
	sess, ok := eng.Session(ctx, permissionID)
	if !ok {
		return
	}
	fmt.Printf("\n%s [%d/%d] %s  (+%d -%d ~%d)\n",
		color.Header("file"), entry.Index, len(sess.Files),
		color.FilePath(entry.RelativePath),
		entry.Stats.Added, entry.Stats.Removed, entry.Stats.Modified)

	if sess.ExpandedFiles[entry.Index] {
		for _, line := range entry.DiffLines {
			switch {
			case strings.HasPrefix(line, "+"):
				fmt.Println(color.DiffAdd(line))
			case strings.HasPrefix(line, "-"):
				fmt.Println(color.DiffDel(line))
			case strings.HasPrefix(line, "@@"):
				fmt.Println(color.DiffHunk(line))
			default:
				fmt.Println(line)
			}
		}
	}
}

// printSummary reports the session outcome, store stats, and the event
// trail the review produced.
func printSummary(ctx context.Context, eng *patchgate.Engine, permissionID string) {
	sess, ok := eng.Session(ctx, permissionID)
	if !ok {
		return
	}
	resolution, _ := eng.Resolution(ctx, permissionID)
	stats := eng.Stats(ctx)

	if jsonOutput {
		outputJSON(map[string]any{
			"session":    sess,
			"resolution": resolution,
			"stats":      stats,
			"events":     eng.History(ctx),
		})
		return
	}

	fmt.Printf("\n%s %s\n", color.Header("resolution:"), color.Status(string(resolution)))
	for _, entry := range sess.Files {
		fmt.Printf("  %s  %s\n", color.Status(string(entry.Status)), entry.RelativePath)
	}
	fmt.Printf("%s %d tracked", color.Header("changes:"), stats.Total)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %s=%d", status, n)
	}
	fmt.Println()
	for _, ev := range eng.History(ctx) {
		fmt.Printf("  %s %s%s\n", color.Dim(ev.Timestamp.Format("15:04:05")), ev.Type, eventDetail(ev))
	}
}

func eventDetail(ev model.Event) string {
	switch {
	case ev.ChangeID != "":
		return fmt.Sprintf(" change=%s status=%s", ev.ChangeID.ShortID(), ev.Status)
	case ev.PermissionID != "":
		return fmt.Sprintf(" permission=%s files=%d", ev.PermissionID, ev.FileCount)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewAcceptAll, "accept-all", false, "accept every file without prompting")
	reviewCmd.Flags().BoolVar(&reviewRejectAll, "reject-all", false, "reject every file without prompting")
	reviewCmd.Flags().BoolVar(&reviewResolveAll, "resolve-all", false, "mark every file manually resolved")
	reviewCmd.Flags().BoolVar(&reviewWatch, "watch", false, "flag files edited outside the review as conflicts")
	reviewCmd.Flags().BoolVar(&reviewNvim, "nvim", false, "refresh buffers in a running Neovim after writes")
	reviewCmd.Flags().StringVar(&reviewMessageID, "message-id", "", "attach the session to a message id")
	rootCmd.AddCommand(reviewCmd)
}
