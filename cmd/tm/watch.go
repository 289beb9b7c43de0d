package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/types"
	"github.com/taskmesh/taskmesh/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "collab",
	Short:   "Read your notifications",
	Long: `Show unread notifications addressed to you or broadcast to everyone,
oldest first, and mark them read. Reading is transactional: a
notification is delivered once even when two watches race.

--follow keeps the feed open, waking when another process writes the
store. Notifications already read stay read; only new arrivals print.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := rootCtx
		limit, _ := cmd.Flags().GetInt("limit")
		follow, _ := cmd.Flags().GetBool("follow")

		if follow && jsonOutput {
			fail(&types.ValidationError{Field: "follow", Reason: "--follow streams indefinitely and cannot honor the single-document --json contract"})
		}

		notifications, err := store.Watch(ctx, actor, limit)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			if notifications == nil {
				notifications = []*types.Notification{}
			}
			outputJSON(notifications)
			return
		}

		fmt.Println(ui.RenderWatchBox(actor, notifications, ui.ShouldUseEmoji()))

		if !follow {
			return
		}
		followNotifications(limit)
	},
}

// followNotifications polls for new notifications until interrupted.
// A filesystem watcher on the state directory wakes the loop when the
// database (or its WAL) changes; when fsnotify is unavailable the loop
// degrades to pure polling. A slow ticker backstops missed events.
func followNotifications(limit int) {
	wake := make(chan struct{}, 1)
	nudge := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	interval := 30 * time.Second
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		debug.Logf("watch: fsnotify unavailable, polling instead: %v", err)
		interval = 2 * time.Second
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(stateDir); err != nil {
			debug.Logf("watch: cannot watch %s, polling instead: %v", stateDir, err)
			interval = 2 * time.Second
		} else {
			go func() {
				for {
					select {
					case ev, ok := <-watcher.Events:
						if !ok {
							return
						}
						if strings.HasPrefix(ev.Name, dbPath) && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
							nudge()
						}
					case werr, ok := <-watcher.Errors:
						if !ok {
							return
						}
						debug.Logf("watch: fsnotify error: %v", werr)
					}
				}
			}()
		}
	}

	if !quietFlag {
		fmt.Println(ui.RenderMuted("Following; Ctrl-C to stop."))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Writes land in bursts (a complete cascades into unblocks); the
	// debounce collects a burst into one read.
	const debounce = 200 * time.Millisecond

	for {
		select {
		case <-rootCtx.Done():
			return
		case <-ticker.C:
		case <-wake:
			timer := time.NewTimer(debounce)
			select {
			case <-rootCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		unread, err := store.UnreadCount(rootCtx, actor)
		if err != nil {
			debug.Logf("watch: unread count failed: %v", err)
			continue
		}
		if unread == 0 {
			continue
		}

		notifications, err := store.Watch(rootCtx, actor, limit)
		if err != nil {
			debug.Logf("watch: read failed: %v", err)
			continue
		}
		if len(notifications) > 0 {
			fmt.Println(ui.RenderWatchBox(actor, notifications, ui.ShouldUseEmoji()))
		}
	}
}

func init() {
	watchCmd.Flags().IntP("limit", "n", 0, "Maximum notifications per read (0 = no limit)")
	watchCmd.Flags().BoolP("follow", "f", false, "Keep watching until interrupted")
	rootCmd.AddCommand(watchCmd)
}
