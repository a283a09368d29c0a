package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanctuaryweb/site/internal/notifications"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

func newNotifyCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Create and inspect notifications",
	}
	cmd.AddCommand(
		newNotifyCreateCommand(root),
		newNotifyListCommand(root),
		newNotifyPushesCommand(root),
	)
	return cmd
}

func newNotifyCreateCommand(root *rootOptions) *cobra.Command {
	var (
		file string
		f    notificationFile
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a notification and queue pushes to its subscribers",
		Example: `  sanctuaryctl notify create --title "Open day" --message "Gates open at 10" --expires-in 72h
  sanctuaryctl notify create -f open-day.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				var err error
				if f, err = readNotificationFile(cmd, file); err != nil {
					return err
				}
			}
			n, err := f.toNotification(root.now())
			if err != nil {
				return err
			}
			return root.withDB(cmd.Context(), func(db *sql.DB) error {
				created, queued, err := notifications.NewStore(db).CreateNotification(cmd.Context(), n)
				if err != nil {
					return err
				}
				if root.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), struct {
						notifications.Notification
						QueuedPushes int `json:"queued_pushes"`
					}{created, queued})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s (tag %s), queued %d push(es)\n", created.ID, created.Tag, queued)
				return err
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&file, "file", "f", "", "YAML notification file, - for stdin")
	fl.StringVar(&f.Tag, "tag", notifications.AnnouncementsTag, "notification tag")
	fl.StringVar(&f.Title, "title", "", "title")
	fl.StringVar(&f.Message, "message", "", "message body")
	fl.StringVar(&f.Link, "link", "", "optional http(s) link")
	fl.StringVar(&f.ExpiresIn, "expires-in", "", "expiry relative to now, e.g. 72h")
	fl.StringVar(&f.ExpiresAt, "expires-at", "", "expiry as RFC 3339")
	cmd.MarkFlagsMutuallyExclusive("file", "title")
	return cmd
}

func readNotificationFile(cmd *cobra.Command, path string) (notificationFile, error) {
	if path == "-" {
		return decodeNotificationFile(cmd.InOrStdin())
	}
	fh, err := os.Open(path)
	if err != nil {
		return notificationFile{}, xerrors.Wrap(err, "open notification file")
	}
	defer fh.Close()
	return decodeNotificationFile(fh)
}

func newNotifyListCommand(root *rootOptions) *cobra.Command {
	var (
		tags []string
		take int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if take < 1 || take > notifications.MaxTake {
				return xerrors.Newf("--take must be 1..%d", notifications.MaxTake)
			}
			return root.withDB(cmd.Context(), func(db *sql.DB) error {
				store := notifications.NewStore(db)
				var (
					list []notifications.Notification
					err  error
				)
				if len(tags) > 0 {
					list, err = store.RecentForTags(cmd.Context(), tags, take)
				} else {
					list, err = store.Recent(cmd.Context(), take)
				}
				if err != nil {
					return err
				}
				if root.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTAG\tCREATED\tEXPIRES\tTITLE")
				for _, n := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Tag, n.CreatedAt.Format(time.RFC3339), formatTime(n.ExpiresAt), n.Title)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "only these tags (comma separated)")
	cmd.Flags().IntVar(&take, "take", 10, "how many to show")
	return cmd
}

func newNotifyPushesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pushes NOTIFICATION_ID",
		Short: "Show push delivery status for a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withDB(cmd.Context(), func(db *sql.DB) error {
				store := notifications.NewStore(db)
				if _, err := store.ByID(cmd.Context(), args[0]); err != nil {
					return err
				}
				pushes, err := store.PushesForNotification(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if root.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), pushes)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SUBSCRIPTION\tSTATUS\tATTEMPTS\tDELIVERED\tFAILED")
				for _, p := range pushes {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.SubscriptionID, p.ProcessingStatus, p.Attempts, formatTime(p.DeliveredAt), formatTime(p.FailedAt))
				}
				return tw.Flush()
			})
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
