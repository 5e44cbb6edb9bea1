package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/pharmassist/internal/db"
)

type eventsOptions struct {
	eventID   int64
	latest    string
	maxDepth  int
	jsonOut   bool
	noPayload bool
}

func newEventsCmd(c *cli) *cobra.Command {
	opts := eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log as a tree",
		Long: `Prints the subtree of one event. By default the root is the latest
process.started event, so the output covers the most recent chat session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := sql.Open("sqlite3", c.cfg.DBPath+"?mode=ro&_journal_mode=WAL")
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer database.Close()
			if err := database.Ping(); err != nil {
				return fmt.Errorf("ping db: %w", err)
			}
			return runEvents(database, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&opts.eventID, "id", 0, "show subtree of a specific event ID")
	cmd.Flags().StringVar(&opts.latest, "latest", db.EventProcessStarted, "root at the latest event of this type when --id is not set")
	cmd.Flags().IntVarP(&opts.maxDepth, "depth", "L", 0, "limit display depth (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output JSON format")
	cmd.Flags().BoolVar(&opts.noPayload, "no-payload", false, "hide payload details")
	return cmd
}

func runEvents(database *sql.DB, opts eventsOptions, out io.Writer) error {
	rootID := opts.eventID
	if rootID == 0 {
		var err error
		rootID, err = db.LatestEventID(database, opts.latest)
		if err != nil {
			return fmt.Errorf("find latest %s: %w", opts.latest, err)
		}
		if rootID == 0 {
			return fmt.Errorf("no %s event found", opts.latest)
		}
	}

	events, err := db.Subtree(database, rootID)
	if err != nil {
		return fmt.Errorf("query subtree: %w", err)
	}
	root := db.BuildTree(events, rootID)
	if root == nil {
		return fmt.Errorf("event %d not found", rootID)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(toJSONEvent(root, 1, opts.maxDepth, opts.noPayload))
	}
	printTree(out, root, "", true, 1, opts.maxDepth, opts.noPayload)
	return nil
}

// printTree renders the event tree using box-drawing characters.
func printTree(out io.Writer, ev *db.Event, prefix string, isLast bool, depth, maxDepth int, noPayload bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	line := formatEvent(ev, noPayload)
	if depth == 1 {
		fmt.Fprintln(out, line)
	} else {
		fmt.Fprintln(out, prefix+connector+line)
	}

	childPrefix := prefix
	if depth > 1 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	if maxDepth > 0 && depth >= maxDepth {
		if len(ev.Children) > 0 {
			fmt.Fprintln(out, childPrefix+"└── [...]")
		}
		return
	}
	for i, child := range ev.Children {
		printTree(out, child, childPrefix, i == len(ev.Children)-1, depth+1, maxDepth, noPayload)
	}
}

// formatEvent formats a single event line: [id] timestamp  event_type  key=value ...
func formatEvent(ev *db.Event, noPayload bool) string {
	ts := time.Unix(ev.Timestamp, 0).UTC().Format(time.DateTime)
	line := fmt.Sprintf("[%d] %s  %s", ev.ID, ts, ev.EventType)
	if noPayload {
		return line
	}
	m := payload(ev)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		line += fmt.Sprintf("  %s=%s", k, formatValue(m[k]))
	}
	return line
}

func payload(ev *db.Event) map[string]any {
	if !ev.Payload.Valid || ev.Payload.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ev.Payload.String), &m); err != nil {
		return nil
	}
	return m
}

// formatValue converts a payload value to a display string, truncating long text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 80 {
			return fmt.Sprintf("%q", val[:80]+"...")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

type jsonEvent struct {
	ID        int64       `json:"id"`
	Timestamp int64       `json:"timestamp"`
	EventType string      `json:"event_type"`
	Payload   any         `json:"payload,omitempty"`
	Children  []jsonEvent `json:"children,omitempty"`
}

func toJSONEvent(ev *db.Event, depth, maxDepth int, noPayload bool) jsonEvent {
	je := jsonEvent{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		EventType: ev.EventType,
	}
	if !noPayload {
		if m := payload(ev); m != nil {
			je.Payload = m
		}
	}
	if maxDepth > 0 && depth >= maxDepth {
		return je
	}
	for _, child := range ev.Children {
		je.Children = append(je.Children, toJSONEvent(child, depth+1, maxDepth, noPayload))
	}
	return je
}
