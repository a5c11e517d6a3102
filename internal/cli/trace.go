package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/chain"
	"github.com/roach88/courier/internal/store"
	"github.com/roach88/courier/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Operation string // optional, show only legs of this operation
}

// TraceLeg is one leg in the trace timeline.
type TraceLeg struct {
	Seq       int64        `json:"seq"`
	ID        string       `json:"id"`
	After     string       `json:"after,omitempty"`
	Origin    string       `json:"origin"`
	Receiver  string       `json:"receiver"`
	Operation string       `json:"operation"`
	Args      value.Object `json:"args"`
	Deposit   uint64       `json:"deposit"`
	Budget    uint64       `json:"budget"`
	Policy    string       `json:"policy"`
	Actions   []string     `json:"actions,omitempty"`
	Status    string       `json:"status"`
	Value     value.Value  `json:"value"`
	Reason    string       `json:"reason,omitempty"`
}

// ChainEdge links a leg to the continuation scheduled after it.
type ChainEdge struct {
	From      string `json:"from"`
	Operation string `json:"operation"`
	To        string `json:"to"`
}

// TraceStats summarizes a trace.
type TraceStats struct {
	Legs       int  `json:"legs"`
	Resolved   int  `json:"resolved"`
	Succeeded  int  `json:"succeeded"`
	Failed     int  `json:"failed"`
	Aborted    int  `json:"aborted"`
	IsComplete bool `json:"is_complete"`
}

// TraceResult is the output of trace <token>.
type TraceResult struct {
	Trace    string      `json:"trace"`
	Timeline []TraceLeg  `json:"timeline"`
	Chains   []ChainEdge `json:"chains"`
	Stats    TraceStats  `json:"stats"`
}

// TraceListItem is one row of trace without a token.
type TraceListItem struct {
	Trace    string `json:"trace"`
	Signer   string `json:"signer"`
	Receiver string `json:"receiver"`
	Legs     int    `json:"legs"`
	Resolved int    `json:"resolved"`
	Complete bool   `json:"complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [token]",
		Short: "Show the legs of a journaled trace",
		Long: `Show every leg of a trace from the journal: who scheduled what, with
which deposit and budget, how each leg resolved, and which legs were
chained after which.

Without a token, lists every journaled trace.

Examples:
  courier trace --db ./journal.db
  courier trace --db ./journal.db 0190f3c2-...
  courier trace --db ./journal.db 0190f3c2-... --operation record_message
  courier trace --db ./journal.db 0190f3c2-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTraceList(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "show only legs of this operation")

	return cmd
}

func openJournal(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	summaries, err := st.ListTraces(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list traces", err)
	}

	items := make([]TraceListItem, len(summaries))
	for i, s := range summaries {
		items[i] = TraceListItem{
			Trace:    s.Trace,
			Signer:   string(s.Signer),
			Receiver: string(s.Receiver),
			Legs:     s.Legs,
			Resolved: s.Resolved,
			Complete: s.Complete(),
		}
	}

	return newPrinter(cmd, opts.RootOptions).result("", items, func(w io.Writer) error {
		if len(items) == 0 {
			fmt.Fprintln(w, "No traces in journal.")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(w, "%s  %s -> %s  %d/%d legs resolved  %s\n",
				it.Trace, it.Signer, it.Receiver, it.Resolved, it.Legs, completeStatus(it.Complete))
		}
		return nil
	})
}

func runTrace(opts *TraceOptions, token string, cmd *cobra.Command) error {
	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	out := newPrinter(cmd, opts.RootOptions)
	entries, err := st.ReadTrace(cmd.Context(), token)
	if errors.Is(err, store.ErrTraceNotFound) {
		empty := TraceResult{Trace: token, Timeline: []TraceLeg{}, Chains: []ChainEdge{}}
		return out.result("", empty, func(w io.Writer) error {
			fmt.Fprintf(w, "No legs found for trace: %s\n", token)
			return nil
		})
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := buildTraceResult(token, entries, opts.Operation)
	return out.result(token, result, func(w io.Writer) error {
		return outputTraceText(w, result, opts.Verbose)
	})
}

// buildTraceResult converts journal entries. Stats always cover the whole
// trace; the operation filter only narrows the timeline.
func buildTraceResult(token string, entries []store.TraceEntry, operation string) TraceResult {
	result := TraceResult{
		Trace:    token,
		Timeline: []TraceLeg{},
		Chains:   []ChainEdge{},
	}

	for _, e := range entries {
		leg := traceLeg(e)

		result.Stats.Legs++
		if e.Outcome != nil {
			result.Stats.Resolved++
			switch e.Outcome.Status {
			case chain.StatusSuccess:
				result.Stats.Succeeded++
			case chain.StatusFailed:
				result.Stats.Failed++
			case chain.StatusAborted:
				result.Stats.Aborted++
			}
		}
		if e.Leg.After != "" {
			result.Chains = append(result.Chains, ChainEdge{
				From:      string(e.Leg.After),
				Operation: e.Leg.Operation,
				To:        string(e.Leg.ID),
			})
		}
		if operation != "" && e.Leg.Operation != operation {
			continue
		}
		result.Timeline = append(result.Timeline, leg)
	}
	result.Stats.IsComplete = result.Stats.Legs == result.Stats.Resolved
	return result
}

func traceLeg(e store.TraceEntry) TraceLeg {
	leg := TraceLeg{
		Seq:       e.Leg.Seq,
		ID:        string(e.Leg.ID),
		After:     string(e.Leg.After),
		Origin:    string(e.Leg.Origin),
		Receiver:  string(e.Leg.Receiver),
		Operation: e.Leg.Operation,
		Args:      e.Leg.Args,
		Deposit:   uint64(e.Leg.Deposit),
		Budget:    uint64(e.Leg.Budget),
		Policy:    e.Leg.Policy.String(),
		Status:    string(chain.StatusPending),
		Value:     value.Null{},
	}
	if leg.Args == nil {
		leg.Args = value.Object{}
	}
	for _, a := range e.Leg.Actions {
		leg.Actions = append(leg.Actions, a.Kind)
	}
	if e.Outcome != nil {
		out := e.Outcome.Outcome()
		leg.Status = string(out.Status)
		leg.Value = out.Value
		leg.Reason = out.Reason
	}
	return leg
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace: %s\n", result.Trace)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.IsComplete))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no legs)")
	}
	for _, leg := range result.Timeline {
		formatLeg(w, leg, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Chains ===")
	if len(result.Chains) == 0 {
		fmt.Fprintln(w, "  (no continuations)")
	}
	for _, edge := range result.Chains {
		fmt.Fprintf(w, "  %s -[%s]-> %s\n", truncateID(edge.From), edge.Operation, truncateID(edge.To))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Legs:      %d\n", result.Stats.Legs)
	fmt.Fprintf(w, "  Resolved:  %d\n", result.Stats.Resolved)
	fmt.Fprintf(w, "  Succeeded: %d\n", result.Stats.Succeeded)
	fmt.Fprintf(w, "  Failed:    %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Aborted:   %d\n", result.Stats.Aborted)
	return nil
}

func formatLeg(w io.Writer, leg TraceLeg, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s -> %s.%s  %s\n", leg.Seq, leg.Origin, leg.Receiver, leg.Operation, leg.Status)
	if leg.Reason != "" {
		fmt.Fprintf(w, "       Reason: %s\n", leg.Reason)
	}
	if !verbose {
		return
	}
	fmt.Fprintf(w, "       ID: %s\n", truncateID(leg.ID))
	if len(leg.Args) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", renderValue(leg.Args))
	}
	fmt.Fprintf(w, "       Deposit: %d  Budget: %d  Policy: %s\n", leg.Deposit, leg.Budget, leg.Policy)
	if len(leg.Actions) > 0 {
		fmt.Fprintf(w, "       Actions: %v\n", leg.Actions)
	}
	if _, isNull := leg.Value.(value.Null); !isNull {
		fmt.Fprintf(w, "       Value: %s\n", renderValue(leg.Value))
	}
}

// truncateID shortens a leg id for display.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}

func completeStatus(complete bool) string {
	if complete {
		return "complete"
	}
	return "in progress"
}
