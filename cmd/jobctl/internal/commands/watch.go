package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/config"
	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/logger"
	"landscape-job-service/internal/realtime"
)

type WatchCmd struct {
	API      string        `help:"Job API base URL" default:"http://localhost:8080" env:"JOBCTL_API"`
	Token    string        `help:"Bearer access token" required:"" env:"JOBCTL_TOKEN"`
	Filter   string        `help:"Row filter, e.g. landscaper_id=eq.<uuid> or status=in.(assigned,active)" default:""`
	Debounce time.Duration `help:"Coalesce change bursts within this window" default:"500ms"`
	Cooldown time.Duration `help:"Minimum time between background reloads" default:"5s"`

	Redis config.RedisFlags `embed:"" prefix:"redis-"`
}

func (w *WatchCmd) Run(ctx context.Context, globals *config.Globals) error {
	logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var filter *realtime.Filter
	if w.Filter != "" {
		f, err := realtime.ParseFilter(w.Filter)
		if err != nil {
			return err
		}
		filter = &f
	}

	client := newAPIClient(w.API, w.Token)
	view := newJobView(filter, os.Stdout)

	refetch := realtime.NewSilentRefetch(w.Cooldown, func(ctx context.Context) error {
		rows, err := client.listJobs(ctx, listQuery(filter))
		if err != nil {
			return err
		}
		view.replace(rows)
		return nil
	})
	if _, err := refetch.Trigger(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	view.print()

	rdb, err := w.Redis.Connect(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	sub := realtime.NewSubscriber(realtime.NewRedisFeed(rdb))
	defer sub.Close()

	sub.Apply(ctx, realtime.Config{
		Channel:       "jobctl-watch",
		Subscriptions: []realtime.Subscription{{Table: "jobs", Event: entity.ChangeAny, Filter: w.Filter}},
		Enabled:       true,
		Debounce:      w.Debounce,
		Handler: func(ch entity.Change) {
			if view.apply(ch) {
				view.print()
			}
			// Debouncing keeps only the last change of a burst, so reconcile
			// against the API; skipped while inside the cooldown.
			go func() {
				ran, err := refetch.Trigger(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("background reload failed")
					return
				}
				if ran {
					view.print()
				}
			}()
		},
	})

	fmt.Fprintln(os.Stderr, "Watching jobs (press Ctrl+C to stop)...")
	<-ctx.Done()
	return nil
}

// listQuery pushes equality filters on indexed columns down to the API.
func listQuery(f *realtime.Filter) url.Values {
	q := url.Values{"limit": {"200"}}
	if f == nil || f.Op != realtime.OpEq {
		return q
	}
	switch f.Column {
	case "landscaper_id", "status":
		q.Set(f.Column, f.Values[0])
	}
	return q
}

// jobView is the live job list shown by watch.
type jobView struct {
	filter *realtime.Filter
	rows   *realtime.RowCache

	mu  sync.Mutex
	out io.Writer
}

func newJobView(filter *realtime.Filter, out io.Writer) *jobView {
	return &jobView{filter: filter, rows: realtime.NewRowCache(normalizeJob), out: out}
}

func (v *jobView) replace(rows []entity.Row) {
	kept := rows[:0:0]
	for _, r := range rows {
		r = normalizeJob(r)
		if v.filter == nil || v.filter.Match(r) {
			kept = append(kept, r)
		}
	}
	v.rows.Replace(kept)
}

func (v *jobView) apply(ch entity.Change) bool {
	return v.rows.Apply(ch)
}

func (v *jobView) print() {
	rows := v.rows.Rows()

	counts := map[string]int{}
	for _, r := range rows {
		s, _ := r["status"].(string)
		counts[s]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "\n%s  %d jobs", time.Now().Format("15:04:05"), len(rows))
	for _, s := range statuses {
		fmt.Fprintf(v.out, "  %s=%d", s, counts[s])
	}
	fmt.Fprintln(v.out)

	tw := tabwriter.NewWriter(v.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tUPDATED")
	for _, r := range rows {
		updated := ""
		if t, ok := r["updated_at"].(time.Time); ok {
			updated = t.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\n", r.ID(), r["status"], updated)
	}
	tw.Flush()
}

// normalizeJob parses the timestamp column watch displays.
func normalizeJob(r entity.Row) entity.Row {
	if s, ok := r["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r["updated_at"] = t
		}
	}
	return r
}
