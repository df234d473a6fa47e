package features

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/churn-mlops/internal/datagen"
	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/internal/train"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// FeaturePoolFile is the daily snapshot output consumed by drift checks
// and batch scoring.
const FeaturePoolFile = "user_features_daily.csv"

// LabelHorizonDays is the churn observation window: a user with no events
// in the N days after a snapshot date counts as churned at that date.
const LabelHorizonDays = 30

// featureColumns is the output column order of both artifacts (the
// training dataset appends churn_label).
var featureColumns = []string{
	dataset.ColUserID,
	dataset.ColAsOfDate,
	dataset.ColSignupDate,
	"plan",
	"is_paid",
	"country",
	"marketing_source",
	"days_since_signup",
	"days_since_last_activity",
	"sessions_7d",
	"watch_minutes_7d",
	"watch_minutes_14d",
	"watch_minutes_30d",
	"quiz_attempts_7d",
	"quiz_avg_score_7d",
	"payment_failures_30d",
	"support_tickets_30d",
}

// Settings configures one feature build
type Settings struct {
	RawDir      string
	FeaturesDir string
	// SnapshotEvery spaces the as-of dates (1 = every day)
	SnapshotEvery int
}

// Result names the produced artifacts
type Result struct {
	PoolPath     string
	PoolRows     int
	TrainingPath string
	TrainingRows int
}

// Builder aggregates raw events into per-user daily feature snapshots
type Builder struct {
	settings Settings
	log      *logger.Logger
}

func New(settings Settings, log *logger.Logger) *Builder {
	if settings.SnapshotEvery <= 0 {
		settings.SnapshotEvery = 1
	}
	return &Builder{settings: settings, log: log}
}

// dayStats is the per-user per-day raw aggregate
type dayStats struct {
	sessions        int
	watchMinutes    float64
	quizAttempts    int
	quizScoreSum    float64
	paymentFailures int
	supportTickets  int
	anyActivity     bool
}

// userProfile is the static context joined from users.csv
type userProfile struct {
	signup time.Time
	plan   string
	isPaid string
	country,
	source string
	days map[time.Time]*dayStats
}

// Run loads users.csv / events.csv, computes rolling-window features for
// every snapshot date and writes the feature pool plus the labeled
// training dataset. Snapshots whose label horizon extends past the last
// observed event day are kept in the pool but excluded from training:
// their outcome is not observable yet.
func (b *Builder) Run() (*Result, error) {
	usersPath := filepath.Join(b.settings.RawDir, datagen.UsersFile)
	users, err := dataset.ReadCSV(usersPath)
	if err != nil {
		return nil, fmt.Errorf("load users from %s (run `churn generate` first): %w", usersPath, err)
	}

	eventsPath := filepath.Join(b.settings.RawDir, datagen.EventsFile)
	events, err := dataset.ReadCSV(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("load events from %s (run `churn generate` first): %w", eventsPath, err)
	}

	profiles, order, err := joinProfiles(users)
	if err != nil {
		return nil, err
	}

	firstDay, lastDay, err := aggregateEvents(events, profiles)
	if err != nil {
		return nil, err
	}

	pool := dataset.New(featureColumns...)
	training := dataset.New(append(append([]string{}, featureColumns...), dataset.ColChurnLabel)...)

	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, b.settings.SnapshotEvery) {
		labelable := !day.AddDate(0, 0, LabelHorizonDays).After(lastDay)

		for _, uid := range order {
			p := profiles[uid]
			if p.signup.After(day) {
				continue // not signed up yet
			}

			row := b.featureRow(uid, p, day)
			pool.Append(row)

			if labelable {
				labeled := make(dataset.Row, len(row)+1)
				for k, v := range row {
					labeled[k] = v
				}
				labeled[dataset.ColChurnLabel] = churnLabel(p, day)
				training.Append(labeled)
			}
		}
	}

	poolPath := filepath.Join(b.settings.FeaturesDir, FeaturePoolFile)
	if err := pool.WriteCSV(poolPath); err != nil {
		return nil, err
	}

	trainingPath := filepath.Join(b.settings.FeaturesDir, train.TrainingDatasetFile)
	if err := training.WriteCSV(trainingPath); err != nil {
		return nil, err
	}

	b.log.WithFields(map[string]interface{}{
		"pool_rows":     pool.Len(),
		"training_rows": training.Len(),
		"dir":           b.settings.FeaturesDir,
	}).Info("Feature build complete")

	return &Result{
		PoolPath:     poolPath,
		PoolRows:     pool.Len(),
		TrainingPath: trainingPath,
		TrainingRows: training.Len(),
	}, nil
}

// featureRow computes the rolling-window aggregates for one user at one
// snapshot date.
func (b *Builder) featureRow(uid string, p *userProfile, day time.Time) dataset.Row {
	var (
		sessions7       int
		watch7          float64
		watch14         float64
		watch30         float64
		quizAttempts7   int
		quizScoreSum7   float64
		payFailures30   int
		tickets30       int
		lastActivity    time.Time
		hasActivityEver bool
	)

	for d, stats := range p.days {
		if d.After(day) {
			continue
		}
		if stats.anyActivity && d.After(lastActivity) {
			lastActivity = d
			hasActivityEver = true
		}

		age := int(day.Sub(d).Hours() / 24)
		if age < 7 {
			sessions7 += stats.sessions
			watch7 += stats.watchMinutes
			quizAttempts7 += stats.quizAttempts
			quizScoreSum7 += stats.quizScoreSum
		}
		if age < 14 {
			watch14 += stats.watchMinutes
		}
		if age < 30 {
			watch30 += stats.watchMinutes
			payFailures30 += stats.paymentFailures
			tickets30 += stats.supportTickets
		}
	}

	quizAvg := 0.0
	if quizAttempts7 > 0 {
		quizAvg = quizScoreSum7 / float64(quizAttempts7)
	}

	sinceActivity := int(day.Sub(p.signup).Hours() / 24)
	if hasActivityEver {
		sinceActivity = int(day.Sub(lastActivity).Hours() / 24)
	}

	return dataset.Row{
		dataset.ColUserID:          uid,
		dataset.ColAsOfDate:        day.Format("2006-01-02"),
		dataset.ColSignupDate:      p.signup.Format("2006-01-02"),
		"plan":                     p.plan,
		"is_paid":                  p.isPaid,
		"country":                  p.country,
		"marketing_source":         p.source,
		"days_since_signup":        dataset.FormatInt(int(day.Sub(p.signup).Hours() / 24)),
		"days_since_last_activity": dataset.FormatInt(sinceActivity),
		"sessions_7d":              dataset.FormatInt(sessions7),
		"watch_minutes_7d":         dataset.FormatFloat(watch7),
		"watch_minutes_14d":        dataset.FormatFloat(watch14),
		"watch_minutes_30d":        dataset.FormatFloat(watch30),
		"quiz_attempts_7d":         dataset.FormatInt(quizAttempts7),
		"quiz_avg_score_7d":        dataset.FormatFloat(quizAvg),
		"payment_failures_30d":     dataset.FormatInt(payFailures30),
		"support_tickets_30d":      dataset.FormatInt(tickets30),
	}
}

// churnLabel is 1 when the user shows no activity in the label horizon
// strictly after the snapshot date.
func churnLabel(p *userProfile, day time.Time) string {
	horizon := day.AddDate(0, 0, LabelHorizonDays)
	for d, stats := range p.days {
		if stats.anyActivity && d.After(day) && !d.After(horizon) {
			return "0"
		}
	}
	return "1"
}

// joinProfiles indexes the static user context by user_id
func joinProfiles(users *dataset.Table) (map[string]*userProfile, []string, error) {
	for _, col := range []string{dataset.ColUserID, dataset.ColSignupDate} {
		if !users.HasColumn(col) {
			return nil, nil, &dataset.SchemaError{Column: col}
		}
	}

	profiles := make(map[string]*userProfile, users.Len())
	order := make([]string, 0, users.Len())
	for _, row := range users.Rows {
		signup, ok := dataset.ParseDate(row[dataset.ColSignupDate])
		if !ok {
			continue
		}
		uid := row[dataset.ColUserID]
		profiles[uid] = &userProfile{
			signup:  signup,
			plan:    row["plan"],
			isPaid:  row["is_paid"],
			country: row["country"],
			source:  row["marketing_source"],
			days:    make(map[time.Time]*dayStats),
		}
		order = append(order, uid)
	}

	sort.Slice(order, func(i, j int) bool {
		a, aerr := strconv.Atoi(order[i])
		b, berr := strconv.Atoi(order[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return order[i] < order[j]
	})

	return profiles, order, nil
}

// aggregateEvents folds the raw event log into per-user per-day stats and
// returns the observed day range.
func aggregateEvents(events *dataset.Table, profiles map[string]*userProfile) (first, last time.Time, err error) {
	for _, col := range []string{dataset.ColUserID, "event_time", "event_type"} {
		if !events.HasColumn(col) {
			return time.Time{}, time.Time{}, &dataset.SchemaError{Column: col}
		}
	}

	for _, row := range events.Rows {
		p, ok := profiles[row[dataset.ColUserID]]
		if !ok {
			continue
		}
		day, ok := dataset.ParseDate(row["event_time"])
		if !ok {
			continue
		}

		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}

		stats := p.days[day]
		if stats == nil {
			stats = &dayStats{}
			p.days[day] = stats
		}
		stats.anyActivity = true

		switch row["event_type"] {
		case datagen.EventLogin:
			stats.sessions++
		case datagen.EventVideoWatch:
			if v, perr := strconv.ParseFloat(row["watch_minutes"], 64); perr == nil {
				stats.watchMinutes += v
			}
		case datagen.EventQuizAttempt:
			stats.quizAttempts++
			if v, perr := strconv.ParseFloat(row["quiz_score"], 64); perr == nil {
				stats.quizScoreSum += v
			}
		case datagen.EventPaymentFailed:
			stats.paymentFailures++
		case datagen.EventSupportTicket:
			stats.supportTickets++
		}
	}

	if first.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("events contain no parseable event_time values")
	}

	return first, last, nil
}
