package datagen

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/churn-mlops/internal/dataset"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// Event types emitted by the simulator
const (
	EventLogin          = "login"
	EventCourseEnroll   = "course_enroll"
	EventVideoWatch     = "video_watch"
	EventQuizAttempt    = "quiz_attempt"
	EventPaymentSuccess = "payment_success"
	EventPaymentFailed  = "payment_failed"
	EventSupportTicket  = "support_ticket"
)

// Output filenames under the raw data dir
const (
	UsersFile  = "users.csv"
	EventsFile = "events.csv"
)

var coursePool = []string{
	"k8s-mastery",
	"devops-warrior",
	"mlops-foundation",
	"argo-cd",
	"terraform",
	"linux-pro",
	"observability",
}

var countryPool = []string{"IN", "US", "UK", "CA", "AU", "SG"}

var sourcePool = []string{"organic", "referral", "ads", "youtube", "community"}

// Settings controls one synthetic-data run
type Settings struct {
	NUsers        int
	Days          int
	StartDate     string // YYYY-MM-DD
	Seed          int64
	PaidRatio     float64
	ChurnBaseRate float64
	OutputDir     string
}

// DefaultSettings mirrors the simulator's standard corpus: ~2k users over
// a 120-day window starting 2026-01-01.
func DefaultSettings(outputDir string) Settings {
	return Settings{
		NUsers:        2000,
		Days:          120,
		StartDate:     "2026-01-01",
		Seed:          42,
		PaidRatio:     0.35,
		ChurnBaseRate: 0.35,
		OutputDir:     outputDir,
	}
}

// User is one simulated account. Engagement is the latent activity score
// in (0,1); it drives both event volume and churn probability but is never
// written to disk (it would be label leakage).
type User struct {
	ID         int
	SignupDate time.Time
	Plan       string
	IsPaid     bool
	Country    string
	Source     string
	Engagement float64
	ChurnDate  time.Time // zero when the user never churns
}

// Result summarizes one generation run
type Result struct {
	Users      int
	Events     int
	UsersPath  string
	EventsPath string
}

// Generator produces a seeded synthetic e-learning corpus
type Generator struct {
	settings Settings
	log      *logger.Logger
}

func New(settings Settings, log *logger.Logger) *Generator {
	return &Generator{settings: settings, log: log}
}

// Run builds the user base, assigns churn dates, simulates daily events
// and writes users.csv / events.csv. Deterministic for a fixed seed.
func (g *Generator) Run() (*Result, error) {
	start, ok := dataset.ParseDate(g.settings.StartDate)
	if !ok {
		return nil, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", g.settings.StartDate)
	}
	if g.settings.NUsers <= 0 || g.settings.Days <= 0 {
		return nil, fmt.Errorf("users and days must be positive (got %d users, %d days)",
			g.settings.NUsers, g.settings.Days)
	}

	rng := rand.New(rand.NewSource(g.settings.Seed))

	users := g.buildUsers(rng, start)
	g.assignChurnDates(rng, users, start)
	events := g.buildEvents(rng, users, start)

	usersPath := filepath.Join(g.settings.OutputDir, UsersFile)
	if err := usersTable(users).WriteCSV(usersPath); err != nil {
		return nil, err
	}

	eventsPath := filepath.Join(g.settings.OutputDir, EventsFile)
	if err := events.WriteCSV(eventsPath); err != nil {
		return nil, err
	}

	g.log.WithFields(map[string]interface{}{
		"users":  len(users),
		"events": events.Len(),
		"dir":    g.settings.OutputDir,
	}).Info("Synthetic dataset written")

	return &Result{
		Users:      len(users),
		Events:     events.Len(),
		UsersPath:  usersPath,
		EventsPath: eventsPath,
	}, nil
}

// buildUsers samples accounts with signup dates spread before the start of
// the event window.
func (g *Generator) buildUsers(rng *rand.Rand, start time.Time) []*User {
	spread := g.settings.Days / 3
	if spread < 30 {
		spread = 30
	}

	users := make([]*User, g.settings.NUsers)
	for i := range users {
		isPaid := rng.Float64() < g.settings.PaidRatio
		plan := "free"
		if isPaid {
			plan = "paid"
		}

		users[i] = &User{
			ID:         i + 1,
			SignupDate: start.AddDate(0, 0, -rng.Intn(spread)),
			Plan:       plan,
			IsPaid:     isPaid,
			Country:    countryPool[rng.Intn(len(countryPool))],
			Source:     sourcePool[rng.Intn(len(sourcePool))],
			Engagement: betaSample(rng, 2.0, 2.5),
		}
	}
	return users
}

// assignChurnDates decides which users churn and when. Paid plans churn
// less; low engagement raises the probability sharply. Churn lands in the
// back three quarters of the window.
func (g *Generator) assignChurnDates(rng *rand.Rand, users []*User, start time.Time) {
	end := start.AddDate(0, 0, g.settings.Days-1)

	for _, u := range users {
		base := g.settings.ChurnBaseRate
		if u.IsPaid {
			base *= 0.75
		}

		engagementFactor := math.Pow(1.0-u.Engagement, 1.6)
		churnProb := math.Min(0.95, base*(0.4+1.4*engagementFactor))

		if rng.Float64() < churnProb {
			offset := g.settings.Days/4 + rng.Intn(g.settings.Days-g.settings.Days/4)
			churn := start.AddDate(0, 0, offset)
			if churn.After(end) {
				churn = end
			}
			u.ChurnDate = churn
		}
	}
}

// buildEvents simulates each user's activity day by day; churned users
// emit nothing after their churn date.
func (g *Generator) buildEvents(rng *rand.Rand, users []*User, start time.Time) *dataset.Table {
	events := dataset.New("event_id", dataset.ColUserID, "event_time", "event_type",
		"course_id", "watch_minutes", "quiz_score", "amount")

	var rows []dataset.Row
	for _, u := range users {
		for d := 0; d < g.settings.Days; d++ {
			day := start.AddDate(0, 0, d)
			if !u.ChurnDate.IsZero() && day.After(u.ChurnDate) {
				continue
			}
			rows = append(rows, g.eventsForUserDay(rng, u, day)...)
		}
	}

	// Stable event IDs over (user, time) order.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i][dataset.ColUserID] != rows[j][dataset.ColUserID] {
			return lessNumeric(rows[i][dataset.ColUserID], rows[j][dataset.ColUserID])
		}
		return rows[i]["event_time"] < rows[j]["event_time"]
	})
	for i, row := range rows {
		row["event_id"] = dataset.FormatInt(i + 1)
		events.Append(row)
	}

	return events
}

func (g *Generator) eventsForUserDay(rng *rand.Rand, u *User, day time.Time) []dataset.Row {
	var out []dataset.Row

	activeToday := rng.Float64() < (0.15 + 0.8*u.Engagement)
	if activeToday {
		sessions := 1 + rng.Intn(3)
		for s := 0; s < sessions; s++ {
			out = append(out, eventRow(u.ID, randomMinute(rng, day), EventLogin, "", 0, -1, -1))

			courseID := coursePool[rng.Intn(len(coursePool))]

			if rng.Float64() < (0.5 + 0.4*u.Engagement) {
				watch := clamp(rng.NormFloat64()*10+20+40*u.Engagement, 2, 180)
				out = append(out, eventRow(u.ID, randomMinute(rng, day), EventVideoWatch, courseID, watch, -1, -1))
			}

			if rng.Float64() < (0.25 + 0.35*u.Engagement) {
				score := clamp(rng.NormFloat64()*15+50+40*u.Engagement, 0, 100)
				out = append(out, eventRow(u.ID, randomMinute(rng, day), EventQuizAttempt, courseID, 0, score, -1))
			}

			if rng.Float64() < 0.05 {
				out = append(out, eventRow(u.ID, randomMinute(rng, day), EventCourseEnroll, courseID, 0, -1, -1))
			}
		}
	}

	// Monthly-ish subscription payment attempt in the first days of a month.
	if u.IsPaid && day.Day() <= 3 {
		eventType := EventPaymentSuccess
		if rng.Float64() >= 0.93 {
			eventType = EventPaymentFailed
		}
		amount := clamp(rng.NormFloat64()*80+499, 199, 999)
		out = append(out, eventRow(u.ID, randomMinute(rng, day), eventType, "", 0, -1, amount))
	}

	if rng.Float64() < 0.005 {
		out = append(out, eventRow(u.ID, randomMinute(rng, day), EventSupportTicket, "", 0, -1, -1))
	}

	return out
}

// eventRow builds one event record; negative quiz/amount means "not set"
// and serializes as an empty cell.
func eventRow(userID int, ts time.Time, eventType, courseID string, watch, quiz, amount float64) dataset.Row {
	row := dataset.Row{
		dataset.ColUserID: dataset.FormatInt(userID),
		"event_time":      ts.Format("2006-01-02T15:04:05"),
		"event_type":      eventType,
		"course_id":       courseID,
		"watch_minutes":   dataset.FormatFloat(watch),
	}
	if quiz >= 0 {
		row["quiz_score"] = dataset.FormatFloat(quiz)
	}
	if amount >= 0 {
		row["amount"] = dataset.FormatFloat(amount)
	}
	return row
}

func usersTable(users []*User) *dataset.Table {
	t := dataset.New(dataset.ColUserID, dataset.ColSignupDate, "plan", "is_paid",
		"country", "marketing_source")
	for _, u := range users {
		isPaid := "0"
		if u.IsPaid {
			isPaid = "1"
		}
		t.Append(dataset.Row{
			dataset.ColUserID:     dataset.FormatInt(u.ID),
			dataset.ColSignupDate: u.SignupDate.Format("2006-01-02"),
			"plan":                u.Plan,
			"is_paid":             isPaid,
			"country":             u.Country,
			"marketing_source":    u.Source,
		})
	}
	return t
}

func randomMinute(rng *rand.Rand, day time.Time) time.Time {
	return day.Add(time.Duration(rng.Intn(1440)) * time.Minute)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lessNumeric orders numeric-string user IDs ("2" < "10")
func lessNumeric(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// betaSample draws from Beta(a,b) via two gamma draws
func betaSample(rng *rand.Rand, a, b float64) float64 {
	x := gammaSample(rng, a)
	y := gammaSample(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws from Gamma(shape, 1) with the Marsaglia-Tsang method
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Boost to shape+1 and scale back.
		u := rng.Float64()
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
