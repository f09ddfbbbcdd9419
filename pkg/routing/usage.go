package routing

import (
	"lintang/deliverynav/pkg/kv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	quotaWarningRatio = 0.8
	daysPerMonth      = 30
)

type UsageStore interface {
	LoadUsage() (kv.UsageRecord, error)
	SaveUsage(rec kv.UsageRecord) error
}

type UsageReport struct {
	Month            string `json:"month"`
	Requests         int64  `json:"requests"`
	MonthlyBudget    int64  `json:"monthly_budget"`
	QuotaApproaching bool   `json:"quota_approaching"`
}

// usage counts provider requests per calendar month. It never blocks a request,
// QuotaApproaching is only advisory.
type usage struct {
	mu          sync.Mutex
	store       UsageStore
	rec         kv.UsageRecord
	dailyBudget int64
	now         func() time.Time
	log         *zap.Logger
	warned      bool
}

func newUsage(store UsageStore, dailyBudget int64, now func() time.Time, log *zap.Logger) *usage {
	u := &usage{store: store, dailyBudget: dailyBudget, now: now, log: log}
	if store != nil {
		rec, err := store.LoadUsage()
		if err != nil {
			log.Warn("could not load usage counter, starting from zero", zap.Error(err))
		} else {
			u.rec = rec
		}
	}
	u.rollover()
	return u
}

func monthOf(t time.Time) string {
	return t.Format("2006-01")
}

func (u *usage) rollover() {
	month := monthOf(u.now())
	if u.rec.Month != month {
		u.rec = kv.UsageRecord{Month: month}
		u.warned = false
	}
}

func (u *usage) record() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rollover()
	u.rec.Count++
	if u.store != nil {
		if err := u.store.SaveUsage(u.rec); err != nil {
			u.log.Warn("could not persist usage counter", zap.Error(err))
		}
	}
	if !u.warned && u.approachingLocked() {
		u.warned = true
		u.log.Warn("routing provider quota approaching",
			zap.Int64("requests", u.rec.Count), zap.Int64("monthly_budget", u.monthlyBudget()))
	}
}

func (u *usage) monthlyBudget() int64 {
	return u.dailyBudget * daysPerMonth
}

func (u *usage) approachingLocked() bool {
	budget := u.monthlyBudget()
	if budget <= 0 {
		return false
	}
	return float64(u.rec.Count) > quotaWarningRatio*float64(budget)
}

func (u *usage) report() UsageReport {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rollover()
	return UsageReport{
		Month:            u.rec.Month,
		Requests:         u.rec.Count,
		MonthlyBudget:    u.monthlyBudget(),
		QuotaApproaching: u.approachingLocked(),
	}
}
