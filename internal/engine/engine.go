package engine

import (
	"context"
	"database/sql"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"earlyadopters/internal/chain"
	"earlyadopters/internal/config"
	"earlyadopters/internal/events"
	"earlyadopters/internal/ledger"
	"earlyadopters/internal/metrics"
	"earlyadopters/internal/repo"
	"earlyadopters/internal/verifier"
)

// Transferer moves native currency between accounts inside a transaction.
type Transferer interface {
	Balance(ctx context.Context, tx *sql.Tx, account string) (*big.Int, error)
	Credit(ctx context.Context, tx *sql.Tx, account string, amount *big.Int, memo string) error
	Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount *big.Int, memo string) error
}

// Engine is the activity lifecycle and reward state machine. Every mutation
// runs in one immediate transaction: checks, writes, transfers and the event
// row commit or roll back together.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Verifiers *verifier.Registry
	Ledger    Transferer
	Metrics   *metrics.Metrics
	Log       *log.Logger
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, verifiers *verifier.Registry) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Verifiers: verifiers,
		Ledger:    ledger.Ledger{Repo: r},
		Log:       log.StandardLogger(),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.StandardLogger()
}

// Chain returns the configured chain descriptor.
func (e Engine) Chain() chain.Chain {
	if e.Config == nil {
		return chain.Chain{ID: 1, Name: "unknown", Currency: "ETH", Decimals: 18}
	}
	c := e.Config.Chain
	return chain.Chain{ID: c.ID, Name: c.Name, Currency: c.Currency, Decimals: c.Decimals}
}

// track records the outcome of op when the returned func runs.
func (e Engine) track(op string, err *error) func() {
	start := time.Now()
	return func() { e.Metrics.Observe(op, start, *err) }
}

func (e Engine) beginTx(ctx context.Context) (*sql.Tx, error) {
	return e.DB.BeginTx(ctx, nil)
}

// account validates an address argument and returns its checksummed form.
func account(op, field, value string) (string, error) {
	addr, err := chain.NormalizeAddress(value)
	if err != nil {
		return "", newError(KindInvalidArgument, op, map[string]any{field: value}, err)
	}
	return addr, nil
}

func sameAccount(a, b string) bool {
	return strings.EqualFold(a, b)
}
