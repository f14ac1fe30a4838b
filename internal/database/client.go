package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Querier runs parameterized statements. Both Client and the handle passed
// to Transaction work implement it.
type Querier interface {
	Query(ctx context.Context, dest interface{}, statement string, args ...interface{}) error
	Exec(ctx context.Context, statement string, args ...interface{}) (int64, error)
}

// Client owns the single shared database handle and the token used to
// authenticate it. Construct one per process and pass it to whatever needs it.
type Client struct {
	cfg    *Config
	signer TokenSigner
	open   Opener
	log    *logrus.Entry
	now    func() time.Time

	mu          sync.Mutex
	db          *gorm.DB
	schemaReady bool

	tokenMu  sync.Mutex
	token    string
	signedAt time.Time
}

type Option func(*Client)

func WithOpener(open Opener) Option {
	return func(c *Client) {
		c.open = open
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		c.log = l.WithField("component", "database")
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(cfg *Config, signer TokenSigner, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := &Client{
		cfg:    cfg,
		signer: signer,
		open:   OpenPostgres,
		log:    logrus.StandardLogger().WithField("component", "database"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureConnected returns the live handle, opening one when none exists.
func (c *Client) EnsureConnected(ctx context.Context) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	if err := c.cfg.validate(); err != nil {
		return nil, &ConnectionError{Op: "configure", Err: err}
	}

	if _, err := c.password(ctx); err != nil {
		c.log.WithError(err).Error("Failed to obtain database auth token")
		return nil, &ConnectionError{Op: "sign", Err: err}
	}

	connectCtx, cancel := withTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	db, err := c.open(connectCtx, c.cfg, c.password, c.gormConfig())
	if err != nil {
		c.log.WithError(err).WithField("host", c.cfg.Host()).Error("Failed to connect to Aurora DSQL")
		return nil, &ConnectionError{Op: "connect", Err: err}
	}

	c.db = db
	c.schemaReady = false
	c.log.WithField("host", c.cfg.Host()).Info("Connected to Aurora DSQL")
	return db, nil
}

func (c *Client) Query(ctx context.Context, dest interface{}, statement string, args ...interface{}) error {
	db, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	queryCtx, cancel := withTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	if err := db.WithContext(queryCtx).Raw(statement, args...).Scan(dest).Error; err != nil {
		return c.queryFailed(db, statement, err)
	}
	return nil
}

func (c *Client) Exec(ctx context.Context, statement string, args ...interface{}) (int64, error) {
	db, err := c.EnsureConnected(ctx)
	if err != nil {
		return 0, err
	}

	queryCtx, cancel := withTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	result := db.WithContext(queryCtx).Exec(statement, args...)
	if result.Error != nil {
		return 0, c.queryFailed(db, statement, result.Error)
	}
	return result.RowsAffected, nil
}

// InitializeSchema creates the todos table and its indexes if missing. After
// the first success on a handle it is a no-op until the handle is replaced.
func (c *Client) InitializeSchema(ctx context.Context) error {
	db, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ready := c.schemaReady && c.db == db
	c.mu.Unlock()
	if ready {
		return nil
	}

	for _, statement := range schemaStatements(db.Dialector.Name()) {
		if _, err := c.Exec(ctx, statement); err != nil {
			c.log.WithError(err).Error("Failed to initialize schema")
			return err
		}
	}

	c.mu.Lock()
	if c.db == db {
		c.schemaReady = true
	}
	c.mu.Unlock()

	c.log.Debug("Database schema initialized successfully")
	return nil
}

// Transaction runs work between BEGIN and COMMIT. Any error from work rolls
// the transaction back and is returned unchanged.
func (c *Client) Transaction(ctx context.Context, work func(ctx context.Context, q Querier) error) error {
	db, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return work(ctx, &txQuerier{tx: tx, client: c})
	})
}

func (c *Client) Health(ctx context.Context) error {
	db, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return &ConnectionError{Op: "health", Err: err}
	}

	pingCtx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return &ConnectionError{Op: "health", Err: err}
	}
	return nil
}

func (c *Client) Stats() map[string]interface{} {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()

	if db == nil {
		return map[string]interface{}{"connected": false}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"connected":        true,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}

// Close drops the handle. The next call that needs the database reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.db == nil {
		return nil
	}

	db := c.db
	c.db = nil
	c.schemaReady = false
	c.resetToken()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.log.WithError(err).Error("Error disconnecting from Aurora DSQL")
		return err
	}

	c.log.Info("Disconnected from Aurora DSQL")
	return nil
}

// password returns the cached token while it is younger than TokenTTL and
// signs a new one otherwise.
func (c *Client) password(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && (c.cfg.TokenTTL <= 0 || c.now().Sub(c.signedAt) < c.cfg.TokenTTL) {
		return c.token, nil
	}

	if c.signer == nil {
		return "", errors.New("no token signer configured")
	}

	token, err := c.signer.Token(ctx, c.cfg.Host(), c.cfg.Region)
	if err != nil {
		return "", err
	}

	c.token = token
	c.signedAt = c.now()
	c.log.Debug("Generated database auth token")
	return token, nil
}

func (c *Client) resetToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.signedAt = time.Time{}
	c.tokenMu.Unlock()
}

// queryFailed wraps err and drops the handle when the connection itself is
// gone, so the next call reconnects.
func (c *Client) queryFailed(db *gorm.DB, statement string, err error) error {
	c.log.WithError(err).Error("Query failed")

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.mu.Lock()
		if c.db == db {
			if cerr := c.closeLocked(); cerr != nil {
				c.log.WithError(cerr).Warn("Failed to close broken connection")
			}
		}
		c.mu.Unlock()
	}

	return &QueryError{Statement: statement, Err: err}
}

func (c *Client) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(c.log, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  c.cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
		}),
		DisableAutomaticPing: true,
	}
}

type txQuerier struct {
	tx     *gorm.DB
	client *Client
}

func (q *txQuerier) Query(ctx context.Context, dest interface{}, statement string, args ...interface{}) error {
	queryCtx, cancel := withTimeout(ctx, q.client.cfg.QueryTimeout)
	defer cancel()

	if err := q.tx.WithContext(queryCtx).Raw(statement, args...).Scan(dest).Error; err != nil {
		return &QueryError{Statement: statement, Err: err}
	}
	return nil
}

func (q *txQuerier) Exec(ctx context.Context, statement string, args ...interface{}) (int64, error) {
	queryCtx, cancel := withTimeout(ctx, q.client.cfg.QueryTimeout)
	defer cancel()

	result := q.tx.WithContext(queryCtx).Exec(statement, args...)
	if result.Error != nil {
		return 0, &QueryError{Statement: statement, Err: result.Error}
	}
	return result.RowsAffected, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

var _ Querier = (*Client)(nil)
