package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"campaign-engine/internal/common/errors"
	"campaign-engine/internal/config"
	"campaign-engine/internal/storage"
	"campaign-engine/internal/triggers"
)

func init() {
	storage.Register("sqlite", func(cfg *config.Config) (storage.Storage, error) {
		return NewAdapter(&Config{DatabasePath: cfg.DatabasePath})
	})
}

// Adapter implements storage.Storage backed by SQLite
type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite allows one writer at a time; the scheduler and workers share
	// this connection pool, so serialize writes at the pool level.
	db.SetMaxOpenConns(1)

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			trigger_type TEXT NOT NULL DEFAULT 'manual',
			trigger_config TEXT,
			workflow_id TEXT NOT NULL DEFAULT '',
			executed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_owner_status ON campaigns(owner_id, status)`,
		`CREATE TABLE IF NOT EXISTS campaign_executions (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id),
			status TEXT NOT NULL DEFAULT 'pending',
			triggered_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			result_summary TEXT,
			error_message TEXT NOT NULL DEFAULT '',
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_campaign ON campaign_executions(campaign_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL UNIQUE,
			trigger_config TEXT NOT NULL,
			next_fire DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			tier TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_owner ON subscriptions(owner_id, status)`,
	}

	for _, stmt := range schema {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

// Campaigns

func (a *Adapter) CreateCampaign(c *storage.Campaign) error {
	triggerJSON, err := marshalTrigger(c.Trigger)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = a.db.Exec(`
		INSERT INTO campaigns (id, owner_id, name, description, status, trigger_type, trigger_config, workflow_id, executed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Description, string(c.Status), string(c.TriggerKind),
		triggerJSON, c.WorkflowID, c.LastExecutedAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (a *Adapter) GetCampaign(id string) (*storage.Campaign, error) {
	row := a.db.QueryRow(`
		SELECT id, owner_id, name, description, status, trigger_type, trigger_config, workflow_id, executed_at, created_at, updated_at
		FROM campaigns WHERE id = ?`, id)
	return scanCampaign(row)
}

func (a *Adapter) ListCampaigns(ownerID string) ([]*storage.Campaign, error) {
	return a.queryCampaigns(`
		SELECT id, owner_id, name, description, status, trigger_type, trigger_config, workflow_id, executed_at, created_at, updated_at
		FROM campaigns WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

func (a *Adapter) ListActiveCampaigns(ownerID string) ([]*storage.Campaign, error) {
	return a.queryCampaigns(`
		SELECT id, owner_id, name, description, status, trigger_type, trigger_config, workflow_id, executed_at, created_at, updated_at
		FROM campaigns WHERE owner_id = ? AND status = 'active' ORDER BY created_at DESC`, ownerID)
}

func (a *Adapter) CountActiveCampaigns(ownerID string) (int, error) {
	var count int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM campaigns WHERE owner_id = ? AND status = 'active'`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active campaigns: %w", err)
	}
	return count, nil
}

func (a *Adapter) UpdateCampaignStatus(id string, status storage.CampaignStatus) error {
	result, err := a.db.Exec(`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return requireRowAffected(result, "campaign")
}

func (a *Adapter) UpdateCampaignTrigger(c *storage.Campaign) error {
	triggerJSON, err := marshalTrigger(c.Trigger)
	if err != nil {
		return err
	}

	result, err := a.db.Exec(`
		UPDATE campaigns SET trigger_type = ?, trigger_config = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(c.TriggerKind), triggerJSON, string(c.Status), time.Now().UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update campaign trigger: %w", err)
	}
	return requireRowAffected(result, "campaign")
}

func (a *Adapter) SetCampaignExecutedAt(id string, at time.Time) error {
	_, err := a.db.Exec(`UPDATE campaigns SET executed_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set campaign executed_at: %w", err)
	}
	return nil
}

func (a *Adapter) queryCampaigns(query string, args ...interface{}) ([]*storage.Campaign, error) {
	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*storage.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Executions

func (a *Adapter) CreateExecution(e *storage.Execution) error {
	summaryJSON, err := marshalMap(e.ResultSummary)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalMap(e.Metadata)
	if err != nil {
		return err
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err = a.db.Exec(`
		INSERT INTO campaign_executions (id, campaign_id, status, triggered_by, created_at, started_at, completed_at, result_summary, error_message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CampaignID, string(e.Status), e.TriggeredBy, e.CreatedAt,
		e.StartedAt, e.CompletedAt, summaryJSON, e.ErrorMessage, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (a *Adapter) GetExecution(id string) (*storage.Execution, error) {
	row := a.db.QueryRow(`
		SELECT id, campaign_id, status, triggered_by, created_at, started_at, completed_at, result_summary, error_message, metadata
		FROM campaign_executions WHERE id = ?`, id)
	return scanExecution(row)
}

func (a *Adapter) UpdateExecution(e *storage.Execution) error {
	summaryJSON, err := marshalMap(e.ResultSummary)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalMap(e.Metadata)
	if err != nil {
		return err
	}

	result, err := a.db.Exec(`
		UPDATE campaign_executions SET status = ?, started_at = ?, completed_at = ?, result_summary = ?, error_message = ?, metadata = ?
		WHERE id = ?`,
		string(e.Status), e.StartedAt, e.CompletedAt, summaryJSON, e.ErrorMessage, metadataJSON, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	return requireRowAffected(result, "execution")
}

func (a *Adapter) ListExecutions(campaignID string, limit int) ([]*storage.Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(`
		SELECT id, campaign_id, status, triggered_by, created_at, started_at, completed_at, result_summary, error_message, metadata
		FROM campaign_executions WHERE campaign_id = ? ORDER BY created_at DESC LIMIT ?`,
		campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []*storage.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// Scheduled jobs

func (a *Adapter) UpsertJob(j *storage.Job) error {
	triggerJSON, err := marshalTrigger(j.Trigger)
	if err != nil {
		return err
	}

	j.UpdatedAt = time.Now().UTC()
	_, err = a.db.Exec(`
		INSERT INTO scheduled_jobs (id, campaign_id, trigger_config, next_fire, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET trigger_config = excluded.trigger_config, next_fire = excluded.next_fire, updated_at = excluded.updated_at`,
		j.ID, j.CampaignID, triggerJSON, j.NextFire.UTC(), j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

func (a *Adapter) UpdateJobNextFire(jobID string, nextFire time.Time) error {
	_, err := a.db.Exec(`UPDATE scheduled_jobs SET next_fire = ?, updated_at = ? WHERE id = ?`,
		nextFire.UTC(), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job next fire: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteJob(jobID string) error {
	_, err := a.db.Exec(`DELETE FROM scheduled_jobs WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (a *Adapter) ListJobs() ([]*storage.Job, error) {
	rows, err := a.db.Query(`SELECT id, campaign_id, trigger_config, next_fire, updated_at FROM scheduled_jobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*storage.Job
	for rows.Next() {
		j := &storage.Job{}
		var triggerJSON string
		if err := rows.Scan(&j.ID, &j.CampaignID, &triggerJSON, &j.NextFire, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if j.Trigger, err = unmarshalTrigger(triggerJSON); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Subscriptions

func (a *Adapter) CreateSubscription(s *storage.Subscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(`
		INSERT INTO subscriptions (id, owner_id, tier, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Tier, s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (a *Adapter) GetActiveTier(ownerID string) (string, error) {
	var tier string
	err := a.db.QueryRow(`
		SELECT tier FROM subscriptions WHERE owner_id = ? AND status = 'active' ORDER BY created_at DESC LIMIT 1`,
		ownerID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query subscription: %w", err)
	}
	return tier, nil
}

// Row scanning helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*storage.Campaign, error) {
	c := &storage.Campaign{}
	var triggerJSON sql.NullString
	var status, kind string

	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &status, &kind,
		&triggerJSON, &c.WorkflowID, &c.LastExecutedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("campaign")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	c.Status = storage.CampaignStatus(status)
	c.TriggerKind = triggers.Kind(kind)
	if triggerJSON.Valid && triggerJSON.String != "" {
		if c.Trigger, err = unmarshalTrigger(triggerJSON.String); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func scanExecution(row rowScanner) (*storage.Execution, error) {
	e := &storage.Execution{}
	var status string
	var summaryJSON, metadataJSON sql.NullString

	err := row.Scan(&e.ID, &e.CampaignID, &status, &e.TriggeredBy, &e.CreatedAt,
		&e.StartedAt, &e.CompletedAt, &summaryJSON, &e.ErrorMessage, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("execution")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	e.Status = storage.ExecutionStatus(status)
	if e.ResultSummary, err = unmarshalMap(summaryJSON); err != nil {
		return nil, err
	}
	if e.Metadata, err = unmarshalMap(metadataJSON); err != nil {
		return nil, err
	}
	return e, nil
}

func marshalTrigger(cfg *triggers.Config) (sql.NullString, error) {
	if cfg == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal trigger config: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalTrigger(data string) (*triggers.Config, error) {
	cfg := &triggers.Config{}
	if err := json.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}
	return cfg, nil
}

func marshalMap(m map[string]interface{}) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMap(data sql.NullString) (map[string]interface{}, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(data.String), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return m, nil
}

func requireRowAffected(result sql.Result, resource string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFoundError(resource)
	}
	return nil
}
