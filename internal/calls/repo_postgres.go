package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresRepo persists calls in a single `calls` table.
//
// Assumed schema highlights:
// - PRIMARY KEY (id), index on (organization_id, campaign_id, created_at)
// - key_points stored as JSONB
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const callColumns = `
id, organization_id, campaign_id, customer_phone, customer_name, status,
duration, transcript, summary, sentiment, outcome, key_points, buying_signals,
ai_confidence_score, qualification_status, recommendation, crm_status, lead_id,
created_at, updated_at
`

func (r *PostgresRepo) GetByID(ctx context.Context, organizationID, callID string) (Call, error) {
	if organizationID == "" || callID == "" {
		return Call{}, ErrInvalidArgument
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE organization_id = $1 AND id = $2
`
	return scanCall(r.db.QueryRowContext(ctx, q, organizationID, callID))
}

func (r *PostgresRepo) Upsert(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" || c.OrganizationID == "" {
		return Call{}, ErrInvalidArgument
	}
	now := r.clock().UTC()
	keyPoints, err := json.Marshal(c.KeyPoints)
	if err != nil {
		return Call{}, err
	}
	const q = `
INSERT INTO calls (
  id, organization_id, campaign_id, customer_phone, customer_name, status,
  duration, transcript, key_points, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  duration = EXCLUDED.duration,
  transcript = CASE WHEN EXCLUDED.transcript <> '' THEN EXCLUDED.transcript ELSE calls.transcript END,
  customer_phone = CASE WHEN EXCLUDED.customer_phone <> '' THEN EXCLUDED.customer_phone ELSE calls.customer_phone END,
  customer_name = CASE WHEN EXCLUDED.customer_name <> '' THEN EXCLUDED.customer_name ELSE calls.customer_name END,
  updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns + `
`
	return scanCall(r.db.QueryRowContext(ctx, q,
		c.ID, c.OrganizationID, c.CampaignID, c.CustomerPhone, c.CustomerName,
		c.Status, c.DurationSeconds, c.Transcript, keyPoints, now,
	))
}

func (r *PostgresRepo) SaveAnalysis(ctx context.Context, c Call) error {
	if c.ID == "" || c.OrganizationID == "" {
		return ErrInvalidArgument
	}
	keyPoints, err := json.Marshal(c.KeyPoints)
	if err != nil {
		return err
	}
	const q = `
UPDATE calls SET
  summary = $3,
  sentiment = $4,
  outcome = $5,
  key_points = $6,
  buying_signals = $7,
  ai_confidence_score = $8,
  updated_at = $9
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.OrganizationID, c.ID, c.Summary, c.Sentiment, c.Outcome,
		keyPoints, c.BuyingSignals, ClampScore(c.AIConfidenceScore), r.clock().UTC(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) SaveQualification(ctx context.Context, organizationID, callID string, score float64, rec Recommendation, status QualificationStatus) error {
	if organizationID == "" || callID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE calls SET
  ai_confidence_score = $3,
  recommendation = $4,
  qualification_status = $5,
  updated_at = $6
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, organizationID, callID, ClampScore(score), rec, status, r.clock().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) MarkCRMStatus(ctx context.Context, organizationID, callID string, status CRMStatus, leadID string) error {
	if organizationID == "" || callID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE calls SET
  crm_status = $3,
  lead_id = CASE WHEN $4 <> '' THEN $4 ELSE lead_id END,
  updated_at = $5
WHERE organization_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, organizationID, callID, status, leadID, r.clock().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) ListActive(ctx context.Context, organizationID string) ([]Call, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE organization_id = $1 AND status IN ('queued','ringing','in_progress')
ORDER BY created_at DESC
`
	return r.queryCalls(ctx, q, organizationID)
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, organizationID, campaignID string, from, to time.Time) ([]Call, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	// Empty campaignID means the whole organization.
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE organization_id = $1
  AND ($2 = '' OR campaign_id = $2)
  AND created_at >= $3 AND created_at < $4
ORDER BY created_at DESC
`
	return r.queryCalls(ctx, q, organizationID, campaignID, from, to)
}

func (r *PostgresRepo) queryCalls(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var keyPoints []byte
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.CampaignID, &c.CustomerPhone, &c.CustomerName,
		&c.Status, &c.DurationSeconds, &c.Transcript, &c.Summary, &c.Sentiment,
		&c.Outcome, &keyPoints, &c.BuyingSignals, &c.AIConfidenceScore,
		&c.QualificationStatus, &c.Recommendation, &c.CRMStatus, &c.LeadID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &c.KeyPoints); err != nil {
			return Call{}, err
		}
	}
	return c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
