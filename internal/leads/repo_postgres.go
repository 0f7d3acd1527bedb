package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo assumes the following schema highlights:
// - PRIMARY KEY (id)
// - UNIQUE (organization_id, phone)  <-- the authoritative de-duplication point
// - custom_fields stored as JSONB
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const leadColumns = `
id, organization_id, campaign_id, first_name, last_name, phone, email, company,
address, status, score, notes, custom_fields, source, last_contact_at,
created_at, updated_at
`

func (r *PostgresRepo) GetByID(ctx context.Context, organizationID, leadID string) (Lead, error) {
	if organizationID == "" || leadID == "" {
		return Lead{}, ErrInvalidArgument
	}
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE organization_id = $1 AND id = $2
`
	return scanLead(r.db.QueryRowContext(ctx, q, organizationID, leadID))
}

func (r *PostgresRepo) FindByOrgAndPhone(ctx context.Context, organizationID, phone string) (Lead, error) {
	if organizationID == "" || phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE organization_id = $1 AND phone = $2
`
	return scanLead(r.db.QueryRowContext(ctx, q, organizationID, phone))
}

func (r *PostgresRepo) Insert(ctx context.Context, l Lead) (Lead, error) {
	if l.ID == "" || l.OrganizationID == "" || l.Phone == "" {
		return Lead{}, ErrInvalidArgument
	}
	now := r.clock().UTC()
	custom, err := json.Marshal(l.CustomFields)
	if err != nil {
		return Lead{}, err
	}
	const q = `
INSERT INTO leads (
  id, organization_id, campaign_id, first_name, last_name, phone, email,
  company, address, status, score, notes, custom_fields, source,
  last_contact_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
RETURNING ` + leadColumns + `
`
	out, err := scanLead(r.db.QueryRowContext(ctx, q,
		l.ID, l.OrganizationID, l.CampaignID, l.FirstName, l.LastName, l.Phone,
		l.Email, l.Company, l.Address, l.Status, l.Score, l.Notes, custom,
		l.Source, l.LastContactAt, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Lead{}, ErrDuplicate
		}
		return Lead{}, err
	}
	return out, nil
}

func (r *PostgresRepo) Update(ctx context.Context, l Lead) (Lead, error) {
	if l.ID == "" || l.OrganizationID == "" {
		return Lead{}, ErrInvalidArgument
	}
	custom, err := json.Marshal(l.CustomFields)
	if err != nil {
		return Lead{}, err
	}
	const q = `
UPDATE leads SET
  campaign_id = $3,
  first_name = $4,
  last_name = $5,
  email = $6,
  company = $7,
  address = $8,
  status = $9,
  score = $10,
  notes = $11,
  custom_fields = $12,
  last_contact_at = $13,
  updated_at = $14
WHERE organization_id = $1 AND id = $2
RETURNING ` + leadColumns + `
`
	return scanLead(r.db.QueryRowContext(ctx, q,
		l.OrganizationID, l.ID, l.CampaignID, l.FirstName, l.LastName,
		l.Email, l.Company, l.Address, l.Status, l.Score, l.Notes, custom,
		l.LastContactAt, r.clock().UTC(),
	))
}

func (r *PostgresRepo) ListQualified(ctx context.Context, organizationID, campaignID string) ([]Lead, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE organization_id = $1
  AND status IN ('qualified','converted')
  AND ($2 = '' OR campaign_id = $2)
ORDER BY score DESC, updated_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	var custom []byte
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.CampaignID, &l.FirstName, &l.LastName,
		&l.Phone, &l.Email, &l.Company, &l.Address, &l.Status, &l.Score,
		&l.Notes, &custom, &l.Source, &l.LastContactAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &l.CustomFields); err != nil {
			return Lead{}, err
		}
	}
	return l, nil
}

// isUniqueViolation detects Postgres error 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
