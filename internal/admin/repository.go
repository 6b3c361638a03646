package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SampleEINs identifies the demo organizations seeded for walkthroughs. Reset deletes these and nothing else.
var SampleEINs = []string{
	"00-0000001",
	"00-0000002",
	"00-0000003",
	"00-0000004",
	"00-0000005",
}

// Repository handles sample data maintenance.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DocumentKeysForEINs returns the S3 keys of documents owned by organizations with the given EINs.
func (r *Repository) DocumentKeysForEINs(ctx context.Context, eins []string) ([]string, error) {
	const q = `SELECT d.s3_key FROM documents d
		INNER JOIN organizations o ON o.id = d.organization_id
		WHERE o.ein = ANY($1)`
	rows, err := r.pool.Query(ctx, q, eins)
	if err != nil {
		return nil, fmt.Errorf("sample document keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteOrganizationsByEIN deletes organizations whose EIN is in eins and returns how many were deleted.
// Applications, reviews and documents go with them; linked users are detached.
func (r *Repository) DeleteOrganizationsByEIN(ctx context.Context, eins []string) (int64, error) {
	if len(eins) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE ein = ANY($1)`, eins)
	if err != nil {
		return 0, fmt.Errorf("delete sample organizations: %w", err)
	}
	return tag.RowsAffected(), nil
}
