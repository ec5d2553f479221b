package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

const eventColumns = `id, partition_key, customer_id, team_id, organization,
	operation, kind, input_bytes, output_bytes, duration_ms, status_code,
	success, error, key_digest, ip_address, user_agent, detail, cost, timestamp`

// Append stores a batch of events in one transaction.
func (s *UsageStore) Append(ctx context.Context, events []usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		detail, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail for event %s: %w", e.ID, err)
		}

		var cost sql.NullFloat64
		if e.Cost != nil {
			cost = sql.NullFloat64{Float64: *e.Cost, Valid: true}
		}

		// Timestamps stored in UTC for consistent range queries.
		_, err = stmt.ExecContext(ctx,
			e.ID, e.Partition(), nullable(e.CustomerID), nullable(e.TeamID), nullable(e.Organization),
			e.Operation, e.Kind, e.InputBytes, e.OutputBytes, e.DurationMs, e.StatusCode,
			e.Success, nullable(e.Error), nullable(e.KeyDigest), nullable(e.IPAddress),
			nullable(e.UserAgent), string(detail), cost, e.Timestamp.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByCustomer returns events in a customer partition within [start, end).
func (s *UsageStore) ListByCustomer(ctx context.Context, customerID string, start, end time.Time, limit, offset int) ([]usage.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE partition_key = ? AND datetime(timestamp) >= datetime(?) AND datetime(timestamp) < datetime(?)
		ORDER BY timestamp
		LIMIT ? OFFSET ?
	`, customerID, sqlTime(start), sqlTime(end), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByOrganization returns an organization's events within [start, end).
// Organization is not the partition key, so this is a scan over the time
// index rather than a partition lookup.
func (s *UsageStore) ListByOrganization(ctx context.Context, org string, start, end time.Time) ([]usage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM usage_events
		WHERE organization = ? AND datetime(timestamp) >= datetime(?) AND datetime(timestamp) < datetime(?)
		ORDER BY timestamp
	`, org, sqlTime(start), sqlTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByKind counts a partition's events of one kind since a point in time.
func (s *UsageStore) CountByKind(ctx context.Context, customerID, kind string, since time.Time) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM usage_events
		WHERE partition_key = ? AND kind = ? AND datetime(timestamp) >= datetime(?)
	`, customerID, kind, sqlTime(since))

	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Cleanup removes events older than the cutoff.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_events WHERE datetime(timestamp) < datetime(?)
	`, sqlTime(olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]usage.Event, error) {
	var events []usage.Event
	for rows.Next() {
		var (
			e          usage.Event
			partition  string
			customerID sql.NullString
			teamID     sql.NullString
			org        sql.NullString
			errMsg     sql.NullString
			keyDigest  sql.NullString
			ipAddress  sql.NullString
			userAgent  sql.NullString
			detail     sql.NullString
			cost       sql.NullFloat64
		)

		err := rows.Scan(
			&e.ID, &partition, &customerID, &teamID, &org,
			&e.Operation, &e.Kind, &e.InputBytes, &e.OutputBytes, &e.DurationMs, &e.StatusCode,
			&e.Success, &errMsg, &keyDigest, &ipAddress, &userAgent, &detail, &cost, &e.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		e.CustomerID = customerID.String
		e.TeamID = teamID.String
		e.Organization = org.String
		e.Error = errMsg.String
		e.KeyDigest = keyDigest.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String

		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal detail for event %s: %w", e.ID, err)
			}
		}
		if cost.Valid {
			c := cost.Float64
			e.Cost = &c
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
