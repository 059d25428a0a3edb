package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/feedbackinsights/internal/domain/entities"
	"github.com/zatekoja/feedbackinsights/internal/domain/repositories"
	"github.com/zatekoja/feedbackinsights/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/feedbackinsights/pkg/errors"
)

const feedbackTable = "feedback_submissions"

var feedbackColumns = []interface{}{
	"id", "rating", "review", "ai_summary", "recommended_action",
	"user_response", "created_at", "status",
}

var feedbackSchema = []string{
	`CREATE TABLE IF NOT EXISTS feedback_submissions (
		id SERIAL PRIMARY KEY,
		rating INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
		review TEXT NOT NULL DEFAULT '',
		ai_summary TEXT,
		recommended_action TEXT,
		user_response TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_created_at ON feedback_submissions (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_rating ON feedback_submissions (rating)`,
}

// FeedbackAdapter implements feedback persistence in Postgres.
type FeedbackAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
	now     func() time.Time
}

// NewFeedbackAdapter creates a new feedback adapter.
func NewFeedbackAdapter(client *postgres.Client) *FeedbackAdapter {
	return &FeedbackAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
		now:     time.Now,
	}
}

var _ repositories.FeedbackRepository = (*FeedbackAdapter)(nil)

// Create inserts a feedback record and fills in the generated columns.
func (a *FeedbackAdapter) Create(ctx context.Context, feedback *entities.FeedbackRecord) error {
	if feedback == nil {
		return apperrors.NewInternalError("feedback is nil", fmt.Errorf("feedback is nil"))
	}

	record := goqu.Record{
		"rating":             feedback.Rating,
		"review":             feedback.Review,
		"ai_summary":         nullString(feedback.AISummary),
		"recommended_action": nullString(feedback.RecommendedAction),
		"user_response":      nullString(feedback.UserResponse),
		"created_at":         a.now().UTC(),
		"status":             string(entities.FeedbackStatusCompleted),
	}

	query, args, err := a.dialect.Insert(feedbackTable).
		Rows(record).
		Returning(feedbackColumns...).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback insert query", err)
	}

	conn, err := a.client.Conn(ctx)
	if err != nil {
		return storeError("failed to acquire database connection", err)
	}
	defer conn.Close()

	stored, err := scanFeedback(conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		return storeError("failed to create feedback", err)
	}

	*feedback = *stored
	return nil
}

// List returns a page of feedback ordered by creation time, newest first,
// and the total number of rows matching the filter. Count and page are read
// in one repeatable-read transaction so they agree.
func (a *FeedbackAdapter) List(ctx context.Context, filter repositories.FeedbackFilter) ([]*entities.FeedbackRecord, int, error) {
	base := a.dialect.From(feedbackTable)
	if filter.Rating != nil {
		base = base.Where(goqu.Ex{"rating": *filter.Rating})
	}

	countQuery, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build feedback count query", err)
	}

	conn, err := a.client.Conn(ctx)
	if err != nil {
		return nil, 0, storeError("failed to acquire database connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, storeError("failed to begin feedback list transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var total int
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count feedback", err)
	}

	records := make([]*entities.FeedbackRecord, 0)
	if filter.Limit > 0 && filter.Offset < total {
		page := base.Select(feedbackColumns...).
			Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
			Limit(uint(filter.Limit))
		if filter.Offset > 0 {
			page = page.Offset(uint(filter.Offset))
		}

		pageQuery, pageArgs, err := page.ToSQL()
		if err != nil {
			return nil, 0, apperrors.NewInternalError("failed to build feedback list query", err)
		}

		rows, err := tx.QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return nil, 0, storeError("failed to list feedback", err)
		}
		defer rows.Close()

		for rows.Next() {
			record, err := scanFeedback(rows)
			if err != nil {
				return nil, 0, storeError("failed to scan feedback", err)
			}
			records = append(records, record)
		}
		if err := rows.Err(); err != nil {
			return nil, 0, storeError("failed to iterate feedback", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, storeError("failed to commit feedback list transaction", err)
	}

	return records, total, nil
}

// EnsureSchema creates the feedback table and its indexes if they are
// missing. Existing rows are never touched, so it is safe to run repeatedly.
func (a *FeedbackAdapter) EnsureSchema(ctx context.Context) error {
	conn, err := a.client.Conn(ctx)
	if err != nil {
		return storeError("failed to acquire database connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return storeError("failed to begin schema transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range feedbackSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storeError("failed to apply feedback schema", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("failed to commit feedback schema", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(row rowScanner) (*entities.FeedbackRecord, error) {
	record := &entities.FeedbackRecord{}
	var summary, action, response sql.NullString
	var status string

	err := row.Scan(
		&record.ID,
		&record.Rating,
		&record.Review,
		&summary,
		&action,
		&response,
		&record.CreatedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}

	record.AISummary = summary.String
	record.RecommendedAction = action.String
	record.UserResponse = response.String
	record.CreatedAt = record.CreatedAt.UTC()
	record.Status = entities.FeedbackStatus(status)
	return record, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// storeError tags connectivity failures as UNAVAILABLE so the degrading
// repository can tell them apart from genuine query errors.
func storeError(message string, err error) error {
	if IsUnreachable(err) {
		return apperrors.NewUnavailableError(message, err)
	}
	return apperrors.NewInternalError(message, err)
}
