package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/sand/solnests/backend/internal/entities"
	"github.com/sand/solnests/backend/pkg/database"
)

const transfersTable = "transfers"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// TransfersRepository persists confirmed transfers in PostgreSQL.
type TransfersRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

// NewTransfersRepository creates a new transfers repository.
func NewTransfersRepository(logger *slog.Logger, pg *database.Postgres) *TransfersRepository {
	return &TransfersRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

// Append stores a transfer record. Records are keyed by signature; a second
// append of the same signature is a no-op.
func (r *TransfersRepository) Append(ctx context.Context, record entities.TransferRecord) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var exists bool

		err := r.db(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM transfers WHERE signature = $1)", record.Signature).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check if transfer exists: %w", err)
		}

		if exists {
			r.logger.InfoContext(ctx, "Transfer already recorded", "tx_signature", record.Signature)
			return nil
		}

		query, args, err := insertTransferQuery(record)
		if err != nil {
			return fmt.Errorf("failed to build insert query: %w", err)
		}

		if _, err = r.db(ctx).Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert transfer: %w", err)
		}

		r.logger.InfoContext(ctx, "Transfer recorded",
			"tx_signature", record.Signature,
			"sender", record.SenderAddress,
			"plan", record.PlanLabel,
			"lamports", record.AmountLamports)

		return nil
	})
}

func insertTransferQuery(record entities.TransferRecord) (string, []any, error) {
	return psql.
		Insert(transfersTable).
		Columns("signature", "sender_address", "sender_email", "recipient_address",
			"plan_label", "amount", "amount_lamports", "status", "created_at").
		Values(record.Signature, record.SenderAddress, record.SenderEmail, record.RecipientAddress,
			record.PlanLabel, record.Amount, strconv.FormatUint(record.AmountLamports, 10), record.Status, record.Timestamp).
		ToSql()
}
