package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/prohmpiriya/offer-checkout/pkg/database"
)

//go:embed schema.sql
var schemaSQL string

// PostgresBackend implements Backend on PostgreSQL. CommitPurchase runs in
// one transaction holding a row lock on the waiting list entry; the unique
// constraints on tickets(waiting_list_id) and tickets(payment_intent_id) back
// it up.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// NewPostgresBackend creates a backend over pool
func NewPostgresBackend(pool *pgxpool.Pool, clk clock.Clock) *PostgresBackend {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &PostgresBackend{pool: pool, clock: clk}
}

// EnsureSchema creates the tables if they do not exist
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) GetConnectAccountID(ctx context.Context, userID string) (string, error) {
	var accountID *string
	err := b.pool.QueryRow(ctx, `SELECT stripe_connect_id FROM users WHERE id = $1`, userID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get connect account: %w", err)
	}
	if accountID == nil {
		return "", nil
	}
	return *accountID, nil
}

func (b *PostgresBackend) SetConnectAccountID(ctx context.Context, userID, accountID string) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO users (id, stripe_connect_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET stripe_connect_id = EXCLUDED.stripe_connect_id, updated_at = NOW()`,
		userID, accountID)
	if err != nil {
		return fmt.Errorf("failed to set connect account: %w", err)
	}
	return nil
}

func (b *PostgresBackend) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var e domain.Event
	var status string
	err := b.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, price::float8, status
		FROM events WHERE id = $1`, eventID).
		Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.Price, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	e.Status = domain.EventStatus(status)
	return &e, nil
}

func (b *PostgresBackend) GetOfferForUser(ctx context.Context, eventID, userID string) (*domain.WaitingListEntry, error) {
	var w domain.WaitingListEntry
	var status string
	err := b.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, status, offer_expires_at
		FROM waiting_list
		WHERE event_id = $1 AND user_id = $2 AND status <> 'expired'
		ORDER BY (status IN ('offered', 'purchased')) DESC, created_at DESC
		LIMIT 1`, eventID, userID).
		Scan(&w.ID, &w.EventID, &w.UserID, &status, &w.OfferExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting list entry: %w", err)
	}
	w.Status = domain.WaitingListStatus(status)
	return &w, nil
}

const ticketColumns = `id, event_id, user_id, waiting_list_id, COALESCE(payment_intent_id, ''), status, amount, purchased_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var status string
	if err := row.Scan(&t.ID, &t.EventID, &t.UserID, &t.WaitingListID, &t.PaymentIntentID, &status, &t.Amount, &t.PurchasedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

func (b *PostgresBackend) GetValidTickets(ctx context.Context, eventID string) ([]*domain.Ticket, error) {
	rows, err := b.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = $1 AND status = 'valid' ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (b *PostgresBackend) SetTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	// valid -> anything, or a no-op repeat of the current status
	tag, err := b.pool.Exec(ctx, `
		UPDATE tickets SET status = $2
		WHERE id = $1 AND (status = 'valid' OR status = $2)`, ticketID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := b.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check ticket: %w", err)
	}
	if !exists {
		return domain.ErrTicketNotFound
	}
	return domain.ErrInvalidTicketTransition
}

func (b *PostgresBackend) CommitPurchase(ctx context.Context, p domain.Purchase) (*CommitResult, error) {
	var result *CommitResult

	err := database.WithTx(ctx, b.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var eventID, userID, status string
		err := tx.QueryRow(ctx, `
			SELECT event_id, user_id, status FROM waiting_list WHERE id = $1 FOR UPDATE`,
			p.WaitingListID).Scan(&eventID, &userID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOfferNotAvailable
		}
		if err != nil {
			return fmt.Errorf("failed to lock waiting list entry: %w", err)
		}
		if eventID != p.EventID || userID != p.UserID {
			return domain.ErrOfferNotAvailable
		}

		switch domain.WaitingListStatus(status) {
		case domain.WaitingListPurchased:
			t, err := scanTicket(tx.QueryRow(ctx,
				`SELECT `+ticketColumns+` FROM tickets WHERE waiting_list_id = $1 AND payment_intent_id IS NOT DISTINCT FROM NULLIF($2, '')`,
				p.WaitingListID, p.PaymentIntentID))
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrOfferNotAvailable
			}
			if err != nil {
				return fmt.Errorf("failed to load existing ticket: %w", err)
			}
			result = &CommitResult{Ticket: t, Created: false}
			return nil
		case domain.WaitingListOffered:
		default:
			return domain.ErrOfferNotAvailable
		}

		t := &domain.Ticket{
			ID:              uuid.NewString(),
			EventID:         p.EventID,
			UserID:          p.UserID,
			WaitingListID:   p.WaitingListID,
			PaymentIntentID: p.PaymentIntentID,
			Status:          domain.TicketStatusValid,
			Amount:          p.Amount,
			PurchasedAt:     b.clock.Now().Truncate(time.Microsecond),
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tickets (id, event_id, user_id, waiting_list_id, payment_intent_id, status, amount, purchased_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
			t.ID, t.EventID, t.UserID, t.WaitingListID, t.PaymentIntentID, string(t.Status), t.Amount, t.PurchasedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return domain.ErrOfferNotAvailable
			}
			return fmt.Errorf("failed to insert ticket: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE waiting_list SET status = 'purchased', offer_expires_at = NULL, updated_at = NOW()
			WHERE id = $1`, p.WaitingListID); err != nil {
			return fmt.Errorf("failed to mark entry purchased: %w", err)
		}

		result = &CommitResult{Ticket: t, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *PostgresBackend) CancelEvent(ctx context.Context, eventID string) error {
	return database.WithTx(ctx, b.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE events SET status = 'cancelled', updated_at = NOW() WHERE id = $1`, eventID)
		if err != nil {
			return fmt.Errorf("failed to cancel event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrEventNotFound
		}

		if _, err := tx.Exec(ctx, `
			UPDATE waiting_list SET status = 'expired', offer_expires_at = NULL, updated_at = NOW()
			WHERE event_id = $1 AND status IN ('waiting', 'offered')`, eventID); err != nil {
			return fmt.Errorf("failed to expire waiting list: %w", err)
		}
		return nil
	})
}

func (b *PostgresBackend) GetLatestUserTicket(ctx context.Context, userID string) (*domain.Ticket, error) {
	t, err := scanTicket(b.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY purchased_at DESC LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ticket: %w", err)
	}
	return t, nil
}
