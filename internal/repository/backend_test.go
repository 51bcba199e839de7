package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/offer-checkout/internal/clock"
	"github.com/prohmpiriya/offer-checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture seeds rows directly, bypassing Backend
type fixture interface {
	Backend
	seedEvent(t *testing.T, e domain.Event)
	seedEntry(t *testing.T, w domain.WaitingListEntry)
	seedTicket(t *testing.T, tk domain.Ticket)
	entryStatus(t *testing.T, id string) domain.WaitingListStatus
	ticketCount(t *testing.T, eventID string) int
}

type memoryFixture struct{ *MemoryBackend }

func (f memoryFixture) seedEvent(t *testing.T, e domain.Event) { f.PutEvent(e) }

func (f memoryFixture) seedEntry(t *testing.T, w domain.WaitingListEntry) { f.PutWaitingListEntry(w) }

func (f memoryFixture) seedTicket(t *testing.T, tk domain.Ticket) { f.PutTicket(tk) }

func (f memoryFixture) ticketCount(t *testing.T, eventID string) int {
	return len(f.TicketsForEvent(eventID))
}

func (f memoryFixture) entryStatus(t *testing.T, id string) domain.WaitingListStatus {
	w, ok := f.GetWaitingListEntry(id)
	require.True(t, ok)
	return w.Status
}

type postgresFixture struct {
	*PostgresBackend
	pool *pgxpool.Pool
}

func (f postgresFixture) seedEvent(t *testing.T, e domain.Event) {
	_, err := f.pool.Exec(context.Background(),
		`INSERT INTO events (id, owner_id, name, description, price, status) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.OwnerID, e.Name, e.Description, e.Price, string(e.Status))
	require.NoError(t, err)
}

func (f postgresFixture) seedEntry(t *testing.T, w domain.WaitingListEntry) {
	_, err := f.pool.Exec(context.Background(),
		`INSERT INTO waiting_list (id, event_id, user_id, status, offer_expires_at) VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.EventID, w.UserID, string(w.Status), w.OfferExpiresAt)
	require.NoError(t, err)
}

func (f postgresFixture) seedTicket(t *testing.T, tk domain.Ticket) {
	_, err := f.pool.Exec(context.Background(),
		`INSERT INTO tickets (id, event_id, user_id, waiting_list_id, payment_intent_id, status, amount, purchased_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		tk.ID, tk.EventID, tk.UserID, tk.WaitingListID, tk.PaymentIntentID, string(tk.Status), tk.Amount, tk.PurchasedAt)
	require.NoError(t, err)
}

func (f postgresFixture) entryStatus(t *testing.T, id string) domain.WaitingListStatus {
	var status string
	require.NoError(t, f.pool.QueryRow(context.Background(), `SELECT status FROM waiting_list WHERE id = $1`, id).Scan(&status))
	return domain.WaitingListStatus(status)
}

func (f postgresFixture) ticketCount(t *testing.T, eventID string) int {
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM tickets WHERE event_id = $1`, eventID).Scan(&n))
	return n
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixtures(t *testing.T) map[string]func(t *testing.T) fixture {
	all := map[string]func(t *testing.T) fixture{
		"memory": func(t *testing.T) fixture {
			return memoryFixture{NewMemoryBackend(clock.NewFixed(now))}
		},
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return all
	}
	all["postgres"] = func(t *testing.T) fixture {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		b := NewPostgresBackend(pool, clock.NewFixed(now))
		require.NoError(t, b.EnsureSchema(ctx))
		_, err = pool.Exec(ctx, `TRUNCATE tickets, waiting_list, events, users`)
		require.NoError(t, err)
		return postgresFixture{PostgresBackend: b, pool: pool}
	}
	return all
}

func seedOffer(t *testing.T, f fixture) {
	exp := now.Add(20 * time.Minute)
	f.seedEvent(t, domain.Event{ID: "E1", OwnerID: "owner", Name: "Concert", Price: 500, Status: domain.EventStatusActive})
	f.seedEntry(t, domain.WaitingListEntry{ID: "W1", EventID: "E1", UserID: "U1", Status: domain.WaitingListOffered, OfferExpiresAt: &exp})
}

func TestBackend(t *testing.T) {
	for name, newFixture := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("connect account get-or-set", func(t *testing.T) {
				f := newFixture(t)
				id, err := f.GetConnectAccountID(ctx, "owner")
				require.NoError(t, err)
				assert.Empty(t, id)

				require.NoError(t, f.SetConnectAccountID(ctx, "owner", "acct_1"))
				require.NoError(t, f.SetConnectAccountID(ctx, "owner", "acct_1"))
				id, err = f.GetConnectAccountID(ctx, "owner")
				require.NoError(t, err)
				assert.Equal(t, "acct_1", id)
			})

			t.Run("get event", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)

				e, err := f.GetEvent(ctx, "E1")
				require.NoError(t, err)
				assert.Equal(t, "owner", e.OwnerID)
				assert.Equal(t, 500.0, e.Price)

				_, err = f.GetEvent(ctx, "missing")
				assert.ErrorIs(t, err, domain.ErrEventNotFound)
			})

			t.Run("get offer for user", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)

				w, err := f.GetOfferForUser(ctx, "E1", "U1")
				require.NoError(t, err)
				require.NotNil(t, w)
				assert.Equal(t, "W1", w.ID)
				assert.Equal(t, domain.WaitingListOffered, w.Status)
				require.NotNil(t, w.OfferExpiresAt)
				assert.True(t, now.Add(20*time.Minute).Equal(*w.OfferExpiresAt))

				w, err = f.GetOfferForUser(ctx, "E1", "nobody")
				require.NoError(t, err)
				assert.Nil(t, w)
			})

			t.Run("commit purchase is idempotent", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				p := domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_1", Amount: 50000}

				first, err := f.CommitPurchase(ctx, p)
				require.NoError(t, err)
				assert.True(t, first.Created)
				assert.Equal(t, domain.TicketStatusValid, first.Ticket.Status)
				assert.Equal(t, int64(50000), first.Ticket.Amount)

				second, err := f.CommitPurchase(ctx, p)
				require.NoError(t, err)
				assert.False(t, second.Created)
				assert.Equal(t, first.Ticket.ID, second.Ticket.ID)

				assert.Equal(t, 1, f.ticketCount(t, "E1"))
				assert.Equal(t, domain.WaitingListPurchased, f.entryStatus(t, "W1"))

				latest, err := f.GetLatestUserTicket(ctx, "U1")
				require.NoError(t, err)
				assert.Equal(t, first.Ticket.ID, latest.ID)
			})

			t.Run("commit purchase redelivery without payment intent", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				p := domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", Amount: 0}

				first, err := f.CommitPurchase(ctx, p)
				require.NoError(t, err)
				assert.True(t, first.Created)
				assert.Empty(t, first.Ticket.PaymentIntentID)

				second, err := f.CommitPurchase(ctx, p)
				require.NoError(t, err)
				assert.False(t, second.Created)
				assert.Equal(t, first.Ticket.ID, second.Ticket.ID)
				assert.Empty(t, second.Ticket.PaymentIntentID)
				assert.Equal(t, 1, f.ticketCount(t, "E1"))
			})

			t.Run("commit purchase with another payment after purchase is rejected", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				_, err := f.CommitPurchase(ctx, domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_1", Amount: 1})
				require.NoError(t, err)

				_, err = f.CommitPurchase(ctx, domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_2", Amount: 1})
				assert.ErrorIs(t, err, domain.ErrOfferNotAvailable)
				assert.Equal(t, 1, f.ticketCount(t, "E1"))
			})

			t.Run("commit purchase requires offered entry", func(t *testing.T) {
				f := newFixture(t)
				f.seedEvent(t, domain.Event{ID: "E1", OwnerID: "owner", Name: "Concert", Price: 1, Status: domain.EventStatusActive})
				f.seedEntry(t, domain.WaitingListEntry{ID: "W1", EventID: "E1", UserID: "U1", Status: domain.WaitingListExpired})

				_, err := f.CommitPurchase(ctx, domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_1"})
				assert.ErrorIs(t, err, domain.ErrOfferNotAvailable)

				_, err = f.CommitPurchase(ctx, domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "missing", PaymentIntentID: "pi_1"})
				assert.ErrorIs(t, err, domain.ErrOfferNotAvailable)
				assert.Equal(t, 0, f.ticketCount(t, "E1"))
			})

			t.Run("commit purchase rejects mismatched metadata", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				_, err := f.CommitPurchase(ctx, domain.Purchase{EventID: "E1", UserID: "someone-else", WaitingListID: "W1", PaymentIntentID: "pi_1"})
				assert.ErrorIs(t, err, domain.ErrOfferNotAvailable)
				assert.Equal(t, domain.WaitingListOffered, f.entryStatus(t, "W1"))
			})

			t.Run("concurrent commits create one ticket", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				p := domain.Purchase{EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_1", Amount: 50000}

				var wg sync.WaitGroup
				var mu sync.Mutex
				created := 0
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						res, err := f.CommitPurchase(ctx, p)
						if err == nil && res.Created {
							mu.Lock()
							created++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()

				assert.Equal(t, 1, created)
				assert.Equal(t, 1, f.ticketCount(t, "E1"))
			})

			t.Run("ticket status is one-way", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				f.seedTicket(t, domain.Ticket{ID: "T1", EventID: "E1", UserID: "U1", WaitingListID: "W1", PaymentIntentID: "pi_1", Status: domain.TicketStatusValid, Amount: 1, PurchasedAt: now})

				valid, err := f.GetValidTickets(ctx, "E1")
				require.NoError(t, err)
				require.Len(t, valid, 1)

				require.NoError(t, f.SetTicketStatus(ctx, "T1", domain.TicketStatusRefunded))
				require.NoError(t, f.SetTicketStatus(ctx, "T1", domain.TicketStatusRefunded))
				assert.ErrorIs(t, f.SetTicketStatus(ctx, "T1", domain.TicketStatusValid), domain.ErrInvalidTicketTransition)
				assert.ErrorIs(t, f.SetTicketStatus(ctx, "missing", domain.TicketStatusRefunded), domain.ErrTicketNotFound)

				valid, err = f.GetValidTickets(ctx, "E1")
				require.NoError(t, err)
				assert.Empty(t, valid)
			})

			t.Run("cancel event expires open entries", func(t *testing.T) {
				f := newFixture(t)
				seedOffer(t, f)
				f.seedEntry(t, domain.WaitingListEntry{ID: "W2", EventID: "E1", UserID: "U2", Status: domain.WaitingListWaiting})

				require.NoError(t, f.CancelEvent(ctx, "E1"))
				e, err := f.GetEvent(ctx, "E1")
				require.NoError(t, err)
				assert.True(t, e.IsCancelled())
				assert.Equal(t, domain.WaitingListExpired, f.entryStatus(t, "W1"))
				assert.Equal(t, domain.WaitingListExpired, f.entryStatus(t, "W2"))

				assert.ErrorIs(t, f.CancelEvent(ctx, "missing"), domain.ErrEventNotFound)
			})

			t.Run("latest ticket not found", func(t *testing.T) {
				f := newFixture(t)
				_, err := f.GetLatestUserTicket(ctx, "U1")
				assert.ErrorIs(t, err, domain.ErrTicketNotFound)
				assert.NoError(t, f.Ping(ctx))
			})
		})
	}
}
