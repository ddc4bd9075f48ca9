package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Postgres implementa a persistência de contas, rodadas e apostas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPlacedBet       = errors.New("no placed bet")
)

// GetAccount retorna a conta pelo username.
func (p *Postgres) GetAccount(ctx context.Context, username string) (Account, error) {
	var a Account
	err := p.db.QueryRowContext(ctx, `
		SELECT username, balance_cents, session_end_at, created_at
		FROM accounts WHERE username=$1`, username).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	return a, err
}

// CreateAccount insere uma conta nova com saldo inicial e janela de sessão.
func (p *Postgres) CreateAccount(ctx context.Context, username string, initialCents int64, sessionEndAt time.Time) (Account, error) {
	var a Account
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, balance_cents, session_end_at, created_at)
		VALUES ($1,$2,$3,NOW())
		RETURNING username, balance_cents, session_end_at, created_at`,
		username, initialCents, sessionEndAt).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	return a, err
}

// RenewSession rearma a janela de sessão de uma conta expirada, creditando o
// depósito inicial se houver. Lock pessimista na linha da conta.
func (p *Postgres) RenewSession(ctx context.Context, username string, sessionEndAt time.Time, creditCents int64) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	var a Account
	err = tx.QueryRowContext(ctx, `
		SELECT username, balance_cents, session_end_at, created_at
		FROM accounts WHERE username=$1 FOR UPDATE`, username).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE accounts SET session_end_at=$2, balance_cents = balance_cents + $3
		WHERE username=$1`, username, sessionEndAt, creditCents); err != nil {
		return Account{}, err
	}
	a.SessionEndAt = sessionEndAt
	a.BalanceCents += creditCents

	if err = tx.Commit(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// Credit incrementa o saldo da conta (depósito).
func (p *Postgres) Credit(ctx context.Context, username string, amountCents int64) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	var a Account
	err = tx.QueryRowContext(ctx, `
		SELECT username, balance_cents, session_end_at, created_at
		FROM accounts WHERE username=$1 FOR UPDATE`, username).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $2 WHERE username=$1`,
		username, amountCents); err != nil {
		return Account{}, err
	}
	a.BalanceCents += amountCents

	if err = tx.Commit(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// PlaceBet debita a stake e insere a aposta na mesma transação. Um débito sem
// aposta (ou o contrário) é impossível por construção: ou a transação inteira
// commita, ou nada.
func (p *Postgres) PlaceBet(ctx context.Context, b Bet) (Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback()

	var a Account
	err = tx.QueryRowContext(ctx, `
		SELECT username, balance_cents, session_end_at, created_at
		FROM accounts WHERE username=$1 FOR UPDATE`, b.Username).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}

	if a.BalanceCents < b.AmountCents {
		return Account{}, ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents - $2 WHERE username=$1`,
		b.Username, b.AmountCents); err != nil {
		return Account{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, username, round_code, amount_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.Username, b.RoundCode, b.AmountCents, b.Status, b.CreatedAt); err != nil {
		return Account{}, err
	}
	a.BalanceCents -= b.AmountCents

	if err = tx.Commit(); err != nil {
		return Account{}, err
	}
	return a, nil
}

// CashBet reivindica a aposta "placed" mais antiga do usuário na rodada e
// credita o prêmio na mesma transação. O UPDATE condicional em status é o
// ponto único de decisão contra o bulk de perdas do crash: quem commitar
// primeiro leva, o outro não casa linha nenhuma.
func (p *Postgres) CashBet(ctx context.Context, username, roundCode string, multH int64) (Bet, Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Bet{}, Account{}, err
	}
	defer tx.Rollback()

	var a Account
	err = tx.QueryRowContext(ctx, `
		SELECT username, balance_cents, session_end_at, created_at
		FROM accounts WHERE username=$1 FOR UPDATE`, username).
		Scan(&a.Username, &a.BalanceCents, &a.SessionEndAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Bet{}, Account{}, ErrNoPlacedBet
	}
	if err != nil {
		return Bet{}, Account{}, err
	}

	b := Bet{Username: username, RoundCode: roundCode, Status: BetCashed}
	var payout int64
	err = tx.QueryRowContext(ctx, `
		UPDATE bets SET status=$4, cashout_multiplier_h=$3,
		       payout_cents = amount_cents * $3 / 100, cashed_at=NOW()
		WHERE id = (
			SELECT id FROM bets
			WHERE username=$1 AND round_code=$2 AND status=$5
			ORDER BY created_at LIMIT 1
		)
		RETURNING id, amount_cents, payout_cents, created_at`,
		username, roundCode, multH, BetCashed, BetPlaced).
		Scan(&b.ID, &b.AmountCents, &payout, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return Bet{}, Account{}, ErrNoPlacedBet
	}
	if err != nil {
		return Bet{}, Account{}, err
	}
	b.CashoutMultiplierH = &multH
	b.PayoutCents = &payout

	if _, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $2 WHERE username=$1`,
		username, payout); err != nil {
		return Bet{}, Account{}, err
	}
	a.BalanceCents += payout

	if err = tx.Commit(); err != nil {
		return Bet{}, Account{}, err
	}
	return b, a, nil
}

// RecentBets lista as apostas mais novas primeiro.
func (p *Postgres) RecentBets(ctx context.Context, limit int) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, username, round_code, amount_cents, status,
		       cashout_multiplier_h, payout_cents, created_at
		FROM bets ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		var multH, payout sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Username, &b.RoundCode, &b.AmountCents,
			&b.Status, &multH, &payout, &b.CreatedAt); err != nil {
			return nil, err
		}
		if multH.Valid {
			b.CashoutMultiplierH = &multH.Int64
		}
		if payout.Valid {
			b.PayoutCents = &payout.Int64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
