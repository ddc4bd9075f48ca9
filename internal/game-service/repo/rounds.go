package repo

import (
	"context"
	"time"
)

// Persistência das rodadas, dirigida pelo motor. O motor continua girando se
// qualquer escrita aqui falhar; ele só loga.

func (p *Postgres) InsertRound(ctx context.Context, code string, openedAt, bettingEndsAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rounds (code, phase, opened_at, betting_ends_at)
		VALUES ($1,'betting',$2,$3)
		ON CONFLICT (code) DO NOTHING`,
		code, openedAt, bettingEndsAt)
	return err
}

func (p *Postgres) SetRoundPhase(ctx context.Context, code, phase string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE rounds SET phase=$2 WHERE code=$1`, code, phase)
	return err
}

func (p *Postgres) SetRoundCrashed(ctx context.Context, code string, crashMultiplierH int64, crashedAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET phase='crashed', crash_multiplier_h=$2, crashed_at=$3
		WHERE code=$1`, code, crashMultiplierH, crashedAt)
	return err
}

func (p *Postgres) SetRoundClosed(ctx context.Context, code string, closedAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE rounds SET phase='closed', closed_at=$2 WHERE code=$1`, code, closedAt)
	return err
}

// MarkPlacedBetsLost derruba em bloco as apostas ainda abertas da rodada.
// Apostas já reivindicadas por cashout não casam o filtro de status.
func (p *Postgres) MarkPlacedBetsLost(ctx context.Context, code string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$2 WHERE round_code=$1 AND status=$3`,
		code, BetLost, BetPlaced)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
