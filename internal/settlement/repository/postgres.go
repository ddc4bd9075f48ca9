package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/crash-game-platform/pkg/contracts/events"
)

// AuditRepo mantém a trilha de auditoria das apostas (tabela bet_audit),
// alimentada pelo stream de liquidação. Idempotente por bet_id: reprocessar
// uma mensagem não duplica nem regride linha.
type AuditRepo struct {
	DB *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db}
}

// InsertPlaced registra a aposta recém-criada.
func (r *AuditRepo) InsertPlaced(ctx context.Context, e events.BetSettlement) error {
	const q = `
		INSERT INTO bet_audit
		  (bet_id, username, round_code, amount_cents, status, created_at)
		VALUES
		  ($1,$2,$3,$4,'placed',NOW())
		ON CONFLICT (bet_id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, q, e.BetID, e.Username, e.RoundCode, e.AmountCents)
	return err
}

// MarkCashed liquida a aposta na auditoria com multiplicador e prêmio.
func (r *AuditRepo) MarkCashed(ctx context.Context, e events.BetSettlement) error {
	const q = `
		UPDATE bet_audit
		SET status='cashed', multiplier_h=$2, payout_cents=$3, settled_at=NOW()
		WHERE bet_id=$1 AND status='placed'
	`
	_, err := r.DB.ExecContext(ctx, q, e.BetID, e.MultiplierH, e.PayoutCents)
	return err
}

// MarkRoundLost derruba em bloco o que sobrou aberto da rodada que crashou,
// espelhando a liquidação do jogo.
func (r *AuditRepo) MarkRoundLost(ctx context.Context, roundCode string, multH int64) (int64, error) {
	const q = `
		UPDATE bet_audit
		SET status='lost', multiplier_h=$2, settled_at=NOW()
		WHERE round_code=$1 AND status='placed'
	`
	res, err := r.DB.ExecContext(ctx, q, roundCode, multH)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
