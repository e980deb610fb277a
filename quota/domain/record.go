package domain

import "time"

// UsageRecord é a linha durável do ledger para um par (usuário, window-key).
//
// Criada sob demanda na primeira leitura/escrita. Linhas DAILY viram histórico
// quando o dia passa e ficam retidas para auditoria até a limpeza de retenção;
// linhas LIFETIME nunca são removidas enquanto o usuário existir.
type UsageRecord struct {
	ID        string    `db:"id" json:"id"`
	UserID    UserID    `db:"user_id" json:"user_id"`
	WindowKey string    `db:"window_key" json:"window_key"`
	Count     int64     `db:"usage_count" json:"count"`
	Limit     int64     `db:"usage_limit" json:"limit"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining é quanto ainda pode ser consumido nesta janela (nunca negativo).
func (r UsageRecord) Remaining() int64 {
	if r.Count >= r.Limit {
		return 0
	}
	return r.Limit - r.Count
}

// UsageInfo é o snapshot somente-leitura exposto a quem consulta a cota.
type UsageInfo struct {
	Date         string `json:"date"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
	Remaining    int64  `json:"remaining"`
	CanUse       bool   `json:"can_use"`
}
