package mirror

import (
	"context"

	"binance-mirror/internal/model"
	"binance-mirror/internal/storage"
)

// DeleteMany removes the mirrored archives of symbol for tokens. Per-key failures are
// logged and returned; they never abort the sync.
func (s *Syncer) DeleteMany(ctx context.Context, symbol string, tokens []model.DateToken) storage.DeleteReport {
	if len(tokens) == 0 {
		return storage.DeleteReport{}
	}
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = s.layout.Key(symbol, tok)
	}
	rep := s.store.Delete(ctx, keys)
	s.logger.Info("removed superseded days", "symbol", symbol, "store", s.store.Name(),
		"deleted", rep.Deleted, "failed", len(rep.Failures))
	return rep
}
