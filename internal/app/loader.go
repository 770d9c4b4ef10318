package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sor-router/internal/book"
	"sor-router/internal/config"
)

// LoadBooks 并发加载全部场所的深度快照，任一场所失败则整体失败。
func LoadBooks(ctx context.Context, venues []config.VenueConfig, logger *zap.Logger) (map[string]*book.OrderBook, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	books := make(map[string]*book.OrderBook, len(venues))
	group, _ := errgroup.WithContext(ctx)

	for _, venue := range venues {
		ob := book.New(venue.ID, venue.TakerFee, venue.MinLotSize)
		books[venue.ID] = ob

		venue := venue
		group.Go(func() error {
			if err := book.LoadCSV(venue.BookFile, ob); err != nil {
				return fmt.Errorf("app: 加载场所 %s 深度失败: %w", venue.ID, err)
			}
			logger.Info("订单簿加载完成",
				zap.String("venue", venue.ID),
				zap.String("file", venue.BookFile),
				zap.Int("bid_levels", len(ob.Bids())),
				zap.Int("ask_levels", len(ob.Asks())),
			)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}
