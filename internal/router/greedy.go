package router

import (
	"container/heap"
	"fmt"
	"math"

	"go.uber.org/zap"

	"sor-router/internal/book"
	"sor-router/internal/plan"
)

// Distribute 将请求数量分配到各场所，返回执行计划。
// 贪心阶段始终消耗全局最优有效价格档位；Hybrid 模式下，
// 当尾部数量落入交叉阈值以内时转交精确分配器。
func (r *Router) Distribute(size float64, side book.Side, algorithm Algorithm) (*plan.Plan, error) {
	if size < 0 {
		return nil, fmt.Errorf("router: 请求数量不能为负, 实际为 %v", size)
	}

	p := plan.New(side, size, r.fees)
	remaining := size

	pq := &orderQueue{side: side}
	seq := 0
	minLotGlobal := math.Inf(1)
	largestMinLot := 0.0

	for _, id := range r.venueIDs() {
		ob := r.books[id]
		level, ok := r.bestLevel(ob, side)
		if !ok {
			continue
		}
		pq.items = append(pq.items, bestOrder{
			venue:          id,
			effectivePrice: book.EffectivePrice(level.Price, side, ob.TakerFee()),
			volume:         level.Volume,
			originalPrice:  level.Price,
			fee:            ob.TakerFee(),
			seq:            seq,
		})
		seq++
		minLotGlobal = math.Min(minLotGlobal, ob.MinLotSize())
		largestMinLot = math.Max(largestMinLot, ob.MinLotSize())
	}
	heap.Init(pq)

	r.logger.Debug("开始分配订单",
		zap.Float64("size", size),
		zap.String("side", side.String()),
		zap.String("algorithm", algorithm.String()),
		zap.Int("venues", pq.Len()),
	)

	for pq.Len() > 0 && remaining+book.Epsilon >= minLotGlobal {
		head := pq.items[0]
		ob := r.books[head.venue]
		lot := ob.MinLotSize()

		raw := math.Min(head.volume, remaining)
		// 量化到场所手数网格，ε 用于吸收二进制截断误差
		fill := math.Floor(raw/lot+book.Epsilon) * lot

		if algorithm == Hybrid && fill > 0 {
			tail := remaining - fill
			if tail > book.Epsilon && tail < largestMinLot {
				// 再走一步贪心就会让尾部小于在场的最大手数，
				// 此时对整个剩余量做精确分配严格优于继续贪心。
				fills, err := r.distributeOptimal(remaining, side, queueVenues(pq))
				if err != nil {
					return nil, err
				}
				for _, f := range fills {
					if err := p.Add(f); err != nil {
						return nil, err
					}
					if err := r.reduceLevel(r.books[f.Venue], side, f.Price, f.Volume); err != nil {
						return nil, err
					}
					remaining -= f.Volume
				}
				r.logger.Debug("精确分配完成",
					zap.Int("fills", len(fills)),
					zap.Float64("remaining", remaining),
				)
				return p, nil
			}
		}

		heap.Pop(pq)

		if fill > 0 {
			if err := p.Add(plan.Fill{Venue: head.venue, Price: head.originalPrice, Volume: fill}); err != nil {
				return nil, err
			}
			if err := r.reduceLevel(ob, side, head.originalPrice, fill); err != nil {
				return nil, err
			}
			remaining -= fill
			r.logger.Debug("贪心成交",
				zap.String("venue", head.venue),
				zap.Float64("price", head.originalPrice),
				zap.Float64("volume", fill),
				zap.Float64("remaining", remaining),
			)
		} else {
			// 量化后无法成交，整档移除以保证推进
			if err := r.removeTop(ob, side); err != nil {
				return nil, err
			}
		}

		level, ok := r.bestLevel(ob, side)
		if ok && ob.MinLotSize() <= remaining+book.Epsilon {
			heap.Push(pq, bestOrder{
				venue:          head.venue,
				effectivePrice: book.EffectivePrice(level.Price, side, head.fee),
				volume:         level.Volume,
				originalPrice:  level.Price,
				fee:            head.fee,
				seq:            seq,
			})
			seq++
		}
		if !ok {
			largestMinLot = r.largestQueuedLot(pq)
		}
	}

	return p, nil
}

// largestQueuedLot 重新计算队列中各场所的最大手数。
func (r *Router) largestQueuedLot(pq *orderQueue) float64 {
	largest := 0.0
	for _, item := range pq.items {
		largest = math.Max(largest, r.books[item.venue].MinLotSize())
	}
	return largest
}

// queueVenues 提取队列中出现的场所集合并去重，顺序为堆底层切片的顺序（非入队顺序）。
func queueVenues(pq *orderQueue) []string {
	seen := make(map[string]struct{}, len(pq.items))
	out := make([]string, 0, len(pq.items))
	for _, item := range pq.items {
		if _, ok := seen[item.venue]; ok {
			continue
		}
		seen[item.venue] = struct{}{}
		out = append(out, item.venue)
	}
	return out
}
