package router

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"sor-router/internal/book"
	"sor-router/internal/plan"
)

// lotCandidate 为精确分配的单位手数候选。
type lotCandidate struct {
	venue          string
	price          float64
	effectivePrice float64
	volume         float64
}

// distributeOptimal 在给定场所集合上寻找恰好等于 target 的整手组合，
// 买单最小化成本、卖单最大化所得；不存在精确组合时退化为最优欠额：
// 总量不超过 target 且尽可能大，总量相同时按成本准则取优。
func (r *Router) distributeOptimal(target float64, side book.Side, venues []string) ([]plan.Fill, error) {
	sort.Strings(venues)

	candidates, minLot := r.collectCandidates(target, side, venues)
	if len(candidates) == 0 {
		return nil, nil
	}

	solver := &exactSolver{
		side:       side,
		target:     target,
		candidates: candidates,
		// 剩余量按半手数取整作为备忘键，保证表有限
		quantum: minLot / 2,
		memo:    make(map[memoKey]searchResult),
	}

	result := solver.solve(0, target)
	chosen := result.fills
	exactVolume := 0.0
	for _, index := range chosen {
		exactVolume += candidates[index].volume
	}
	// 备忘键取整可能发生碰撞，结果偏离目标时按不可行处理
	if !result.feasible || math.Abs(exactVolume-target) > book.Epsilon {
		r.logger.Debug("无法精确成交，回退到最优欠额",
			zap.Float64("target", target),
			zap.Int("candidates", len(candidates)),
		)
		chosen = solver.bestUndershoot()
	}

	return aggregateFills(candidates, chosen, side), nil
}

// collectCandidates 按价格优先顺序展开各场所的单位手数候选，
// 每个场所的累计量受 target 上限约束，随后按有效价格全局排序。
func (r *Router) collectCandidates(target float64, side book.Side, venues []string) ([]lotCandidate, float64) {
	var candidates []lotCandidate
	minLot := math.Inf(1)

	for _, id := range venues {
		ob := r.books[id]
		lot := ob.MinLotSize()
		fee := ob.TakerFee()

		levels := ob.Asks()
		if side == book.Sell {
			levels = ob.Bids()
			for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
				levels[i], levels[j] = levels[j], levels[i]
			}
		}

		cumulative := 0.0
		emitted := len(candidates)
	levelLoop:
		for _, level := range levels {
			taken := 0
			for {
				if float64(taken+1)*lot > level.Volume+book.Epsilon {
					break
				}
				if cumulative+lot >= target+book.Epsilon {
					break levelLoop
				}
				candidates = append(candidates, lotCandidate{
					venue:          id,
					price:          level.Price,
					effectivePrice: book.EffectivePrice(level.Price, side, fee),
					volume:         lot,
				})
				cumulative += lot
				taken++
			}
		}

		if len(candidates) > emitted {
			minLot = math.Min(minLot, lot)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.effectivePrice != b.effectivePrice {
			if side == book.Buy {
				return a.effectivePrice < b.effectivePrice
			}
			return a.effectivePrice > b.effectivePrice
		}
		if a.venue != b.venue {
			return a.venue < b.venue
		}
		return a.price < b.price
	})

	return candidates, minLot
}

type memoKey struct {
	index     int
	remaining int64
}

type searchResult struct {
	feasible bool
	cost     float64
	fills    []int
}

// exactSolver 在 (剩余量, 候选下标) 状态上做带备忘的递归搜索。
type exactSolver struct {
	side       book.Side
	target     float64
	candidates []lotCandidate
	quantum    float64
	memo       map[memoKey]searchResult
}

func (s *exactSolver) key(index int, remaining float64) memoKey {
	return memoKey{index: index, remaining: int64(math.Round(remaining / s.quantum))}
}

// better 按方向比较成本，买单取低、卖单取高。
func (s *exactSolver) better(a, b float64) bool {
	if s.side == book.Buy {
		return a < b
	}
	return a > b
}

func (s *exactSolver) solve(index int, remaining float64) searchResult {
	if remaining <= book.Epsilon {
		return searchResult{feasible: true}
	}
	if index >= len(s.candidates) {
		return searchResult{}
	}

	key := s.key(index, remaining)
	if cached, ok := s.memo[key]; ok {
		return cached
	}

	best := s.solve(index+1, remaining)

	cand := s.candidates[index]
	if cand.volume <= remaining+book.Epsilon {
		sub := s.solve(index+1, remaining-cand.volume)
		if sub.feasible {
			cost := sub.cost + cand.volume*cand.effectivePrice
			if !best.feasible || s.better(cost, best.cost) {
				fills := make([]int, 0, len(sub.fills)+1)
				fills = append(fills, index)
				fills = append(fills, sub.fills...)
				best = searchResult{feasible: true, cost: cost, fills: fills}
			}
		}
	}

	s.memo[key] = best
	return best
}

// bestUndershoot 深度优先枚举所有总量不超过 target 的组合，
// 优先取总量更大者，总量相同时按成本准则取优。
func (s *exactSolver) bestUndershoot() []int {
	var bestFills []int
	bestVolume := 0.0
	bestCost := 0.0

	var chosen []int
	var dfs func(index int, volume, cost float64)
	dfs = func(index int, volume, cost float64) {
		if volume > bestVolume+book.Epsilon ||
			(math.Abs(volume-bestVolume) <= book.Epsilon && len(bestFills) > 0 && s.better(cost, bestCost)) {
			bestVolume = volume
			bestCost = cost
			bestFills = append(bestFills[:0], chosen...)
		}
		if index >= len(s.candidates) {
			return
		}

		cand := s.candidates[index]
		if volume+cand.volume <= s.target+book.Epsilon {
			chosen = append(chosen, index)
			dfs(index+1, volume+cand.volume, cost+cand.volume*cand.effectivePrice)
			chosen = chosen[:len(chosen)-1]
		}
		dfs(index+1, volume, cost)
	}
	dfs(0, 0, 0)

	return bestFills
}

// aggregateFills 将选中的手数按 (场所, 价格) 聚合，
// 并按有效价格的呈现顺序排序。聚合保持整手数倍数性质。
func aggregateFills(candidates []lotCandidate, chosen []int, side book.Side) []plan.Fill {
	type fillKey struct {
		venue string
		price float64
	}

	totals := make(map[fillKey]float64, len(chosen))
	order := make([]fillKey, 0, len(chosen))
	for _, index := range chosen {
		cand := candidates[index]
		key := fillKey{venue: cand.venue, price: cand.price}
		if _, ok := totals[key]; !ok {
			order = append(order, key)
		}
		totals[key] += cand.volume
	}

	effective := make(map[fillKey]float64, len(order))
	for _, index := range chosen {
		cand := candidates[index]
		effective[fillKey{venue: cand.venue, price: cand.price}] = cand.effectivePrice
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := effective[order[i]], effective[order[j]]
		if a != b {
			if side == book.Buy {
				return a < b
			}
			return a > b
		}
		if order[i].venue != order[j].venue {
			return order[i].venue < order[j].venue
		}
		return order[i].price < order[j].price
	})

	fills := make([]plan.Fill, 0, len(order))
	for _, key := range order {
		fills = append(fills, plan.Fill{Venue: key.venue, Price: key.price, Volume: totals[key]})
	}
	return fills
}
