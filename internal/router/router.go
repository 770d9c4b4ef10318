package router

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sor-router/internal/book"
	"sor-router/internal/plan"
)

// Algorithm 表示路由算法。
type Algorithm int

const (
	// Greedy 纯贪心：始终吃掉全局最优有效价格档位。
	Greedy Algorithm = iota
	// Hybrid 混合：尾部低于交叉阈值时切换到精确分配。
	Hybrid
)

func (a Algorithm) String() string {
	if a == Greedy {
		return "greedy"
	}
	return "hybrid"
}

// ParseAlgorithm 解析算法名称，接受 greedy/hybrid 及缩写 G/H。
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greedy", "g":
		return Greedy, nil
	case "hybrid", "h":
		return Hybrid, nil
	default:
		return Hybrid, fmt.Errorf("router: 未知算法 %q", s)
	}
}

// bestOrder 为进入优先队列的档位投影。
type bestOrder struct {
	venue          string
	effectivePrice float64
	volume         float64
	originalPrice  float64
	fee            float64
	seq            int
}

// orderQueue 按有效价格排序的优先队列，买单取最低价、卖单取最高价。
// 有效价格相同时按入队顺序稳定排序。
type orderQueue struct {
	side  book.Side
	items []bestOrder
}

func (q *orderQueue) Len() int { return len(q.items) }

func (q *orderQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.effectivePrice != b.effectivePrice {
		if q.side == book.Buy {
			return a.effectivePrice < b.effectivePrice
		}
		return a.effectivePrice > b.effectivePrice
	}
	return a.seq < b.seq
}

func (q *orderQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *orderQueue) Push(x any) { q.items = append(q.items, x.(bestOrder)) }

func (q *orderQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// Router 持有各场所订单簿并执行订单分配。
// 同一时刻只允许一个 Distribute 调用，分配过程中会消耗订单簿深度。
type Router struct {
	books  map[string]*book.OrderBook
	fees   plan.FeeTable
	logger *zap.Logger
}

// New 创建路由器并接管订单簿的所有权。
func New(books map[string]*book.OrderBook, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	fees := make(plan.FeeTable, len(books))
	for id, ob := range books {
		fees[id] = ob.TakerFee()
	}

	return &Router{
		books:  books,
		fees:   fees,
		logger: logger,
	}
}

// FeeTable 返回场所费率表，构造后只读，可与计划共享。
func (r *Router) FeeTable() plan.FeeTable {
	return r.fees
}

// venueIDs 返回按字典序排列的场所标识，保证遍历顺序确定。
func (r *Router) venueIDs() []string {
	ids := make([]string, 0, len(r.books))
	for id := range r.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VenueLiquidity 汇总单个场所的剩余流动性。
type VenueLiquidity struct {
	Venue     string
	BidVolume float64
	AskVolume float64
	BidLevels int
	AskLevels int
}

// RemainingLiquidity 返回各场所剩余深度汇总，按场所标识排序。
func (r *Router) RemainingLiquidity() []VenueLiquidity {
	out := make([]VenueLiquidity, 0, len(r.books))
	for _, id := range r.venueIDs() {
		ob := r.books[id]
		entry := VenueLiquidity{Venue: id}
		for _, level := range ob.Bids() {
			entry.BidVolume += level.Volume
			entry.BidLevels++
		}
		for _, level := range ob.Asks() {
			entry.AskVolume += level.Volume
			entry.AskLevels++
		}
		out = append(out, entry)
	}
	return out
}

// RenderLiquidity 输出剩余流动性报告。
func (r *Router) RenderLiquidity(w io.Writer) {
	fmt.Fprintln(w, "剩余流动性:")
	for _, entry := range r.RemainingLiquidity() {
		fmt.Fprintf(w, "  场所: %s  买盘: %.5f (%d 档)  卖盘: %.5f (%d 档)\n",
			entry.Venue, entry.BidVolume, entry.BidLevels, entry.AskVolume, entry.AskLevels)
	}
}

// RenderBooks 输出全部订单簿。
func (r *Router) RenderBooks(w io.Writer) {
	for _, id := range r.venueIDs() {
		r.books[id].Render(w)
	}
}

func (r *Router) bestLevel(ob *book.OrderBook, side book.Side) (book.Level, bool) {
	if side == book.Buy {
		return ob.BestAsk()
	}
	return ob.BestBid()
}

func (r *Router) reduceLevel(ob *book.OrderBook, side book.Side, price, volume float64) error {
	if side == book.Buy {
		return ob.ReduceAsk(price, volume)
	}
	return ob.ReduceBid(price, volume)
}

func (r *Router) removeTop(ob *book.OrderBook, side book.Side) error {
	if side == book.Buy {
		return ob.RemoveTopAsk()
	}
	return ob.RemoveTopBid()
}
