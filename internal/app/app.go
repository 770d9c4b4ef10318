package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sor-router/internal/book"
	"sor-router/internal/config"
	"sor-router/internal/plan"
	"sor-router/internal/router"
	"sor-router/internal/store"
)

// App 聚合核心依赖并驱动交互式路由会话。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	router *router.Router
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 加载订单簿后进入交互式控制台，直到 exit 或输入流结束。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("路由系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Int("venues", len(a.cfg.Venues)),
	)

	books, err := LoadBooks(ctx, a.cfg.Venues, a.logger)
	if err != nil {
		return err
	}
	a.router = router.New(books, a.logger)

	if err := a.store.InitExecutionSchema(ctx); err != nil {
		return err
	}

	return a.Console(ctx, os.Stdin, os.Stdout)
}

// Console 在给定输入输出上运行命令循环。
// 命令: 带符号数量(正买负卖)、lq 打印剩余流动性、history 打印执行历史、exit 退出。
func (a *App) Console(ctx context.Context, in io.Reader, out io.Writer) error {
	defaultAlgo, err := router.ParseAlgorithm(a.cfg.Routing.DefaultAlgorithm)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			a.logger.Info("收到退出信号，控制台关闭")
			return nil
		}

		fmt.Fprint(out, "请输入数量(正买负卖)、lq、history 或 exit: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("app: 读取输入失败: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"):
			fmt.Fprintln(out, "再见")
			return nil
		case strings.EqualFold(input, "lq"):
			a.router.RenderLiquidity(out)
			continue
		case strings.EqualFold(input, "history"):
			a.printHistory(ctx, out)
			continue
		}

		size, err := strconv.ParseFloat(input, 64)
		if err != nil {
			fmt.Fprintf(out, "无法识别的命令 %q\n", input)
			continue
		}

		side := book.Buy
		if size < 0 {
			side = book.Sell
		}

		algorithm := a.promptAlgorithm(scanner, out, defaultAlgo)
		result, err := a.router.Distribute(math.Abs(size), side, algorithm)
		if err != nil {
			a.logger.Error("订单分配失败", zap.Error(err))
			fmt.Fprintf(out, "订单分配失败: %v\n", err)
			continue
		}

		result.Render(out)
		a.recordExecution(ctx, result, algorithm)
	}
}

func (a *App) promptAlgorithm(scanner *bufio.Scanner, out io.Writer, fallback router.Algorithm) router.Algorithm {
	fmt.Fprintf(out, "选择算法 [G=纯贪心 / H=混合] (默认 %s): ", fallback)
	if !scanner.Scan() {
		return fallback
	}

	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return fallback
	}

	algorithm, err := router.ParseAlgorithm(input)
	if err != nil {
		fmt.Fprintf(out, "未知算法 %q，使用默认 %s\n", input, fallback)
		return fallback
	}
	return algorithm
}

func (a *App) recordExecution(ctx context.Context, result *plan.Plan, algorithm router.Algorithm) {
	record := store.ExecutionRecord{
		Side:          result.Side().String(),
		Algorithm:     algorithm.String(),
		RequestedSize: result.RequestedSize(),
		FilledVolume:  result.FilledVolume(),
		TotalFees:     result.TotalFees().String(),
		Total:         result.Total().String(),
		AveragePrice:  result.AverageEffectivePrice().String(),
		Fulfillment:   result.FulfillmentPercent(),
		CreatedAt:     time.Now().UTC(),
	}
	for _, fill := range result.Fills() {
		record.Fills = append(record.Fills, store.FillRecord{
			Venue:  fill.Venue,
			Price:  fill.Price,
			Volume: fill.Volume,
		})
	}

	if err := a.store.SaveExecution(ctx, record); err != nil {
		a.logger.Warn("记录执行历史失败", zap.Error(err))
	}
}

func (a *App) printHistory(ctx context.Context, out io.Writer) {
	records, err := a.store.RecentExecutions(ctx, a.cfg.Routing.HistoryLimit)
	if err != nil {
		a.logger.Warn("查询执行历史失败", zap.Error(err))
		fmt.Fprintf(out, "查询执行历史失败: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "暂无执行历史")
		return
	}

	fmt.Fprintln(out, "执行历史:")
	for _, record := range records {
		fmt.Fprintf(out, "  #%d %s %s 请求: %.5f 成交: %.5f 费用: %s 均价: %s 比例: %.2f%% (%s)\n",
			record.ID, record.Side, record.Algorithm,
			record.RequestedSize, record.FilledVolume,
			record.TotalFees, record.AveragePrice, record.Fulfillment,
			record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
