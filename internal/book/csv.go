package book

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadCSV 从快照文件读取深度数据并填充订单簿。
// 文件首行为表头，其后每行为 price,volume,type，type 取 Bid 或 Ask，
// 其他类型静默忽略；数值字段解析失败则中止该文件并返回错误。
func LoadCSV(path string, ob *OrderBook) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("book: 打开深度文件失败: %w", err)
	}
	defer f.Close()

	if err := ReadSnapshot(f, ob); err != nil {
		return fmt.Errorf("book: 解析深度文件 %q 失败: %w", path, err)
	}
	return nil
}

// ReadSnapshot 从 r 逐行读取深度快照。
func ReadSnapshot(r io.Reader, ob *OrderBook) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("读取第 %d 行失败: %w", line+1, err)
		}
		line++

		// 首行为表头
		if line == 1 {
			continue
		}
		if len(record) < 3 {
			return fmt.Errorf("第 %d 行字段不足: %v", line, record)
		}

		price, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return fmt.Errorf("第 %d 行价格非法: %w", line, err)
		}
		volume, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return fmt.Errorf("第 %d 行数量非法: %w", line, err)
		}

		switch record[2] {
		case "Bid":
			if err := ob.AddBid(price, volume); err != nil {
				return fmt.Errorf("第 %d 行: %w", line, err)
			}
		case "Ask":
			if err := ob.AddAsk(price, volume); err != nil {
				return fmt.Errorf("第 %d 行: %w", line, err)
			}
		default:
			// 未知类型直接跳过
		}
	}
}
