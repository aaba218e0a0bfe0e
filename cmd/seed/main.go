package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机区域、岗位、员工和班次, 2: 从 CSV 导入员工)")
	flag.IntVar(&n, "n", 20, "要插入的员工数量，班次数量为其两倍")
	flag.StringVar(&file, "file", "./internal/seed/data/employees.csv", "要导入的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("无法加载时区", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		summary, err := seed.SeedRandom(context.Background(), repo, n, loc)
		if err != nil {
			slog.Error("插入随机数据失败", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入随机数据成功", "areas", summary.Areas, "positions", summary.Positions, "employees", summary.Employees, "shifts", summary.Shifts)
	case 2:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer f.Close()

		summary, err := seed.SeedEmployeesCSV(context.Background(), repo, f)
		if err != nil {
			slog.Error("导入员工失败", slog.String("error", err.Error()))
			return
		}
		slog.Info("导入员工成功", "areas", summary.Areas, "positions", summary.Positions, "employees", summary.Employees)
	default:
		slog.Error("指定的操作非法")
	}
}
