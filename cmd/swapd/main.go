package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"swaptrade/config"
	"swaptrade/native/amm"
	"swaptrade/native/batch"
	"swaptrade/native/common"
	"swaptrade/native/history"
	"swaptrade/native/ledger"
	"swaptrade/native/liquidity"
	"swaptrade/native/oracle"
	"swaptrade/native/ratelimit"
	"swaptrade/native/tiers"
	"swaptrade/observability/logging"
	"swaptrade/observability/metrics"
	"swaptrade/state"
	"swaptrade/storage"
)

const usage = `Usage: swapd [flags] <command> [args]

Commands:
  mint <account> <asset> <amount>            credit newly issued units
  balance <account> <asset>                  print a balance
  swap <account> <from> <to> <amount>        execute a swap
  add-liquidity <account> <base> <quote>     deposit both assets for shares
  remove-liquidity <account> <shares>        burn shares for reserves
  position <account>                         print an LP position
  set-price <from> <to> <price> <liquidity>  record an oracle quote
  price <from> <to>                          print the current quote
  history <account>                          print recent swaps
  stats                                      print engine-wide totals
  pause | resume                             toggle the trading halt
  freeze <account> | unfreeze <account>      toggle an account freeze
`

type engineSet struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	oracle   *oracle.Oracle
	pool     *liquidity.Pool
	book     *tiers.Book
	gate     *common.Gate
	history  *history.Log
	engine   *amm.Engine
	executor *batch.Executor
}

func main() {
	configFile := flag.String("config", "./swaptrade.toml", "Path to the configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPTRADE_ENV"))
	logger := logging.Setup("swapd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engines := wire(cfg, state.NewManager(db))
	if err := dispatch(engines, args); err != nil {
		logger.Error("command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func wire(cfg *config.Config, mgr *state.Manager) *engineSet {
	base := ledger.Asset(cfg.BaseAsset)
	quote := ledger.Asset(cfg.QuoteAsset)

	l := ledger.NewLedger(mgr)
	o := oracle.NewOracle(mgr)
	o.SetStaleThreshold(time.Duration(cfg.StaleThresholdSeconds) * time.Second)
	book := tiers.NewBook(mgr)
	limiter := ratelimit.NewLimiter(mgr)
	limiter.SetWindows(cfg.SwapWindowSeconds, cfg.LPWindowSeconds)
	pool := liquidity.NewPool(mgr, l, base, quote)
	pool.SetLimiter(limiter, book)
	gate := common.NewGate(mgr)
	hist := history.NewLog(mgr)

	engine := amm.NewEngine(l, o, pool, book, limiter)
	engine.SetGate(gate, gate)
	engine.SetHistory(hist)
	engine.SetMaxSlippage(cfg.MaxSlippageBps)
	engine.SetMetrics(metrics.Trade())

	executor := batch.NewExecutor(mgr, engine, l, pool)
	executor.SetMetrics(metrics.Trade())

	return &engineSet{
		cfg:      cfg,
		ledger:   l,
		oracle:   o,
		pool:     pool,
		book:     book,
		gate:     gate,
		history:  hist,
		engine:   engine,
		executor: executor,
	}
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

func dispatch(e *engineSet, args []string) error {
	command, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s takes %d arguments, got %d", command, n, len(rest))
		}
		return nil
	}

	switch command {
	case "mint":
		if err := need(3); err != nil {
			return err
		}
		amount, err := parseAmount(rest[2])
		if err != nil {
			return err
		}
		return e.ledger.Mint(rest[0], ledger.NormalizeAsset(rest[1]), amount)
	case "balance":
		if err := need(2); err != nil {
			return err
		}
		balance, err := e.ledger.BalanceOf(rest[0], ledger.NormalizeAsset(rest[1]))
		if err != nil {
			return err
		}
		fmt.Println(balance.String())
		return nil
	case "swap":
		if err := need(4); err != nil {
			return err
		}
		amount, err := parseAmount(rest[3])
		if err != nil {
			return err
		}
		res, err := e.engine.Swap(rest[0], ledger.NormalizeAsset(rest[1]), ledger.NormalizeAsset(rest[2]), amount)
		if err != nil {
			return err
		}
		fmt.Printf("received %s (fee %s, tier %s, source %s)\n", res.AmountOut, res.Fee, res.Tier, res.Source)
		return nil
	case "add-liquidity":
		if err := need(3); err != nil {
			return err
		}
		amountBase, err := parseAmount(rest[1])
		if err != nil {
			return err
		}
		amountQuote, err := parseAmount(rest[2])
		if err != nil {
			return err
		}
		minted, err := e.pool.AddLiquidity(rest[0], amountBase, amountQuote)
		if err != nil {
			return err
		}
		fmt.Printf("minted %s shares\n", minted)
		return nil
	case "remove-liquidity":
		if err := need(2); err != nil {
			return err
		}
		shares, err := parseAmount(rest[1])
		if err != nil {
			return err
		}
		outBase, outQuote, err := e.pool.RemoveLiquidity(rest[0], shares)
		if err != nil {
			return err
		}
		fmt.Printf("withdrew %s %s, %s %s\n", outBase, e.cfg.BaseAsset, outQuote, e.cfg.QuoteAsset)
		return nil
	case "position":
		if err := need(1); err != nil {
			return err
		}
		pos, err := e.pool.PositionOf(rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("shares %s, deposited %s %s, %s %s\n",
			pos.Shares, pos.DepositedBase, e.cfg.BaseAsset, pos.DepositedQuote, e.cfg.QuoteAsset)
		return nil
	case "set-price":
		if err := need(4); err != nil {
			return err
		}
		price, err := parseAmount(rest[2])
		if err != nil {
			return err
		}
		depth, err := parseAmount(rest[3])
		if err != nil {
			return err
		}
		return e.oracle.SetPrice(ledger.NormalizeAsset(rest[0]), ledger.NormalizeAsset(rest[1]), price, depth)
	case "price":
		if err := need(2); err != nil {
			return err
		}
		quote, err := e.oracle.GetPrice(ledger.NormalizeAsset(rest[0]), ledger.NormalizeAsset(rest[1]))
		if err != nil {
			return err
		}
		fmt.Printf("price %s, liquidity %s\n", quote.Price, quote.Liquidity)
		return nil
	case "history":
		if err := need(1); err != nil {
			return err
		}
		entries, err := e.history.Of(rest[0])
		if err != nil {
			return err
		}
		for _, entry := range entries {
			fmt.Printf("%d %s->%s in %s out %s rate %s\n",
				entry.Timestamp, entry.FromAsset, entry.ToAsset, entry.AmountIn, entry.AmountOut, entry.Rate)
		}
		return nil
	case "stats":
		if err := need(0); err != nil {
			return err
		}
		totals, err := e.history.Totals()
		if err != nil {
			return err
		}
		fmt.Printf("users %d, volume %s, fees %s\n", totals.TotalUsers, totals.TotalVolume, totals.TotalFees)
		return nil
	case "pause":
		if err := need(0); err != nil {
			return err
		}
		return e.gate.Pause()
	case "resume":
		if err := need(0); err != nil {
			return err
		}
		return e.gate.Resume()
	case "freeze":
		if err := need(1); err != nil {
			return err
		}
		return e.gate.Freeze(rest[0])
	case "unfreeze":
		if err := need(1); err != nil {
			return err
		}
		return e.gate.Unfreeze(rest[0])
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
