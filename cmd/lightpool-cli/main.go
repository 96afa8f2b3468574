// Command lightpool-cli drives a node from the shell: key management
// through the encrypted keystore, chain queries, and signed token,
// market, and order transactions.
//
// Configuration comes from the environment (and .env): LIGHTPOOL_RPC_URL
// for the node, LIGHTPOOL_KEYSTORE_DIR for keys, LIGHTPOOL_PASSPHRASE as
// a fallback for -passphrase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lightpool/lightpool-go/params"
	"github.com/lightpool/lightpool-go/pkg/client"
	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/keystore"
	"github.com/lightpool/lightpool-go/pkg/trading"
	"github.com/lightpool/lightpool-go/pkg/types"
	"github.com/lightpool/lightpool-go/pkg/util"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := params.LoadFromEnv("")
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "keygen":
		err = cmdKeygen(cfg, args)
	case "keys":
		err = cmdKeys(cfg, args)
	case "health":
		err = cmdHealth(cfg, args)
	case "chain-info":
		err = cmdChainInfo(cfg, args)
	case "create-token":
		err = cmdCreateToken(cfg, args)
	case "create-market":
		err = cmdCreateMarket(cfg, args)
	case "place-order":
		err = cmdPlaceOrder(cfg, args)
	case "cancel-order":
		err = cmdCancelOrder(cfg, args)
	case "balance":
		err = cmdBalance(cfg, args)
	case "orderbook":
		err = cmdOrderBook(cfg, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: lightpool-cli <command> [flags]

Keys:
  keygen         generate a key and seal it in the keystore
  keys           list keystore addresses

Queries:
  health         probe the node
  chain-info     chain id, height, and transaction count
  balance        account nonce and token balances
  orderbook      aggregated depth for a market

Transactions:
  create-token   create a token and mint its supply
  create-market  create a spot market for a token pair
  place-order    place a limit or market order
  cancel-order   pull a resting order

Run "lightpool-cli <command> -h" for the command's flags.
`)
}

// rpcClient builds the SDK client; -v wires a debug logger through it.
func rpcClient(cfg params.Config, verbose bool) (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(cfg.Client.Timeout)}
	if verbose {
		log, err := util.NewLoggerAt("debug")
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		opts = append(opts, client.WithLogger(log))
	}
	return client.New(cfg.Client.RPCURL, opts...), nil
}

func resolvePassphrase(flagVal string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if env := os.Getenv("LIGHTPOOL_PASSPHRASE"); env != "" {
		return env, nil
	}
	return "", errors.New("passphrase required: pass -passphrase or set LIGHTPOOL_PASSPHRASE")
}

func loadSigner(cfg params.Config, from, passphrase string) (*crypto.Signer, error) {
	if from == "" {
		return nil, errors.New("missing -from address")
	}
	addr, err := types.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("bad -from address: %w", err)
	}
	pass, err := resolvePassphrase(passphrase)
	if err != nil {
		return nil, err
	}
	ks, err := keystore.NewStore(cfg.Keystore.Dir)
	if err != nil {
		return nil, err
	}
	return ks.Load(addr, pass)
}

// submitAction signs one action at the account's current nonce and
// submits it, failing on an unsuccessful receipt.
func submitAction(ctx context.Context, rpc *client.Client, signer *crypto.Signer, action types.Action) (*client.SubmitResult, error) {
	account, err := rpc.GetAccountInfo(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	signed, err := types.NewTxBuilder().
		Nonce(account.Nonce).
		AddAction(action).
		BuildAndSign(signer)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	result, err := rpc.SubmitTransaction(ctx, signer.Envelope(signed))
	if err != nil {
		return nil, err
	}
	if !result.Receipt.IsSuccess() {
		if result.Receipt.Error != "" {
			return nil, fmt.Errorf("transaction failed: %s", result.Receipt.Error)
		}
		return nil, errors.New("transaction failed")
	}
	return result, nil
}

func parseSide(s string) (types.OrderSide, error) {
	switch strings.ToLower(s) {
	case "buy":
		return types.Buy, nil
	case "sell":
		return types.Sell, nil
	}
	return 0, fmt.Errorf("side %q, want buy or sell", s)
}

func parseTIF(s string) (types.TimeInForce, error) {
	switch strings.ToLower(s) {
	case "gtc":
		return types.GTC, nil
	case "ioc":
		return types.IOC, nil
	case "fok":
		return types.FOK, nil
	}
	return 0, fmt.Errorf("time in force %q, want gtc, ioc, or fok", s)
}

func cmdKeygen(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	passphrase := fs.String("passphrase", "", "passphrase sealing the key file")
	seed := fs.String("seed", "", "import this 32-byte hex seed instead of generating")
	showSeed := fs.Bool("show-seed", false, "print the seed after saving")
	fs.Parse(args)

	pass, err := resolvePassphrase(*passphrase)
	if err != nil {
		return err
	}

	var signer *crypto.Signer
	if *seed != "" {
		signer, err = crypto.FromSeedHex(*seed)
		if err != nil {
			return err
		}
	} else {
		signer, err = crypto.GenerateKey()
		if err != nil {
			return err
		}
	}

	ks, err := keystore.NewStore(cfg.Keystore.Dir)
	if err != nil {
		return err
	}
	path, err := ks.Save(signer, pass)
	if err != nil {
		return err
	}

	fmt.Printf("✓ key saved\n")
	fmt.Printf("  Address: %s\n", signer.Address())
	fmt.Printf("  File: %s\n", path)
	if *showSeed {
		fmt.Printf("  Seed: %s (KEEP SECRET!)\n", signer.SeedHex())
	}
	return nil
}

func cmdKeys(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	fs.Parse(args)

	ks, err := keystore.NewStore(cfg.Keystore.Dir)
	if err != nil {
		return err
	}
	addrs, err := ks.List()
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		fmt.Printf("no keys in %s\n", cfg.Keystore.Dir)
		return nil
	}
	for _, addr := range addrs {
		fmt.Println(addr)
	}
	return nil
}

func cmdHealth(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}
	if err := rpc.Health(context.Background()); err != nil {
		return err
	}
	fmt.Printf("✓ node healthy (%s)\n", cfg.Client.RPCURL)
	return nil
}

func cmdChainInfo(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("chain-info", flag.ExitOnError)
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}
	info, err := rpc.GetChainInfo(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Chain ID: %s\n", info.ChainID)
	fmt.Printf("Height: %d\n", info.Height)
	fmt.Printf("Transactions: %d\n", info.TxCount)
	return nil
}

func cmdCreateToken(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("create-token", flag.ExitOnError)
	from := fs.String("from", "", "creator address in the keystore")
	passphrase := fs.String("passphrase", "", "keystore passphrase")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	supply := fs.Uint64("supply", 0, "total supply in raw units")
	mintable := fs.Bool("mintable", false, "allow the creator to mint more")
	to := fs.String("to", "", "supply recipient (default: creator)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if *name == "" || *symbol == "" {
		return errors.New("missing -name or -symbol")
	}
	if *supply == 0 {
		return errors.New("missing -supply")
	}
	signer, err := loadSigner(cfg, *from, *passphrase)
	if err != nil {
		return err
	}
	recipient := signer.Address()
	if *to != "" {
		if recipient, err = types.ParseAddress(*to); err != nil {
			return fmt.Errorf("bad -to address: %w", err)
		}
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}

	action := types.NewCreateTokenAction(types.CreateTokenParams{
		Name:        *name,
		Symbol:      *symbol,
		TotalSupply: *supply,
		Mintable:    *mintable,
		To:          recipient,
	})
	result, err := submitAction(context.Background(), rpc, signer, action)
	if err != nil {
		return err
	}

	fmt.Printf("✓ token created\n")
	fmt.Printf("  Digest: %s\n", result.Digest)
	for _, ev := range result.Receipt.Events {
		if ev.EventType.Call != events.CallTokenCreated {
			continue
		}
		created, err := events.DecodeTokenCreated(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to decode token created event: %w", err)
		}
		fmt.Printf("  Token: %s (%s)\n", created.TokenAddress, created.Symbol)
		fmt.Printf("  Supply Balance: %s (owner %s)\n", created.BalanceID, created.To)
	}
	fmt.Printf("  Gas Used: %d\n", result.Receipt.GasUsed)
	return nil
}

func cmdCreateMarket(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("create-market", flag.ExitOnError)
	from := fs.String("from", "", "creator address in the keystore")
	passphrase := fs.String("passphrase", "", "keystore passphrase")
	name := fs.String("name", "", "market name, e.g. ALPHA-USDM")
	base := fs.String("base", "", "base token address")
	quote := fs.String("quote", "", "quote token address")
	minSize := fs.Uint64("min-size", 1, "minimum order size in raw base units")
	tick := fs.Uint64("tick", 1, "price tick in raw quote units")
	makerBps := fs.Uint("maker-bps", 0, "maker fee in basis points")
	takerBps := fs.Uint("taker-bps", 0, "taker fee in basis points")
	marketOrders := fs.Bool("market-orders", true, "accept market orders")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if *name == "" {
		return errors.New("missing -name")
	}
	baseToken, err := types.ParseAddress(*base)
	if err != nil {
		return fmt.Errorf("bad -base address: %w", err)
	}
	quoteToken, err := types.ParseAddress(*quote)
	if err != nil {
		return fmt.Errorf("bad -quote address: %w", err)
	}
	signer, err := loadSigner(cfg, *from, *passphrase)
	if err != nil {
		return err
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}

	action := types.NewCreateMarketAction(types.CreateMarketParams{
		Name:              *name,
		BaseToken:         baseToken,
		QuoteToken:        quoteToken,
		MinOrderSize:      *minSize,
		TickSize:          *tick,
		MakerFeeBps:       uint16(*makerBps),
		TakerFeeBps:       uint16(*takerBps),
		AllowMarketOrders: *marketOrders,
		State:             types.MarketActive,
		LimitOrder:        true,
	})
	result, err := submitAction(context.Background(), rpc, signer, action)
	if err != nil {
		return err
	}

	fmt.Printf("✓ market created\n")
	fmt.Printf("  Digest: %s\n", result.Digest)
	for _, ev := range result.Receipt.Events {
		if ev.EventType.Call != events.CallMarketCreated {
			continue
		}
		created, err := events.DecodeMarketCreated(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to decode market created event: %w", err)
		}
		fmt.Printf("  Market: %s (%s)\n", created.MarketID, created.Name)
		fmt.Printf("  Address: %s\n", created.MarketAddress)
	}
	fmt.Printf("  Gas Used: %d\n", result.Receipt.GasUsed)
	return nil
}

func cmdPlaceOrder(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("place-order", flag.ExitOnError)
	from := fs.String("from", "", "trader address in the keystore")
	passphrase := fs.String("passphrase", "", "keystore passphrase")
	market := fs.String("market", "", "market name")
	sideStr := fs.String("side", "", "buy or sell")
	amountStr := fs.String("amount", "", "order amount in base units, e.g. 1.5")
	priceStr := fs.String("price", "", "limit price in quote units; omit for a market order")
	tifStr := fs.String("tif", "gtc", "limit order time in force: gtc, ioc, fok")
	slippageBps := fs.Uint64("slippage-bps", 100, "market order slippage bound in basis points")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if *market == "" {
		return errors.New("missing -market")
	}
	side, err := parseSide(*sideStr)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return fmt.Errorf("bad -amount: %w", err)
	}
	signer, err := loadSigner(cfg, *from, *passphrase)
	if err != nil {
		return err
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}
	trader := trading.New(rpc, signer)

	ctx := context.Background()
	var result *trading.OrderResult
	if *priceStr != "" {
		price, err := decimal.NewFromString(*priceStr)
		if err != nil {
			return fmt.Errorf("bad -price: %w", err)
		}
		tif, err := parseTIF(*tifStr)
		if err != nil {
			return err
		}
		result, err = trader.PlaceLimitOrder(ctx, *market, side, amount, price, tif)
		if err != nil {
			return err
		}
	} else {
		result, err = trader.PlaceMarketOrder(ctx, *market, side, amount, *slippageBps)
		if err != nil {
			return err
		}
	}

	fmt.Printf("✓ order submitted\n")
	fmt.Printf("  Digest: %s\n", result.Digest)
	if result.OrderID == (types.OrderId{}) {
		fmt.Printf("  Resting: none\n")
	} else {
		fmt.Printf("  Order ID: %s\n", result.OrderID)
	}
	for _, fill := range result.Fills {
		fmt.Printf("  Fill: %s @ %s\n",
			trading.FromRaw(fill.Amount, trading.DefaultDecimals),
			trading.FromRaw(fill.Price, trading.DefaultDecimals))
	}
	return nil
}

func cmdCancelOrder(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("cancel-order", flag.ExitOnError)
	from := fs.String("from", "", "trader address in the keystore")
	passphrase := fs.String("passphrase", "", "keystore passphrase")
	market := fs.String("market", "", "market name")
	order := fs.String("order", "", "order id to cancel")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if *market == "" {
		return errors.New("missing -market")
	}
	orderID, err := types.ParseOrderId(*order)
	if err != nil {
		return fmt.Errorf("bad -order id: %w", err)
	}
	signer, err := loadSigner(cfg, *from, *passphrase)
	if err != nil {
		return err
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}
	trader := trading.New(rpc, signer)

	if _, err := trader.CancelOrder(context.Background(), *market, orderID); err != nil {
		return err
	}
	fmt.Printf("✓ order cancelled\n")
	fmt.Printf("  Order ID: %s\n", orderID)
	return nil
}

func cmdBalance(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	address := fs.String("address", "", "account address")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	addr, err := types.ParseAddress(*address)
	if err != nil {
		return fmt.Errorf("bad -address: %w", err)
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}
	info, err := rpc.GetAccountInfo(context.Background(), addr)
	if err != nil {
		return err
	}

	fmt.Printf("Address: %s\n", info.Address)
	fmt.Printf("Nonce: %d\n", info.Nonce)
	if len(info.Balances) == 0 {
		fmt.Println("Balances: none")
		return nil
	}
	fmt.Println("Balances:")
	for _, bal := range info.Balances {
		fmt.Printf("  %d of token %s\n", bal.Amount, bal.Token)
		fmt.Printf("    object %s\n", bal.ObjectID)
	}
	return nil
}

func cmdOrderBook(cfg params.Config, args []string) error {
	fs := flag.NewFlagSet("orderbook", flag.ExitOnError)
	market := fs.String("market", "", "market name")
	depth := fs.Int("depth", 10, "levels per side")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	if *market == "" {
		return errors.New("missing -market")
	}
	rpc, err := rpcClient(cfg, *verbose)
	if err != nil {
		return err
	}

	ctx := context.Background()
	markets, err := rpc.GetMarkets(ctx)
	if err != nil {
		return err
	}
	var marketID types.ObjectID
	found := false
	for _, info := range markets {
		if info.Name == *market {
			marketID, found = info.MarketID, true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown market %q", *market)
	}

	book, err := rpc.GetOrderBook(ctx, marketID, *depth)
	if err != nil {
		return err
	}

	fmt.Printf("Market: %s\n", *market)
	fmt.Println("Asks (best first):")
	if len(book.Asks) == 0 {
		fmt.Println("  empty")
	}
	for _, lvl := range book.Asks {
		fmt.Printf("  %12d  %12d  (%d orders)\n", lvl.Price, lvl.Amount, lvl.Orders)
	}
	fmt.Println("Bids (best first):")
	if len(book.Bids) == 0 {
		fmt.Println("  empty")
	}
	for _, lvl := range book.Bids {
		fmt.Printf("  %12d  %12d  (%d orders)\n", lvl.Price, lvl.Amount, lvl.Orders)
	}
	return nil
}
