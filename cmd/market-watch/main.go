package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopherbazaar.com/internal/feed"
	"gopherbazaar.com/internal/watch"
	"gopherbazaar.com/internal/ws"
	"gopherbazaar.com/pkg/logger"
)

var (
	flagURL   string
	flagID    string
	flagFeed  bool
	flagLevel string
)

var rootCmd = &cobra.Command{
	Use:   "market-watch",
	Short: "Follow the market's live pushes over websocket",
	Long: "Connects to the market server's /ws endpoint. With --id the connection is\n" +
		"registered as that account and prints its item, wish, purchase and sale\n" +
		"pushes; with --feed it also prints the public item and trade feed.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagID == "" && !flagFeed {
			return errors.New("nothing to watch: pass --id, --feed or both")
		}
		logger.InitWithConfig(logger.Config{Service: "market-watch", Level: flagLevel, File: "-"})
		defer logger.Sync()

		c := &watch.Client{URL: flagURL, ID: flagID, OnMessage: printMsg}
		if flagFeed {
			c.Topics = []string{feed.TopicItems, feed.TopicTrades}
		}
		err := c.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagURL, "url", "ws://localhost:8080/ws", "market server websocket endpoint")
	rootCmd.Flags().StringVar(&flagID, "id", "", "account id to register as")
	rootCmd.Flags().BoolVar(&flagFeed, "feed", false, "subscribe to the public item and trade feed")
	rootCmd.Flags().StringVar(&flagLevel, "log-level", "warn", "log level")
}

func printMsg(m ws.ServerMsg) {
	switch m.Type {
	case ws.TypeItems, ws.TypeWishes:
		fmt.Printf("[%s] %d entries\n", m.Type, len(m.Lines))
		for _, l := range m.Lines {
			fmt.Printf("  %s\n", l)
		}
	case ws.TypePurchase:
		fmt.Printf("[purchase] bought %q for %s\n", m.Name, m.Price)
	case ws.TypeSale:
		fmt.Printf("[sale] sold %q for %s\n", m.Name, m.Price)
	case ws.TypeFeed:
		fmt.Printf("[%s] %s\n", m.Topic, m.Data)
	default:
		fmt.Printf("[%s] %+v\n", m.Type, m)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
