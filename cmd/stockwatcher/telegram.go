package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnmolBhardwaj/StockWatcher/internal/notify"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Telegram bot utilities",
}

var telegramVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the bot token and show the latest chat id",
	RunE: func(cmd *cobra.Command, args []string) error {
		tg, err := telegramFrom(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		bot, err := tg.Verify(ctx)
		if err != nil {
			return fmt.Errorf("token rejected: %w", err)
		}
		fmt.Printf("✅ bot @%s (%s, id %d)\n", bot.Username, bot.FirstName, bot.ID)

		chat, err := tg.LatestChat(ctx)
		if err != nil {
			fmt.Printf("ℹ️  %v\n", err)
			return nil
		}
		fmt.Printf("💬 latest chat: %s (%s) id %s\n", chatLabel(chat), chat.Type, notify.FormatChatID(chat.ID))
		if cfg.Telegram.ChatID == "" {
			fmt.Println("   set TELEGRAM_CHAT_ID to this id to receive reports")
		}
		return nil
	},
}

var telegramTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a short test message through the dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := dispatcherFrom(cfg)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		res, err := d.Dispatch(ctx, "<b>StockWatcher</b> test message. Delivery works.")
		if err != nil {
			return err
		}
		fmt.Printf("✅ delivered %d chunk(s)\n", res.Delivered)
		return nil
	},
}

func chatLabel(c *notify.Chat) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	default:
		return "private"
	}
}

func init() {
	telegramCmd.AddCommand(telegramVerifyCmd)
	telegramCmd.AddCommand(telegramTestCmd)
}
