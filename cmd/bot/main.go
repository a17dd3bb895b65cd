package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	environment "channel-subs-bot/internal/env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize environment
	env, err := environment.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup environment: %v", err)
	}

	logger := env.Logger
	logger.Info("Starting channel-subs-bot application")

	// Start observability server in background
	if env.Servers.HTTP.Observability != nil {
		go func() {
			logger.Info("Starting observability server", slog.String("addr", env.Servers.HTTP.Observability.Addr))
			if err := env.Servers.HTTP.Observability.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Observability server error", slog.Any("error", err))
			}
		}()
	}

	// Запускаем worker service
	if err := env.Services.WorkerService.Start(); err != nil {
		logger.Error("Failed to start worker service", slog.Any("error", err))
		closeAll(env)
		return
	}

	// Запускаем Telegram бота
	done, err := startTelegramBot(ctx, env)
	if err != nil {
		logger.Error("Failed to start telegram bot", slog.Any("error", err))
		env.Services.WorkerService.Stop()
		closeAll(env)
		return
	}

	logger.Info("Bot started successfully. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("Shutting down application...")

	// Create context with timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Config.ShutdownDuration)
	defer cancel()

	// Дожидаемся обработчиков обновлений, но не дольше таймаута
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Update handlers did not finish in time")
	}

	env.Services.WorkerService.Stop()

	if env.Servers.HTTP.Observability != nil {
		if err := env.Servers.HTTP.Observability.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Observability server shutdown error", slog.Any("error", err))
		}
	}

	closeAll(env)

	logger.Info("Application stopped")
}

func closeAll(env *environment.Env) {
	for i := len(env.Closers) - 1; i >= 0; i-- {
		env.Closers[i]()
	}
}

// startTelegramBot запускает long polling. Возвращённый канал закрывается,
// когда цикл остановлен и все начатые обработчики завершились.
func startTelegramBot(ctx context.Context, env *environment.Env) (<-chan struct{}, error) {
	logger := env.Logger
	bot := env.Clients.TelegramBot
	router := env.Services.TelegramRouter

	if bot == nil {
		return nil, fmt.Errorf("telegram bot не инициализирован")
	}
	if router == nil {
		return nil, fmt.Errorf("telegram router не инициализирован")
	}

	if err := bot.Start(ctx); err != nil {
		return nil, fmt.Errorf("запуск telegram клиента: %w", err)
	}

	// Устанавливаем команды для меню бота
	if err := router.SetupBotCommands(); err != nil {
		// Не возвращаем ошибку, т.к. это не критично
		logger.Error("Failed to setup bot commands", slog.Any("error", err))
	} else {
		logger.Info("Bot commands set up successfully")
	}

	updates := bot.GetUpdates()
	done := make(chan struct{})

	logger.Info("Started listening for updates with router...")

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				bot.Stop()
				router.Wait()
				return
			case update, ok := <-updates:
				if !ok {
					router.Wait()
					return
				}
				if update.Message != nil && update.Message.From != nil {
					logger.Debug("Получено сообщение",
						slog.Int64("chat_id", update.Message.Chat.ID),
						slog.Int64("user_id", update.Message.From.ID))
				} else if update.CallbackQuery != nil {
					logger.Debug("Получен callback",
						slog.Int64("user_id", update.CallbackQuery.From.ID),
						slog.String("data", update.CallbackQuery.Data))
				}

				// Обработка в отдельной горутине, по порядку для каждого пользователя
				router.Dispatch(context.WithoutCancel(ctx), update)
			}
		}
	}()

	return done, nil
}
