package core

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

func SetupFiberApp(app *App) *fiber.App {
	f := fiber.New(fiber.Config{
		AppName: "perplbot",
	})

	f.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "data": nil})
	})

	f.Post("/chat", func(c *fiber.Ctx) error {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil || req.Message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "message is required"})
		}

		loop, err := app.NewChatLoop()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		message := req.Message
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			sink := func(event string, payload any) error {
				data, err := json.Marshal(payload)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
					return err
				}
				return w.Flush()
			}
			if err := loop.Run(context.Background(), message, sink); err != nil {
				log.Errorf("chat loop ended with error: %v", err)
			}
		})
		return nil
	})

	return f
}

func ShutdownFiberApp(f *fiber.App) {
	_ = f.Shutdown()
}
