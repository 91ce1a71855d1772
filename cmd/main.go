package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harborpoint/dealflow-backend/internal/app"
	"github.com/harborpoint/dealflow-backend/internal/utils"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		a.Log.Info("Shutting down...")
		a.Close()
		os.Exit(0)
	}()

	port := utils.GetEnv("PORT", "8080", a.Log)
	a.Log.Info("Starting server...", "port", port)
	if err := a.Run(":" + port); err != nil {
		a.Log.Fatal("Server exited", "error", err)
	}
}
