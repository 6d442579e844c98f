package main

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tricount/server"
	"tricount/util"
)

func main() {
	configPath := "config/coord_config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := util.ReadCoordConfig(configPath, ".env")
	util.CheckErr(err, "Error reading coord config: %v\n", err)

	// create a log file and log to both console and terminal
	logFile, err := os.OpenFile("bagel.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetPrefix("Coord: ")

	s, err := server.NewServer(config, server.NewSourceOpener(config.Graph))
	util.CheckErr(err, "Error creating server: %v\n", err)
	defer s.Close()

	apiServer, err := server.NewGRPCServer(s, config.TLSCertPath, config.TLSKeyPath)
	util.CheckErr(err, "Error while generating TLS API: %v\n", err)

	lis, err := net.Listen("tcp", config.ClientAPIListenAddr)
	util.CheckErr(err, "Error while listening on %v: %v\n", config.ClientAPIListenAddr, err)
	log.Printf("main: serving gRPC on %v\n", config.ClientAPIListenAddr)
	go func() {
		if err := apiServer.Serve(lis); err != nil {
			log.Fatalf("Error while serving : %v", err)
		}
	}()

	srv := server.NewHTTPServer(
		config.ExternalAPIListenAddr, server.NewHTTPHandler(apiServer, s.Router()),
	)
	go func() {
		log.Printf("main: serving HTTP on %v\n", config.ExternalAPIListenAddr)
		var err error
		if config.TLSCertPath != "" && config.TLSKeyPath != "" {
			err = srv.ListenAndServeTLS(config.TLSCertPath, config.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error while serving HTTP: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("main: shutting down\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("main: HTTP shutdown: %v\n", err)
	}
	apiServer.GracefulStop()
}
