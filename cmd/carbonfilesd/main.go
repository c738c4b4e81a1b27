// Command carbonfilesd is the CarbonFiles process entrypoint: load
// configuration, wire the domain, serve HTTP until interrupted.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/server"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, *addr); err != nil {
		xlog.Errorf("carbonfilesd: %v", err)
		xlog.Flush()
		os.Exit(1)
	}
	xlog.Flush()
}
