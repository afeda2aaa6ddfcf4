// Command canmonitor sniffs a SocketCAN interface directly, bypassing the
// ELM327 adapter entirely, and prints the ISO-TP-reassembled responses it
// sees. It exists to cross-check internal/frame's reassembly against real
// bus traffic independent of the session engine and command queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/anodyne74/obdclient/internal/canbus"
	"github.com/anodyne74/obdclient/internal/frame"
)

func main() {
	iface := flag.String("iface", "can0", "SocketCAN interface to sniff")
	flag.Parse()

	sniffer, err := canbus.Open(*iface)
	if err != nil {
		log.Fatal("canmonitor: opening interface", "iface", *iface, "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	out := make(chan []frame.EcuResponse, 16)
	go sniffer.Run(ctx, out)

	log.Info("canmonitor: sniffing", "iface", *iface)
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-out:
			for _, r := range batch {
				role := r.Role
				if role == "" {
					role = "unknown"
				}
				fmt.Printf("[%03X %s] % X\n", r.Header, role, r.Payload)
			}
		}
	}
}
